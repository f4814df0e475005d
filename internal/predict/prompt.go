package predict

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
)

// DefaultSystemPrompt frames the model as the employer.
const DefaultSystemPrompt = "You are a company boss."

// DefaultPromptTemplate asks for the position and salary every two years
// from 22 to 32, name first and nothing else.
const DefaultPromptTemplate = `这是一个人的信息，请你预测{{.Pronoun}}22-32岁每隔两年的职位和工资变化 {{.Name}} {{.Gender}} {{.Age}} {{.Position}} salary of ${{.Salary}}，必须要直接给我预测的工资变化，输出只保留姓名一次, 然后按顺序多少岁，多少工资，不允许回避问题，输出不需要22岁，不要提供多余的信息或者回复。`

// Seed is the part of an employee record that is sent out for prediction.
type Seed struct {
	Name     string
	Gender   dataset.Gender
	Age      string
	Position string
	Salary   string

	Source string
	Line   int
}

// Pronoun is the third-person pronoun used by the default template.
func (s Seed) Pronoun() string {
	if s.Gender == dataset.Male {
		return "他"
	}
	return "她"
}

// SeedFromRecord copies the prompt fields of r. Records without a name or a
// starting salary cannot be described and are rejected.
func SeedFromRecord(r *dataset.Record) (Seed, error) {
	name, _ := r.Text(dataset.ColName)
	if strings.TrimSpace(name) == "" {
		return Seed{}, fmt.Errorf("%s line %d: record has no name", r.Source, r.Line)
	}
	sal, ok := r.Number(dataset.ColStartingSalary)
	if !ok {
		return Seed{}, fmt.Errorf("%s line %d: record %s has no starting salary", r.Source, r.Line, name)
	}
	num := func(col string) string {
		if v, ok := r.Number(col); ok {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
		return ""
	}
	return Seed{
		Name:     name,
		Gender:   r.Gender,
		Age:      num(dataset.ColAge),
		Position: num(dataset.ColPosition),
		Salary:   strconv.FormatFloat(sal, 'f', 0, 64),
		Source:   r.Source,
		Line:     r.Line,
	}, nil
}

// Seeds converts every record of t, returning the ones that could not be
// described as errors.
func Seeds(t *dataset.Table) ([]Seed, []error) {
	var seeds []Seed
	var errs []error
	for _, r := range t.Records {
		s, err := SeedFromRecord(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		seeds = append(seeds, s)
	}
	return seeds, errs
}

// Prompter renders the user prompt for a seed.
type Prompter struct {
	tmpl *template.Template
}

// NewPrompter parses a text/template over Seed; empty selects
// DefaultPromptTemplate.
func NewPrompter(text string) (*Prompter, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &Prompter{tmpl: tmpl}, nil
}

// Build renders the prompt for s.
func (p *Prompter) Build(s Seed) (string, error) {
	var b strings.Builder
	if err := p.tmpl.Execute(&b, s); err != nil {
		return "", fmt.Errorf("render prompt for %s: %w", s.Name, err)
	}
	return b.String(), nil
}
