package predict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/KaramelBytes/cohortscope-cli/internal/ai"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
)

// Options configures an Enricher.
type Options struct {
	Model        string
	MaxTokens    int
	Temperature  float64
	SystemPrompt string
	// Delay is the minimum spacing between the starts of consecutive
	// requests. A response slower than Delay is followed by the next request
	// at once; no extra pause is added after it.
	Delay time.Duration
	// Paired processes the i-th male seed with the i-th female seed and keeps
	// the pair only when both predictions succeed.
	Paired bool
}

// DefaultOptions mirrors the settings the prediction runs were made with.
func DefaultOptions() Options {
	return Options{
		Model:        "openai/gpt-4o-mini",
		MaxTokens:    1024,
		Temperature:  0.7,
		SystemPrompt: DefaultSystemPrompt,
		Delay:        time.Second,
	}
}

// Prediction is the free-text answer for one seed.
type Prediction struct {
	Seed      Seed
	Text      string
	RequestID string
}

// Batch is the outcome of one enrichment run.
type Batch struct {
	RunID       string
	Requested   int
	Predictions []Prediction
	Failures    []*ExternalServiceError
	// Unpaired counts successful predictions dropped because their partner
	// failed (paired mode) or had no partner.
	Unpaired int
}

// ByGender returns the prediction texts of one gender in request order.
func (b *Batch) ByGender(g dataset.Gender) []string {
	var out []string
	for _, p := range b.Predictions {
		if p.Seed.Gender == g {
			out = append(out, p.Text)
		}
	}
	return out
}

var errStopped = errors.New("prediction batch stopped")

// Enricher sends one request per seed, strictly sequentially, spacing their
// starts at least Options.Delay apart. A failed request is recorded and the batch goes on.
type Enricher struct {
	rt       ai.Runtime
	opt      Options
	prompter *Prompter
	limiter  *rate.Limiter
	log      *slog.Logger
}

// NewEnricher wires a runtime to the prompt and pacing settings.
func NewEnricher(rt ai.Runtime, prompter *Prompter, opt Options, log *slog.Logger) (*Enricher, error) {
	if rt == nil {
		return nil, errors.New("no completion runtime configured")
	}
	if opt.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if prompter == nil {
		p, err := NewPrompter("")
		if err != nil {
			return nil, err
		}
		prompter = p
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opt.SystemPrompt == "" {
		opt.SystemPrompt = DefaultSystemPrompt
	}
	limit := rate.Inf
	if opt.Delay > 0 {
		limit = rate.Every(opt.Delay)
	}
	return &Enricher{
		rt:       rt,
		opt:      opt,
		prompter: prompter,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log,
	}, nil
}

// Predict requests one prediction. Service failures come back as
// *ExternalServiceError; a cancelled ctx, or one whose deadline falls before
// the next request slot, stops the caller.
func (e *Enricher) Predict(ctx context.Context, s Seed) (Prediction, error) {
	prompt, err := e.prompter.Build(s)
	if err != nil {
		return Prediction{}, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", errStopped, err)
	}
	resp, err := e.rt.Generate(ctx, ai.GenerateRequest{
		Model: e.opt.Model,
		Messages: []ai.Message{
			{Role: "system", Content: e.opt.SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   e.opt.MaxTokens,
		Temperature: e.opt.Temperature,
	})
	if err != nil {
		if ctx.Err() != nil {
			return Prediction{}, ctx.Err()
		}
		return Prediction{}, &ExternalServiceError{Record: s.Name, Gender: string(s.Gender), Err: err}
	}
	text := resp.Text()
	if text == "" {
		return Prediction{}, &ExternalServiceError{Record: s.Name, Gender: string(s.Gender), Err: errors.New("empty completion")}
	}
	return Prediction{Seed: s, Text: text, RequestID: resp.RequestID}, nil
}

// Run processes seeds in order. Only a cancelled ctx stops it early; the
// partial batch is returned with the context error.
func (e *Enricher) Run(ctx context.Context, seeds []Seed) (*Batch, error) {
	id := logging.RunID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	b := &Batch{RunID: id}
	log := logging.ForRun(e.log, id)
	log.Info("prediction batch started", "seeds", len(seeds), "model", e.opt.Model, "paired", e.opt.Paired)

	if e.opt.Paired {
		return b, e.runPaired(ctx, seeds, b, log)
	}
	for _, s := range seeds {
		p, ok, err := e.one(ctx, s, b, log)
		if err != nil {
			return b, err
		}
		if ok {
			b.Predictions = append(b.Predictions, p)
		}
	}
	log.Info("prediction batch finished", "ok", len(b.Predictions), "failed", len(b.Failures))
	return b, nil
}

func (e *Enricher) runPaired(ctx context.Context, seeds []Seed, b *Batch, log *slog.Logger) error {
	var men, women []Seed
	for _, s := range seeds {
		if s.Gender == dataset.Male {
			men = append(men, s)
		} else {
			women = append(women, s)
		}
	}
	n := min(len(men), len(women))
	if extra := len(men) + len(women) - 2*n; extra > 0 {
		log.Warn("seeds without a partner are not sent", "count", extra)
	}
	for i := 0; i < n; i++ {
		m, mok, err := e.one(ctx, men[i], b, log)
		if err != nil {
			return err
		}
		w, wok, err := e.one(ctx, women[i], b, log)
		if err != nil {
			return err
		}
		switch {
		case mok && wok:
			b.Predictions = append(b.Predictions, m, w)
		case mok || wok:
			b.Unpaired++
		}
	}
	log.Info("prediction batch finished", "pairs", len(b.Predictions)/2, "failed", len(b.Failures), "unpaired", b.Unpaired)
	return nil
}

// one runs a single seed, recording a failure in b. ok is false when the
// prediction failed; err is only set when the batch must stop.
func (e *Enricher) one(ctx context.Context, s Seed, b *Batch, log *slog.Logger) (Prediction, bool, error) {
	b.Requested++
	p, err := e.Predict(ctx, s)
	if err == nil {
		log.Info("prediction received", "record", s.Name, "gender", s.Gender, "request_id", p.RequestID)
		return p, true, nil
	}
	var serr *ExternalServiceError
	if errors.As(err, &serr) {
		b.Failures = append(b.Failures, serr)
		log.Warn("prediction failed", "record", s.Name, "gender", s.Gender, "kind", serr.Kind(), "err", serr.Err)
		return Prediction{}, false, nil
	}
	if errors.Is(err, errStopped) || ctx.Err() != nil {
		return Prediction{}, false, err
	}
	// Prompt rendering problems are per-record too.
	b.Failures = append(b.Failures, &ExternalServiceError{Record: s.Name, Gender: string(s.Gender), Err: err})
	log.Warn("prediction skipped", "record", s.Name, "err", err)
	return Prediction{}, false, nil
}

// WritePredictions writes one <Gender>_predictions.txt per gender holding
// that gender's texts separated by newlines. It returns the written paths.
func WritePredictions(dir string, b *Batch) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string
	for _, g := range []dataset.Gender{dataset.Male, dataset.Female} {
		texts := b.ByGender(g)
		if len(texts) == 0 {
			continue
		}
		p := filepath.Join(dir, string(g)+"_predictions.txt")
		if err := os.WriteFile(p, []byte(strings.Join(texts, "\n")+"\n"), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", p, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
