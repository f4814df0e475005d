package predict

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/cohortscope-cli/internal/ai"
	"github.com/KaramelBytes/cohortscope-cli/internal/dataset"
	"github.com/KaramelBytes/cohortscope-cli/internal/logging"
)

type fakeRuntime struct {
	mu    sync.Mutex
	fail  map[string]error
	reqs  []ai.GenerateRequest
	times []time.Time

	// latency delays every response.
	latency time.Duration
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.times = append(f.times, time.Now())
	time.Sleep(f.latency)
	for name, err := range f.fail {
		if strings.Contains(req.Messages[1].Content, name) {
			return nil, err
		}
	}
	return &ai.GenerateResponse{Choices: []ai.Choice{{Message: ai.Message{Role: "assistant", Content: "answer 24 $3000"}}}}, nil
}

func seed(name string, g dataset.Gender) Seed {
	return Seed{Name: name, Gender: g, Age: "22", Position: "1", Salary: "3000"}
}

func TestPrompterDefault(t *testing.T) {
	p, err := NewPrompter("")
	require.NoError(t, err)
	out, err := p.Build(Seed{Name: "张三", Gender: dataset.Male, Age: "22", Position: "1", Salary: "3000"})
	require.NoError(t, err)
	assert.Contains(t, out, "请你预测他22-32岁")
	assert.Contains(t, out, "张三 Male 22 1 salary of $3000")

	out, err = p.Build(seed("李四", dataset.Female))
	require.NoError(t, err)
	assert.Contains(t, out, "预测她")

	_, err = NewPrompter("{{.Nope")
	assert.Error(t, err)
	bad, err := NewPrompter("{{.Missing}}")
	require.NoError(t, err)
	_, err = bad.Build(seed("x", dataset.Male))
	assert.Error(t, err)
}

func TestSeedFromRecord(t *testing.T) {
	r := &dataset.Record{
		Source: "男_第0年.csv", Line: 2, Gender: dataset.Male,
		Numbers: map[string]float64{dataset.ColAge: 24, dataset.ColPosition: 2, dataset.ColStartingSalary: 3500},
		Texts:   map[string]string{dataset.ColName: "张三"},
	}
	s, err := SeedFromRecord(r)
	require.NoError(t, err)
	assert.Equal(t, Seed{Name: "张三", Gender: dataset.Male, Age: "24", Position: "2", Salary: "3500", Source: "男_第0年.csv", Line: 2}, s)

	delete(r.Numbers, dataset.ColStartingSalary)
	_, err = SeedFromRecord(r)
	assert.Error(t, err)
}

func TestEnricherLogsUnderContextRunID(t *testing.T) {
	rt := &fakeRuntime{fail: map[string]error{"Bob": &ai.ServerError{APIError: &ai.APIError{StatusCode: 503}}}}
	var buf bytes.Buffer
	log, err := logging.New(&buf, logging.Options{Level: "info"})
	require.NoError(t, err)
	e, err := NewEnricher(rt, nil, Options{Model: "m"}, log)
	require.NoError(t, err)

	ctx := logging.WithRunID(context.Background(), "RUN-7")
	b, err := e.Run(ctx, []Seed{seed("Bob", dataset.Male)})
	require.NoError(t, err)
	assert.Equal(t, "RUN-7", b.RunID)
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		assert.Contains(t, line, "run_id=RUN-7")
	}
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestEnricherContinuesAfterFailure(t *testing.T) {
	rt := &fakeRuntime{fail: map[string]error{"Bob": &ai.ServerError{APIError: &ai.APIError{StatusCode: 503}}}}
	e, err := NewEnricher(rt, nil, Options{Model: "m", MaxTokens: 1024, Temperature: 0.7}, nil)
	require.NoError(t, err)

	b, err := e.Run(context.Background(), []Seed{seed("Ann", dataset.Female), seed("Bob", dataset.Male), seed("Cid", dataset.Male)})
	require.NoError(t, err)
	assert.NotEmpty(t, b.RunID)
	assert.Equal(t, 3, b.Requested)
	require.Len(t, b.Predictions, 2)
	require.Len(t, b.Failures, 1)
	assert.Equal(t, "Bob", b.Failures[0].Record)
	assert.Equal(t, "server", b.Failures[0].Kind())

	var serr *ai.ServerError
	assert.True(t, errors.As(b.Failures[0], &serr))

	req := rt.reqs[0]
	assert.Equal(t, "m", req.Model)
	assert.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.Equal(t, []string{"answer 24 $3000"}, b.ByGender(dataset.Female))
}

func TestEnricherPaired(t *testing.T) {
	rt := &fakeRuntime{fail: map[string]error{"Dee": errors.New("timeout")}}
	e, err := NewEnricher(rt, nil, Options{Model: "m", Paired: true}, nil)
	require.NoError(t, err)
	b, err := e.Run(context.Background(), []Seed{
		seed("Al", dataset.Male), seed("Bea", dataset.Female),
		seed("Cy", dataset.Male), seed("Dee", dataset.Female),
		seed("Ed", dataset.Male),
	})
	require.NoError(t, err)
	assert.Equal(t, 4, b.Requested)
	assert.Len(t, b.Predictions, 2)
	assert.Equal(t, 1, b.Unpaired)
	assert.Len(t, b.Failures, 1)
}

func TestEnricherDelay(t *testing.T) {
	rt := &fakeRuntime{}
	e, err := NewEnricher(rt, nil, Options{Model: "m", Delay: 50 * time.Millisecond}, nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), []Seed{seed("a", dataset.Male), seed("b", dataset.Male), seed("c", dataset.Male)})
	require.NoError(t, err)
	require.Len(t, rt.times, 3)
	assert.GreaterOrEqual(t, rt.times[2].Sub(rt.times[0]), 90*time.Millisecond)
}

func TestEnricherDelaySpacesStarts(t *testing.T) {
	rt := &fakeRuntime{latency: 150 * time.Millisecond}
	e, err := NewEnricher(rt, nil, Options{Model: "m", Delay: 100 * time.Millisecond}, nil)
	require.NoError(t, err)
	_, err = e.Run(context.Background(), []Seed{seed("a", dataset.Male), seed("b", dataset.Male)})
	require.NoError(t, err)
	require.Len(t, rt.times, 2)
	gap := rt.times[1].Sub(rt.times[0])
	assert.GreaterOrEqual(t, gap, 100*time.Millisecond)
	// The slow first response already covers the delay.
	assert.Less(t, gap, 240*time.Millisecond)
}

func TestEnricherCancelled(t *testing.T) {
	e, err := NewEnricher(&fakeRuntime{}, nil, Options{Model: "m", Delay: time.Hour}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b, err := e.Run(ctx, []Seed{seed("a", dataset.Male), seed("b", dataset.Male)})
	require.Error(t, err)
	assert.Len(t, b.Predictions, 1)
}

func TestWritePredictions(t *testing.T) {
	dir := t.TempDir()
	b := &Batch{Predictions: []Prediction{
		{Seed: seed("a", dataset.Male), Text: "m1"},
		{Seed: seed("b", dataset.Female), Text: "f1"},
		{Seed: seed("c", dataset.Male), Text: "m2"},
	}}
	paths, err := WritePredictions(filepath.Join(dir, "out"), b)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	data, err := os.ReadFile(filepath.Join(dir, "out", "Male_predictions.txt"))
	require.NoError(t, err)
	assert.Equal(t, "m1\nm2\n", string(data))
}

func TestExtractSingleRow(t *testing.T) {
	ex, err := Extract(strings.NewReader("Name 24 $3000 26 $3200 28 $3500 30 $3900 32 $4200"), DefaultExtractOptions())
	require.NoError(t, err)
	assert.Equal(t, []int64{3000, 3200, 3500, 3900, 4200}, ex.Values)
	assert.Equal(t, [][]int64{{3000, 3200, 3500, 3900, 4200}}, ex.Rows)
	assert.Empty(t, ex.Remainder)
	assert.Zero(t, ex.Truncated)
	assert.Zero(t, ex.Unmatched)
}

func TestExtractRemainderAndTruncation(t *testing.T) {
	text := "张三\n24岁 $3000, 26岁 $3200\n28岁 $3500 30岁 $ 3900 32岁 $4200 $4500\n" +
		"李四 24 $1 $2 $3 $4 $5 $6 $7 $8 $9 $10 $11\n" +
		"no amounts here 5000\n"
	ex, err := Extract(strings.NewReader(text), ExtractOptions{Marker: "$", Width: 5, MaxRows: 2})
	require.NoError(t, err)
	assert.Len(t, ex.Values, 16)
	require.Len(t, ex.Rows, 2)
	assert.Equal(t, []int64{3000, 3200, 3500, 4200, 4500}, ex.Rows[0])
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ex.Rows[1])
	assert.Equal(t, 1, ex.Truncated)
	assert.Equal(t, []int64{11}, ex.Remainder)
	assert.Equal(t, 1, ex.Unmatched)

	_, err = Extract(strings.NewReader(""), ExtractOptions{Marker: "", Width: 5})
	assert.Error(t, err)
	_, err = Extract(strings.NewReader(""), ExtractOptions{Marker: "$", Width: 0})
	assert.Error(t, err)
}

func TestExtractOtherMarker(t *testing.T) {
	ex, err := Extract(strings.NewReader("¥5000 and ¥6000 (¥x)"), ExtractOptions{Marker: "¥", Width: 2})
	require.NoError(t, err)
	assert.Equal(t, [][]int64{{5000, 6000}}, ex.Rows)
	assert.Equal(t, 1, ex.Unmatched)
}

func TestWriteRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRows(&buf, [][]int64{{1, 2}, {3, 4}}))
	assert.Equal(t, "1,2\n3,4\n", buf.String())
}

func TestCompareLastColumn(t *testing.T) {
	a := "1,2,5000\n1,2,3000\n1,2,4000\nbad,row,x\n1,9\n7,7,7\n"
	b := "1,2,4000\n1,2,3500\n1,2,4000\n1,2,3\n1,8\n"
	c, err := CompareLastColumn(strings.NewReader(a), strings.NewReader(b))
	require.NoError(t, err)
	assert.Equal(t, Comparison{ABigger: 2, BBigger: 1, Equal: 1, Skipped: 1}, c)
	assert.Equal(t, 4, c.Total())
}
