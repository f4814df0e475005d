package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/KaramelBytes/cohortscope-cli/internal/analysis"
)

// Series is one named line or bar set. For lines X holds the abscissae; for
// bars Y is aligned with the chart categories and X is unused. Err, when
// set, draws symmetric error bars.
type Series struct {
	Name string
	X    []float64
	Y    []float64
	Err  []float64
}

// errPoints adapts a Series to plotter.XYer and plotter.YErrorer.
type errPoints struct{ s Series }

func (e errPoints) Len() int                        { return len(e.s.Y) }
func (e errPoints) XY(i int) (float64, float64)     { return e.s.X[i], e.s.Y[i] }
func (e errPoints) YError(i int) (float64, float64) { return e.s.Err[i], e.s.Err[i] }

const (
	chartWidth  = 10 * vg.Inch
	chartHeight = 6 * vg.Inch
)

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(16)
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Legend.Top = true
	p.Add(plotter.NewGrid())
	return p
}

func save(p *plot.Plot, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := p.Save(chartWidth, chartHeight, path); err != nil {
		return fmt.Errorf("save chart %s: %w", path, err)
	}
	return nil
}

// LineChart draws one line with markers per series, plus error bars where
// the series carries them.
func LineChart(path, title, xlabel, ylabel string, series []Series) error {
	if len(series) == 0 {
		return fmt.Errorf("chart %q: no series", title)
	}
	p := newPlot(title, xlabel, ylabel)
	for i, s := range series {
		if len(s.Y) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.Y))
		for j := range s.Y {
			pts[j].X, pts[j].Y = s.X[j], s.Y[j]
		}
		line, marks, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("chart %q series %s: %w", title, s.Name, err)
		}
		c := plotutil.Color(i)
		line.Color = c
		line.Width = vg.Points(2)
		marks.Color = c
		marks.Shape = draw.CircleGlyph{}
		marks.Radius = vg.Points(3)
		p.Add(line, marks)
		p.Legend.Add(s.Name, line, marks)

		if len(s.Err) == len(s.Y) {
			bars, err := plotter.NewYErrorBars(errPoints{s})
			if err != nil {
				return fmt.Errorf("chart %q series %s: %w", title, s.Name, err)
			}
			bars.Color = c
			p.Add(bars)
		}
	}
	return save(p, path)
}

// BarChart draws grouped bars: one bar per series within each category.
func BarChart(path, title, ylabel string, categories []string, series []Series) error {
	if len(series) == 0 || len(categories) == 0 {
		return fmt.Errorf("chart %q: nothing to draw", title)
	}
	p := newPlot(title, "", ylabel)
	w := vg.Points(60 / float64(len(series)))
	if w < vg.Points(6) {
		w = vg.Points(6)
	}
	for i, s := range series {
		vals := make(plotter.Values, len(categories))
		copy(vals, s.Y)
		bars, err := plotter.NewBarChart(vals, w)
		if err != nil {
			return fmt.Errorf("chart %q series %s: %w", title, s.Name, err)
		}
		bars.Color = plotutil.Color(i)
		bars.LineStyle.Width = vg.Length(0)
		bars.Offset = w * vg.Length(float64(i)-float64(len(series)-1)/2)
		p.Add(bars)
		p.Legend.Add(s.Name, bars)
	}
	p.NominalX(categories...)
	p.X.Tick.Label.XAlign = draw.XCenter
	return save(p, path)
}

// StackedShareChart draws one 100% bar per group, stacked by category.
func StackedShareChart(path, title string, groups []analysis.ShareGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("chart %q: no groups", title)
	}
	p := newPlot(title, "", "Share (%)")
	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.Key.Label()
	}
	var below *plotter.BarChart
	for ci, cat := range groups[0].Shares {
		vals := make(plotter.Values, len(groups))
		for gi, g := range groups {
			vals[gi] = g.Percent(cat.Value)
		}
		bars, err := plotter.NewBarChart(vals, vg.Points(24))
		if err != nil {
			return fmt.Errorf("chart %q category %s: %w", title, cat.Value, err)
		}
		bars.Color = plotutil.Color(ci)
		bars.LineStyle.Width = vg.Length(0)
		if below != nil {
			bars.StackOn(below)
		}
		below = bars
		p.Add(bars)
		p.Legend.Add(cat.Value, bars)
	}
	p.NominalX(labels...)
	p.Y.Max = 100
	return save(p, path)
}

// TrendSeries turns trends into line series over Year, with SEM as the
// error.
func TrendSeries(trends []analysis.Trend) []Series {
	out := make([]Series, 0, len(trends))
	for _, tr := range trends {
		s := Series{Name: tr.Key.Label()}
		for _, pt := range tr.Points {
			s.X = append(s.X, float64(pt.Year))
			s.Y = append(s.Y, pt.Mean)
			s.Err = append(s.Err, pt.SEM)
		}
		out = append(out, s)
	}
	return out
}

// ShareSeries follows the share of value over Year. groups must be keyed by
// Year plus any other keys; the other keys name the series.
func ShareSeries(groups []analysis.ShareGroup, value string) []Series {
	var out []Series
	index := map[string]int{}
	for _, g := range groups {
		ys, ok := g.Key.Get(analysis.KeyYear)
		if !ok {
			continue
		}
		year, err := strconv.Atoi(ys)
		if err != nil {
			continue
		}
		name := seriesName(g.Key, analysis.KeyYear)
		i, seen := index[name]
		if !seen {
			i = len(out)
			index[name] = i
			out = append(out, Series{Name: name})
		}
		out[i].X = append(out[i].X, float64(year))
		out[i].Y = append(out[i].Y, g.Percent(value))
	}
	return out
}

// GrowthSeries lays growth results out as bars: categories are the values
// of key, one series per combination of the remaining keys.
func GrowthSeries(res []analysis.GrowthResult, key analysis.Key, annual bool) ([]string, []Series) {
	var cats []string
	catIdx := map[string]int{}
	for _, r := range res {
		v, _ := r.Key.Get(key)
		if _, ok := catIdx[v]; !ok {
			catIdx[v] = len(cats)
			cats = append(cats, v)
		}
	}
	var series []Series
	serIdx := map[string]int{}
	for _, r := range res {
		name := seriesName(r.Key, key)
		i, ok := serIdx[name]
		if !ok {
			i = len(series)
			serIdx[name] = i
			series = append(series, Series{Name: name, Y: make([]float64, len(cats))})
		}
		v, _ := r.Key.Get(key)
		y := r.TotalPct
		if annual {
			y = r.AnnualPct
		}
		series[i].Y[catIdx[v]] = y
	}
	return cats, series
}

func seriesName(k analysis.GroupKey, drop analysis.Key) string {
	name := ""
	for i, key := range k.Keys {
		if key == drop {
			continue
		}
		if name != "" {
			name += " / "
		}
		name += k.Values[i]
	}
	if name == "" {
		return "all"
	}
	return name
}
