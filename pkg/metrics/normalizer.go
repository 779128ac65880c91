// Package metrics turns raw metric snapshots into the fact set every
// persona in a session reads from.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// Metric is one normalized fact. PercentChange is only meaningful when
// HasPrior is set and the prior value is non-zero.
type Metric struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Prior         float64 `json:"prior,omitempty"`
	HasPrior      bool    `json:"has_prior"`
	Trend         Trend   `json:"trend"`
	PercentChange float64 `json:"percent_change"`
	Anomaly       bool    `json:"anomaly"`
}

// Options tunes derived fields.
type Options struct {
	// AnomalyThresholdPercent flags metrics whose absolute percent change
	// is strictly greater than this value.
	AnomalyThresholdPercent float64
}

func DefaultOptions() Options {
	return Options{AnomalyThresholdPercent: 20}
}

var (
	nameKeys  = []string{"metric_name", "name", "metric"}
	valueKeys = []string{"value", "current", "current_value"}
	priorKeys = []string{"prior", "previous", "prior_value", "previous_value"}
)

// Normalize parses every document and merges the entries into one
// Context. Later documents override earlier entries with the same name.
// Any malformed document fails the whole call.
func Normalize(docs [][]byte, opts Options) (*Context, error) {
	if len(docs) == 0 {
		return nil, &MalformedInputError{Doc: 0, Reason: "no documents"}
	}
	if opts.AnomalyThresholdPercent <= 0 {
		opts.AnomalyThresholdPercent = DefaultOptions().AnomalyThresholdPercent
	}

	merged := make(map[string]Metric)
	for i, doc := range docs {
		if !gjson.ValidBytes(doc) {
			return nil, &MalformedInputError{Doc: i, Reason: "invalid JSON"}
		}
		entries, err := collectEntries(i, gjson.ParseBytes(doc))
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			m, err := parseEntry(i, e.key, e.value, opts)
			if err != nil {
				return nil, err
			}
			merged[m.Name] = m
		}
	}

	return newContext(merged, opts.AnomalyThresholdPercent), nil
}

type rawEntry struct {
	key   string
	value gjson.Result
}

func collectEntries(doc int, root gjson.Result) ([]rawEntry, error) {
	var entries []rawEntry
	switch {
	case root.IsArray():
		entries = arrayEntries(root)
	case root.IsObject():
		if list := root.Get("metrics"); list.Exists() {
			switch {
			case list.IsArray():
				entries = arrayEntries(list)
			case list.IsObject():
				entries = mapEntries(list)
			default:
				return nil, &MalformedInputError{Doc: doc, Field: "metrics", Reason: "expected array or object"}
			}
		} else if firstOf(root, valueKeys).Exists() {
			entries = []rawEntry{{value: root}}
		} else {
			entries = mapEntries(root)
		}
	default:
		return nil, &MalformedInputError{Doc: doc, Reason: "expected a JSON object or array"}
	}

	if len(entries) == 0 {
		return nil, &MalformedInputError{Doc: doc, Reason: "no metric entries"}
	}
	return entries, nil
}

func arrayEntries(list gjson.Result) []rawEntry {
	var out []rawEntry
	list.ForEach(func(_, v gjson.Result) bool {
		out = append(out, rawEntry{value: v})
		return true
	})
	return out
}

func mapEntries(obj gjson.Result) []rawEntry {
	var out []rawEntry
	obj.ForEach(func(k, v gjson.Result) bool {
		out = append(out, rawEntry{key: k.String(), value: v})
		return true
	})
	return out
}

func parseEntry(doc int, key string, v gjson.Result, opts Options) (Metric, error) {
	if !v.IsObject() {
		// Shorthand {"ASA": 312} in map form.
		if key != "" && (v.Type == gjson.Number || v.Type == gjson.String) {
			value, err := parseNumber(v)
			if err != nil {
				return Metric{}, &MalformedInputError{Doc: doc, Field: key, Reason: err.Error()}
			}
			return derive(Metric{Name: key, Value: value}, "", opts), nil
		}
		return Metric{}, &MalformedInputError{Doc: doc, Field: key, Reason: "metric entry must be an object"}
	}

	name := strings.TrimSpace(firstOf(v, nameKeys).String())
	if name == "" {
		name = strings.TrimSpace(key)
	}
	if name == "" {
		return Metric{}, &MalformedInputError{Doc: doc, Field: "metric_name", Reason: "missing metric name"}
	}

	raw := firstOf(v, valueKeys)
	if !raw.Exists() {
		return Metric{}, &MalformedInputError{Doc: doc, Field: name + ".value", Reason: "missing value"}
	}
	value, err := parseNumber(raw)
	if err != nil {
		return Metric{}, &MalformedInputError{Doc: doc, Field: name + ".value", Reason: err.Error()}
	}

	m := Metric{Name: name, Value: value}
	if p := firstOf(v, priorKeys); p.Exists() && p.Type != gjson.Null {
		prior, err := parseNumber(p)
		if err != nil {
			return Metric{}, &MalformedInputError{Doc: doc, Field: name + ".prior", Reason: err.Error()}
		}
		m.Prior = prior
		m.HasPrior = true
	}

	return derive(m, strings.TrimSpace(v.Get("trend").String()), opts), nil
}

func derive(m Metric, explicitTrend string, opts Options) Metric {
	if m.HasPrior && m.Prior != 0 {
		m.PercentChange = round2((m.Value - m.Prior) / math.Abs(m.Prior) * 100)
		m.Anomaly = math.Abs(m.PercentChange) > opts.AnomalyThresholdPercent
	}

	switch {
	case explicitTrend != "":
		m.Trend = parseTrend(explicitTrend)
	case m.HasPrior && m.Value > m.Prior:
		m.Trend = TrendUp
	case m.HasPrior && m.Value < m.Prior:
		m.Trend = TrendDown
	default:
		m.Trend = TrendFlat
	}
	return m
}

func parseTrend(s string) Trend {
	switch strings.ToLower(s) {
	case "up", "rising", "increase", "increasing", "+":
		return TrendUp
	case "down", "falling", "decrease", "decreasing", "-":
		return TrendDown
	default:
		return TrendFlat
	}
}

func firstOf(v gjson.Result, keys []string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// parseNumber accepts JSON numbers and strings like "84.7%", "7,406"
// or "$1,200".
func parseNumber(r gjson.Result) (float64, error) {
	switch r.Type {
	case gjson.Number:
		return r.Float(), nil
	case gjson.String:
		s := strings.TrimSpace(r.String())
		s = strings.ReplaceAll(s, "−", "-")
		s = strings.NewReplacer(",", "", "$", "", "%", "", " ", "").Replace(s)
		if s == "" {
			return 0, fmt.Errorf("empty numeric value")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("not a number: %q", r.String())
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %s", r.Type)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// Context is the immutable fact set of a session.
type Context struct {
	byName    map[string]Metric
	names     []string
	threshold float64
}

func newContext(metrics map[string]Metric, threshold float64) *Context {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return &Context{byName: metrics, names: names, threshold: threshold}
}

func (c *Context) Len() int { return len(c.names) }

func (c *Context) AnomalyThreshold() float64 { return c.threshold }

func (c *Context) Get(name string) (Metric, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Metrics returns a copy of all metrics ordered by name.
func (c *Context) Metrics() []Metric {
	out := make([]Metric, 0, len(c.names))
	for _, name := range c.names {
		out = append(out, c.byName[name])
	}
	return out
}

func (c *Context) Anomalies() []Metric {
	var out []Metric
	for _, m := range c.Metrics() {
		if m.Anomaly {
			out = append(out, m)
		}
	}
	return out
}

// Salient picks up to n (clamped to 1..3) metrics to headline an episode:
// anomalies by descending change magnitude, ties alphabetical. With no
// anomalies the same ordering is applied to every metric.
func (c *Context) Salient(n int) []Metric {
	if n < 1 {
		n = 1
	}
	if n > 3 {
		n = 3
	}
	pool := c.Anomalies()
	if len(pool) == 0 {
		pool = c.Metrics()
	}
	sort.SliceStable(pool, func(i, j int) bool {
		ai, aj := math.Abs(pool[i].PercentChange), math.Abs(pool[j].PercentChange)
		if ai != aj {
			return ai > aj
		}
		return pool[i].Name < pool[j].Name
	})
	if len(pool) > n {
		pool = pool[:n]
	}
	return pool
}

// Summary renders the fact sheet handed to every completion call.
func (c *Context) Summary() string {
	var b strings.Builder
	for _, m := range c.Metrics() {
		fmt.Fprintf(&b, "- %s: %s", m.Name, FormatValue(m.Value))
		if m.HasPrior {
			fmt.Fprintf(&b, " (prior %s", FormatValue(m.Prior))
			if m.Prior != 0 {
				fmt.Fprintf(&b, ", %+.1f%%", m.PercentChange)
			}
			b.WriteString(")")
		}
		fmt.Fprintf(&b, ", trend %s", m.Trend)
		if m.Anomaly {
			b.WriteString(", ANOMALY")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatValue prints integers without decimals and everything else with
// up to two.
func FormatValue(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	return strconv.FormatFloat(round2(f), 'f', -1, 64)
}

// Describe is a short spoken form such as "ASA, down 84.7%".
func Describe(m Metric) string {
	if !m.HasPrior || m.Prior == 0 || m.Trend == TrendFlat {
		return fmt.Sprintf("%s at %s", m.Name, FormatValue(m.Value))
	}
	return fmt.Sprintf("%s, %s %s%%", m.Name, m.Trend, FormatValue(math.Abs(m.PercentChange)))
}
