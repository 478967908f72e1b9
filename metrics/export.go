package metrics

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Metric is one exported metric identity. Histogram fields are only set for
// histogram and timer types; Buckets holds per-bucket (non-cumulative)
// counts with the +Inf bucket last.
type Metric struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Labels    []Label   `json:"labels,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Buckets   []uint64  `json:"buckets,omitempty"`
	Sum       float64   `json:"sum,omitempty"`
	Count     uint64    `json:"count,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is a copy of collector state handed to export callbacks. Readers
// never see references into live storage.
type Snapshot struct {
	TakenAt  time.Time `json:"taken_at"`
	Bounds   []float64 `json:"bounds"`
	Metrics  []Metric  `json:"metrics"`
	Overflow uint64    `json:"overflow"`
}

// Snapshot copies the current state. Metrics are ordered by name, then by
// label values, so output is stable run to run.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		TakenAt:  time.Now(),
		Bounds:   append([]float64(nil), c.cfg.HistogramBuckets...),
		Overflow: c.overflow.Load(),
	}
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		for _, e := range s.entries {
			e.mu.Lock()
			m := Metric{
				Name:      e.name,
				Type:      e.typ.String(),
				Labels:    cloneLabels(e.labels),
				UpdatedAt: time.Unix(0, e.updatedAt),
			}
			switch e.typ {
			case Counter, Gauge:
				m.Value = e.value
			case Histogram, Timer:
				m.Buckets = append([]uint64(nil), e.buckets...)
				m.Sum = e.sum
				m.Count = e.count
			}
			e.mu.Unlock()
			snap.Metrics = append(snap.Metrics, m)
		}
		s.mu.Unlock()
	}
	sort.Slice(snap.Metrics, func(i, j int) bool {
		if snap.Metrics[i].Name != snap.Metrics[j].Name {
			return snap.Metrics[i].Name < snap.Metrics[j].Name
		}
		return labelString(snap.Metrics[i].Labels) < labelString(snap.Metrics[j].Labels)
	})
	return snap
}

func labelString(labels []Label) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	for i, l := range labels {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(l.Key)
		b.WriteString(`="`)
		b.WriteString(escapeLabel(l.Value))
		b.WriteByte('"')
	}
	return b.String()
}

func escapeLabel(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

// WritePrometheus renders the snapshot in the Prometheus text exposition
// format: counters and gauges as single samples, histograms as cumulative
// _bucket samples plus _sum and _count.
func WritePrometheus(w io.Writer, snap Snapshot) error {
	for _, m := range snap.Metrics {
		switch m.Type {
		case "counter", "gauge":
			if err := writeSample(w, m.Name, labelString(m.Labels), m.Value); err != nil {
				return err
			}
		case "histogram", "timer":
			var cum uint64
			for i, n := range m.Buckets {
				cum += n
				le := "+Inf"
				if i < len(snap.Bounds) {
					le = formatFloat(snap.Bounds[i])
				}
				ls := labelString(m.Labels)
				if ls != "" {
					ls += ","
				}
				ls += `le="` + le + `"`
				if err := writeSample(w, m.Name+"_bucket", ls, float64(cum)); err != nil {
					return err
				}
			}
			if err := writeSample(w, m.Name+"_sum", labelString(m.Labels), m.Sum); err != nil {
				return err
			}
			if err := writeSample(w, m.Name+"_count", labelString(m.Labels), float64(m.Count)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeSample(w io.Writer, name, labels string, value float64) error {
	var err error
	if labels == "" {
		_, err = fmt.Fprintf(w, "%s %s\n", name, formatFloat(value))
	} else {
		_, err = fmt.Fprintf(w, "%s{%s} %s\n", name, labels, formatFloat(value))
	}
	return err
}

func formatFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// WriteJSONLines renders each metric of the snapshot as one JSON line, the
// format the file and stdout exporters emit.
func WriteJSONLines(w io.Writer, snap Snapshot) error {
	for _, m := range snap.Metrics {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}
