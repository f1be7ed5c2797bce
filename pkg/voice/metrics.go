package voice

import (
	"sync"
	"time"
)

// Metrics describes one utterance, from the first partial transcript to the
// robot command it produced.
type Metrics struct {
	FirstPartialTime time.Time // first partial transcript of the utterance
	FinalTime        time.Time // final transcript received
	DispatchTime     time.Time // command returned from the robot

	SpeakLatency    time.Duration // first partial -> final
	DispatchLatency time.Duration // final -> command done

	Text    string
	Action  string // empty when no phrase matched
	Matched bool
	Failed  bool
}

// Totals counts events over the whole session.
type Totals struct {
	Partials  int
	Finals    int
	Matched   int
	Unmatched int
	Failed    int
	Errors    int
}

// MetricsCollector records per-utterance timing. It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
	totals  Totals

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback fired after each dispatched utterance.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// MarkPartial records a partial transcript.
func (m *MetricsCollector) MarkPartial() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Partials++
	if m.current.FirstPartialTime.IsZero() {
		m.current.FirstPartialTime = time.Now()
	}
}

// MarkFinal records a final transcript.
func (m *MetricsCollector) MarkFinal(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Finals++
	m.current.Text = text
	m.current.FinalTime = time.Now()
	if !m.current.FirstPartialTime.IsZero() {
		m.current.SpeakLatency = m.current.FinalTime.Sub(m.current.FirstPartialTime)
	}
}

// MarkDispatched closes the current utterance.
func (m *MetricsCollector) MarkDispatched(action string, matched bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.DispatchTime = time.Now()
	if !m.current.FinalTime.IsZero() {
		m.current.DispatchLatency = m.current.DispatchTime.Sub(m.current.FinalTime)
	}
	m.current.Action = action
	m.current.Matched = matched
	m.current.Failed = err != nil

	switch {
	case !matched:
		m.totals.Unmatched++
	case err != nil:
		m.totals.Matched++
		m.totals.Failed++
	default:
		m.totals.Matched++
	}

	m.history = append(m.history, m.current)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	if m.onUpdate != nil {
		go m.onUpdate(m.current)
	}
	m.current = Metrics{}
}

// MarkError counts a transcriber error.
func (m *MetricsCollector) MarkError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals.Errors++
}

// Last returns the most recent completed utterance.
func (m *MetricsCollector) Last() (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return Metrics{}, false
	}
	return m.history[len(m.history)-1], true
}

// Totals returns session counters.
func (m *MetricsCollector) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Average returns average latencies over recent utterances.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.SpeakLatency += h.SpeakLatency
		avg.DispatchLatency += h.DispatchLatency
	}
	n := time.Duration(len(m.history))
	avg.SpeakLatency /= n
	avg.DispatchLatency /= n
	return avg
}

// FormatLatency returns a one-line latency summary.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.SpeakLatency) + " SPEAK | " +
		formatDuration(m.DispatchLatency) + " DISPATCH"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
