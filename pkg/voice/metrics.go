package voice

import (
	"sync"
	"time"
)

// Metrics tracks one conversation turn. Latencies are measured from the
// moment the final transcript was accepted.
type Metrics struct {
	TranscriptTime   time.Time `json:"transcript_time"`
	ResponseTime     time.Time `json:"response_time"`
	SpeakTime        time.Time `json:"speak_time"`
	ResponseDoneTime time.Time `json:"response_done_time"`

	RetrievalLatency time.Duration `json:"retrieval_latency"`
	TotalLatency     time.Duration `json:"total_latency"`

	Interrupted bool `json:"interrupted"`
	Failed      bool `json:"failed"`
}

// MetricsCollector collects per-turn metrics. It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
	turns   int
}

const metricsHistory = 100

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, metricsHistory),
	}
}

// MarkTranscript starts a new turn.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{TranscriptTime: time.Now()}
}

// MarkResponse records when the chat reply arrived.
func (m *MetricsCollector) MarkResponse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.TranscriptTime.IsZero() {
		return
	}
	m.current.ResponseTime = time.Now()
	m.current.RetrievalLatency = m.current.ResponseTime.Sub(m.current.TranscriptTime)
}

// MarkSpeaking records when synthesis was dispatched.
func (m *MetricsCollector) MarkSpeaking() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.SpeakTime.IsZero() {
		m.current.SpeakTime = time.Now()
	}
}

// MarkDone archives the current turn.
func (m *MetricsCollector) MarkDone(interrupted, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.TranscriptTime.IsZero() {
		return
	}
	m.current.ResponseDoneTime = time.Now()
	m.current.TotalLatency = m.current.ResponseDoneTime.Sub(m.current.TranscriptTime)
	m.current.Interrupted = interrupted
	m.current.Failed = failed

	m.history = append(m.history, m.current)
	if len(m.history) > metricsHistory {
		m.history = m.history[1:]
	}
	m.turns++
	m.current = Metrics{}
}

// Current returns the in-progress turn.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Turns returns the number of completed turns.
func (m *MetricsCollector) Turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turns
}

// Average returns average latencies over recent turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}

	var avg Metrics
	for _, h := range m.history {
		avg.RetrievalLatency += h.RetrievalLatency
		avg.TotalLatency += h.TotalLatency
	}
	n := time.Duration(len(m.history))
	avg.RetrievalLatency /= n
	avg.TotalLatency /= n
	return avg
}

// FormatLatency returns a formatted string of the turn latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.RetrievalLatency) + " CHAT | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
