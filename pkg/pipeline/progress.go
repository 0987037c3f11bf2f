package pipeline

// Sink receives progress updates from a pipeline run and supplies the
// cancellation signal. The runner calls it from the goroutine executing the
// run, at stage boundaries only; implementations that bridge to a UI must do
// their own synchronization.
type Sink interface {
	// Report delivers a progress update. Percent is monotonically
	// non-decreasing across a run and reaches 100 exactly once, on
	// success. Message is a short human-readable stage description.
	Report(percent int, message string)

	// Cancelled reports whether the run should stop. Once it returns true
	// it must keep returning true.
	Cancelled() bool
}

// NopSink ignores progress and never cancels.
type NopSink struct{}

func (NopSink) Report(int, string) {}
func (NopSink) Cancelled() bool    { return false }

// monotonicSink clamps percents so a wrapped sink never observes a
// regression, whatever order stages complete in.
type monotonicSink struct {
	inner Sink
	last  int
}

func (m *monotonicSink) Report(percent int, message string) {
	if percent < m.last {
		percent = m.last
	}
	m.last = percent
	m.inner.Report(percent, message)
}

func (m *monotonicSink) Cancelled() bool {
	return m.inner.Cancelled()
}
