package session

import "time"

// Observer receives session telemetry. Implementations must be safe for
// concurrent use; enrichment callbacks run off the session goroutine.
type Observer interface {
	SessionStarted()
	SessionEnded(reason string, d time.Duration)
	FramesDropped(reason string, n int)
	FramesWritten(n int, bytes int)
	ChannelOpened(reason string)
	ChannelError(code int)
	EnrichmentObserved(stage string, d time.Duration, err error)
	MessageSent(kind string)
}

type noopObserver struct{}

func (noopObserver) SessionStarted() {}
func (noopObserver) SessionEnded(string, time.Duration) {}
func (noopObserver) FramesDropped(string, int) {}
func (noopObserver) FramesWritten(int, int) {}
func (noopObserver) ChannelOpened(string) {}
func (noopObserver) ChannelError(int) {}
func (noopObserver) EnrichmentObserved(string, time.Duration, error) {}
func (noopObserver) MessageSent(string) {}

func observerOrNoop(o Observer) Observer {
	if o == nil {
		return noopObserver{}
	}
	return o
}
