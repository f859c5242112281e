package reembed

import "time"

// Observer receives job events. Implementations must be safe for concurrent use.
type Observer interface {
	// OnRecord is called once per record; err is nil on success.
	OnRecord(id string, err error, elapsed time.Duration)
	// OnBatch is called after each batch completes.
	OnBatch(index, size, failed int, elapsed time.Duration)
}

type noopObserver struct{}

func (noopObserver) OnRecord(string, error, time.Duration) {}
func (noopObserver) OnBatch(int, int, int, time.Duration)  {}
