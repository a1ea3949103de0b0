package observer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"go-plant-analyzer/pkg/models"
)

// ChannelObserver forwards state snapshots to a buffered channel. When the
// reader falls behind, the oldest buffered snapshot is discarded so the most
// recent one is always delivered.
type ChannelObserver struct {
	name string

	mu     sync.Mutex
	ch     chan models.RequestState
	closed bool
}

// NewChannelObserver creates an observer with a unique name.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelObserver{
		name: "channel_observer_" + uuid.NewString(),
		ch:   make(chan models.RequestState, buffer),
	}
}

// C returns the receive side. It is closed by Close.
func (o *ChannelObserver) C() <-chan models.RequestState {
	return o.ch
}

func (o *ChannelObserver) OnEvent(_ context.Context, event AnalysisEvent) {
	if !event.Transition() {
		return
	}
	o.Send(event.State)
}

// Send delivers s, evicting buffered snapshots if needed. Safe after Close.
func (o *ChannelObserver) Send(s models.RequestState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	for {
		select {
		case o.ch <- s:
			return
		default:
		}
		select {
		case <-o.ch:
		default:
		}
	}
}

// Close closes the channel. Further events are ignored.
func (o *ChannelObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

func (o *ChannelObserver) GetObserverName() string {
	return o.name
}
