package engine

import (
	"context"
	"sync"
	"time"

	"techloc/map-core/internal/fleet"
	"techloc/map-core/internal/sidebar"
)

// PopupRenderer renders rich detail for a focused or matched entity.
type PopupRenderer interface {
	RenderDetail(entity fleet.Entity)
}

// PreferencesSink persists layout numbers.
type PreferencesSink interface {
	SaveLayout(ctx context.Context, layout sidebar.Layout) error
}

// Listener is told about every dispatched event that changed something.
type Listener interface {
	OnChange(change Change)
}

// Invalidator recomputes the map size after the viewport or panels moved.
type Invalidator interface {
	Invalidate()
}

type PopupRendererFunc func(entity fleet.Entity)

func (f PopupRendererFunc) RenderDetail(entity fleet.Entity) { f(entity) }

type ListenerFunc func(change Change)

func (f ListenerFunc) OnChange(change Change) { f(change) }

type InvalidatorFunc func()

func (f InvalidatorFunc) Invalidate() { f() }

type Hooks struct {
	Popup       PopupRenderer
	Preferences PreferencesSink
	Listeners   []Listener
	Invalidator Invalidator
}

// DefaultFrame is the relayout coalescing window.
const DefaultFrame = 16 * time.Millisecond

// relayout coalesces bursts of resize events into one Invalidate per frame
// using a single pending flag.
type relayout struct {
	mu      sync.Mutex
	pending bool
	frame   time.Duration
	target  Invalidator
}

func newRelayout(frame time.Duration, target Invalidator) *relayout {
	if frame <= 0 {
		frame = DefaultFrame
	}
	return &relayout{frame: frame, target: target}
}

// schedule reports whether a new frame was queued.
func (r *relayout) schedule() bool {
	if r == nil || r.target == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending {
		return false
	}
	r.pending = true
	time.AfterFunc(r.frame, func() {
		r.mu.Lock()
		r.pending = false
		r.mu.Unlock()
		r.target.Invalidate()
	})
	return true
}
