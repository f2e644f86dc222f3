package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/model"
)

// dispatcher is the in-process fan-out shared by every transport.
type dispatcher struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[model.Target]map[uint64]Handler
}

func newDispatcher() *dispatcher {
	return &dispatcher{handlers: map[model.Target]map[uint64]Handler{}}
}

// add registers h and reports whether it is the first handler for target.
func (d *dispatcher) add(target model.Target, h Handler) (id uint64, first bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	hs, ok := d.handlers[target]
	if !ok {
		hs = map[uint64]Handler{}
		d.handlers[target] = hs
	}
	hs[d.nextID] = h
	return d.nextID, !ok
}

// remove drops a handler and reports whether target has none left.
func (d *dispatcher) remove(target model.Target, id uint64) (last bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	hs, ok := d.handlers[target]
	if !ok {
		return false
	}
	delete(hs, id)
	if len(hs) == 0 {
		delete(d.handlers, target)
		return true
	}
	return false
}

func (d *dispatcher) targets() []model.Target {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]model.Target, 0, len(d.handlers))
	for t := range d.handlers {
		out = append(out, t)
	}
	return out
}

// dispatch hands ev to every handler of its target. Handlers run outside
// the lock so they may subscribe or unsubscribe.
func (d *dispatcher) dispatch(ev Event) {
	target, err := ev.Target()
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed invalidation event")
		return
	}
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[target]))
	for _, h := range d.handlers[target] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// LocalBus delivers synchronously inside the process. It backs single-node
// deployments and tests.
type LocalBus struct {
	d *dispatcher
}

func NewLocalBus() *LocalBus {
	return &LocalBus{d: newDispatcher()}
}

func (b *LocalBus) Publish(_ context.Context, events ...Event) error {
	for _, ev := range Dedupe(events) {
		b.d.dispatch(ev)
	}
	return nil
}

func (b *LocalBus) Subscribe(_ context.Context, target model.Target, h Handler) (func(), error) {
	id, _ := b.d.add(target, h)
	var once sync.Once
	return func() {
		once.Do(func() { b.d.remove(target, id) })
	}, nil
}

func (b *LocalBus) Close() error { return nil }
