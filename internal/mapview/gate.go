package mapview

import "github.com/joeblew999/plat-topo/internal/viewport"

// Gate holds operations that need the natural image size until it is known.
// It opens once; a failure closes it for good.
type Gate struct {
	size    viewport.Size
	open    bool
	err     error
	pending []func(viewport.Size)
}

// Do runs fn now if the gate is open, otherwise queues it. Queued functions
// run in order when the gate opens and are dropped if it fails.
func (g *Gate) Do(fn func(viewport.Size)) {
	if g.open {
		fn(g.size)
		return
	}
	if g.err != nil {
		return
	}
	g.pending = append(g.pending, fn)
}

// Open records the size and flushes the queue. It reports false if the gate
// was already open or has failed, or if size is unknown.
func (g *Gate) Open(size viewport.Size) bool {
	if g.open || g.err != nil || !size.Known() {
		return false
	}
	g.size = size
	g.open = true
	pending := g.pending
	g.pending = nil
	for _, fn := range pending {
		fn(size)
	}
	return true
}

// Fail closes the gate permanently. Only the first error is kept.
func (g *Gate) Fail(err error) {
	if g.open || g.err != nil {
		return
	}
	g.err = err
	g.pending = nil
}

func (g *Gate) Ready() bool         { return g.open }
func (g *Gate) Err() error          { return g.err }
func (g *Gate) Size() viewport.Size { return g.size }
func (g *Gate) Pending() int        { return len(g.pending) }
