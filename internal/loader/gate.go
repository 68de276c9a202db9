package loader

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
)

// Gate is a one-shot readiness future for the first catalog. It resolves
// exactly once, with a catalog or an error; later calls to Resolve are
// ignored.
type Gate struct {
	once sync.Once
	done chan struct{}
	cat  *catalog.Catalog
	err  error
}

func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Resolve reports whether this call resolved the gate.
func (g *Gate) Resolve(cat *catalog.Catalog, err error) bool {
	resolved := false
	g.once.Do(func() {
		g.cat, g.err = cat, err
		close(g.done)
		resolved = true
	})
	return resolved
}

// Wait blocks until the gate resolves or ctx is done.
func (g *Gate) Wait(ctx context.Context) (*catalog.Catalog, error) {
	select {
	case <-g.done:
		return g.cat, g.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed once the gate resolves.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}
