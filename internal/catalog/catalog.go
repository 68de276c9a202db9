package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/strtab"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// Diagnostic records a namespace omitted from a load.
type Diagnostic struct {
	Namespace string `json:"namespace"`
	Record    int    `json:"record"`
	Error     string `json:"error"`
}

// Catalog maps namespace names to namespaces. It is immutable and safe for
// concurrent readers.
type Catalog struct {
	namespaces  map[string]*Namespace
	names       []string
	diagnostics []Diagnostic
	fingerprint uint64
	loadedAt    time.Time
}

// Stats summarises a catalog.
type Stats struct {
	Namespaces  int       `json:"namespaces"`
	Items       int       `json:"items"`
	Callables   int       `json:"callables"`
	Omitted     int       `json:"omitted"`
	Fingerprint string    `json:"fingerprint"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// New assembles a catalog from already built namespaces. Later duplicates of
// a name are dropped.
func New(namespaces []*Namespace, diagnostics []Diagnostic, fingerprint uint64) *Catalog {
	c := &Catalog{
		namespaces:  make(map[string]*Namespace, len(namespaces)),
		diagnostics: diagnostics,
		fingerprint: fingerprint,
		loadedAt:    time.Now().UTC(),
	}
	for _, ns := range namespaces {
		if _, dup := c.namespaces[ns.Name]; dup {
			c.diagnostics = append(c.diagnostics, Diagnostic{
				Namespace: ns.Name,
				Record:    -1,
				Error:     "duplicate namespace name",
			})
			continue
		}
		c.namespaces[ns.Name] = ns
		c.names = append(c.names, ns.Name)
	}
	sort.Strings(c.names)
	return c
}

// Empty returns a catalog with no namespaces.
func Empty() *Catalog {
	return New(nil, nil, 0)
}

// Names returns namespace names in ascending order.
func (c *Catalog) Names() []string {
	return c.names
}

// Namespace looks up a namespace by exact name.
func (c *Catalog) Namespace(name string) (*Namespace, bool) {
	ns, ok := c.namespaces[name]
	return ns, ok
}

// Diagnostics lists namespaces omitted during load.
func (c *Catalog) Diagnostics() []Diagnostic {
	return c.diagnostics
}

// Fingerprint is the xxhash of the raw index the catalog was built from.
func (c *Catalog) Fingerprint() uint64 {
	return c.fingerprint
}

func (c *Catalog) Stats() Stats {
	s := Stats{
		Namespaces:  len(c.names),
		Omitted:     len(c.diagnostics),
		Fingerprint: fmt.Sprintf("%016x", c.fingerprint),
		LoadedAt:    c.loadedAt,
	}
	for _, ns := range c.namespaces {
		s.Items += ns.Len()
		s.Callables += ns.Callables()
	}
	return s
}

// Options configure Load.
type Options struct {
	Decoder     *record.Decoder
	Vocabulary  *strtab.Vocabulary
	Concurrency int
	Logger      *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Decoder == nil {
		o.Decoder = record.NewDecoder(nil, 0)
	}
	if o.Vocabulary == nil {
		o.Vocabulary = strtab.DefaultVocabulary()
	}
	if o.Concurrency <= 0 {
		o.Concurrency = runtime.GOMAXPROCS(0)
	}
	if o.Logger == nil {
		o.Logger = slog.Default().With("component", "catalog")
	}
	return o
}

// Load decodes an encoded index, optionally wrapped in a container, into a
// Catalog. Namespaces are built concurrently; one that fails to decode is
// left out and reported through Diagnostics. Only container-level failures
// and cancellation fail the load, and a cancelled load returns ctx.Err().
func Load(ctx context.Context, data []byte, opts Options) (*Catalog, error) {
	opts = opts.withDefaults()
	start := time.Now()

	raw, _, err := blob.Open(data)
	if err != nil {
		return nil, err
	}
	idx, err := blob.ParseIndex(raw)
	if err != nil {
		return nil, err
	}

	built := make([]*Namespace, len(idx.Namespaces))
	failures := make([]error, len(idx.Namespaces))
	names := make([]string, len(idx.Namespaces))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, rawNS := range idx.Namespaces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name, ok := blob.PeekName(rawNS)
			if !ok {
				name = fmt.Sprintf("#%d", i)
			}
			names[i] = name
			ns, err := blob.DecodeNamespace(rawNS)
			if err != nil {
				failures[i] = withNamespace(err, name)
				return nil
			}
			tab := strtab.NewTable(ns.Strings, opts.Vocabulary)
			built[i], failures[i] = Build(name, ns.Doc, ns.Items, tab, ns.Parents, opts.Decoder)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		kept  []*Namespace
		diags []Diagnostic
	)
	for i := range idx.Namespaces {
		if failures[i] != nil {
			d := Diagnostic{Namespace: names[i], Record: -1, Error: failures[i].Error()}
			var de *apperrors.DecodeError
			if errors.As(failures[i], &de) {
				d.Record = de.Record
			}
			opts.Logger.Warn("namespace omitted",
				"namespace", d.Namespace,
				"record", d.Record,
				"error", failures[i],
			)
			diags = append(diags, d)
			continue
		}
		kept = append(kept, built[i])
	}

	cat := New(kept, diags, xxhash.Sum64(raw))
	stats := cat.Stats()
	opts.Logger.Info("catalog loaded",
		"namespaces", stats.Namespaces,
		"items", stats.Items,
		"omitted", stats.Omitted,
		"fingerprint", stats.Fingerprint,
		"duration", time.Since(start),
	)
	return cat, nil
}
