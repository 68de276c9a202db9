package executor

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/tracing"
	"golang.org/x/sync/errgroup"
)

// CatalogSource yields the catalog current at the time of the call, or nil
// before the first load.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Waiter is a CatalogSource that can block until its first catalog is
// available. loader.Manager implements it.
type Waiter interface {
	CatalogSource
	Wait(ctx context.Context) (*catalog.Catalog, error)
}

// Await returns the current catalog of source. Before the first load it
// blocks on sources implementing Waiter and fails fast on the rest.
func Await(ctx context.Context, source CatalogSource) (*catalog.Catalog, error) {
	if cat := source.Current(); cat != nil {
		return cat, nil
	}
	if w, ok := source.(Waiter); ok {
		return w.Wait(ctx)
	}
	return nil, apperrors.ErrCatalogNotReady
}

// Executor searches the current catalog with one goroutine per namespace.
type Executor struct {
	source         CatalogSource
	maxConcurrency int
	logger         *slog.Logger
}

func New(source CatalogSource, maxConcurrency int) *Executor {
	if maxConcurrency <= 0 {
		maxConcurrency = runtime.GOMAXPROCS(0)
	}
	return &Executor{
		source:         source,
		maxConcurrency: maxConcurrency,
		logger:         slog.Default().With("component", "query-executor"),
	}
}

// Execute runs plan against a snapshot of the current catalog. A reload
// during the call does not affect it.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	cat, err := Await(ctx, e.source)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		res := emptyResult(plan)
		res.Fingerprint = Fingerprint(cat)
		return res, nil
	}

	ctx, span := tracing.Start(ctx, "execute")
	defer span.End()
	lists, err := e.fanOut(ctx, cat, plan)
	if err != nil {
		return nil, err
	}
	tier, matches, total := combine(lists, limit)
	span.Set("namespaces", len(lists))
	span.Set("total_hits", total)

	res := &SearchResult{
		Query:       plan.RawQuery,
		Tier:        tier,
		TotalHits:   total,
		Results:     matches,
		Fingerprint: Fingerprint(cat),
	}
	if plan.Signature != nil {
		res.Pattern = plan.Signature.String()
	}
	e.logger.Info("query executed",
		"query", plan.RawQuery,
		"tier", tier.String(),
		"namespaces_queried", len(lists),
		"total_hits", total,
		"results", len(matches),
	)
	if plan.PatternErr != nil {
		e.logger.Debug("pattern ignored", "query", plan.RawQuery, "error", plan.PatternErr)
	}
	return res, nil
}

func (e *Executor) fanOut(ctx context.Context, cat *catalog.Catalog, plan *parser.QueryPlan) ([]tierMatches, error) {
	names := cat.Names()
	results := make([]tierMatches, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrency)
	for i, name := range names {
		ns, _ := cat.Namespace(name)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = searchNamespace(ns, plan)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
