package executor

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
)

type SearchResult struct {
	Query       string         `json:"query"`
	Tier        ranker.Tier    `json:"tier"`
	TotalHits   int            `json:"total_hits"`
	Results     []ranker.Match `json:"results"`
	Pattern     string         `json:"pattern,omitempty"`
	Fingerprint string         `json:"fingerprint"`
}

func emptyResult(plan *parser.QueryPlan) *SearchResult {
	return &SearchResult{
		Query:   plan.RawQuery,
		Tier:    ranker.TierNone,
		Results: []ranker.Match{},
	}
}

// Search runs term against cat and returns every match of the best non-empty
// tier. It does not block and may be called concurrently.
func Search(cat *catalog.Catalog, term string) []ranker.Match {
	plan := parser.Parse(term)
	if cat == nil || plan.Empty() {
		return []ranker.Match{}
	}
	lists := make([]tierMatches, 0, len(cat.Names()))
	for _, name := range cat.Names() {
		ns, _ := cat.Namespace(name)
		lists = append(lists, searchNamespace(ns, plan))
	}
	_, matches, _ := combine(lists, 0)
	return matches
}

type tierMatches struct {
	tier    ranker.Tier
	matches []ranker.Match
}

// searchNamespace returns the best tier's matches within one namespace, in
// record order.
func searchNamespace(ns *catalog.Namespace, plan *parser.QueryPlan) tierMatches {
	if ords := ns.ByName(plan.Name); len(ords) > 0 {
		out := make([]ranker.Match, len(ords))
		for i, ord := range ords {
			out[i] = ranker.NewMatch(&ns.Items[ord], ranker.TierExact)
		}
		return tierMatches{tier: ranker.TierExact, matches: out}
	}

	var sub []ranker.Match
	for i := range ns.Items {
		if ranker.NameTier(ns.NameKey(i), plan.Name) == ranker.TierSubstring {
			sub = append(sub, ranker.NewMatch(&ns.Items[i], ranker.TierSubstring))
		}
	}
	if len(sub) > 0 {
		return tierMatches{tier: ranker.TierSubstring, matches: sub}
	}

	if plan.Signature == nil {
		return tierMatches{tier: ranker.TierNone}
	}
	var sig []ranker.Match
	for _, ord := range ns.ByArity(len(plan.Signature.Args)) {
		it := &ns.Items[ord]
		if ranker.MatchSignature(it.Signature, plan.Signature) {
			sig = append(sig, ranker.NewMatch(it, ranker.TierSignature))
		}
	}
	if len(sig) > 0 {
		return tierMatches{tier: ranker.TierSignature, matches: sig}
	}
	return tierMatches{tier: ranker.TierNone}
}

// combine keeps the lists of the globally best tier and merges them. lists
// must be in namespace name order.
func combine(lists []tierMatches, limit int) (ranker.Tier, []ranker.Match, int) {
	best := ranker.TierNone
	for _, l := range lists {
		if l.tier != ranker.TierNone && (best == ranker.TierNone || l.tier < best) {
			best = l.tier
		}
	}
	if best == ranker.TierNone {
		return best, []ranker.Match{}, 0
	}
	keep := make([][]ranker.Match, 0, len(lists))
	total := 0
	for _, l := range lists {
		if l.tier == best {
			keep = append(keep, l.matches)
			total += len(l.matches)
		}
	}
	return best, merger.Merge(keep, limit), total
}

// Fingerprint renders the catalog fingerprint as carried in results and cache keys.
func Fingerprint(cat *catalog.Catalog) string {
	return fmt.Sprintf("%016x", cat.Fingerprint())
}
