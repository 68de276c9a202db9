package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/ranker"
)

// Run executes the search command.
func (c *SearchCmd) Run(deps *Dependencies) error {
	cat, _, err := deps.loadCatalog(c.Index)
	if err != nil {
		return err
	}
	matches := executor.Search(cat, c.Query)
	total := len(matches)
	if c.Limit > 0 && len(matches) > c.Limit {
		matches = matches[:c.Limit]
	}

	if c.JSON {
		tier := ranker.TierNone
		if total > 0 {
			tier = matches[0].Tier
		}
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Query     string         `json:"query"`
			Tier      ranker.Tier    `json:"tier"`
			TotalHits int            `json:"total_hits"`
			Results   []ranker.Match `json:"results"`
		}{c.Query, tier, total, matches})
	}

	if total == 0 {
		fmt.Fprintf(deps.Stdout, "no results for %q\n", c.Query)
		return nil
	}
	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	for _, m := range matches {
		sig := ""
		if m.Item.Signature != nil {
			sig = m.Item.Signature.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Tier, m.Item.Namespace, m.Item.Kind, m.FullPath, sig)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if total > len(matches) {
		fmt.Fprintf(deps.Stdout, "%d of %d results shown\n", len(matches), total)
	}
	return nil
}
