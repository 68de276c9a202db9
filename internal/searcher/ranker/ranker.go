// Package ranker classifies items into relevance tiers and orders matches.
package ranker

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/searcher/parser"
)

// Tier is a relevance class; lower is better.
type Tier int

const (
	TierNone Tier = iota
	TierExact
	TierSubstring
	TierSignature
)

var tierNames = map[Tier]string{
	TierNone:      "none",
	TierExact:     "exact",
	TierSubstring: "substring",
	TierSignature: "signature",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	for tier, name := range tierNames {
		if name == string(b) {
			*t = tier
			return nil
		}
	}
	return fmt.Errorf("unknown tier %q", b)
}

// Match is one search hit.
type Match struct {
	Tier     Tier         `json:"tier"`
	FullPath string       `json:"full_path"`
	Item     catalog.Item `json:"item"`
}

// NewMatch wraps an item at the given tier.
func NewMatch(it *catalog.Item, tier Tier) Match {
	return Match{Tier: tier, FullPath: it.FullPath(), Item: *it}
}

// Less orders matches by tier, then namespace name, then record order.
func Less(a, b Match) bool {
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.Item.Namespace != b.Item.Namespace {
		return a.Item.Namespace < b.Item.Namespace
	}
	return a.Item.Ordinal < b.Item.Ordinal
}

// Sort orders matches in place by Less.
func Sort(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return Less(matches[i], matches[j])
	})
}

// NameTier classifies a normalised item name against a normalised term.
func NameTier(nameKey, term string) Tier {
	switch {
	case term == "":
		return TierNone
	case nameKey == term:
		return TierExact
	case strings.Contains(nameKey, term):
		return TierSubstring
	default:
		return TierNone
	}
}

// MatchSignature reports whether sig satisfies pattern: equal arity,
// positional argument matches and, when the pattern has one, a matching
// return type.
func MatchSignature(sig *record.Signature, pattern *parser.SignaturePattern) bool {
	if sig == nil || pattern == nil || len(sig.Args) != len(pattern.Args) {
		return false
	}
	for i, p := range pattern.Args {
		if !MatchType(sig.Args[i], p) {
			return false
		}
	}
	if pattern.Ret != nil && !MatchType(sig.Ret, *pattern.Ret) {
		return false
	}
	return true
}

// MatchType compares names case-insensitively, so the pattern T matches the
// generic placeholder t. A path-qualified name on either side matches on its
// last segment.
func MatchType(t record.TypeRef, p parser.TypePattern) bool {
	switch {
	case p.Wildcard:
		return true
	case p.Unit:
		return t.Unit
	case t.Unit:
		return false
	}
	if !strings.EqualFold(t.Name, p.Name) && !strings.EqualFold(lastSegment(t.Name), lastSegment(p.Name)) {
		return false
	}
	if len(p.Params) == 0 {
		return true
	}
	if len(p.Params) != len(t.Params) {
		return false
	}
	for i := range p.Params {
		if !MatchType(t.Params[i], p.Params[i]) {
			return false
		}
	}
	return true
}

func lastSegment(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
