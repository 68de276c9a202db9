package packer

import (
	"encoding/json"
	"math/rand/v2"
)

// interner counts string uses while tuples are built and decides afterwards
// which strings go into the table. Tuples hold *strRef placeholders that
// marshal to an index or an inline literal once assign has run.
type interner struct {
	minUses int
	order   []string
	uses    map[string]int
	index   map[string]int
}

func newInterner(minUses int) *interner {
	return &interner{
		minUses: minUses,
		uses:    make(map[string]int),
		index:   make(map[string]int),
	}
}

type strRef struct {
	in *interner
	s  string
}

func (r *strRef) MarshalJSON() ([]byte, error) {
	if i, ok := r.in.index[r.s]; ok {
		return json.Marshal(i)
	}
	return json.Marshal(r.s)
}

func (in *interner) use(s string) *strRef {
	if _, seen := in.uses[s]; !seen {
		in.order = append(in.order, s)
	}
	in.uses[s]++
	return &strRef{in: in, s: s}
}

// assign builds the table from strings used at least minUses times, in order
// of first use. A non-zero seed shuffles the table.
func (in *interner) assign(seed uint64) []string {
	table := make([]string, 0)
	for _, s := range in.order {
		if in.uses[s] >= in.minUses {
			table = append(table, s)
		}
	}
	if seed != 0 {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		rng.Shuffle(len(table), func(i, j int) { table[i], table[j] = table[j], table[i] })
	}
	for i, s := range table {
		in.index[s] = i
	}
	return table
}

func (in *interner) inlined() int {
	n := 0
	for _, s := range in.order {
		if in.uses[s] < in.minUses {
			n++
		}
	}
	return n
}
