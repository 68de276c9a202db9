package record

import "sort"

// Kind is the decoded item kind. Tags unknown to the KindTable decode to
// KindOther.
type Kind string

const (
	KindOther    Kind = "other"
	KindModule   Kind = "mod"
	KindStruct   Kind = "struct"
	KindEnum     Kind = "enum"
	KindFunction Kind = "fn"
	KindTrait    Kind = "trait"
	KindTyMethod Kind = "tymethod"
	KindMethod   Kind = "method"
)

// defaultKinds is the rustdoc item-type vocabulary, indexed by tag.
var defaultKinds = []Kind{
	KindModule, "externcrate", "import", KindStruct, KindEnum, KindFunction,
	"type", "static", KindTrait, "impl", KindTyMethod, KindMethod,
	"structfield", "variant", "macro", "primitive", "associatedtype",
	"constant", "associatedconstant", "union", "foreigntype", "keyword",
	"existential", "attr", "derive", "traitalias",
}

// KindTable maps numeric tags to kinds. The tag set is open: unknown tags are
// not an error.
type KindTable struct {
	byTag  map[int]Kind
	byKind map[Kind]int
}

// NewKindTable builds a table from configuration data.
func NewKindTable(tags map[int]string) *KindTable {
	kt := &KindTable{
		byTag:  make(map[int]Kind, len(tags)),
		byKind: make(map[Kind]int, len(tags)),
	}
	keys := make([]int, 0, len(tags))
	for tag := range tags {
		keys = append(keys, tag)
	}
	sort.Ints(keys)
	for _, tag := range keys {
		k := Kind(tags[tag])
		kt.byTag[tag] = k
		if _, seen := kt.byKind[k]; !seen {
			kt.byKind[k] = tag
		}
	}
	return kt
}

// DefaultKindTags returns the rustdoc tag vocabulary as configuration data.
func DefaultKindTags() map[int]string {
	tags := make(map[int]string, len(defaultKinds))
	for i, k := range defaultKinds {
		tags[i] = string(k)
	}
	return tags
}

// DefaultKindTable returns a KindTable over DefaultKindTags.
func DefaultKindTable() *KindTable {
	return NewKindTable(DefaultKindTags())
}

// Kind returns the kind for tag, or KindOther.
func (kt *KindTable) Kind(tag int) Kind {
	if k, ok := kt.byTag[tag]; ok {
		return k
	}
	return KindOther
}

// Tag returns the lowest tag mapped to kind.
func (kt *KindTable) Tag(kind Kind) (int, bool) {
	tag, ok := kt.byKind[kind]
	return tag, ok
}
