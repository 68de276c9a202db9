// Package blob defines the wire shape of an encoded search index and the
// optional binary container it may be shipped in.
package blob

import (
	"encoding/json"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
)

// Version is the index schema version written by encoders.
const Version = 1

// Index is the top level of an encoded index. Namespaces stay raw until the
// catalog builder decodes them one by one, so a broken namespace cannot fail
// its siblings.
type Index struct {
	Version    int               `json:"version"`
	Namespaces []json.RawMessage `json:"namespaces"`
}

// Namespace is one crate/module worth of records.
type Namespace struct {
	Name    string            `json:"name"`
	Doc     string            `json:"doc"`
	Strings []string          `json:"strings"`
	Items   []json.RawMessage `json:"items"`
	Parents []json.RawMessage `json:"parents"`
}

// ParseIndex parses the top level of an encoded index.
func ParseIndex(data []byte) (*Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parsing index: %w: %v", apperrors.ErrInvalidContainer, err)
	}
	if idx.Version > Version {
		return nil, fmt.Errorf("index version %d newer than supported %d: %w", idx.Version, Version, apperrors.ErrInvalidContainer)
	}
	return &idx, nil
}

// PeekName extracts the namespace name without decoding the rest. ok is false
// when raw is not an object with a string name.
func PeekName(raw json.RawMessage) (name string, ok bool) {
	var head struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Name == nil {
		return "", false
	}
	return *head.Name, true
}

// DecodeNamespace decodes one namespace body.
func DecodeNamespace(raw json.RawMessage) (*Namespace, error) {
	var ns Namespace
	if err := json.Unmarshal(raw, &ns); err != nil {
		return nil, apperrors.Decodef(apperrors.ErrMalformedTuple, "namespace body: %v", err)
	}
	return &ns, nil
}

// Marshal encodes an index whose namespaces are already typed.
func Marshal(namespaces []*Namespace) ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(namespaces))
	for _, ns := range namespaces {
		data, err := json.Marshal(ns)
		if err != nil {
			return nil, fmt.Errorf("marshaling namespace %q: %w", ns.Name, err)
		}
		raws = append(raws, data)
	}
	data, err := json.Marshal(Index{Version: Version, Namespaces: raws})
	if err != nil {
		return nil, fmt.Errorf("marshaling index: %w", err)
	}
	return data, nil
}
