package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
)

type namespaceSummary struct {
	Name      string `json:"name"`
	Doc       string `json:"doc,omitempty"`
	Items     int    `json:"items"`
	Callables int    `json:"callables"`
	Parents   int    `json:"parents"`
}

type inspectReport struct {
	Container   *blob.Header         `json:"container,omitempty"`
	Stats       catalog.Stats        `json:"stats"`
	Namespaces  []namespaceSummary   `json:"namespaces"`
	Diagnostics []catalog.Diagnostic `json:"diagnostics"`
}

// Run executes the inspect command.
func (c *InspectCmd) Run(deps *Dependencies) error {
	cat, data, err := deps.loadCatalog(c.Index)
	if err != nil {
		return err
	}
	rep := inspectReport{
		Stats:       cat.Stats(),
		Namespaces:  make([]namespaceSummary, 0, len(cat.Names())),
		Diagnostics: cat.Diagnostics(),
	}
	if blob.IsContainer(data) {
		if _, hdr, err := blob.Open(data); err == nil {
			rep.Container = hdr
		}
	}
	for _, name := range cat.Names() {
		ns, _ := cat.Namespace(name)
		rep.Namespaces = append(rep.Namespaces, namespaceSummary{
			Name:      ns.Name,
			Doc:       ns.Doc,
			Items:     ns.Len(),
			Callables: ns.Callables(),
			Parents:   len(ns.Parents),
		})
	}

	if c.JSON {
		enc := json.NewEncoder(deps.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	if h := rep.Container; h != nil {
		fmt.Fprintf(deps.Stdout, "container: v%d %s, %d bytes payload, %d bytes raw, crc32 %08x\n",
			h.Version, h.Compression, h.PayloadSize, h.RawSize, h.Checksum)
	}
	fmt.Fprintf(deps.Stdout, "fingerprint: %s\n", rep.Stats.Fingerprint)
	fmt.Fprintf(deps.Stdout, "namespaces: %d  items: %d  callables: %d  omitted: %d\n\n",
		rep.Stats.Namespaces, rep.Stats.Items, rep.Stats.Callables, rep.Stats.Omitted)

	tw := tabwriter.NewWriter(deps.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAMESPACE\tITEMS\tCALLABLES\tPARENTS\tDOC")
	for _, ns := range rep.Namespaces {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", ns.Name, ns.Items, ns.Callables, ns.Parents, ns.Doc)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, d := range rep.Diagnostics {
		if d.Record >= 0 {
			fmt.Fprintf(deps.Stdout, "omitted %s: record %d: %s\n", d.Namespace, d.Record, d.Error)
		} else {
			fmt.Fprintf(deps.Stdout, "omitted %s: %s\n", d.Namespace, d.Error)
		}
	}
	return nil
}
