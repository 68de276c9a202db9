package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/config"
)

// Dependencies holds configuration and I/O for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Catalog catalog.Options
}

func (d *Dependencies) loadConfig(path string) error {
	var (
		cfg *config.Config
		err error
	)
	if path == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(path); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	d.Config = cfg
	if d.Catalog, err = loader.CatalogOptions(cfg.Decoder); err != nil {
		return err
	}
	return nil
}

func (d *Dependencies) loadCatalog(path string) (*catalog.Catalog, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading index: %w", err)
	}
	cat, err := catalog.Load(d.Ctx, data, d.Catalog)
	if err != nil {
		return nil, nil, err
	}
	return cat, data, nil
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config  string `type:"path" help:"Config file supplying decoder vocabularies and publish targets"`
	Verbose bool   `short:"v" help:"Log at debug level"`

	Pack     PackCmd     `cmd:"" help:"Encode a YAML or JSON manifest into a compact index"`
	Inspect  InspectCmd  `cmd:"" help:"Show namespaces, counts and diagnostics of an index"`
	Search   SearchCmd   `cmd:"" help:"Run a name or signature query against an index"`
	LoadTest LoadTestCmd `cmd:"" name:"loadtest" help:"Drive a running search service with concurrent queries"`
}

// PackCmd is the "pack" subcommand.
type PackCmd struct {
	Manifest    string `arg:"" type:"existingfile" help:"Manifest file"`
	Output      string `short:"o" type:"path" help:"Write the index here (default stdout)"`
	Compression string `short:"z" default:"none" enum:"none,lz4,zstd" help:"Container compression"`
	Seed        uint64 `help:"Shuffle the string tables with this seed (0 keeps first-use order)"`
	MinUses     int    `default:"2" help:"Intern strings used at least this many times; inline the rest"`
	Publish     string `enum:"none,postgres,minio" default:"none" help:"Also publish to postgres or minio"`
	Name        string `help:"Index name when publishing (default loader.indexName)"`
}

// InspectCmd is the "inspect" subcommand.
type InspectCmd struct {
	Index string `arg:"" type:"existingfile" help:"Encoded index file"`
	JSON  bool   `help:"Print machine-readable JSON"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Index string `arg:"" type:"existingfile" help:"Encoded index file"`
	Query string `arg:"" help:"Name or signature pattern such as 'usize, usize -> Tensor'"`
	Limit int    `short:"n" default:"20" help:"Maximum results to print (0 for all)"`
	JSON  bool   `help:"Print machine-readable JSON"`
}
