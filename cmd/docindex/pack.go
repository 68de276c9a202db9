package main

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/blob"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/loader"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/packer"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/postgres"
	"github.com/cespare/xxhash/v2"
)

// Run executes the pack command.
func (c *PackCmd) Run(deps *Dependencies) error {
	m, err := packer.LoadManifest(c.Manifest)
	if err != nil {
		return err
	}
	compression, err := blob.ParseCompression(c.Compression)
	if err != nil {
		return err
	}

	var kinds *record.KindTable
	if deps.Catalog.Decoder != nil {
		kinds = deps.Catalog.Decoder.Kinds()
	}
	data, rep, err := packer.Pack(m, packer.Options{
		Kinds:       kinds,
		Vocabulary:  deps.Catalog.Vocabulary,
		Compression: compression,
		Seed:        c.Seed,
		MinUses:     c.MinUses,
	})
	if err != nil {
		return err
	}

	if c.Output == "" {
		if _, err := deps.Stdout.Write(data); err != nil {
			return err
		}
	} else {
		if err := blob.WriteFile(c.Output, data); err != nil {
			return err
		}
		fmt.Fprintf(deps.Stderr, "wrote %s: %d namespaces, %d items, %d interned, %d inlined, %d bytes (%d raw)\n",
			c.Output, rep.Namespaces, rep.Items, rep.Interned, rep.Inlined, rep.OutBytes, rep.RawBytes)
	}

	if c.Publish != "none" {
		return c.publish(deps, data)
	}
	return nil
}

func (c *PackCmd) publish(deps *Dependencies, data []byte) error {
	name := c.Name
	if name == "" {
		name = deps.Config.Loader.IndexName
	}
	switch c.Publish {
	case "postgres":
		pg, err := postgres.New(deps.Config.Postgres)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(deps.Ctx); err != nil {
			return err
		}
		if err := pg.PutIndex(deps.Ctx, name, data, int64(xxhash.Sum64(data))); err != nil {
			return err
		}
	case "minio":
		src, err := loader.NewMinioSource(deps.Config.Loader.Minio, name)
		if err != nil {
			return err
		}
		if err := src.Put(deps.Ctx, data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown publish target %q", c.Publish)
	}
	fmt.Fprintf(deps.Stderr, "published %q to %s\n", name, c.Publish)
	return nil
}
