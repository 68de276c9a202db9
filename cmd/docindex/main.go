// Command docindex packs, inspects and queries encoded documentation indexes.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/logger"
	"github.com/alecthomas/kong"
)

func main() {
	ctx := context.Background()
	if err := NewMain().Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct{}

func NewMain() *Main {
	return &Main{}
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docindex"),
		kong.Description("Pack, inspect and search compact documentation indexes."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docindex --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level := "warn"
	if cli.Verbose {
		level = "debug"
	}
	logger.SetupWriter(stderr, level, "text")

	deps := &Dependencies{Ctx: ctx, Stdout: stdout, Stderr: stderr}
	if err := deps.loadConfig(cli.Config); err != nil {
		return err
	}
	return kongCtx.Run(deps)
}
