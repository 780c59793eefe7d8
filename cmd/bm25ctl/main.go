// bm25ctl builds BM25 indexes from JSON lines and queries them without a
// running search service.
//
//	bm25ctl build   --out DIR --input docs.jsonl --field title=en_stem [--shards N] [--announce]
//	bm25ctl search  --index DIR [--index DIR...] --query TEXT [--standard] [--or] [--topk K]
//	bm25ctl docfreq --index DIR --query TEXT
//	bm25ctl totals  --index DIR
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Distributed-BM25-Search/pkg/logger"
)

var errUsage = errors.New("usage: bm25ctl <build|search|docfreq|totals> [flags]")

type command func(ctx context.Context, args []string, stdout io.Writer) error

var commands = map[string]command{
	"build":   runBuild,
	"search":  runSearch,
	"docfreq": runDocFreq,
	"totals":  runTotals,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q\n%w", args[0], errUsage)
	}
	return cmd(ctx, args[1:], stdout)
}

// globals are the flags every subcommand accepts.
type globals struct {
	configPath string
	logLevel   string
}

func newFlagSet(name string, g *globals) *flag.FlagSet {
	fs := flag.NewFlagSet("bm25ctl "+name, flag.ContinueOnError)
	fs.StringVarP(&g.configPath, "config", "c", "", "path to config file")
	fs.StringVar(&g.logLevel, "log-level", "warn", "log level")
	return fs
}

// load reads the configuration and sets up logging on stderr.
func (g *globals) load() (*config.Config, error) {
	if _, err := logger.ParseLevel(g.logLevel); err != nil {
		return nil, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.SetupWriter(os.Stderr, g.logLevel, "text")
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
