// Command assistant is a small CLI over the memory engine: store notes,
// recall them with any of the four strategies, and inspect store health.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mnemo-ai/mnemo/pkg/memory/engine"
	"github.com/mnemo-ai/mnemo/pkg/memory/model"
	"github.com/mnemo-ai/mnemo/pkg/memory/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "assistant:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing command")
	}

	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	e, err := openEngine(ctx, logger)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	switch args[0] {
	case "store":
		return cmdStore(ctx, e, args[1:])
	case "recall":
		return cmdRecall(ctx, e, args[1:])
	case "stats":
		return cmdStats(ctx, e)
	case "clear":
		return e.Clear(ctx)
	case "compact":
		return cmdCompact(ctx, e, args[1:])
	case "reindex":
		return cmdReindex(ctx, e)
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: assistant <command> [flags]

commands:
  store   -content <text> [-category <name>] [-importance low|medium|high]
  recall  -query <text> [-type quick|semantic|context|related] [-limit n] [-depth n]
  stats
  clear
  compact [-age <duration>]
  reindex

environment:
  MNEMO_DB              sqlite database path (default ~/.mnemo/memories.db)
  MNEMO_EMBED_PROVIDER  openai|google|ollama|fastembed|dummy
  MNEMO_LOG             development|production (default production)`)
}

func buildLogger() (*zap.Logger, error) {
	if os.Getenv("MNEMO_LOG") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func dbPath() string {
	if path := os.Getenv("MNEMO_DB"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "memories.db"
	}
	return filepath.Join(home, ".mnemo", "memories.db")
}

func openEngine(ctx context.Context, logger *zap.Logger) (*engine.Engine, error) {
	fast, err := store.OpenSQLiteStore(dbPath())
	if err != nil {
		return nil, err
	}
	graph, err := openGraphStore(ctx)
	if err != nil {
		logger.Warn("graph store unavailable, continuing without it", zap.Error(err))
		graph = nil
	}
	e := engine.New(fast, engine.DefaultOptions()).
		WithGraphStore(graph).
		WithLogger(logger)
	if err := e.Start(ctx); err != nil {
		fast.Close()
		return nil, err
	}
	return e, nil
}

func cmdStore(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	content := fs.String("content", "", "memory content")
	category := fs.String("category", "general", "memory category")
	importance := fs.String("importance", "medium", "low, medium or high")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*content) == "" {
		return fmt.Errorf("store: -content is required")
	}
	id, err := e.Store(ctx, *content,
		engine.WithCategory(*category),
		engine.WithImportance(model.ParseImportance(*importance)))
	if err != nil {
		return err
	}
	// Flush the queue so the CLI exits with the graph up to date.
	if err := e.DrainAll(ctx); err != nil {
		return err
	}
	fmt.Printf("stored memory %d\n", id)
	return nil
}

func cmdRecall(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("recall", flag.ContinueOnError)
	query := fs.String("query", "", "query text")
	qtype := fs.String("type", "quick", "quick, semantic, context or related")
	limit := fs.Int("limit", 10, "maximum results")
	depth := fs.Int("depth", 2, "context traversal depth")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*query) == "" {
		return fmt.Errorf("recall: -query is required")
	}
	records, err := e.Recall(ctx, engine.Query{
		Type:         engine.QueryType(*qtype),
		Text:         *query,
		Limit:        *limit,
		ContextDepth: *depth,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no memories found")
		return nil
	}
	for _, rec := range records {
		line := fmt.Sprintf("[%d] %s (%s, %s", rec.ID, rec.Content, rec.Category, rec.Importance)
		if rec.Score > 0 {
			line += fmt.Sprintf(", score %.2f", rec.Score)
		}
		fmt.Println(line + ")")
	}
	return nil
}

func cmdStats(ctx context.Context, e *engine.Engine) error {
	stats, err := e.Stats(ctx)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdReindex(ctx context.Context, e *engine.Engine) error {
	n, err := e.Reindex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("reindexed %d memories\n", n)
	return nil
}

func cmdCompact(ctx context.Context, e *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("compact", flag.ContinueOnError)
	age := fs.Duration("age", 7*24*time.Hour, "delete synced queue rows older than this")
	if err := fs.Parse(args); err != nil {
		return err
	}
	removed, err := e.CompactQueue(ctx, *age)
	if err != nil {
		return err
	}
	fmt.Printf("compacted %d queue rows\n", removed)
	return nil
}
