// Command taggo is an interactive shell around a tag index: it loads
// records from a delimited source file, answers tag queries and keeps
// the index state in a snapshot directory between runs.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/taggo"
	"github.com/hupe1980/taggo/blobstore"
	"github.com/hupe1980/taggo/cursor"
	"github.com/hupe1980/taggo/inverted"
	"github.com/hupe1980/taggo/resource"
)

type config struct {
	Data                 string `yaml:"data"`
	Status               string `yaml:"status"`
	Snapshot             string `yaml:"snapshot"`
	Delimiter            string `yaml:"delimiter"`
	LogLevel             string `yaml:"log_level"`
	MemoryLimitBytes     int64  `yaml:"memory_limit_bytes"`
	IOLimitBytesPerSec   int64  `yaml:"io_limit_bytes_per_sec"`
	MaxBackgroundWorkers int64  `yaml:"max_background_workers"`
}

func defaultConfig() config {
	return config{
		Data:      "data.csv",
		Status:    "index_status.txt",
		Snapshot:  "index_data",
		Delimiter: "|",
		LogLevel:  "info",
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func main() {
	configPath := flag.String("config", "", "YAML config file (flags override it)")
	dataPath := flag.String("data", "", "Record source file")
	statusPath := flag.String("status", "", "Ingestion cursor file")
	snapshotDir := flag.String("snapshot", "", "Snapshot directory (empty disables snapshots)")
	delimiter := flag.String("delimiter", "", "Record field delimiter")
	logLevel := flag.String("log", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg := defaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.Data = *dataPath
		case "status":
			cfg.Status = *statusPath
		case "snapshot":
			cfg.Snapshot = *snapshotDir
		case "delimiter":
			cfg.Delimiter = *delimiter
		case "log":
			cfg.LogLevel = *logLevel
		}
	})

	if len(cfg.Delimiter) != 1 {
		fmt.Fprintf(os.Stderr, "delimiter must be a single byte, got %q\n", cfg.Delimiter)
		os.Exit(1)
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := taggo.NewTextLogger(level)

	optFns := []taggo.Option{
		taggo.WithSource(cfg.Data),
		taggo.WithDelimiter(cfg.Delimiter[0]),
		taggo.WithLogger(logger),
		taggo.WithResourceLimits(resource.Config{
			MemoryLimitBytes:     cfg.MemoryLimitBytes,
			IOLimitBytesPerSec:   cfg.IOLimitBytesPerSec,
			MaxBackgroundWorkers: cfg.MaxBackgroundWorkers,
		}),
	}
	if cfg.Status != "" {
		optFns = append(optFns, taggo.WithCursorStore(cursor.NewFileStore(cfg.Status, nil)))
	}
	if cfg.Snapshot != "" {
		optFns = append(optFns, taggo.WithBlobStore(blobstore.NewLocalStore(cfg.Snapshot)))
	}

	idx := taggo.New(optFns...)
	ctx := context.Background()

	if cfg.Snapshot != "" {
		switch err := idx.LoadSnapshot(ctx); {
		case err == nil:
			fmt.Printf("Loaded snapshot: %d documents, %d tags\n", idx.DocumentCount(), idx.TagCount())
		case errors.Is(err, taggo.ErrSnapshotNotFound):
			fmt.Println("No snapshot found, building from source.")
		default:
			fmt.Fprintf(os.Stderr, "load snapshot: %v\n", err)
			os.Exit(1)
		}
	}

	if stats, err := idx.LoadIncremental(ctx, true); err != nil {
		fmt.Fprintf(os.Stderr, "incremental load: %v\n", err)
	} else if stats.Records > 0 {
		fmt.Printf("Ingested %d records (%d malformed, %d dropped)\n", stats.Records, stats.Malformed, stats.Dropped)
	}
	fmt.Printf("Documents: %d, Tags: %d\n", idx.DocumentCount(), idx.TagCount())

	printHelp()
	repl(ctx, idx)

	if cfg.Snapshot != "" {
		if err := idx.SaveSnapshot(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "save snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Snapshot saved.")
	}
}

func printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  query <tag> [tag...] <AND|OR|XOR|ANDNOT>   find documents")
	fmt.Println("  tagsfor <doc>                              list a document's tags")
	fmt.Println("  load                                       ingest new source data")
	fmt.Println("  save                                       save a snapshot now")
	fmt.Println("  stats                                      show index statistics")
	fmt.Println("  quit                                       save and exit")
}

func repl(ctx context.Context, idx *taggo.Index) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "help":
			printHelp()
		case "query":
			runQuery(ctx, idx, fields[1:])
		case "tagsfor":
			if len(fields) != 2 {
				fmt.Println("Usage: tagsfor <doc>")
				continue
			}
			tags := idx.TagsFor(ctx, fields[1])
			if len(tags) == 0 {
				fmt.Println("Document not found or has no tags.")
			} else {
				fmt.Printf("Tags: %s\n", strings.Join(tags, ", "))
			}
		case "load":
			stats, err := idx.LoadIncremental(ctx, true)
			if err != nil {
				fmt.Printf("Load failed: %v\n", err)
				continue
			}
			fmt.Printf("Ingested %d records (%d malformed, %d dropped)\n", stats.Records, stats.Malformed, stats.Dropped)
		case "save":
			if err := idx.SaveSnapshot(ctx); err != nil {
				fmt.Printf("Save failed: %v\n", err)
				continue
			}
			fmt.Println("Snapshot saved.")
		case "stats":
			stats := idx.Stats()
			fmt.Printf("Documents: %d\nTags: %d\nMemory: %d bytes\n", stats.Documents, stats.Tags, stats.MemoryBytes)
		default:
			fmt.Printf("Unknown command %q, try help.\n", fields[0])
		}
	}
}

func runQuery(ctx context.Context, idx *taggo.Index, args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: query <tag> [tag...] <AND|OR|XOR|ANDNOT>")
		return
	}
	op, err := inverted.ParseOp(args[len(args)-1])
	if err != nil {
		fmt.Printf("%v, use AND, OR, XOR or ANDNOT.\n", err)
		return
	}

	results := idx.Query(ctx, args[:len(args)-1], op)
	if len(results) == 0 {
		fmt.Println("No documents found matching the query.")
		return
	}
	fmt.Printf("Found %d matching document(s):\n", len(results))
	for _, doc := range results {
		fmt.Printf("  - %s\n", doc)
	}
}
