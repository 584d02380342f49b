// Package main is the Toridasu CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/toridasu/internal/cli"
	"github.com/hyperjump/toridasu/internal/config"
	"github.com/hyperjump/toridasu/internal/index"
	"github.com/hyperjump/toridasu/internal/models"
	"github.com/hyperjump/toridasu/internal/pattern"
	"github.com/hyperjump/toridasu/internal/pipeline"
	"github.com/hyperjump/toridasu/internal/server"
	"github.com/hyperjump/toridasu/internal/source"
	"github.com/hyperjump/toridasu/internal/storage"
	"github.com/hyperjump/toridasu/internal/tokenize"
	"github.com/hyperjump/toridasu/internal/watcher"
	"github.com/hyperjump/toridasu/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/toridasu/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "toridasu server" from the project dir uses the project's config.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "extract":
		runExtract()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("toridasu version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file extraction, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchOpts := []watcher.Option{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		func(path string) {
			p, err := components.ExtractFile(context.Background(), path)
			if err != nil {
				logger.Warn("watch extract failed", zap.String("path", path), zap.Error(err))
				return
			}
			logger.Info("watched file extracted",
				zap.String("path", path),
				zap.String("portfolio_id", p.ID),
				zap.Int("records", len(p.Records)),
			)
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Pipeline,
		components.Storage,
		components.Index,
		cfg,
		logger,
	)
	srv.SetWatch(watchSvc, resolvedConfigPath)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runExtract() {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: toridasu extract [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	p, err := components.ExtractFile(context.Background(), path)
	if err != nil {
		fmt.Printf("Extraction failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		if err := cli.WritePortfolio(os.Stdout, p, cli.OutputJSON); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		cli.PrintPortfolio(p)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// searchArgsReorder moves flag arguments before positional ones so that
// "toridasu search credit bank -limit 5" works the same as
// "toridasu search -limit 5 credit bank".
func searchArgsReorder(args []string) []string {
	var flags, positional []string
	i := 0
	for i < len(args) {
		arg := args[i]
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if !strings.Contains(arg, "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, arg)
		}
		i++
	}
	out := make([]string, 0, len(args))
	out = append(out, flags...)
	out = append(out, positional...)
	return out
}

// buildSearchQuery joins the remaining arguments into one query string.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct index mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL; use --server "" for direct index access`)
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: toridasu search [flags] <query>\n\n")
		fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces.\n")
		fmt.Fprintf(fs.Output(), "An upper-cased query matching an identifier exactly is ranked first.\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	query := buildSearchQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}

	var hits []*index.Hit
	if *serverURL != "" {
		var err error
		hits, err = searchViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		idx, err := index.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			fmt.Printf("Failed to open record index: %v\n", err)
			os.Exit(1)
		}
		defer idx.Close()
		hits, err = idx.Search(context.Background(), query, *limit)
		if err != nil {
			fmt.Printf("Search failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		if err := cli.WriteHits(os.Stdout, hits, cli.OutputJSON); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		_ = cli.WriteHits(os.Stdout, hits, cli.OutputText)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL, query string, limit int) ([]*index.Hit, error) {
	body, _ := json.Marshal(map[string]interface{}{"query": query, "limit": limit})
	resp, err := http.Post(serverURL+"/api/v1/records/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Hits []*index.Hit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Hits, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: toridasu delete [flags] <portfolio-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if err := components.Storage.DeletePortfolio(ctx, id); err != nil {
		fmt.Printf("Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if err := components.Index.DeletePortfolio(ctx, id); err != nil {
		fmt.Printf("Warning: index cleanup failed: %v\n", err)
	}
	fmt.Printf("Portfolio deleted: %s\n", id)
}

type statusConfigResponse struct {
	DatabasePath        string  `json:"database_path"`
	BleveIndexPath      string  `json:"bleve_index_path"`
	SourceTimeout       string  `json:"source_timeout"`
	VisionEnabled       bool    `json:"vision_enabled"`
	ArithmeticTolerance float64 `json:"arithmetic_tolerance"`
}

type statusResponse struct {
	Portfolios     int64                 `json:"portfolios"`
	IndexedRecords uint64                `json:"indexed_records"`
	DiskUsageBytes *int64                `json:"disk_usage_bytes,omitempty"`
	Config         *statusConfigResponse `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", "http://localhost:8080", `server URL; use --server "" for direct storage access`)
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	if *serverURL != "" {
		var err error
		status, err = statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Printf("Status request failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
		status, err = statusDirect(cfg)
		if err != nil {
			fmt.Printf("Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("portfolios:         %d   # count of stored portfolios\n", status.Portfolios)
		fmt.Printf("indexed_records:    %d   # count of searchable records\n", status.IndexedRecords)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d   # storage + index on disk\n", *status.DiskUsageBytes)
		}
		if status.Config != nil {
			fmt.Println()
			fmt.Println("# configuration")
			fmt.Printf("database_path:      %s\n", status.Config.DatabasePath)
			fmt.Printf("bleve_index_path:   %s\n", status.Config.BleveIndexPath)
			fmt.Printf("source_timeout:     %s\n", status.Config.SourceTimeout)
			fmt.Printf("vision_enabled:     %t\n", status.Config.VisionEnabled)
			fmt.Printf("arith_tolerance:    %g\n", status.Config.ArithmeticTolerance)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func statusDirect(cfg *config.Config) (*statusResponse, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()
	idx, err := index.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open record index: %w", err)
	}
	defer idx.Close()

	portfolios, err := store.CountPortfolios(context.Background())
	if err != nil {
		return nil, err
	}
	records, err := idx.Count()
	if err != nil {
		return nil, err
	}
	status := &statusResponse{
		Portfolios:     portfolios,
		IndexedRecords: records,
		Config: &statusConfigResponse{
			DatabasePath:        cfg.Storage.DatabasePath,
			BleveIndexPath:      cfg.Storage.BleveIndexPath,
			SourceTimeout:       cfg.Extraction.SourceTimeout.String(),
			VisionEnabled:       cfg.Vision.Enabled,
			ArithmeticTolerance: cfg.Extraction.ArithmeticTolerance,
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.BleveIndexPath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: toridasu watch <add|remove|list> [path]")
		fmt.Println("  toridasu watch add <path>     Add directory to watch")
		fmt.Println("  toridasu watch remove <path>  Remove directory from watch")
		fmt.Println("  toridasu watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: toridasu watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: toridasu watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Storage   storage.Storage
	Index     index.RecordIndex
	Patterns  *pattern.Store
	Pipeline  *pipeline.Pipeline
	Tokenizer *tokenize.Tokenizer
	logger    *zap.Logger
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
	if c.Patterns != nil {
		_ = c.Patterns.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	idx, err := index.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize record index: %w", err)
	}

	// Pattern memory shares the portfolio database file.
	patterns, err := pattern.NewStore(cfg.Storage.DatabasePath)
	if err != nil {
		_ = store.Close()
		_ = idx.Close()
		return nil, fmt.Errorf("failed to initialize pattern store: %w", err)
	}

	return &Components{
		Storage:   store,
		Index:     idx,
		Patterns:  patterns,
		Pipeline:  pipeline.New(cfg, patterns, logger),
		Tokenizer: tokenize.New(),
		logger:    logger,
	}, nil
}

// ExtractFile tokenizes a document file, runs the extraction pipeline, and
// persists the resulting portfolio to storage and the record index.
func (c *Components) ExtractFile(ctx context.Context, path string) (*models.Portfolio, error) {
	tokens, err := c.Tokenizer.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenize %s: %w", path, err)
	}
	p, err := c.Pipeline.Extract(ctx, source.Input{
		Filename: filepath.Base(path),
		Tokens:   tokens,
	})
	if err != nil {
		return nil, err
	}
	if err := c.Storage.SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	if err := c.Index.IndexPortfolio(ctx, p); err != nil {
		c.logger.Warn("record indexing failed", zap.String("portfolio_id", p.ID), zap.Error(err))
	}
	return p, nil
}

func printUsage() {
	fmt.Println(`toridasu - Financial statement extraction engine

Usage:
  toridasu server [flags]           Start the HTTP server
  toridasu extract [flags] <file>   Extract holdings from a statement file
  toridasu search [flags] <query>   Search extracted records
  toridasu delete [flags] <id>      Delete a stored portfolio
  toridasu status [flags]           Show storage/index status
  toridasu watch <add|remove|list>  Manage watched directories
  toridasu version                  Show version
  toridasu help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/toridasu/config.yaml)
  --debug            Enable debug logging (directory changes, file extraction, etc.)

Extract Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)

Search Flags:
  --config string    Config file path (for direct index mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to search the index directly when the server is not running.
  --limit int        Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Examples:
  toridasu server
  toridasu extract statement.pdf
  toridasu extract --output json holdings.xlsx   # structured JSON for other apps
  toridasu search toronto dominion
  toridasu search XS2530201644
  toridasu delete 3f2a9c1e-...
  toridasu status
  toridasu status --output json
  toridasu watch add /path/to/statements
  toridasu watch list`)
}
