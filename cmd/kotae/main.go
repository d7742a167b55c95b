// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/assembler"
	"github.com/hyperjump/kotae/internal/audit"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/gateway"
	"github.com/hyperjump/kotae/internal/integrity"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/provider"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/redact"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kotae server" from the project dir uses the project's config.
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
	// Provider API keys live in the environment; a .env in the working
	// directory is a convenience for development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
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
	debug := fs.Bool("debug", false, "enable debug logging")
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

	if cfg.Providers.EmbedURL == "" || cfg.Providers.GenerateURL == "" {
		logger.Fatal("providers.embed_url and providers.generate_url must be configured")
	}
	apiKey := os.Getenv(cfg.Providers.APIKeyEnv)

	store := vector.NewStore(cfg.Storage.SnapshotPath, logger)
	if err := store.Load(); err != nil {
		logger.Fatal("Failed to load vector snapshot", zap.Error(err))
	}
	logger.Info("vector snapshot loaded",
		zap.String("path", cfg.Storage.SnapshotPath),
		zap.Int("records", store.Size()),
	)

	var reloader *vector.Reloader
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	if cfg.Storage.WatchSnapshot {
		reloader = vector.NewReloader(store, logger)
		if err := reloader.Start(reloadCtx); err != nil {
			logger.Fatal("Failed to start snapshot reloader", zap.Error(err))
		}
		defer reloader.Stop()
	}

	sink, err := audit.NewSQLiteSink(cfg.Storage.AuditDBPath, logger)
	if err != nil {
		logger.Fatal("Failed to open audit database", zap.Error(err))
	}
	defer sink.Close()

	breaker := gateway.NewBreaker(
		cfg.Gateway.FailureThreshold,
		time.Duration(cfg.Gateway.HalfOpenTimeoutSecs)*time.Second,
		cfg.Gateway.HalfOpenSuccessCount,
	)
	gw := gateway.New(
		provider.NewHTTPGenerator(cfg.Providers.GenerateURL, apiKey),
		provider.NewHTTPEmbedder(cfg.Providers.EmbedURL, apiKey),
		embedding.NewCache(cfg.Gateway.EmbeddingCacheEntries),
		breaker,
		time.Duration(cfg.Gateway.CallTimeoutSeconds)*time.Second,
		logger,
	)
	asm := assembler.New(redact.New(), cfg.Retrieval.MaxContextChars)
	verifier := integrity.NewVerifier(logger)
	engine := rag.NewEngine(store, gw, asm, verifier, sink, cfg.Retrieval.TopK, logger)

	srv := server.NewServer(engine, store, breaker, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	reloadCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	department := fs.String("department", "", "department of the asking user")
	role := fs.String("role", "", "role of the asking user")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	req := &models.QueryRequest{
		Query: question,
		User:  models.UserProfile{Department: *department, Role: *role},
	}
	resp, err := queryViaHTTP(*serverURL, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			fmt.Println()
			fmt.Println("Sources:")
			for _, src := range resp.Sources {
				fmt.Printf("  %.3f  %s\n", src.Score, src.Title)
			}
		}
		fmt.Println()
		fmt.Printf("integrity: %s (%.2f)", resp.Integrity.Verdict, resp.Integrity.Score)
		if len(resp.Integrity.Issues) > 0 {
			fmt.Printf("  issues: %s", strings.Join(resp.Integrity.Issues, ", "))
		}
		fmt.Println()
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	status, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
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
		fmt.Printf("records:  %d   # count of retrievable chunks\n", status.Records)
		fmt.Printf("breaker:  %s   # generation circuit state\n", status.Breaker)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

type statusResponse struct {
	Records int    `json:"records"`
	Breaker string `json:"breaker"`
}

func queryViaHTTP(serverURL string, req *models.QueryRequest) (*models.QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	var out models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae ask --department engineering how do I rotate the signing keys
  kotae ask --role admin --output json "what changed in the Q3 policy?"
`)
}

func printUsage() {
	fmt.Println(`Kotae - access-controlled question answering over your documents

Usage:
  kotae <command> [flags]

Commands:
  server    Start the HTTP server
  ask       Ask a question against a running server
  status    Show record count and circuit state
  version   Show version
  help      Show this help

Run 'kotae <command> -h' for command flags.`)
}
