package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"google.golang.org/api/option"

	"snapspend/internal/analyzer"
	"snapspend/internal/convert"
	"snapspend/internal/extract"
	"snapspend/internal/insights"
	"snapspend/internal/queue"
	"snapspend/internal/receipt"
	"snapspend/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("snapspend")
	var (
		port        = fs.IntLong("port", 8080, "HTTP server port")
		dbPath      = fs.StringLong("db", "snapspend.db", "Database file path")
		uploadsDir  = fs.StringLong("uploads", "./uploads", "Directory for uploaded receipt files")
		bucket      = fs.StringLong("bucket", "", "Object storage bucket for converted images")
		analyzerURL = fs.StringLong("analyzer-url", "http://localhost:9090", "Expense analysis service base URL")
		geminiKey   = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel = fs.StringLong("gemini-model", "gemini-2.0-flash", "Google Gemini model name")
		workers     = fs.IntLong("workers", 4, "Number of concurrent processing workers")
		authUser    = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass    = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SNAPSPEND"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *bucket == "" {
		slog.Error("Storage bucket is required. Set --bucket flag or SNAPSPEND_BUCKET environment variable")
		os.Exit(1)
	}

	// Get Gemini API key from flag or environment
	apiKey := *geminiKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		os.Exit(1)
	}

	ctx := context.Background()

	// Initialize database
	slog.Info("Initializing database...")
	db, err := receipt.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize object storage
	slog.Info("Initializing object storage...", "bucket", *bucket)
	gcsClient, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	defer gcsClient.Close()
	store := analyzer.NewGCSStore(gcsClient, *bucket)

	// Initialize extractor
	slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
	extractor, err := extract.NewGemini(ctx, apiKey, *geminiModel)
	if err != nil {
		slog.Error("Failed to initialize Gemini", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	// Initialize processing pipeline
	converter := convert.NewFileConverter()
	expense := analyzer.NewExpenseClient(*analyzerURL)
	svc := receipt.NewService(db, converter, store, expense, extractor)

	q := queue.New(func(ctx context.Context, job queue.Job) error {
		if _, err := svc.ProcessFile(ctx, job.FilePath, job.FileName); err != nil {
			return err
		}
		// The source upload is only safe to remove once the whole
		// pipeline has succeeded; retries reprocess the original bytes.
		if err := os.Remove(job.FilePath); err != nil {
			slog.Warn("Failed to remove processed upload", "path", job.FilePath, "error", err)
		}
		return nil
	}, queue.WithWorkers(*workers))

	if err := os.MkdirAll(*uploadsDir, 0755); err != nil {
		slog.Error("Failed to create uploads directory", "error", err)
		os.Exit(1)
	}

	// Initialize server
	basicAuth := server.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	engine := insights.NewEngine(db)
	srv := server.NewServer(q, db, engine, *uploadsDir, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)
}
