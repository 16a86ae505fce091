package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tutorstack/tutord/internal/answer"
	"github.com/tutorstack/tutord/internal/api"
	"github.com/tutorstack/tutord/internal/composer"
	"github.com/tutorstack/tutord/internal/config"
	"github.com/tutorstack/tutord/internal/engine"
	"github.com/tutorstack/tutord/internal/ingest"
	"github.com/tutorstack/tutord/internal/profile"
	"github.com/tutorstack/tutord/internal/provider"
	"github.com/tutorstack/tutord/internal/retrieval"
	"github.com/tutorstack/tutord/internal/storage"
	"github.com/tutorstack/tutord/internal/tooltip"
	"github.com/tutorstack/tutord/internal/usage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tutord server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running tutord server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tutord system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "tutord.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tutord version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Write PID file. Check if server is already running via health endpoint.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("tutord is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("tutord is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the query pipeline.
	client := provider.NewClient(provider.Config{
		APIKey:      cfg.Provider.APIKey,
		BaseURL:     cfg.Provider.BaseURL,
		Model:       cfg.Provider.Model,
		EmbedModel:  cfg.Provider.EmbedModel,
		Temperature: cfg.Provider.Temperature,
		MaxRetries:  cfg.Provider.MaxRetries,
		BackoffBase: time.Duration(cfg.Provider.BackoffBaseMs) * time.Millisecond,
	})
	embedder := retrieval.NewEmbedder(client, 0)
	vectorStore := retrieval.NewSQLiteStore(store.DB())
	retriever := retrieval.NewRetriever(embedder, vectorStore)
	profileMgr := profile.NewManager(store)
	tracker := usage.NewTracker(cfg.Provider.CostPer1KTokens, cfg.Engine.CleanupEvery, store)
	tooltips := tooltip.NewManager()
	eng := engine.New(engine.Options{
		Retriever: retriever,
		Client:    client,
		Composer:  composer.New(cfg.Engine.MaxContextChars, cfg.Provider.MaxTokens),
		Processor: answer.NewProcessor(cfg.Engine.ReadabilityWords),
		Tooltips:  tooltips,
		Profiles:  profileMgr,
		Tracker:   tracker,
		Store:     store,
		TopK:      cfg.Engine.TopK,
	})

	handler := api.NewHandler(api.Deps{
		Engine:   eng,
		Profiles: profileMgr,
		Tracker:  tracker,
		Tooltips: tooltips,
		Store:    store,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Start the indexing worker.
	worker := ingest.NewWorker(store, embedder, vectorStore, nil, 500*time.Millisecond)
	go worker.Run(ctx)

	// Start server in a goroutine.
	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "tutord listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error.
	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("tutord is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop tutord (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to tutord (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Model", "%s", cfg.Provider.Model)
	printStatus("Embed model", "%s", cfg.Provider.EmbedModel)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	// Show usage if the server is running.
	if resp != nil && resp.StatusCode == 200 {
		if c, err := newAPIClient(); err == nil {
			if statsResp, err := c.get("/stats"); err == nil {
				var stats struct {
					Usage struct {
						TotalQueries int64 `json:"total_queries"`
						TotalTokens  int64 `json:"total_tokens"`
					} `json:"usage"`
				}
				if decodeData(statsResp, &stats) == nil {
					printStatus("Queries", "%d", stats.Usage.TotalQueries)
					printStatus("Tokens", "%d", stats.Usage.TotalTokens)
				}
			}
		}
	}

	return nil
}
