// Command flowrun serves the workflow engine as an MCP server on stdio.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rendis/flowrun/internal/app"
	"github.com/rendis/flowrun/internal/engine"
	"github.com/rendis/flowrun/internal/llm"
	"github.com/rendis/flowrun/internal/logging"
	"github.com/rendis/flowrun/internal/nodes"
	"github.com/rendis/flowrun/internal/streaming"
	"github.com/rendis/flowrun/internal/validation"
	"github.com/rendis/flowrun/pkg/mcp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "version", "--version", "-v":
			printVersion()
			return
		case "install":
			runInstall(os.Args[2:])
			return
		case "serve":
		default:
			fmt.Fprintf(os.Stderr, "Usage: flowrun [serve|install|version]\n")
			os.Exit(2)
		}
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := streaming.NewMemoryHub()
	if err := logEvents(ctx, hub, logger); err != nil {
		return err
	}

	client := llm.NewBreakerClient(
		llm.NewOpenAIClient(llm.WithTimeout(time.Duration(cfg.LLMTimeout))),
		cfg.breaker(),
	)
	executor, err := nodes.NewExecutor(client)
	if err != nil {
		return fmt.Errorf("register executors: %w", err)
	}
	validator, err := validation.NewWorkflowValidator(executor)
	if err != nil {
		return fmt.Errorf("build validator: %w", err)
	}

	pool := engine.NewWorkerPool(cfg.PoolSize)
	eng := engine.New(executor,
		engine.WithLogger(logger),
		engine.WithEventHub(hub),
		engine.WithWorkerPool(pool),
	)
	application := app.New(eng, validator,
		app.WithLogger(logger),
		app.WithTaskTTL(time.Duration(cfg.TaskTTL)),
	)

	sweeper, err := app.NewSweeper(application, cfg.SweepSchedule, logger)
	if err != nil {
		return err
	}
	if err := sweeper.Start(ctx); err != nil {
		return err
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Tasks:   application,
		Hub:     hub,
		Logger:  logger,
		Version: version,
	})

	logger.Info("flowrun serving on stdio",
		slog.String("version", version),
		slog.Int("pool_size", cfg.PoolSize),
	)
	serveErr := srv.Serve(ctx)
	if errors.Is(serveErr, context.Canceled) {
		serveErr = nil
	}

	_ = sweeper.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tasks still running at shutdown", slog.String("error", err.Error()))
	}
	pool.Shutdown()

	logger.Info("flowrun stopped")
	return serveErr
}

// newLogger builds the JSON logger on w. stdout carries the MCP transport,
// so logs never go there.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(handler)), nil
}

// logEvents logs every lifecycle event at Debug until ctx is done.
func logEvents(ctx context.Context, hub streaming.EventHub, logger *slog.Logger) error {
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return nil
	}
	events, _, err := hub.Subscribe(ctx, streaming.EventFilter{})
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	go func() {
		for ev := range events {
			evCtx := logging.WithTaskID(ctx, ev.TaskID)
			if ev.NodeID != "" {
				evCtx = logging.WithNodeID(evCtx, ev.NodeID)
			}
			logger.DebugContext(evCtx, "event", slog.String("event_type", ev.EventType), slog.Any("payload", ev.Payload))
		}
	}()
	return nil
}
