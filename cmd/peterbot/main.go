package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/peterbot/peterbot/internal/config"
	"github.com/peterbot/peterbot/internal/core"
	"github.com/peterbot/peterbot/internal/dispatch"
	"github.com/peterbot/peterbot/internal/llm"
	"github.com/peterbot/peterbot/internal/memory"
	"github.com/peterbot/peterbot/internal/store"
)

// promptExecutor runs a job's input straight through the text generator.
// Richer execution engines (sandboxed tools, agent loops) plug in behind
// core.Executor without touching the dispatch loops.
type promptExecutor struct {
	gen core.TextGenerator
}

func (e *promptExecutor) Execute(ctx context.Context, job core.Job) (string, error) {
	return e.gen.GenerateText(ctx, "You are a personal assistant completing a deferred task. Respond with the task's result.", job.Input)
}

// logNotifier stands in for a messaging-channel client: it writes results to
// the process log. Channel adapters implement core.Notifier.
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, job core.Job) error {
	output := ""
	if job.Output != nil {
		output = *job.Output
	}
	log.Printf("[NOTIFY] chat %s job %s: %s", job.ChatID, job.ID, output)
	return nil
}

func main() {
	configDir := flag.String("config", "", "config directory (default: PETERBOT_CONFIG_DIR or ~/.config/peterbot)")
	flag.Parse()

	if err := run(*configDir); err != nil {
		fmt.Fprintln(os.Stderr, "peterbot:", err)
		os.Exit(1)
	}
}

func run(configDir string) error {
	cfg, err := config.New(configDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	client := llm.NewClient(cfg.OpenRouterAPIKey, cfg.Model)
	compactor := memory.NewCompactor(db, client)
	runner := dispatch.NewRunner(db, &promptExecutor{gen: client}, compactor, cfg.DefaultChatID)
	delivery := dispatch.NewDelivery(db, logNotifier{})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(ctx) })
	g.Go(func() error { return delivery.Run(ctx) })

	log.Println("[MAIN] peterbot running; ctrl-c to stop")
	return g.Wait()
}
