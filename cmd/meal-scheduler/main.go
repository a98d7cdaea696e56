package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/catalog"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/database"
	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/recipe"
	"meal-scheduler/internal/rules"
	"meal-scheduler/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		lg.Fatal("Failed to initialize database", "error", err)
	}
	defer db.Close()

	snapshots, err := storage.NewSnapshotStore(cfg.SnapshotDir)
	if err != nil {
		lg.Fatal("Failed to initialize snapshot store", "error", err)
	}

	recipeRepo := recipe.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)

	var ghostClient ghost.Client
	var publisher *catalog.Publisher
	if cfg.RequireGhost() == nil {
		ghostClient = ghost.NewClient(cfg)
		publisher = catalog.NewPublisher(ghostClient)
	}

	svc := app.NewService(
		recipeRepo,
		rules.NewRepository(db.SQL),
		ledger.NewRepository(db.SQL),
		calendar.NewRepository(db.SQL),
		snapshots,
		metricsStore,
		planner.NewScheduler(planner.WeightsFromConfig(cfg.Scoring)),
		publisher,
		lg,
	)

	ctx := context.Background()
	c := &cli{svc: svc, cfg: cfg, out: os.Stdout}
	args := os.Args[2:]

	switch os.Args[1] {
	case "suggest":
		err = c.suggest(ctx, args)
	case "accept":
		err = c.accept(ctx, args)
	case "week":
		err = c.week(ctx, args)
	case "status":
		err = c.status(ctx, args)
	case "evaluate":
		err = c.evaluate(ctx, args)
	case "add":
		err = c.add(ctx, args)
	case "mark":
		err = c.mark(ctx, args)
	case "rules":
		err = c.rules(ctx, args)
	case "event":
		err = c.event(ctx, args)
	case "sync-catalog":
		if ghostClient == nil {
			lg.Fatal("Ghost is not configured", "error", cfg.RequireGhost())
		}
		syncer := catalog.NewSyncer(ghostClient, recipeRepo, cfg.ProteinTagSlug, lg)
		var res catalog.SyncResult
		if res, err = syncer.Sync(ctx); err == nil {
			fmt.Printf("Imported %d recipes, archived %d.\n", res.Imported, res.Archived)
		}
	case "publish":
		err = c.publish(ctx, args)
	case "metrics":
		err = c.metrics(ctx, metricsStore, args)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(args)

		var affected int64
		if affected, err = metricsStore.Cleanup(ctx, *days); err == nil {
			fmt.Printf("Successfully removed %d old metric records.\n", affected)
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		lg.Fatal("Command failed", "command", os.Args[1], "error", err)
	}
}

func printUsage() {
	fmt.Println("Usage: meal-scheduler <command> [arguments]")
	fmt.Println("\nCommands:")
	fmt.Println("  suggest            Suggest recipes for the open nights of a week")
	fmt.Println("  accept             Save the last suggestions of a week as planned meals")
	fmt.Println("  week               Show a week's meals, events and rule status")
	fmt.Println("  status             Show the rule status of a week")
	fmt.Println("  evaluate           Check a recipe on a date against the rules")
	fmt.Println("  add                Plan a meal by hand")
	fmt.Println("  mark               Mark a meal cooked, skipped or planned")
	fmt.Println("  rules              List, import, enable or disable rules")
	fmt.Println("  event              Add a calendar event")
	fmt.Println("  sync-catalog       Import recipe facets from Ghost")
	fmt.Println("  publish            Publish a week's meals to Ghost as a draft")
	fmt.Println("  metrics            Show scheduler run metrics and system health")
	fmt.Println("  metrics-cleanup    Remove old metric records")
}

// weekFlag parses a YYYY-MM-DD day, defaulting to next Monday.
type weekFlag struct {
	t time.Time
}

func (w *weekFlag) String() string {
	if w.t.IsZero() {
		return ""
	}
	return ledger.FormatDay(w.t)
}

func (w *weekFlag) Set(s string) error {
	t, err := ledger.ParseDay(s)
	if err != nil {
		return fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	w.t = t
	return nil
}

func (w *weekFlag) value() time.Time {
	if w.t.IsZero() {
		return ledger.NextMonday(time.Now())
	}
	return w.t
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func parseStatus(s string) (ledger.Status, error) {
	return ledger.ParseStatus(strings.ToLower(s))
}
