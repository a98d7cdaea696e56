package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/calendar"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/rules"
)

type cli struct {
	svc *app.Service
	cfg *config.Config
	out io.Writer
}

func (c *cli) suggest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	var week weekFlag
	fs.Var(&week, "week", "Week start (YYYY-MM-DD, default next Monday)")
	tag := fs.String("tag", "", "Only suggest recipes carrying this tag")
	asJSON := fs.Bool("json", false, "Print the plan as JSON")
	fs.Parse(args)

	plan, err := c.svc.PlanWeek(ctx, week.value(), *tag)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(plan)
	}

	fmt.Fprintf(c.out, "=== SUGGESTIONS FOR WEEK OF %s ===\n", ledger.FormatDay(plan.WeekStart))
	for _, s := range plan.Suggestions {
		fmt.Fprintf(c.out, "%-10s: %s (#%d)\n", s.Date.Format("Mon 02 Jan"), s.RecipeTitle, s.RecipeID)
		fmt.Fprintf(c.out, "            %s\n", s.Reason)
	}
	for _, u := range plan.Unfilled {
		fmt.Fprintf(c.out, "%-10s: -- %s\n", u.Date.Format("Mon 02 Jan"), u.Reason)
	}
	fmt.Fprintln(c.out, "\nRun 'meal-scheduler accept' to keep these suggestions.")
	return nil
}

func (c *cli) accept(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("accept", flag.ExitOnError)
	var week weekFlag
	fs.Var(&week, "week", "Week start (YYYY-MM-DD, default next Monday)")
	fs.Parse(args)

	entries, err := c.svc.Accept(ctx, week.value())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Accepted %d meals.\n", len(entries))
	return nil
}

func (c *cli) week(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("week", flag.ExitOnError)
	var week weekFlag
	fs.Var(&week, "week", "Week start (YYYY-MM-DD, default next Monday)")
	fs.Parse(args)

	view, err := c.svc.Week(ctx, week.value())
	if err != nil {
		return err
	}
	return printJSON(view)
}

func (c *cli) status(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var week weekFlag
	fs.Var(&week, "week", "Week start (YYYY-MM-DD, default next Monday)")
	fs.Parse(args)

	statuses, err := c.svc.WeekRuleStatus(ctx, week.value())
	if err != nil {
		return err
	}
	printStatuses(c.out, statuses)
	return nil
}

func (c *cli) evaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	ruleID := fs.Int64("rule", 0, "Rule id (default: every active rule)")
	recipeID := fs.Int64("recipe", 0, "Recipe id")
	var date weekFlag
	fs.Var(&date, "date", "Date (YYYY-MM-DD)")
	fs.Parse(args)

	if *recipeID == 0 || date.t.IsZero() {
		return fmt.Errorf("-recipe and -date are required")
	}
	if *ruleID != 0 {
		st, err := c.svc.Evaluate(ctx, *ruleID, *recipeID, date.t)
		if err != nil {
			return err
		}
		printStatuses(c.out, []rules.RuleStatus{st})
		return nil
	}
	statuses, err := c.svc.EvaluateAll(ctx, *recipeID, date.t)
	if err != nil {
		return err
	}
	printStatuses(c.out, statuses)
	return nil
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	recipeID := fs.Int64("recipe", 0, "Recipe id")
	var date weekFlag
	fs.Var(&date, "date", "Date (YYYY-MM-DD)")
	meal := fs.String("meal", c.cfg.DefaultMealType, "Meal type")
	notes := fs.String("notes", "", "Notes")
	fs.Parse(args)

	if *recipeID == 0 || date.t.IsZero() {
		return fmt.Errorf("-recipe and -date are required")
	}
	e, statuses, err := c.svc.AddEntry(ctx, ledger.Entry{Date: date.t, MealType: *meal, RecipeID: *recipeID, Notes: *notes})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added meal #%d on %s.\n", e.ID, ledger.FormatDay(e.Date))
	printStatuses(c.out, statuses)
	return nil
}

func (c *cli) mark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mark", flag.ExitOnError)
	id := fs.Int64("entry", 0, "Meal entry id")
	status := fs.String("status", string(ledger.StatusCooked), "planned, cooked or skipped")
	fs.Parse(args)

	st, err := parseStatus(*status)
	if err != nil {
		return err
	}
	if err := c.svc.MarkEntry(ctx, *id, st); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Meal #%d marked %s.\n", *id, st)
	return nil
}

func (c *cli) rules(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		rs, err := c.svc.Rules(ctx)
		if err != nil {
			return err
		}
		for _, r := range rs {
			state := "on"
			if !r.Active {
				state = "off"
			}
			fmt.Fprintf(c.out, "%3d  %-3s  %-30s %s\n", r.ID, state, r.Name, r.Summary())
		}
		return nil
	}

	switch args[0] {
	case "import":
		if len(args) != 2 {
			return fmt.Errorf("usage: rules import <file.yaml>")
		}
		f, err := os.Open(args[1])
		if err != nil {
			return fmt.Errorf("failed to open rules file: %w", err)
		}
		defer f.Close()
		imported, err := c.svc.ImportRules(ctx, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Imported %d rules.\n", len(imported))
		return nil
	case "enable", "disable":
		if len(args) != 2 {
			return fmt.Errorf("usage: rules %s <id>", args[0])
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid rule id %q", args[1])
		}
		return c.svc.SetRuleActive(ctx, id, args[0] == "enable")
	default:
		return fmt.Errorf("unknown rules command %q", args[0])
	}
}

func (c *cli) event(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("event", flag.ExitOnError)
	var date weekFlag
	fs.Var(&date, "date", "Date (YYYY-MM-DD)")
	start := fs.String("start", "", "Start time HH:MM (empty for all day)")
	end := fs.String("end", "", "End time HH:MM")
	summary := fs.String("summary", "", "What is happening")
	conflict := fs.Bool("conflict", false, "Mark as a dinner conflict regardless of time")
	fs.Parse(args)

	if date.t.IsZero() || *summary == "" {
		return fmt.Errorf("-date and -summary are required")
	}
	force := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "conflict" {
			force = true
		}
	})
	e, err := c.svc.AddEvent(ctx, calendar.Event{
		Date:           date.t,
		Start:          *start,
		End:            *end,
		Summary:        *summary,
		DinnerConflict: *conflict,
	}, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Added event #%d (dinner conflict: %t).\n", e.ID, e.DinnerConflict)
	return nil
}

func (c *cli) publish(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	var week weekFlag
	fs.Var(&week, "week", "Week start (YYYY-MM-DD, default next Monday)")
	fs.Parse(args)

	id, err := c.svc.Publish(ctx, week.value())
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Draft post %s created.\n", id)
	return nil
}

func (c *cli) metrics(ctx context.Context, store *metrics.Store, args []string) error {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	days := fs.Int("days", 7, "Days to summarise")
	fs.Parse(args)

	summary, err := store.GetDailySummary(ctx, *days)
	if err != nil {
		return err
	}
	for _, d := range summary {
		fmt.Fprintf(c.out, "%s  runs=%d filled=%d unfilled=%d avg=%.0fms\n", d.Date, d.Runs, d.Filled, d.Unfilled, d.AvgLatencyMS)
	}
	h := metrics.GetSysHealth(c.cfg.DatabasePath, c.cfg.SnapshotDir)
	fmt.Fprintf(c.out, "database=%s snapshots=%s\n", h.DatabaseSize, h.SnapshotSize)
	return nil
}

func printStatuses(w io.Writer, statuses []rules.RuleStatus) {
	for _, st := range statuses {
		fmt.Fprintf(w, "[%-8s] %s: %s\n", st.Status, st.RuleName, st.Message)
	}
}
