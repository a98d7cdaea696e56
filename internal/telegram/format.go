package telegram

import (
	"fmt"
	"strings"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/rules"
)

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}

func statusIcon(s rules.Status) string {
	switch s {
	case rules.StatusViolated:
		return "🔴"
	case rules.StatusWarning:
		return "🟡"
	}
	return "🟢"
}

func formatPlan(plan *planner.Plan) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📅 *Suggestions for the week of %s*\n\n", ledger.FormatDay(plan.WeekStart)))

	if len(plan.Suggestions) == 0 && len(plan.Unfilled) == 0 {
		sb.WriteString("_No open nights this week._\n")
	}
	for _, s := range plan.Suggestions {
		sb.WriteString(fmt.Sprintf("*%s*: %s\n", s.Date.Format("Mon 02 Jan"), escape(s.RecipeTitle)))
		if s.Reason != "" {
			sb.WriteString(fmt.Sprintf("_%s_\n", escape(s.Reason)))
		}
		sb.WriteString("\n")
	}
	for _, u := range plan.Unfilled {
		sb.WriteString(fmt.Sprintf("*%s*: ❔ %s\n\n", u.Date.Format("Mon 02 Jan"), escape(u.Reason)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatStatuses(statuses []rules.RuleStatus) string {
	if len(statuses) == 0 {
		return "_No active rules._"
	}
	var sb strings.Builder
	for _, st := range statuses {
		sb.WriteString(fmt.Sprintf("%s *%s*: %s\n", statusIcon(st.Status), escape(st.RuleName), escape(st.Message)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatRules(rs []rules.Rule) string {
	if len(rs) == 0 {
		return "_No rules yet._"
	}
	var sb strings.Builder
	sb.WriteString("📏 *Dietary Rules*\n\n")
	for _, r := range rs {
		state := ""
		if !r.Active {
			state = " _(off)_"
		}
		sb.WriteString(fmt.Sprintf("%d. *%s*: %s%s\n", r.ID, escape(r.Name), escape(r.Summary()), state))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatWeek(view *app.WeekView) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 *Week of %s*\n\n", ledger.FormatDay(view.WeekStart)))
	for _, d := range view.Days {
		sb.WriteString(fmt.Sprintf("*%s*", d.Date.Format("Mon 02")))
		if !d.Available {
			sb.WriteString(" 🚫")
		}
		sb.WriteString("\n")
		for _, m := range d.Meals {
			mark := "•"
			switch m.Status {
			case ledger.StatusCooked:
				mark = "✔"
			case ledger.StatusSkipped:
				mark = "✖"
			}
			sb.WriteString(fmt.Sprintf("  %s %s (#%d)\n", mark, escape(m.RecipeTitle), m.ID))
		}
		for _, e := range d.Events {
			sb.WriteString(fmt.Sprintf("  📌 %s\n", escape(e.Summary)))
		}
	}
	if len(view.Rules) > 0 {
		sb.WriteString("\n")
		sb.WriteString(formatStatuses(view.Rules))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatMetrics(summary []metrics.DailySummary, health metrics.SysHealth) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent Scheduler Runs*\n")
	if len(summary) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range summary {
		sb.WriteString(fmt.Sprintf("• *%s*: %d runs, %d filled, %d unfilled, %.0fms avg\n",
			d.Date, d.Runs, d.Filled, d.Unfilled, d.AvgLatencyMS))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Database: %s\n", health.DatabaseSize))
	sb.WriteString(fmt.Sprintf("• Snapshots: %s\n", health.SnapshotSize))
	return sb.String()
}
