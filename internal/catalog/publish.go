package catalog

import (
	"context"
	"fmt"
	"html"
	"strings"

	"meal-scheduler/internal/ghost"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/planner"
)

// PlanTitle is the Ghost post title used for a published week.
func PlanTitle(weekStart string) string {
	return fmt.Sprintf("Meal plan: week of %s", weekStart)
}

// FormatPlanHTML renders a plan as a simple HTML fragment for Ghost.
func FormatPlanHTML(plan *planner.Plan) string {
	var sb strings.Builder
	sb.WriteString("<ul class=\"meal-plan\">\n")
	for _, s := range plan.Suggestions {
		sb.WriteString(fmt.Sprintf("<li><strong>%s</strong> %s",
			s.Date.Format("Mon Jan 2"), html.EscapeString(s.RecipeTitle)))
		if s.Reason != "" {
			sb.WriteString(fmt.Sprintf("<br><em>%s</em>", html.EscapeString(s.Reason)))
		}
		sb.WriteString("</li>\n")
	}
	sb.WriteString("</ul>\n")

	if len(plan.Unfilled) > 0 {
		sb.WriteString("<h3>Open days</h3>\n<ul class=\"unfilled\">\n")
		for _, u := range plan.Unfilled {
			sb.WriteString(fmt.Sprintf("<li><strong>%s</strong> %s</li>\n",
				u.Date.Format("Mon Jan 2"), html.EscapeString(u.Reason)))
		}
		sb.WriteString("</ul>\n")
	}
	return sb.String()
}

// Publisher posts weekly plans to Ghost as drafts.
type Publisher struct {
	ghost ghost.Client
}

// NewPublisher creates a Publisher.
func NewPublisher(client ghost.Client) *Publisher {
	return &Publisher{ghost: client}
}

// Publish creates a draft post for the plan and returns the post id.
func (p *Publisher) Publish(ctx context.Context, plan *planner.Plan) (string, error) {
	if plan == nil || len(plan.Suggestions) == 0 {
		return "", fmt.Errorf("nothing to publish")
	}
	title := PlanTitle(ledger.FormatDay(plan.WeekStart))
	post, err := p.ghost.CreatePost(ctx, title, FormatPlanHTML(plan), false)
	if err != nil {
		return "", fmt.Errorf("failed to publish plan: %w", err)
	}
	return post.ID, nil
}
