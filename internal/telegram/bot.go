package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"meal-scheduler/internal/app"
	"meal-scheduler/internal/config"
	"meal-scheduler/internal/ledger"
	"meal-scheduler/internal/logger"
	"meal-scheduler/internal/metrics"
	"meal-scheduler/internal/storage"
)

const helpText = "🍽 *Meal Scheduler*\n\n" +
	"/suggest `[tag]` plan next week\n" +
	"/accept keep the last suggestions\n" +
	"/week `[YYYY-MM-DD]` meals and open nights\n" +
	"/status rule status for this week\n" +
	"/rules list dietary rules\n" +
	"/check `<recipe_id> <YYYY-MM-DD>` test a recipe on a date\n" +
	"/cooked `<entry_id>` or /skipped `<entry_id>` update a meal"

// Bot wraps the Telegram API and the scheduling service.
type Bot struct {
	api          *tgbotapi.BotAPI
	svc          *app.Service
	metricsStore *metrics.Store
	cfg          *config.Config
	log          *logger.Logger
	now          func() time.Time
}

// reply is what a command produces before it is sent.
type reply struct {
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, svc *app.Service, metricsStore *metrics.Store, log *logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	log.Info("Authorized on account", "username", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Info("Webhook set", "description", resp.Description)

	return &Bot{
		api:          api,
		svc:          svc,
		metricsStore: metricsStore,
		cfg:          cfg,
		log:          log,
		now:          time.Now,
	}, nil
}

// RegisterHandlers registers the webhook and health handlers on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.log.Warn("Error parsing update", "error", err)
		return
	}

	if update.CallbackQuery != nil {
		if !b.allowed(update.CallbackQuery.From.ID) {
			return
		}
		go b.processCallback(update.CallbackQuery)
		return
	}

	if update.Message == nil || update.Message.From == nil {
		return
	}
	if !b.allowed(update.Message.From.ID) {
		b.log.Warn("Unauthorized access attempt", "user_id", update.Message.From.ID, "username", update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) allowed(userID int64) bool {
	if userID == b.cfg.AdminTelegramID && userID != 0 {
		return true
	}
	for _, id := range b.cfg.TelegramAllowedUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	out := b.handleCommand(ctx, msg.From.ID, msg.Text)
	b.send(msg.Chat.ID, out)
}

func (b *Bot) processCallback(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Answer callback to remove spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warn("Failed to answer callback", "error", err)
	}
	if query.Message == nil {
		return
	}

	out := b.handleCallback(ctx, query.Data)
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, out.text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = out.keyboard
	if _, err := b.api.Send(edit); err != nil {
		b.log.Error("Failed to edit message", "chat_id", query.Message.Chat.ID, "error", err)
	}
}

func (b *Bot) send(chatID int64, out reply) {
	msg := tgbotapi.NewMessage(chatID, out.text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if out.keyboard != nil {
		msg.ReplyMarkup = *out.keyboard
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("Failed to send message", "chat_id", chatID, "error", err)
	}
}

// handleCommand routes a text message to its command.
func (b *Bot) handleCommand(ctx context.Context, userID int64, text string) reply {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return reply{text: helpText}
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	switch cmd {
	case "/suggest":
		return b.suggest(ctx, strings.Join(args, " "))
	case "/accept":
		return b.accept(ctx, ledger.NextMonday(b.now()))
	case "/week":
		ws := ledger.WeekStart(b.now())
		if len(args) > 0 {
			d, err := ledger.ParseDay(args[0])
			if err != nil {
				return reply{text: "❌ Dates look like 2026-03-02."}
			}
			ws = d
		}
		return b.week(ctx, ws)
	case "/status":
		return b.status(ctx, ledger.WeekStart(b.now()))
	case "/rules":
		return b.rules(ctx)
	case "/check":
		return b.check(ctx, args)
	case "/cooked":
		return b.mark(ctx, args, ledger.StatusCooked)
	case "/skipped":
		return b.mark(ctx, args, ledger.StatusSkipped)
	case "/metrics":
		if userID != b.cfg.AdminTelegramID {
			return reply{text: "⛔ *Access Denied*: Admin only."}
		}
		return b.metrics(ctx)
	default:
		return reply{text: helpText}
	}
}

// handleCallback runs an inline keyboard action. Data is "action|week[|tag]".
func (b *Bot) handleCallback(ctx context.Context, data string) reply {
	parts := strings.SplitN(data, "|", 3)
	if len(parts) < 2 {
		return reply{text: "❌ Unknown action."}
	}
	ws, err := ledger.ParseDay(parts[1])
	if err != nil {
		return reply{text: "❌ Unknown action."}
	}
	tag := ""
	if len(parts) == 3 {
		tag = parts[2]
	}

	switch parts[0] {
	case "accept":
		return b.accept(ctx, ws)
	case "redo":
		return b.plan(ctx, ws, tag)
	case "next":
		return b.plan(ctx, ledger.AddDays(ws, 7), tag)
	default:
		return reply{text: "❌ Unknown action."}
	}
}

func (b *Bot) suggest(ctx context.Context, tag string) reply {
	ws := ledger.NextMonday(b.now())
	if _, err := b.svc.LastPlan(ws); err == nil {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("🔄 Redo Next Week", callbackData("redo", ws, tag)),
				tgbotapi.NewInlineKeyboardButtonData("⏭️ Plan Following Week", callbackData("next", ws, tag)),
			),
		)
		text := fmt.Sprintf("🗓️ Suggestions already exist for the week of *%s*.\nWhat would you like to do?", ledger.FormatDay(ws))
		return reply{text: text, keyboard: &keyboard}
	}
	return b.plan(ctx, ws, tag)
}

func (b *Bot) plan(ctx context.Context, ws time.Time, tag string) reply {
	plan, err := b.svc.PlanWeek(ctx, ws, tag)
	if err != nil {
		return b.failure("planning the week", err)
	}
	out := reply{text: formatPlan(plan)}
	if len(plan.Suggestions) > 0 {
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Accept", callbackData("accept", plan.WeekStart, "")),
				tgbotapi.NewInlineKeyboardButtonData("🔄 Redo", callbackData("redo", plan.WeekStart, tag)),
			),
		)
		out.keyboard = &keyboard
	}
	return out
}

func (b *Bot) accept(ctx context.Context, ws time.Time) reply {
	entries, err := b.svc.Accept(ctx, ws)
	switch {
	case errors.Is(err, app.ErrStaleSnapshot):
		return reply{text: "⚠️ The plan changed since these suggestions were made. Run /suggest again."}
	case errors.Is(err, storage.ErrNoSnapshot):
		return reply{text: "Nothing to accept. Run /suggest first."}
	case err != nil:
		return b.failure("accepting the plan", err)
	}
	return reply{text: fmt.Sprintf("✅ Added %d meals to the week of *%s*.", len(entries), ledger.FormatDay(ws))}
}

func (b *Bot) week(ctx context.Context, ws time.Time) reply {
	view, err := b.svc.Week(ctx, ws)
	if err != nil {
		return b.failure("loading the week", err)
	}
	return reply{text: formatWeek(view)}
}

func (b *Bot) status(ctx context.Context, ws time.Time) reply {
	statuses, err := b.svc.WeekRuleStatus(ctx, ws)
	if err != nil {
		return b.failure("checking rules", err)
	}
	return reply{text: fmt.Sprintf("📋 *Rules for the week of %s*\n\n%s", ledger.FormatDay(ledger.WeekStart(ws)), formatStatuses(statuses))}
}

func (b *Bot) rules(ctx context.Context) reply {
	rs, err := b.svc.Rules(ctx)
	if err != nil {
		return b.failure("listing rules", err)
	}
	return reply{text: formatRules(rs)}
}

func (b *Bot) check(ctx context.Context, args []string) reply {
	usage := reply{text: "Usage: /check `<recipe_id> <YYYY-MM-DD>`"}
	if len(args) != 2 {
		return usage
	}
	recipeID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return usage
	}
	date, err := ledger.ParseDay(args[1])
	if err != nil {
		return usage
	}
	statuses, err := b.svc.EvaluateAll(ctx, recipeID, date)
	if errors.Is(err, app.ErrRecipeNotFound) {
		return reply{text: fmt.Sprintf("❌ No recipe with id %d.", recipeID)}
	}
	if err != nil {
		return b.failure("evaluating rules", err)
	}
	return reply{text: fmt.Sprintf("🔎 *Recipe %d on %s*\n\n%s", recipeID, args[1], formatStatuses(statuses))}
}

func (b *Bot) mark(ctx context.Context, args []string, status ledger.Status) reply {
	if len(args) != 1 {
		return reply{text: fmt.Sprintf("Usage: /%s `<entry_id>`", status)}
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return reply{text: fmt.Sprintf("Usage: /%s `<entry_id>`", status)}
	}
	if err := b.svc.MarkEntry(ctx, id, status); err != nil {
		return b.failure("updating the meal", err)
	}
	return reply{text: fmt.Sprintf("👍 Meal %d marked %s.", id, status)}
}

func (b *Bot) metrics(ctx context.Context) reply {
	summary, err := b.metricsStore.GetDailySummary(ctx, 7)
	if err != nil {
		return b.failure("fetching metrics", err)
	}
	health := metrics.GetSysHealth(b.cfg.DatabasePath, b.cfg.SnapshotDir)
	return reply{text: formatMetrics(summary, health)}
}

func (b *Bot) failure(action string, err error) reply {
	b.log.Error("Command failed", "action", action, "error", err)
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return reply{text: fmt.Sprintf("❌ *Error %s:*\n```\n%v\n```", action, safeErr)}
}

// callbackData encodes an inline keyboard action. Telegram limits callback
// data to 64 bytes, so long tags are cut.
func callbackData(action string, ws time.Time, tag string) string {
	data := action + "|" + ledger.FormatDay(ws)
	if tag != "" {
		if len(tag) > 32 {
			tag = tag[:32]
		}
		data += "|" + tag
	}
	return data
}
