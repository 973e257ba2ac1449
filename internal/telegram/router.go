package telegram

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/scheduler"
	"github.com/AndreyMartjushev/takingPills/internal/tracker"
)

// Pending state keys used in conversational flows.
const (
	pendingAdd  = "await_add_text"
	pendingTZ   = "await_tz_text"
	pendingLead = "await_lead_text"
	pendingEdit = "await_edit_text"
)

// pending is a chat's conversational step. MedID is set for pendingEdit.
type pending struct {
	Step  string
	MedID int64
}

// botAPI is the part of *tgbotapi.BotAPI the router uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Summarizer sends a user's summary for today on demand.
type Summarizer interface {
	SendNow(ctx context.Context, u *domain.User) (bool, error)
}

// Router wires Telegram updates to handlers and holds minimal in-memory state.
type Router struct {
	bot         botAPI
	log         *zap.Logger
	svc         *tracker.Service
	zones       *domain.Zones
	metrics     *metrics.Metrics
	summary     Summarizer
	adminChatID int64

	state map[int64]pending // chatID -> pending state
	mu    sync.RWMutex
}

// NewRouter creates a new Telegram router.
func NewRouter(bot botAPI, log *zap.Logger, svc *tracker.Service, zones *domain.Zones, m *metrics.Metrics, adminChatID int64) *Router {
	return &Router{
		bot:         bot,
		log:         log,
		svc:         svc,
		zones:       zones,
		metrics:     m,
		adminChatID: adminChatID,
		state:       make(map[int64]pending),
	}
}

// SetSummarizer installs the /daily backend.
func (r *Router) SetSummarizer(s Summarizer) { r.summary = s }

// setPending sets a pending state for a chat (non-persistent, in-memory).
func (r *Router) setPending(chatID int64, step string) {
	r.setPendingFor(chatID, step, 0)
}

// setPendingFor sets a pending step that refers to a medication.
func (r *Router) setPendingFor(chatID int64, step string, medID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state[chatID] = pending{Step: step, MedID: medID}
}

// getPending returns current pending state for a chat.
func (r *Router) getPending(chatID int64) pending {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state[chatID]
}

// clearPending clears a pending state for a chat.
func (r *Router) clearPending(chatID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.state, chatID)
}

// splitCommand returns the lower-cased command without a @bot suffix and its arguments.
func splitCommand(text string) (cmd, args string) {
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, args, _ = strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

// HandleUpdate routes a single update to appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	// Text messages
	if upd.Message != nil && upd.Message.Chat != nil {
		msg := upd.Message
		chatID := msg.Chat.ID
		u, err := r.ensureUser(ctx, chatID, msg.From)
		if err != nil {
			r.log.Error("ensureUser failed", zap.Int64("chat_id", chatID), zap.Error(err))
			r.sendText(chatID, messages.For("").Failed)
			return
		}

		cmd, args := splitCommand(strings.TrimSpace(msg.Text))
		if cmd != "" {
			r.clearPending(chatID)
		}
		switch cmd {
		case "/start":
			r.handleStart(ctx, u)
		case "/help":
			r.sendText(chatID, messages.For(u.Language).Help)
		case "/add":
			r.handleAdd(ctx, u, args)
		case "/list":
			r.handleList(ctx, u)
		case "/meds":
			r.handleMeds(ctx, u)
		case "/tz", "/timezone":
			r.handleTZ(ctx, u, args)
		case "/remind":
			r.handleRemind(ctx, u, args)
		case "/lang", "/language":
			r.handleLang(ctx, u, args)
		case "/daily":
			r.handleDaily(ctx, u)
		case "/stats":
			r.handleStats(u)
		case "":
			// Free-form text used in multi-step flows (add / tz / lead)
			r.handleFreeForm(ctx, u, args)
		default:
			r.sendText(chatID, messages.For(u.Language).Unknown)
		}
		return
	}

	// Callback queries (inline buttons)
	if upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil && upd.CallbackQuery.Message.Chat != nil {
		cb := upd.CallbackQuery
		chatID := cb.Message.Chat.ID
		_ = r.answerCallback(cb.ID, "")
		u, err := r.ensureUser(ctx, chatID, cb.From)
		if err != nil {
			r.log.Error("ensureUser failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		r.handleCallback(ctx, u, cb.Message.MessageID, cb.Data)
	}
}

// Deliver sends a notification, with dose actions when it refers to an intake.
// This makes Router satisfy scheduler.Notifier.
func (r *Router) Deliver(_ context.Context, externalID int64, m scheduler.Message) error {
	msg := tgbotapi.NewMessage(externalID, m.Text)
	if m.IntakeID != 0 {
		msg.ReplyMarkup = intakeActionsKeyboard(messages.For(m.Lang), m.IntakeID)
	}
	_, err := r.bot.Send(msg)
	return err
}

// Alert forwards an operator alert to the admin chat, if one is configured.
func (r *Router) Alert(_ context.Context, text string) {
	if r.adminChatID == 0 {
		r.log.Warn("alert dropped, no admin chat configured", zap.String("alert", text))
		return
	}
	if _, err := r.bot.Send(tgbotapi.NewMessage(r.adminChatID, "[ALERT] "+text)); err != nil {
		r.log.Error("alert not delivered", zap.String("alert", text), zap.Error(err))
	}
}
