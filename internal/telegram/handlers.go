package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
)

const untilLayout = "02.01.2006 15:04"

// ensureUser makes sure a user row exists; if not, creates it with defaults.
func (r *Router) ensureUser(ctx context.Context, chatID int64, from *tgbotapi.User) (*domain.User, error) {
	var name, lang string
	if from != nil {
		name, lang = from.FirstName, from.LanguageCode
	}
	return r.svc.EnsureUser(ctx, chatID, name, lang)
}

// --- Generic helpers ---

func (r *Router) sendText(chatID int64, text string) {
	_, _ = r.bot.Send(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) sendWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, _ = r.bot.Send(msg)
}

func (r *Router) answerCallback(id, text string) error {
	_, err := r.bot.Request(tgbotapi.NewCallback(id, text))
	return err
}

// replyError maps domain errors to a user-facing text.
func (r *Router) replyError(u *domain.User, op string, err error) {
	c := messages.For(u.Language)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.sendText(u.ExternalID, c.NotFound)
	case errors.Is(err, domain.ErrAlreadyTaken):
		r.sendText(u.ExternalID, c.AlreadyTaken)
	case errors.Is(err, domain.ErrConflict):
		r.sendText(u.ExternalID, c.Conflict)
	default:
		r.log.Error(op+" failed", zap.Int64("user_id", u.ID), zap.Error(err))
		r.sendText(u.ExternalID, c.Failed)
	}
}

// --- Core commands ---

func (r *Router) handleStart(ctx context.Context, u *domain.User) {
	c := messages.For(u.Language)
	r.sendWithMarkup(u.ExternalID, c.Start+"\n\n"+c.Help, mainMenuKeyboard())
}

// parseMedication splits "Name with spaces 08:00,20:00" into a name and a
// schedule. The last word is the dose list.
func parseMedication(args string) (string, domain.Schedule, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", nil, fmt.Errorf("%w: expected a name and times", domain.ErrInvalidSchedule)
	}
	s, err := parseDoses(fields[len(fields)-1])
	if err != nil {
		return "", nil, err
	}
	return strings.Join(fields[:len(fields)-1], " "), s, nil
}

// parseDoses reads a comma-separated list of clock times or period keys.
func parseDoses(list string) (domain.Schedule, error) {
	items := strings.Split(strings.ToLower(strings.TrimSpace(list)), ",")
	if _, ok := domain.PeriodByKey(items[0]); ok {
		return domain.NewPeriodSchedule(items)
	}
	times := make([]domain.ClockTime, 0, len(items))
	for _, it := range items {
		t, err := domain.NormalizeTimeInput(it)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return domain.NewExactSchedule(times)
}

func (r *Router) handleAdd(ctx context.Context, u *domain.User, args string) {
	if args == "" {
		r.setPending(u.ExternalID, pendingAdd)
		r.sendText(u.ExternalID, messages.For(u.Language).AddUsage)
		return
	}
	r.addMedication(ctx, u, args)
}

func (r *Router) addMedication(ctx context.Context, u *domain.User, args string) {
	c := messages.For(u.Language)
	name, sched, err := parseMedication(args)
	if err != nil {
		r.sendText(u.ExternalID, c.AddUsage)
		return
	}
	m, err := r.svc.AddMedication(ctx, u.ID, name, sched)
	if errors.Is(err, domain.ErrInvalidSchedule) {
		r.sendText(u.ExternalID, c.AddUsage)
		return
	}
	if err != nil {
		r.replyError(u, "add medication", err)
		return
	}
	r.sendWithMarkup(u.ExternalID, fmt.Sprintf(c.Added, m.Name, domain.FormatSchedule(m.Schedule)), mainMenuKeyboard())
}

func (r *Router) handleList(ctx context.Context, u *domain.User) {
	c := messages.For(u.Language)
	day, progress, err := r.svc.Today(ctx, u)
	if err != nil {
		r.replyError(u, "list", err)
		return
	}
	if len(progress) == 0 {
		r.sendText(u.ExternalID, c.NoMeds)
		return
	}
	loc := r.zones.ForUser(u)
	r.sendText(u.ExternalID, fmt.Sprintf(c.ListTitle, day.Short()))
	for _, p := range progress {
		m := p.Medication
		if !m.Active {
			until := "—"
			if m.PausedUntil != nil {
				until = m.PausedUntil.In(loc).Format(untilLayout)
			}
			r.sendText(u.ExternalID, fmt.Sprintf(c.ListPaused, m.Name, until))
			continue
		}
		text := fmt.Sprintf(c.ListLine, m.Name, p.Taken(), len(p.Intakes), domain.FormatSchedule(m.Schedule))
		if len(p.Intakes) == 0 {
			r.sendText(u.ExternalID, text)
			continue
		}
		r.sendWithMarkup(u.ExternalID, text, todayKeyboard(c, m.ID, p.Intakes, loc))
	}
}

func (r *Router) handleMeds(ctx context.Context, u *domain.User) {
	c := messages.For(u.Language)
	meds, err := r.svc.Medications(ctx, u.ID)
	if err != nil {
		r.replyError(u, "meds", err)
		return
	}
	if len(meds) == 0 {
		r.sendText(u.ExternalID, c.NoMeds)
		return
	}
	r.sendWithMarkup(u.ExternalID, c.MedsTitle, medsKeyboard(meds))
}

// --- Preferences ---

func (r *Router) handleTZ(ctx context.Context, u *domain.User, args string) {
	if args == "" {
		r.sendWithMarkup(u.ExternalID, messages.For(u.Language).TZUsage, tzPresetsKeyboard())
		return
	}
	r.updateTZ(ctx, u, args)
}

func (r *Router) updateTZ(ctx context.Context, u *domain.User, name string) {
	c := messages.For(u.Language)
	tz, err := r.svc.SetTimezone(ctx, u.ID, name)
	if errors.Is(err, domain.ErrInvalidZone) {
		r.sendText(u.ExternalID, fmt.Sprintf(c.TZInvalid, strings.TrimSpace(name)))
		return
	}
	if err != nil {
		r.replyError(u, "set timezone", err)
		return
	}
	r.sendText(u.ExternalID, fmt.Sprintf(c.TZSet, tz))
}

func (r *Router) handleRemind(ctx context.Context, u *domain.User, args string) {
	if args == "" {
		r.setPending(u.ExternalID, pendingLead)
		r.sendText(u.ExternalID, messages.For(u.Language).LeadUsage)
		return
	}
	r.updateLead(ctx, u, args)
}

func (r *Router) updateLead(ctx context.Context, u *domain.User, text string) {
	c := messages.For(u.Language)
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		r.sendText(u.ExternalID, c.LeadUsage)
		return
	}
	m, err := r.svc.SetLead(ctx, u.ID, n)
	if err != nil {
		r.replyError(u, "set lead", err)
		return
	}
	r.sendText(u.ExternalID, fmt.Sprintf(c.LeadSet, m))
}

func (r *Router) handleLang(ctx context.Context, u *domain.User, args string) {
	lang, err := r.svc.SetLanguage(ctx, u.ID, args)
	if err != nil {
		r.replyError(u, "set language", err)
		return
	}
	r.sendText(u.ExternalID, messages.For(lang).LangSet)
}

// --- Summary and stats ---

func (r *Router) handleDaily(ctx context.Context, u *domain.User) {
	if r.summary == nil {
		return
	}
	sent, err := r.summary.SendNow(ctx, u)
	if err != nil {
		r.replyError(u, "daily summary", err)
		return
	}
	if !sent {
		r.sendText(u.ExternalID, messages.For(u.Language).NoSummary)
	}
}

func (r *Router) handleStats(u *domain.User) {
	c := messages.For(u.Language)
	if r.adminChatID == 0 || u.ExternalID != r.adminChatID {
		r.sendText(u.ExternalID, c.Forbidden)
		return
	}
	s := r.metrics.Snapshot()
	r.sendText(u.ExternalID, fmt.Sprintf("%s\n"+
		"reminders_sent: %d\n"+
		"reminders_failed: %d\n"+
		"intakes_marked: %d\n"+
		"snoozes: %d\n"+
		"skips: %d\n"+
		"missed: %d",
		c.StatsTitle,
		s.RemindersSent, s.RemindersFailed, s.IntakesMarked, s.Snoozes, s.Skips, s.Missed,
	))
}

// --- Free-form dispatcher (for multi-step inputs) ---

func (r *Router) handleFreeForm(ctx context.Context, u *domain.User, text string) {
	p := r.getPending(u.ExternalID)
	switch p.Step {
	case pendingAdd:
		r.clearPending(u.ExternalID)
		r.addMedication(ctx, u, text)
	case pendingTZ:
		r.clearPending(u.ExternalID)
		r.updateTZ(ctx, u, text)
	case pendingLead:
		r.clearPending(u.ExternalID)
		r.updateLead(ctx, u, text)
	case pendingEdit:
		r.clearPending(u.ExternalID)
		r.editSchedule(ctx, u, p.MedID, text)
	default:
		// No pending flow: ignore free-form message
	}
}

// editSchedule replaces the schedule of one of the user's medications with
// the dose list in text.
func (r *Router) editSchedule(ctx context.Context, u *domain.User, medID int64, text string) {
	c := messages.For(u.Language)
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "edit schedule", err)
		return
	}
	sched, err := parseDoses(text)
	if err == nil {
		err = r.svc.EditSchedule(ctx, medID, sched)
	}
	if errors.Is(err, domain.ErrInvalidSchedule) || errors.Is(err, domain.ErrInvalidTime) {
		r.setPendingFor(u.ExternalID, pendingEdit, medID)
		r.sendText(u.ExternalID, fmt.Sprintf(c.EditUsage, m.Name, domain.FormatSchedule(m.Schedule)))
		return
	}
	if err != nil {
		r.replyError(u, "edit schedule", err)
		return
	}
	r.sendText(u.ExternalID, fmt.Sprintf(c.Edited, m.Name, domain.FormatSchedule(sched)))
}
