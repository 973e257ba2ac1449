package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
)

// handleCallback dispatches inline button presses. Data formats:
//
//	take:<intake>  snooze:<intake>  snoozeopt:<intake>:<min>  snoozeback:<intake>  skip:<intake>
//	takeall:<med>  med:open|edit|pause|resume|delete:<med>  med:pauseopt:<med>:<key>
//	tz:<zone>|custom
func (r *Router) handleCallback(ctx context.Context, u *domain.User, messageID int, data string) {
	if zone, ok := strings.CutPrefix(data, "tz:"); ok {
		r.handleTZCallback(ctx, u, zone)
		return
	}

	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return
	}
	action := parts[0]
	if action == "med" {
		if len(parts) < 3 {
			return
		}
		action, parts = "med:"+parts[1], parts[1:]
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return
	}
	arg := ""
	if len(parts) > 2 {
		arg = parts[2]
	}

	switch action {
	case "take":
		r.intakeAction(ctx, u, messageID, id, "take")
	case "skip":
		r.intakeAction(ctx, u, messageID, id, "skip")
	case "snoozeopt":
		minutes, err := strconv.Atoi(arg)
		if err != nil || !isSnoozeOption(minutes) {
			return
		}
		r.snooze(ctx, u, messageID, id, minutes)
	case "snooze":
		r.editMarkup(u.ExternalID, messageID, snoozeOptionsKeyboard(messages.For(u.Language), id))
	case "snoozeback":
		r.editMarkup(u.ExternalID, messageID, intakeActionsKeyboard(messages.For(u.Language), id))
	case "takeall":
		r.takeAll(ctx, u, id)
	case "med:open":
		r.openMedication(ctx, u, id)
	case "med:pause":
		if _, err := r.svc.Medication(ctx, u.ID, id); err != nil {
			r.replyError(u, "pause", err)
			return
		}
		r.editMarkup(u.ExternalID, messageID, pauseOptionsKeyboard(messages.For(u.Language), id))
	case "med:edit":
		r.startEdit(ctx, u, id)
	case "med:pauseopt":
		r.pause(ctx, u, id, arg)
	case "med:resume":
		r.resume(ctx, u, id)
	case "med:delete":
		r.deleteMedication(ctx, u, messageID, id)
	default:
		// Unknown callback: ignore.
	}
}

func (r *Router) editMarkup(chatID int64, messageID int, markup tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		return
	}
	_, _ = r.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, markup))
}

// intakeAction acknowledges or skips an intake owned by the user.
func (r *Router) intakeAction(ctx context.Context, u *domain.User, messageID int, intakeID int64, op string) {
	c := messages.For(u.Language)
	view, err := r.svc.Intake(ctx, u.ID, intakeID)
	if err != nil {
		r.replyError(u, op, err)
		return
	}
	text := c.Taken
	if op == "skip" {
		_, err = r.svc.Skip(ctx, intakeID)
		text = c.Skipped
	} else {
		_, err = r.svc.Acknowledge(ctx, intakeID)
	}
	if err != nil {
		r.replyError(u, op, err)
		return
	}
	r.editMarkup(u.ExternalID, messageID, emptyInlineKeyboard())
	r.sendText(u.ExternalID, fmt.Sprintf(text, view.Medication.Name, view.LocalTime))
}

func (r *Router) snooze(ctx context.Context, u *domain.User, messageID int, intakeID int64, minutes int) {
	c := messages.For(u.Language)
	view, err := r.svc.Intake(ctx, u.ID, intakeID)
	if err != nil {
		r.replyError(u, "snooze", err)
		return
	}
	if _, err := r.svc.Snooze(ctx, intakeID, minutes); err != nil {
		r.replyError(u, "snooze", err)
		return
	}
	r.editMarkup(u.ExternalID, messageID, emptyInlineKeyboard())
	r.sendText(u.ExternalID, fmt.Sprintf(c.Snoozed, view.Medication.Name, view.LocalTime, c.Duration(minutes)))
}

func (r *Router) takeAll(ctx context.Context, u *domain.User, medID int64) {
	c := messages.For(u.Language)
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "take all", err)
		return
	}
	n, err := r.svc.AcknowledgeAll(ctx, medID)
	if err != nil {
		r.replyError(u, "take all", err)
		return
	}
	if n == 0 {
		r.sendText(u.ExternalID, c.NothingToDo)
		return
	}
	r.sendText(u.ExternalID, fmt.Sprintf(c.AllTaken, m.Name, n))
}

func (r *Router) openMedication(ctx context.Context, u *domain.User, medID int64) {
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "open medication", err)
		return
	}
	text := "💊 " + m.Name + "\n" + domain.FormatSchedule(m.Schedule)
	r.sendWithMarkup(u.ExternalID, text, medActionsKeyboard(messages.For(u.Language), m))
}

func (r *Router) startEdit(ctx context.Context, u *domain.User, medID int64) {
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "edit schedule", err)
		return
	}
	r.setPendingFor(u.ExternalID, pendingEdit, medID)
	c := messages.For(u.Language)
	r.sendText(u.ExternalID, fmt.Sprintf(c.EditUsage, m.Name, domain.FormatSchedule(m.Schedule)))
}

func (r *Router) pause(ctx context.Context, u *domain.User, medID int64, key string) {
	c := messages.For(u.Language)
	opt, ok := pauseOptionByKey(key)
	if !ok {
		return
	}
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "pause", err)
		return
	}
	until, err := r.svc.Pause(ctx, medID, opt.Duration())
	if err != nil {
		r.replyError(u, "pause", err)
		return
	}
	local := until.In(r.zones.ForUser(u)).Format(untilLayout)
	r.sendText(u.ExternalID, fmt.Sprintf(c.Paused, m.Name, opt.Label(c), local))
}

func (r *Router) resume(ctx context.Context, u *domain.User, medID int64) {
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "resume", err)
		return
	}
	if _, err := r.svc.Resume(ctx, medID); err != nil {
		r.replyError(u, "resume", err)
		return
	}
	r.sendText(u.ExternalID, fmt.Sprintf(messages.For(u.Language).ResumedByYou, m.Name))
}

func (r *Router) deleteMedication(ctx context.Context, u *domain.User, messageID int, medID int64) {
	m, err := r.svc.Medication(ctx, u.ID, medID)
	if err != nil {
		r.replyError(u, "delete", err)
		return
	}
	if err := r.svc.Delete(ctx, medID); err != nil {
		r.replyError(u, "delete", err)
		return
	}
	r.editMarkup(u.ExternalID, messageID, emptyInlineKeyboard())
	r.sendText(u.ExternalID, fmt.Sprintf(messages.For(u.Language).Deleted, m.Name))
}

func (r *Router) handleTZCallback(ctx context.Context, u *domain.User, zone string) {
	if zone == "custom" {
		r.setPending(u.ExternalID, pendingTZ)
		r.sendText(u.ExternalID, messages.For(u.Language).TZUsage)
		return
	}
	r.updateTZ(ctx, u, zone)
}
