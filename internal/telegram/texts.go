package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/messages"
)

// Snooze choices offered under a reminder, in minutes.
var snoozeOptions = []int{10, 20, 30, 40, 60, 120}

func isSnoozeOption(minutes int) bool {
	for _, m := range snoozeOptions {
		if m == minutes {
			return true
		}
	}
	return false
}

// pauseOption is a course pause length. Months are counted as 30 days.
type pauseOption struct {
	Key    string
	Weeks  int
	Months int
}

var pauseOptions = []pauseOption{
	{Key: "1w", Weeks: 1},
	{Key: "2w", Weeks: 2},
	{Key: "3w", Weeks: 3},
	{Key: "4w", Weeks: 4},
	{Key: "1m", Months: 1},
	{Key: "2m", Months: 2},
	{Key: "3m", Months: 3},
}

func pauseOptionByKey(key string) (pauseOption, bool) {
	for _, o := range pauseOptions {
		if o.Key == key {
			return o, true
		}
	}
	return pauseOption{}, false
}

func (o pauseOption) Duration() time.Duration {
	days := o.Weeks*7 + o.Months*30
	return time.Duration(days) * 24 * time.Hour
}

func (o pauseOption) Label(c *messages.Catalog) string {
	if o.Weeks > 0 {
		return fmt.Sprintf(c.ButtonWeeks, o.Weeks)
	}
	return fmt.Sprintf(c.ButtonMonths, o.Months)
}

// mainMenuKeyboard builds the reply keyboard shown under the chat.
func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/list"),
			tgbotapi.NewKeyboardButton("/meds"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("/daily"),
			tgbotapi.NewKeyboardButton("/help"),
		),
	)
}

func emptyInlineKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

// Inline keyboards

func intakeActionsKeyboard(c *messages.Catalog, intakeID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(intakeID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonTake, "take:"+id),
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonSnooze, "snooze:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonSkip, "skip:"+id),
		),
	)
}

func snoozeOptionsKeyboard(c *messages.Catalog, intakeID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(intakeID, 10)
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, m := range snoozeOptions {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(c.Duration(m), fmt.Sprintf("snoozeopt:%s:%d", id, m)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(c.ButtonBack, "snoozeback:"+id),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// todayKeyboard lists today's intakes of one medication with their status.
func todayKeyboard(c *messages.Catalog, medID int64, intakes []domain.Intake, loc *time.Location) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	pending := false
	for _, in := range intakes {
		status := "❌"
		if in.Taken {
			status = "✅"
		} else {
			pending = true
		}
		label := domain.LocalClock(in.ScheduledAt, loc).String() + " " + status
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "take:"+strconv.FormatInt(in.ID, 10)),
		))
	}
	if pending {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonTakeAll, "takeall:"+strconv.FormatInt(medID, 10)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func medsKeyboard(meds []domain.Medication) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(meds))
	for _, m := range meds {
		label := "💊 " + m.Name
		if !m.Active {
			label = "⏸ " + m.Name
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "med:open:"+strconv.FormatInt(m.ID, 10)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func medActionsKeyboard(c *messages.Catalog, m *domain.Medication) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(m.ID, 10)
	toggle := tgbotapi.NewInlineKeyboardButtonData(c.ButtonPause, "med:pause:"+id)
	if !m.Active {
		toggle = tgbotapi.NewInlineKeyboardButtonData(c.ButtonResume, "med:resume:"+id)
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonEdit, "med:edit:"+id),
		),
		tgbotapi.NewInlineKeyboardRow(
			toggle,
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonDelete, "med:delete:"+id),
		),
	)
}

func pauseOptionsKeyboard(c *messages.Catalog, medID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(medID, 10)
	weeks := tgbotapi.NewInlineKeyboardRow()
	months := tgbotapi.NewInlineKeyboardRow()
	for _, o := range pauseOptions {
		b := tgbotapi.NewInlineKeyboardButtonData(o.Label(c), "med:pauseopt:"+id+":"+o.Key)
		if o.Weeks > 0 {
			weeks = append(weeks, b)
		} else {
			months = append(months, b)
		}
	}
	return tgbotapi.NewInlineKeyboardMarkup(weeks, months,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(c.ButtonBack, "med:open:"+id),
		),
	)
}

func tzPresetsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Europe/Moscow", "tz:Europe/Moscow"),
			tgbotapi.NewInlineKeyboardButtonData("Europe/Kaliningrad", "tz:Europe/Kaliningrad"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Yekaterinburg", "tz:Asia/Yekaterinburg"),
			tgbotapi.NewInlineKeyboardButtonData("Asia/Novosibirsk", "tz:Asia/Novosibirsk"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Asia/Almaty", "tz:Asia/Almaty"),
			tgbotapi.NewInlineKeyboardButtonData("UTC", "tz:UTC"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Custom…", "tz:custom"),
		),
	)
}
