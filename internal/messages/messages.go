// Package messages renders user-facing texts in Russian or English.
package messages

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

// Supported languages, the first one is the fallback.
var supported = []language.Tag{language.Russian, language.English}

var matcher = language.NewMatcher(supported)

// Catalog holds the texts of one language.
type Catalog struct {
	Lang string

	Start        string
	Help         string
	NoMeds       string
	AddUsage     string
	Added        string // name, schedule
	ListTitle    string // date
	ListLine     string // name, taken, total, schedule
	ListPaused   string // name, until
	MedsTitle    string
	Taken        string // name, local time
	AlreadyTaken string
	Skipped      string // name, local time
	Snoozed      string // name, local time, duration label
	AllTaken     string // name, count
	NothingToDo  string
	NotFound     string
	Conflict     string
	Failed       string
	Paused       string // name, duration label, until
	ResumedByYou string // name
	Deleted      string // name
	EditUsage    string // name, current schedule
	Edited       string // name, schedule
	TZUsage      string
	TZSet        string // zone
	TZInvalid    string // zone
	LeadUsage    string
	LeadSet      string // minutes
	LangSet      string
	NoSummary    string
	StatsTitle   string
	Forbidden    string
	Unknown      string

	ButtonTake    string
	ButtonSnooze  string
	ButtonSkip    string
	ButtonBack    string
	ButtonTakeAll string
	ButtonPause   string
	ButtonResume  string
	ButtonDelete  string
	ButtonEdit    string
	ButtonWeeks   string // n
	ButtonMonths  string // n
	hoursLabel    string
	minutesLabel  string
	reminder      string
	resumed       string
	summaryTitle  string
	summaryLine   string
	summaryMissed string
	alertDelivery string
	alertSummary  string
	alertJob      string
}

var ru = Catalog{
	Lang: "ru",
	Start: "Привет! Я помогу не забывать пить таблетки 💊\n\n" +
		"Добавь лекарство командой /add, а я буду напоминать о каждом приёме.",
	Help: "Команды:\n" +
		"/add — добавить лекарство\n" +
		"/list — показать прогресс за сегодня\n" +
		"/meds — расписание, пауза, возобновление, удаление\n" +
		"/tz — сменить часовой пояс\n" +
		"/remind — за сколько минут напоминать\n" +
		"/daily — прислать сводку за сегодня\n" +
		"/lang — выбрать язык (ru, en)\n" +
		"/stats — метрики (для администратора)",
	NoMeds:       "Лекарств пока нет. Добавь первое: /add Аспирин 09:00,21:00",
	AddUsage:     "Формат: /add Название 09:00,21:00\nили: /add Название morning,evening",
	Added:        "Добавил %s: %s",
	ListTitle:    "📋 Сегодня, %s:",
	ListLine:     "💊 %s: %d/%d (%s)",
	ListPaused:   "⏸ %s: на паузе до %s",
	MedsTitle:    "Выбери лекарство:",
	Taken:        "Отметил приём %s (%s) ✅",
	AlreadyTaken: "Этот приём уже отмечен.",
	Skipped:      "Больше не напоминаю про %s (%s). Отметить приём всё ещё можно.",
	Snoozed:      "Напомню про %s (%s) через %s ⏰",
	AllTaken:     "Отметил все приёмы %s за сегодня: %d ✅",
	NothingToDo:  "Отмечать нечего.",
	NotFound:     "Не нашёл такую запись.",
	Conflict:     "Запись изменилась, попробуй ещё раз.",
	Failed:       "Что-то пошло не так, попробуй позже.",
	Paused:       "Поставил %s на паузу на %s (до %s).\nКогда срок закончится, возобновлю курс.",
	ResumedByYou: "Возобновил %s.",
	Deleted:      "Удалил %s.",
	EditUsage:    "Новое расписание для %s (сейчас: %s).\nПришли время через запятую: 09:00,21:00\nили периоды: morning,evening",
	Edited:       "Обновил расписание %s: %s",
	TZUsage:      "Формат: /tz Europe/Moscow",
	TZSet:        "Часовой пояс: %s",
	TZInvalid:    "Не знаю такой часовой пояс: %s",
	LeadUsage:    "Формат: /remind 15 (от 1 до 180 минут)",
	LeadSet:      "Буду напоминать за %d мин. до приёма 💊",
	LangSet:      "Язык: русский",
	NoSummary:    "За сегодня приёмов нет.",
	StatsTitle:   "📊 Метрики:",
	Forbidden:    "Команда доступна только администратору.",
	Unknown:      "Не понял. Список команд: /help",

	ButtonTake:    "✅ Выпил(а)",
	ButtonSnooze:  "⏰ Напомни позже",
	ButtonSkip:    "🚫 Не напоминать",
	ButtonBack:    "↩️ Назад",
	ButtonTakeAll: "✅ Отметить все за сегодня",
	ButtonPause:   "⏸ Пауза",
	ButtonResume:  "▶️ Возобновить",
	ButtonDelete:  "🗑 Удалить",
	ButtonEdit:    "✏️ Расписание",
	ButtonWeeks:   "%d нед.",
	ButtonMonths:  "%d мес.",
	hoursLabel:    "%d ч",
	minutesLabel:  "%d мин",

	reminder:      "💊 Скоро приём %s (%s).\nКак только выпьешь, нажми на кнопку.",
	resumed:       "Возобновил %s, продолжаем курс 💊",
	summaryTitle:  "📅 Итоги за %s:",
	summaryLine:   "- %s: %d/%d",
	summaryMissed: " (пропущено %d)",
	alertDelivery: "Не смог отправить напоминание пользователю %d",
	alertSummary:  "Не смог отправить дневной отчёт пользователю %d",
	alertJob:      "Сбой в задаче %s: %v",
}

var en = Catalog{
	Lang: "en",
	Start: "Hi! I will help you remember your pills 💊\n\n" +
		"Add a medication with /add and I will remind you about every dose.",
	Help: "Commands:\n" +
		"/add — add a medication\n" +
		"/list — show today's progress\n" +
		"/meds — edit schedule, pause, resume or delete\n" +
		"/tz — change timezone\n" +
		"/remind — configure reminder lead time\n" +
		"/daily — send today's summary\n" +
		"/lang — pick language (ru, en)\n" +
		"/stats — metrics (admin only)",
	NoMeds:       "No medications yet. Add one: /add Aspirin 09:00,21:00",
	AddUsage:     "Usage: /add Name 09:00,21:00\nor: /add Name morning,evening",
	Added:        "Added %s: %s",
	ListTitle:    "📋 Today, %s:",
	ListLine:     "💊 %s: %d/%d (%s)",
	ListPaused:   "⏸ %s: paused until %s",
	MedsTitle:    "Pick a medication:",
	Taken:        "Marked %s (%s) as taken ✅",
	AlreadyTaken: "This dose is already marked.",
	Skipped:      "No more reminders for %s (%s). You can still mark it as taken.",
	Snoozed:      "I will remind you about %s (%s) in %s ⏰",
	AllTaken:     "Marked all of today's %s doses: %d ✅",
	NothingToDo:  "Nothing to mark.",
	NotFound:     "Record not found.",
	Conflict:     "The record has changed, please try again.",
	Failed:       "Something went wrong, please try again later.",
	Paused:       "Paused %s for %s (until %s).\nThe course resumes automatically afterwards.",
	ResumedByYou: "Resumed %s.",
	Deleted:      "Deleted %s.",
	EditUsage:    "New schedule for %s (now: %s).\nSend times separated by commas: 09:00,21:00\nor periods: morning,evening",
	Edited:       "Updated the schedule of %s: %s",
	TZUsage:      "Usage: /tz Europe/Moscow",
	TZSet:        "Timezone: %s",
	TZInvalid:    "Unknown timezone: %s",
	LeadUsage:    "Usage: /remind 15 (1 to 180 minutes)",
	LeadSet:      "I will remind you %d min before each dose 💊",
	LangSet:      "Language: English",
	NoSummary:    "No doses today.",
	StatsTitle:   "📊 Metrics:",
	Forbidden:    "This command is for the administrator only.",
	Unknown:      "Sorry, I did not get that. Commands: /help",

	ButtonTake:    "✅ Taken",
	ButtonSnooze:  "⏰ Remind later",
	ButtonSkip:    "🚫 Stop reminding",
	ButtonBack:    "↩️ Back",
	ButtonTakeAll: "✅ Mark all for today",
	ButtonPause:   "⏸ Pause",
	ButtonResume:  "▶️ Resume",
	ButtonDelete:  "🗑 Delete",
	ButtonEdit:    "✏️ Schedule",
	ButtonWeeks:   "%d wk",
	ButtonMonths:  "%d mo",
	hoursLabel:    "%d h",
	minutesLabel:  "%d min",

	reminder:      "💊 Time for %s (%s).\nPress the button once you have taken it.",
	resumed:       "Resumed %s, the course continues 💊",
	summaryTitle:  "📅 Summary for %s:",
	summaryLine:   "- %s: %d/%d",
	summaryMissed: " (missed %d)",
	alertDelivery: "Failed to deliver a reminder to user %d",
	alertSummary:  "Failed to deliver the daily summary to user %d",
	alertJob:      "Job %s failed: %v",
}

// Match returns the best supported language for a stored preference or an
// Accept-Language style string. Unknown input resolves to Russian.
func Match(pref string) string {
	tags, _, err := language.ParseAcceptLanguage(pref)
	if err != nil || len(tags) == 0 {
		return ru.Lang
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return ru.Lang
	}
	return For(supported[idx].String()).Lang
}

// For returns the catalog for lang, falling back to Russian.
func For(lang string) *Catalog {
	if strings.HasPrefix(lang, "en") {
		return &en
	}
	return &ru
}

// Duration renders a snooze or pause length like "30 min" or "2 h".
func (c *Catalog) Duration(minutes int) string {
	if minutes >= 60 && minutes%60 == 0 {
		return fmt.Sprintf(c.hoursLabel, minutes/60)
	}
	return fmt.Sprintf(c.minutesLabel, minutes)
}

// Reminder is the text of a dose reminder; at is the local time of the dose.
func (c *Catalog) Reminder(name string, at domain.ClockTime) string {
	return fmt.Sprintf(c.reminder, name, at)
}

// Resumed announces an automatic resume of a paused course.
func (c *Catalog) Resumed(name string) string {
	return fmt.Sprintf(c.resumed, name)
}

// SummaryLine is one medication's tally for a day.
type SummaryLine struct {
	Name  string
	Taken int
	Total int
}

// Missed returns the number of doses not taken.
func (l SummaryLine) Missed() int { return l.Total - l.Taken }

// Summary renders the daily summary for day.
func (c *Catalog) Summary(day domain.Date, lines []SummaryLine) string {
	var b strings.Builder
	fmt.Fprintf(&b, c.summaryTitle, day.Short())
	for _, l := range lines {
		b.WriteByte('\n')
		fmt.Fprintf(&b, c.summaryLine, l.Name, l.Taken, l.Total)
		if m := l.Missed(); m > 0 {
			fmt.Fprintf(&b, c.summaryMissed, m)
		}
	}
	return b.String()
}

func (c *Catalog) AlertDelivery(userID int64) string { return fmt.Sprintf(c.alertDelivery, userID) }
func (c *Catalog) AlertSummary(userID int64) string  { return fmt.Sprintf(c.alertSummary, userID) }

// AlertJob reports a recovered failure of a periodic job.
func (c *Catalog) AlertJob(job string, cause any) string {
	return fmt.Sprintf(c.alertJob, job, cause)
}
