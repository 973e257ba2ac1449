package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
	"github.com/AndreyMartjushev/takingPills/internal/metrics"
	"github.com/AndreyMartjushev/takingPills/internal/scheduler"
	"github.com/AndreyMartjushev/takingPills/internal/store"
	"github.com/AndreyMartjushev/takingPills/internal/tracker"
)

const (
	chatID  int64 = 1001
	adminID int64 = 9
)

var now = time.Date(2025, time.May, 5, 9, 5, 0, 0, time.UTC)

type fakeBot struct {
	mu       sync.Mutex
	sendErr  error
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return tgbotapi.Message{}, b.sendErr
	}
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (b *fakeBot) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.sent)
	return b.sent[len(b.sent)-1]
}

func (b *fakeBot) texts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sent))
	for i, m := range b.sent {
		out[i] = m.Text
	}
	return out
}

type fakeSummarizer struct{ calls int }

func (s *fakeSummarizer) SendNow(context.Context, *domain.User) (bool, error) {
	s.calls++
	return false, nil
}

type env struct {
	router  *Router
	bot     *fakeBot
	repo    store.Repo
	metrics *metrics.Metrics
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zaptest.NewLogger(t)
	repo, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, DSN: filepath.Join(t.TempDir(), "tg.db")}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	zones := domain.NewZones("UTC", log)
	m := metrics.New()
	svc := tracker.New(repo, zones, m, log, tracker.Options{
		SnoozeMinutes: 10,
		LeadMinutes:   10,
		Now:           func() time.Time { return now },
	})
	bot := &fakeBot{}
	return &env{router: NewRouter(bot, log, svc, zones, m, adminID), bot: bot, repo: repo, metrics: m}
}

func (e *env) text(chat int64, text string) {
	e.router.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chat},
		From: &tgbotapi.User{ID: chat, FirstName: "Ann", LanguageCode: "en"},
		Text: text,
	}})
}

func (e *env) press(chat int64, data string) {
	e.router.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chat, LanguageCode: "en"},
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chat}},
		Data:    data,
	}})
}

// intake creates today's 21:00 intake of the user's first medication.
func (e *env) intake(t *testing.T) *domain.Intake {
	t.Helper()
	ctx := context.Background()
	u, err := e.repo.GetUserByExternalID(ctx, chatID)
	require.NoError(t, err)
	meds, err := e.repo.ListMedications(ctx, u.ID, false)
	require.NoError(t, err)
	require.NotEmpty(t, meds)
	at := domain.ToAbsolute(domain.DateOf(now), domain.MustClockTime("21:00"), time.UTC)
	in, err := e.repo.GetOrCreateIntake(ctx, meds[0].ID, at, nil)
	require.NoError(t, err)
	return in
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/Add@pills_bot Vitamin C 08:00")
	assert.Equal(t, "/add", cmd)
	assert.Equal(t, "Vitamin C 08:00", args)

	cmd, args = splitCommand("Europe/Moscow")
	assert.Equal(t, "", cmd)
	assert.Equal(t, "Europe/Moscow", args)
}

func TestParseMedication(t *testing.T) {
	name, s, err := parseMedication("Fish oil 8,2030")
	require.NoError(t, err)
	assert.Equal(t, "Fish oil", name)
	assert.Equal(t, domain.ExactSchedule{Times: []domain.ClockTime{
		domain.MustClockTime("08:00"), domain.MustClockTime("20:30"),
	}}, s)

	name, s, err = parseMedication("Iron Morning,Night")
	require.NoError(t, err)
	assert.Equal(t, "Iron", name)
	assert.Equal(t, domain.ModePeriod, s.Mode())
	assert.Len(t, s.Doses(), 2)

	_, _, err = parseMedication("Aspirin")
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	_, _, err = parseMedication("Aspirin 09:00,09:00")
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
	_, _, err = parseMedication("Aspirin 25:00")
	assert.Error(t, err)
}

func TestDeliver_AttachesIntakeActions(t *testing.T) {
	e := newEnv(t)
	err := e.router.Deliver(context.Background(), chatID, scheduler.Message{Text: "hi", Lang: "en", IntakeID: 42})
	require.NoError(t, err)

	msg := e.bot.last(t)
	assert.Equal(t, chatID, msg.ChatID)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "take:42", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "snooze:42", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "skip:42", *kb.InlineKeyboard[1][0].CallbackData)

	require.NoError(t, e.router.Deliver(context.Background(), chatID, scheduler.Message{Text: "plain"}))
	assert.Nil(t, e.bot.last(t).ReplyMarkup)

	e.bot.sendErr = errors.New("blocked by user")
	assert.Error(t, e.router.Deliver(context.Background(), chatID, scheduler.Message{Text: "x"}))
}

func TestAlert(t *testing.T) {
	e := newEnv(t)
	e.router.Alert(context.Background(), "disk full")
	msg := e.bot.last(t)
	assert.Equal(t, adminID, msg.ChatID)
	assert.Equal(t, "[ALERT] disk full", msg.Text)

	e.router.adminChatID = 0
	e.router.Alert(context.Background(), "dropped")
	assert.Len(t, e.bot.texts(), 1)
}

func TestAddListAndTake(t *testing.T) {
	e := newEnv(t)
	e.text(chatID, "/add Aspirin 09:00,21:00")
	assert.Equal(t, "Added Aspirin: 09:00, 21:00", e.bot.last(t).Text)

	in := e.intake(t)
	e.text(chatID, "/list")
	msg := e.bot.last(t)
	assert.Equal(t, "💊 Aspirin: 0/1 (09:00, 21:00)", msg.Text)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	assert.Equal(t, "21:00 ❌", kb.InlineKeyboard[0][0].Text)

	e.press(chatID, "take:"+itoa(in.ID))
	assert.Equal(t, "Marked Aspirin (21:00) as taken ✅", e.bot.last(t).Text)
	e.press(chatID, "take:"+itoa(in.ID))
	assert.Equal(t, "This dose is already marked.", e.bot.last(t).Text)
	assert.EqualValues(t, 1, e.metrics.Snapshot().IntakesMarked)
}

func TestSnoozeAndSkipCallbacks(t *testing.T) {
	e := newEnv(t)
	e.text(chatID, "/add Aspirin 21:00")
	in := e.intake(t)

	e.press(chatID, "skip:"+itoa(in.ID))
	assert.Contains(t, e.bot.last(t).Text, "No more reminders for Aspirin (21:00)")

	e.press(chatID, "snoozeopt:"+itoa(in.ID)+":60")
	assert.Equal(t, "I will remind you about Aspirin (21:00) in 1 h ⏰", e.bot.last(t).Text)

	got, err := e.repo.GetIntake(context.Background(), in.ID)
	require.NoError(t, err)
	assert.False(t, got.RemindersPaused)
	assert.Equal(t, now.Add(time.Hour), *got.NextReminderAt)
}

func TestSnoozeCallback_RejectsUnlistedMinutes(t *testing.T) {
	e := newEnv(t)
	e.text(chatID, "/add Aspirin 21:00")
	in := e.intake(t)
	before := len(e.bot.texts())

	e.press(chatID, "snoozeopt:"+itoa(in.ID)+":9223372036854")
	e.press(chatID, "snoozeopt:"+itoa(in.ID)+":-5")
	e.press(chatID, "snoozeopt:"+itoa(in.ID)+":15")

	assert.Len(t, e.bot.texts(), before)
	got, err := e.repo.GetIntake(context.Background(), in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.NextReminderAt, got.NextReminderAt)
	assert.EqualValues(t, 0, e.metrics.Snapshot().Snoozes)
}

func TestCallbacks_RejectForeignIntake(t *testing.T) {
	e := newEnv(t)
	e.text(chatID, "/add Aspirin 21:00")
	in := e.intake(t)

	e.press(2002, "take:"+itoa(in.ID))
	assert.Equal(t, "Record not found.", e.bot.last(t).Text)

	got, err := e.repo.GetIntake(context.Background(), in.ID)
	require.NoError(t, err)
	assert.False(t, got.Taken)
}

func TestPauseResumeDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.text(chatID, "/add Aspirin 21:00")
	u, err := e.repo.GetUserByExternalID(ctx, chatID)
	require.NoError(t, err)
	meds, err := e.repo.ListMedications(ctx, u.ID, true)
	require.NoError(t, err)
	id := itoa(meds[0].ID)

	e.press(chatID, "med:pauseopt:"+id+":2w")
	assert.Equal(t, "Paused Aspirin for 2 wk (until 19.05.2025 09:05).\nThe course resumes automatically afterwards.", e.bot.last(t).Text)

	e.text(chatID, "/list")
	assert.Equal(t, "⏸ Aspirin: paused until 19.05.2025 09:05", e.bot.last(t).Text)

	e.press(chatID, "med:resume:"+id)
	assert.Equal(t, "Resumed Aspirin.", e.bot.last(t).Text)

	e.press(chatID, "med:delete:"+id)
	assert.Equal(t, "Deleted Aspirin.", e.bot.last(t).Text)
	e.text(chatID, "/meds")
	assert.Equal(t, "No medications yet. Add one: /add Aspirin 09:00,21:00", e.bot.last(t).Text)
}

func TestEditScheduleFlow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.text(chatID, "/add Aspirin 21:00")
	future := e.intake(t)
	u, err := e.repo.GetUserByExternalID(ctx, chatID)
	require.NoError(t, err)
	meds, err := e.repo.ListMedications(ctx, u.ID, true)
	require.NoError(t, err)
	id := itoa(meds[0].ID)

	e.press(2002, "med:edit:"+id)
	assert.Equal(t, "Record not found.", e.bot.last(t).Text)

	e.press(chatID, "med:edit:"+id)
	assert.Contains(t, e.bot.last(t).Text, "New schedule for Aspirin")

	e.text(chatID, "25:99")
	assert.Contains(t, e.bot.last(t).Text, "New schedule for Aspirin", "invalid input asks again")

	e.text(chatID, "8,2030")
	want, err := domain.NewExactSchedule([]domain.ClockTime{domain.MustClockTime("08:00"), domain.MustClockTime("20:30")})
	require.NoError(t, err)
	assert.Equal(t, "Updated the schedule of Aspirin: "+domain.FormatSchedule(want), e.bot.last(t).Text)

	med, err := e.repo.GetMedication(ctx, meds[0].ID)
	require.NoError(t, err)
	assert.Equal(t, want, med.Schedule)
	assert.Equal(t, 2, med.DosesPerDay)

	_, err = e.repo.GetIntake(ctx, future.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "future untaken intake is regenerated by the next tick")

	e.text(chatID, "09:00")
	assert.Equal(t, "Updated the schedule of Aspirin: "+domain.FormatSchedule(want), e.bot.last(t).Text, "flow ends after a successful edit")
}

func TestPreferencesFlow(t *testing.T) {
	e := newEnv(t)
	e.text(chatID, "/tz")
	e.press(chatID, "tz:custom")
	e.text(chatID, "Asia/Tokyo")
	assert.Equal(t, "Timezone: Asia/Tokyo", e.bot.last(t).Text)

	e.text(chatID, "/tz Nowhere/City")
	assert.Equal(t, "Unknown timezone: Nowhere/City", e.bot.last(t).Text)

	e.text(chatID, "/remind")
	e.text(chatID, "999")
	assert.Equal(t, "I will remind you 180 min before each dose 💊", e.bot.last(t).Text)

	e.text(chatID, "/lang ru")
	assert.Equal(t, "Язык: русский", e.bot.last(t).Text)
	e.text(chatID, "/bogus")
	assert.Equal(t, "Не понял. Список команд: /help", e.bot.last(t).Text)
}

func TestDailyAndStats(t *testing.T) {
	e := newEnv(t)
	s := &fakeSummarizer{}
	e.router.SetSummarizer(s)

	e.text(chatID, "/daily")
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, "No doses today.", e.bot.last(t).Text)

	e.text(chatID, "/stats")
	assert.Equal(t, "This command is for the administrator only.", e.bot.last(t).Text)

	e.metrics.ReminderSent()
	e.text(adminID, "/stats")
	assert.Contains(t, e.bot.last(t).Text, "reminders_sent: 1")
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }
