package messages

import (
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/AndreyMartjushev/takingPills/internal/domain"
)

func TestReminder_Golden(t *testing.T) {
	g := goldie.New(t)
	for _, lang := range []string{"ru", "en"} {
		got := For(lang).Reminder("Aspirin", domain.MustClockTime("09:00"))
		g.Assert(t, "reminder_"+lang, []byte(got))
	}
}

func TestSummary_Golden(t *testing.T) {
	g := goldie.New(t)
	day := domain.Date{Year: 2025, Month: time.May, Day: 5}
	lines := []SummaryLine{
		{Name: "Aspirin", Taken: 3, Total: 3},
		{Name: "Vitamin D", Taken: 1, Total: 2},
	}
	for _, lang := range []string{"ru", "en"} {
		g.Assert(t, "summary_"+lang, []byte(For(lang).Summary(day, lines)))
	}
}

func TestMatch(t *testing.T) {
	cases := map[string]string{
		"":               "ru",
		"ru":             "ru",
		"en":             "en",
		"en-US":          "en",
		"en-GB,en;q=0.8": "en",
		"de":             "ru",
		"fr-FR":          "ru",
		"de,en;q=0.5":    "en",
		"uk":             "ru",
		"!!":             "ru",
	}
	for in, want := range cases {
		assert.Equal(t, want, Match(in), in)
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, "30 мин", For("ru").Duration(30))
	assert.Equal(t, "2 ч", For("ru").Duration(120))
	assert.Equal(t, "1 h", For("en").Duration(60))
	assert.Equal(t, "90 min", For("en").Duration(90))
}
