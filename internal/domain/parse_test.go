package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTimeInput(t *testing.T) {
	cases := map[string]string{
		"08:30":     "08:30",
		"8:30":      "08:30",
		"8.30":      "08:30",
		"0830":      "08:30",
		"830":       "08:30",
		"8":         "08:00",
		"21":        "21:00",
		" 22 : 15 ": "22:15",
	}
	for in, want := range cases {
		got, err := NormalizeTimeInput(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.String(), in)
	}

	for _, bad := range []string{"", "24:00", "12:60", "ab:cd", "12:5", "12345"} {
		_, err := NormalizeTimeInput(bad)
		assert.ErrorIs(t, err, ErrInvalidTime, bad)
	}
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2024-12-31")
	require.NoError(t, err)
	assert.Equal(t, Date{2025, time.January, 1}, d.AddDays(1))
	assert.Equal(t, "2024-12-31", d.String())
	assert.Equal(t, "31.12", d.Short())

	zero, err := ParseDate("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())
}
