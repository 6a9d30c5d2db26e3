package scheduler

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailySpec(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"17:30", "0 30 17 * * *"},
		{"09:05", "0 5 9 * * *"},
		{"0:00", "0 0 0 * * *"},
		{" 23:59 ", "0 59 23 * * *"},
	}
	for _, tt := range tests {
		got, err := DailySpec(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDailySpec_Invalid(t *testing.T) {
	for _, in := range []string{"", "1730", "24:00", "12:60", "aa:bb", "12:5:9"} {
		_, err := DailySpec(in)
		assert.Error(t, err, in)
	}
}

func TestAddDaily_RejectsBadTime(t *testing.T) {
	s := New(zerolog.Nop())
	err := s.AddDaily("25:00", JobFunc{JobName: "noop", Fn: func() error { return nil }})
	assert.Error(t, err)
}

func TestRunNow(t *testing.T) {
	s := New(zerolog.Nop())

	ran := false
	require.NoError(t, s.RunNow(JobFunc{JobName: "ok", Fn: func() error { ran = true; return nil }}))
	assert.True(t, ran)

	err := s.RunNow(JobFunc{JobName: "fail", Fn: func() error { return errors.New("boom") }})
	assert.Error(t, err)
}
