package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClock(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "13:00", want: "13:00"},
		{in: "9:05", want: "09:05"},
		{in: "1:00 PM", want: "13:00"},
		{in: "1:10pm", want: "13:10"},
		{in: " 12:30 am ", want: "00:30"},
		{in: "13:00:00", want: "13:00"},
		{in: "", wantErr: true},
		{in: "lunch", wantErr: true},
		{in: "24:10", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeClock(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, SlotOpen, DeriveStatus(0, 5, SlotOpen))
	assert.Equal(t, SlotOpen, DeriveStatus(4, 5, SlotFull))
	assert.Equal(t, SlotFull, DeriveStatus(5, 5, SlotOpen))
	assert.Equal(t, SlotClosed, DeriveStatus(5, 5, SlotClosed))
	assert.Equal(t, SlotClosed, DeriveStatus(0, 5, SlotClosed))
}

func TestSlotAvailability(t *testing.T) {
	s := Slot{Start: "13:00", End: "13:10", MaxOrders: 2, CurrentOrders: 1, Status: SlotOpen}
	assert.True(t, s.Available())
	assert.Equal(t, 1, s.Remaining())
	assert.Equal(t, "13:00-13:10", s.Label())

	s.CurrentOrders = 2
	assert.False(t, s.Available())
	assert.Equal(t, 0, s.Remaining())

	s.CurrentOrders = 0
	s.Status = SlotClosed
	assert.False(t, s.Available())
}

func TestCountItems(t *testing.T) {
	got := CountItems([]string{"Meal", "Chai", "Meal", ""})
	assert.Equal(t, map[string]int{"Meal": 2, "Chai": 1}, got)
}

func TestToday(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2025, 7, 17, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-07-18", Today(now, kolkata))
	assert.Equal(t, "2025-07-17", Today(now, time.UTC))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-07-18 ")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-18", d)

	_, err = ParseDate("2025-7-18")
	assert.Error(t, err)
}
