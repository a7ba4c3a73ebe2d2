package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlotDisplay(t *testing.T) {
	tests := []struct {
		slot string
		want string
	}{
		{slot: "09:30", want: "09:30 AM"},
		{slot: "14:05", want: "02:05 PM"},
		{slot: "00:00", want: "12:00 AM"},
		{slot: "not a clock", want: "not a clock"},
	}

	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			assert.Equal(t, tt.want, slotDisplay(tt.slot))
		})
	}
}
