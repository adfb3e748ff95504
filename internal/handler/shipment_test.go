package handler

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTrackingCodeFormat(t *testing.T) {
	// TRK plus the first eight hex characters of a UUID, uppercased.
	re := regexp.MustCompile(`^TRK[0-9A-F]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := newTrackingCode()
		assert.Regexp(t, re, code)
		seen[code] = true
	}
	assert.Len(t, seen, 200, "tracking codes should not repeat")
}

func TestValidCoord(t *testing.T) {
	cases := []struct {
		name     string
		lat, lng float64
		ok       bool
	}{
		{"origin of coordinates", 0, 0, true},
		{"pune mandi", 18.5204, 73.8567, true},
		{"pole", 90, 180, true},
		{"antipode edge", -90, -180, true},
		{"latitude too high", 90.1, 0, false},
		{"latitude too low", -91, 0, false},
		{"longitude too high", 0, 180.5, false},
		{"longitude too low", 0, -181, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, validCoord(tc.lat, tc.lng))
		})
	}
}
