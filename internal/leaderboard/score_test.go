package leaderboard

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name     string
		distance float64
		calories float64
		duration int
		want     int
	}{
		{"reference ride", 12.5, 340, 2700, 690},
		{"nothing recorded", 0, 0, 0, 0},
		{"partial minute is not counted", 0, 0, 119, 5},
		{"fractional effort is floored", 1.26, 0.5, 0, 13},
		{"negative values count as zero", -4, -100, -60, 0},
		{"NaN counts as zero", math.NaN(), math.NaN(), 60, 5},
		{"just below the cap", 0, MaxScore - 1, 0, MaxScore - 1},
		{"distance past int32 saturates", 1e9, 0, 0, MaxScore},
		{"distance past int64 saturates", 1e19, 0, 0, MaxScore},
		{"absurd distance saturates", 1e300, 0, 0, MaxScore},
		{"infinite calories saturate", 0, math.Inf(1), 0, MaxScore},
		{"huge duration saturates", 0, 0, math.MaxInt, MaxScore},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.distance, tc.calories, tc.duration))
		})
	}
}
