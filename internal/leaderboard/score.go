// Package leaderboard scores equipment telemetry for group-session leaderboards.
package leaderboard

import "math"

// Points per unit of effort.
const (
	PointsPerKm         = 10
	PointsPerCalorie    = 1
	PointsPerFullMinute = 5
	secondsPerMinute    = 60
)

// MaxScore is the largest score Score returns. session_leaderboard.score is a Postgres
// INTEGER, so anything above it could not be stored.
const MaxScore = math.MaxInt32

// Score turns one sync's totals into leaderboard points:
//
//	floor(distance_km*10 + calories_burned) + floor(duration_seconds/60)*5
//
// The result is always within [0, MaxScore]: negative or NaN inputs count as zero and
// huge ones saturate instead of overflowing.
func Score(distanceKm, caloriesBurned float64, durationSeconds int) int {
	if math.IsNaN(distanceKm) || distanceKm < 0 {
		distanceKm = 0
	}
	if math.IsNaN(caloriesBurned) || caloriesBurned < 0 {
		caloriesBurned = 0
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}

	// Sum in float64: an int conversion of an out-of-range float is implementation
	// defined (it comes out as math.MinInt64 on amd64), so clamp before converting.
	total := math.Floor(distanceKm*PointsPerKm+caloriesBurned*PointsPerCalorie) +
		float64(durationSeconds/secondsPerMinute)*PointsPerFullMinute
	if total >= MaxScore {
		return MaxScore
	}
	return int(total)
}
