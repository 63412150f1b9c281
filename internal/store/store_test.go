package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

func TestRankEntriesSharesRanksOnTies(t *testing.T) {
	entries := []LeaderboardEntry{
		{SessionLeaderboard: models.SessionLeaderboard{Score: 900}},
		{SessionLeaderboard: models.SessionLeaderboard{Score: 690}},
		{SessionLeaderboard: models.SessionLeaderboard{Score: 690}},
		{SessionLeaderboard: models.SessionLeaderboard{Score: 10}},
	}
	RankEntries(entries)

	ranks := make([]int, len(entries))
	for i, e := range entries {
		ranks[i] = e.Rank
	}
	assert.Equal(t, []int{1, 2, 2, 4}, ranks)
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name string
		in   error
		want error
	}{
		{"record not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"duplicate username", &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}, ErrUsernameTaken},
		{"duplicate email", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}), ErrEmailTaken},
		{"other unique constraint", &pgconn.PgError{Code: "23505", ConstraintName: "user_equipment_user_device_key"}, ErrConflict},
		{"missing foreign row", &pgconn.PgError{Code: "23503"}, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tc.in), tc.want)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, translate(other))
	assert.NoError(t, translate(nil))
}

func TestWrapKeepsSentinelsMatchable(t *testing.T) {
	err := wrap("join club", ErrCapacityReached)
	assert.ErrorIs(t, err, ErrCapacityReached)
	assert.EqualError(t, err, "join club: capacity reached")
	assert.NoError(t, wrap("noop", nil))
}
