//go:build integration

package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/database"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

func migrationsSource(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir, err := filepath.Abs(filepath.Join(filepath.Dir(file), "..", "..", "migrations"))
	require.NoError(t, err)
	return "file://" + dir
}

func newPostgres(t *testing.T) *store.Postgres {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("fitclub"),
		postgrescontainer.WithUsername("fitclub"),
		postgrescontainer.WithPassword("fitclub"),
		postgrescontainer.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(migrationsSource(t), dsn))

	db, err := database.Connect(dsn, database.Options{MaxOpenConns: 20}, zap.NewNop())
	require.NoError(t, err)
	return store.NewPostgres(db)
}

func createUser(t *testing.T, s *store.Postgres, name string) models.User {
	t.Helper()
	u := models.User{Username: name, Email: name + "@example.com", PasswordHash: "hash", Role: models.UserRoleUser}
	require.NoError(t, s.CreateUser(context.Background(), &u))
	return u
}

func TestPostgresStore(t *testing.T) {
	s := newPostgres(t)
	ctx := context.Background()

	t.Run("unique usernames and emails", func(t *testing.T) {
		createUser(t, s, "alice")
		dup := models.User{Username: "alice", Email: "other@example.com", PasswordHash: "h", Role: models.UserRoleUser}
		assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrUsernameTaken)

		dup = models.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "h", Role: models.UserRoleUser}
		assert.ErrorIs(t, s.CreateUser(ctx, &dup), store.ErrEmailTaken)
	})

	t.Run("club creation and concurrent joins", func(t *testing.T) {
		owner := createUser(t, s, "owner")
		club := models.FitnessClub{CreatorID: owner.ID, Name: "Dawn Patrol", Category: "running", MaxMembers: 3}
		require.NoError(t, s.CreateClub(ctx, &club))

		role, err := s.MemberRole(ctx, club.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ClubRoleAdmin, role)

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			u := createUser(t, s, "joiner-"+uuid.NewString()[:8])
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.JoinClub(ctx, club.ID, u.ID)
			}()
		}
		wg.Wait()
		close(errs)

		joined := 0
		for err := range errs {
			if err == nil {
				joined++
			} else {
				assert.ErrorIs(t, err, store.ErrCapacityReached)
			}
		}
		assert.Equal(t, 2, joined)

		view, err := s.GetClub(ctx, club.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, view.MemberCount)
		assert.Equal(t, "owner", view.CreatorName)

		assert.ErrorIs(t, s.LeaveClub(ctx, club.ID, owner.ID), store.ErrAdminCannotLeave)
		assert.ErrorIs(t, s.JoinClub(ctx, uuid.New(), owner.ID), store.ErrNotFound)
	})

	t.Run("likes are atomic", func(t *testing.T) {
		author := createUser(t, s, "poster")
		post := models.SocialPost{UserID: author.ID, Content: "5k PR!"}
		require.NoError(t, s.CreatePost(ctx, &post))

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.LikePost(ctx, post.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		likes, err := s.LikePost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, 11, likes)
	})

	t.Run("sync upserts the leaderboard", func(t *testing.T) {
		rider := createUser(t, s, "rider")
		club := models.FitnessClub{CreatorID: rider.ID, Name: "Spin", Category: "cycling", MaxMembers: 10}
		require.NoError(t, s.CreateClub(ctx, &club))
		session := models.GroupSession{
			ClubID: club.ID, InstructorID: rider.ID, Title: "Hill repeats",
			StartTime: time.Now().Add(time.Hour), DurationMinutes: 45, MaxParticipants: 10,
		}
		require.NoError(t, s.CreateSession(ctx, &session))
		require.NoError(t, s.JoinSession(ctx, session.ID, rider.ID))
		require.NoError(t, s.ConnectEquipment(ctx, &models.UserEquipment{
			UserID: rider.ID, EquipmentType: models.EquipmentBike, EquipmentID: "bike-7",
		}))

		for _, score := range []int{100, 690} {
			data := models.EquipmentWorkoutData{
				UserID: rider.ID, SessionID: &session.ID, EquipmentID: "bike-7",
				DistanceKm: 12.5, CaloriesBurned: 340, DurationSeconds: 2700, RecordedAt: time.Now().UTC(),
			}
			require.NoError(t, s.RecordSync(ctx, &data, score))
		}

		board, err := s.Leaderboard(ctx, session.ID)
		require.NoError(t, err)
		require.Len(t, board, 1)
		assert.Equal(t, 690, board[0].Score)
		assert.Equal(t, 1, board[0].Rank)

		equipment, err := s.ListEquipment(ctx, rider.ID)
		require.NoError(t, err)
		require.Len(t, equipment, 1)
		assert.NotNil(t, equipment[0].LastSyncAt)
	})

	t.Run("seeded trails and first completion", func(t *testing.T) {
		trails, err := s.ListTrails(ctx, store.TrailFilter{})
		require.NoError(t, err)
		require.NotEmpty(t, trails)
		assert.True(t, trails[0].Featured)

		hiker := createUser(t, s, "hiker")
		run := models.TrailSession{
			UserID: hiker.ID, TrailID: trails[0].ID, SessionMode: models.SessionModeSolo,
			Status: models.TrailSessionActive, StartedAt: time.Now().UTC(),
		}
		require.NoError(t, s.StartTrailSession(ctx, &run))

		done := time.Now().UTC()
		secs := 3600
		run.Status = models.TrailSessionCompleted
		run.CompletedAt = &done
		run.CompletionTimeSeconds = &secs
		awarded, err := s.UpdateTrailSession(ctx, &run, models.TrailSessionActive)
		require.NoError(t, err)
		assert.True(t, awarded)

		_, err = s.UpdateTrailSession(ctx, &run, models.TrailSessionActive)
		assert.ErrorIs(t, err, store.ErrStaleStatus)

		achievements, err := s.ListAchievements(ctx, hiker.ID)
		require.NoError(t, err)
		require.Len(t, achievements, 1)
		assert.Equal(t, models.AchievementFirstCompletion, achievements[0].AchievementType)

		trail, err := s.GetTrail(ctx, trails[0].ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, trail.CompletedSessions)
		require.NotNil(t, trail.BestTimeSeconds)
		assert.Equal(t, 3600, *trail.BestTimeSeconds)
	})
}
