// Package store is the single gateway between handlers and PostgreSQL.
//
// Handlers depend on the small interfaces below rather than on *gorm.DB, so the
// HTTP layer can be tested against the in-memory implementation in storetest.
// Every method takes the request context and returns one of the sentinel errors
// in errors.go for expected failures.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// ProfileUpdate carries the optional fields of PUT /api/profile. Nil means unchanged.
type ProfileUpdate struct {
	Email          *string
	ProfilePicture *string
}

// PostView is a social post joined with its author's username.
type PostView struct {
	models.SocialPost
	Username string
}

// ClubView is a club with the aggregates shown in listings.
type ClubView struct {
	models.FitnessClub
	CreatorName string
	MemberCount int64
	MyRole      models.ClubRole // Only set by ClubsForUser
}

// ClubFilter narrows ListClubs. Empty fields are ignored.
type ClubFilter struct {
	Category string
}

// MemberView is one row of a club's member list.
type MemberView struct {
	UserID         uuid.UUID
	Username       string
	ProfilePicture *string
	Role           models.ClubRole
	JoinedAt       time.Time
}

// SessionView is a group session with its club, instructor and head count.
type SessionView struct {
	models.GroupSession
	ClubName         string
	InstructorName   string
	ParticipantCount int64
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	ClubID   *uuid.UUID
	Upcoming bool      // Only sessions starting at or after Now
	Now      time.Time // Reference time for Upcoming
}

// LeaderboardEntry is one ranked row of a session leaderboard.
// Equal scores share a rank (1, 2, 2, 4).
type LeaderboardEntry struct {
	models.SessionLeaderboard
	Username string
	Rank     int
}

// TrailFilter narrows ListTrails. Location matches case-insensitively as a substring.
type TrailFilter struct {
	ActivityType string
	Difficulty   string
	Location     string
	Featured     *bool
}

// TrailView is a trail with aggregate statistics over all of its sessions.
type TrailView struct {
	models.VirtualTrail
	TotalSessions     int64
	CompletedSessions int64
	BestTimeSeconds   *int
}

// TrailSessionView is a trail session joined with the trail's name.
type TrailSessionView struct {
	models.TrailSession
	TrailName string
}

// AchievementView is an achievement joined with the trail's name.
type AchievementView struct {
	models.TrailAchievement
	TrailName string
}

// Users persists accounts.
type Users interface {
	// CreateUser returns ErrUsernameTaken or ErrEmailTaken on a duplicate.
	CreateUser(ctx context.Context, user *models.User) error
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateProfile returns the updated user; ErrEmailTaken if the email is in use.
	UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.User, error)
}

// Workouts persists training logs.
type Workouts interface {
	CreateWorkout(ctx context.Context, w *models.Workout) error
	// ListWorkouts returns the user's workouts, newest first.
	ListWorkouts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Workout, error)
	// DeleteWorkout returns ErrNotFound unless the workout exists and belongs to userID.
	DeleteWorkout(ctx context.Context, userID, id uuid.UUID) error
}

// Posts persists the social feed.
type Posts interface {
	CreatePost(ctx context.Context, p *models.SocialPost) error
	// ListPosts returns the feed, newest first.
	ListPosts(ctx context.Context, limit int) ([]PostView, error)
	// LikePost atomically increments the like counter and returns the new value.
	LikePost(ctx context.Context, id uuid.UUID) (int, error)
	DeletePost(ctx context.Context, userID, id uuid.UUID) error
}

// Clubs persists fitness clubs and their membership.
type Clubs interface {
	// CreateClub inserts the club and its creator as admin member in one transaction.
	CreateClub(ctx context.Context, club *models.FitnessClub) error
	ListClubs(ctx context.Context, f ClubFilter) ([]ClubView, error)
	ClubsForUser(ctx context.Context, userID uuid.UUID) ([]ClubView, error)
	GetClub(ctx context.Context, id uuid.UUID) (*ClubView, error)
	// ClubMembers lists admins first, then moderators, then members, each by join time.
	ClubMembers(ctx context.Context, clubID uuid.UUID) ([]MemberView, error)
	// MemberRole returns ErrNotMember if userID does not belong to the club.
	MemberRole(ctx context.Context, clubID, userID uuid.UUID) (models.ClubRole, error)
	// JoinClub returns ErrNotFound, ErrAlreadyMember or ErrCapacityReached.
	JoinClub(ctx context.Context, clubID, userID uuid.UUID) error
	// LeaveClub returns ErrNotFound, ErrNotMember or ErrAdminCannotLeave.
	LeaveClub(ctx context.Context, clubID, userID uuid.UUID) error
}

// Sessions persists group sessions, participants and leaderboards.
type Sessions interface {
	CreateSession(ctx context.Context, s *models.GroupSession) error
	// ListSessions returns sessions of clubs userID belongs to, by start time.
	ListSessions(ctx context.Context, userID uuid.UUID, f SessionFilter) ([]SessionView, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.GroupSession, error)
	// JoinSession returns ErrNotFound, ErrNotMember, ErrAlreadyJoined or ErrCapacityReached.
	JoinSession(ctx context.Context, sessionID, userID uuid.UUID) error
	// LeaveSession returns ErrNotParticipant if userID had not joined.
	LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error
	// Leaderboard returns ranked entries, highest score first.
	Leaderboard(ctx context.Context, sessionID uuid.UUID) ([]LeaderboardEntry, error)
}

// Equipment persists connected devices and their telemetry.
type Equipment interface {
	// ConnectEquipment upserts on (user_id, equipment_id) and reloads the stored row into eq.
	ConnectEquipment(ctx context.Context, eq *models.UserEquipment) error
	ListEquipment(ctx context.Context, userID uuid.UUID) ([]models.UserEquipment, error)
	DisconnectEquipment(ctx context.Context, userID uuid.UUID, equipmentID string) error
	// RecordSync stores one telemetry upload, stamps the device's last_sync_at and,
	// when the upload names a session, upserts the caller's leaderboard row with score.
	// All writes happen in one transaction. Returns ErrEquipmentNotConnected,
	// ErrNotFound (unknown session) or ErrNotParticipant.
	RecordSync(ctx context.Context, data *models.EquipmentWorkoutData, score int) error
}

// Trails persists virtual trails, attempts and achievements.
type Trails interface {
	// ListTrails returns featured trails first, then by name.
	ListTrails(ctx context.Context, f TrailFilter) ([]TrailView, error)
	GetTrail(ctx context.Context, id uuid.UUID) (*TrailView, error)
	CreateTrail(ctx context.Context, t *models.VirtualTrail) error
	StartTrailSession(ctx context.Context, s *models.TrailSession) error
	ListTrailSessions(ctx context.Context, userID uuid.UUID) ([]TrailSessionView, error)
	GetTrailSession(ctx context.Context, id uuid.UUID) (*models.TrailSession, error)
	// UpdateTrailSession writes s only if the stored status still equals from
	// (ErrStaleStatus otherwise). Moving to completed also grants the
	// first_completion achievement once; awarded reports whether it was new.
	UpdateTrailSession(ctx context.Context, s *models.TrailSession, from models.TrailSessionStatus) (awarded bool, err error)
	ListAchievements(ctx context.Context, userID uuid.UUID) ([]AchievementView, error)
}

// Store is everything the HTTP layer needs.
type Store interface {
	Users
	Workouts
	Posts
	Clubs
	Sessions
	Equipment
	Trails
}

// RankEntries assigns competition ranks to entries already sorted by score descending.
func RankEntries(entries []LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
