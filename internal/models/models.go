// Package models defines the data structures (models) that map to database tables.
// GORM uses these structs to generate SQL queries and map database rows back to Go values.
// The struct field tags (the backtick strings like `gorm:"..."`) tell GORM how to handle
// each field: its column type, constraints, default values, and relationships.
//
// The data model represents a fitness-club social platform where:
//   - Users log Workouts and write SocialPosts
//   - Users create and join FitnessClubs; a club schedules GroupSessions
//   - Users connect smart equipment and sync telemetry, which feeds session leaderboards
//   - Users ride/run VirtualTrails as TrailSessions
//
// The schema itself is owned by the SQL files in migrations/; these structs must match it.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// --- Enums ---
// Named string types plus constants: type safe in Go, human-readable in the database.

// UserRole is a user's global permission level across the platform.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin" // Can curate platform data such as virtual trails
	UserRoleUser  UserRole = "user"  // Regular member
)

// ClubRole controls what a user can do within one specific club.
// This is separate from UserRole, which is global.
type ClubRole string

const (
	ClubRoleAdmin     ClubRole = "admin"     // The creator; manages the club and schedules sessions
	ClubRoleModerator ClubRole = "moderator" // Can schedule sessions
	ClubRoleMember    ClubRole = "member"    // Participant only
)

// CanScheduleSessions reports whether the role may create group sessions for its club.
func (r ClubRole) CanScheduleSessions() bool {
	return r == ClubRoleAdmin || r == ClubRoleModerator
}

// Intensity is the self-reported effort of a workout.
type Intensity string

const (
	IntensityLow      Intensity = "low"
	IntensityModerate Intensity = "moderate"
	IntensityHigh     Intensity = "high"
)

// EquipmentType is the allow-list of smart equipment that can be connected.
type EquipmentType string

const (
	EquipmentTreadmill        EquipmentType = "treadmill"
	EquipmentBike             EquipmentType = "bike"
	EquipmentRower            EquipmentType = "rower"
	EquipmentElliptical       EquipmentType = "elliptical"
	EquipmentSmartTrainer     EquipmentType = "smart_trainer"
	EquipmentHeartRateMonitor EquipmentType = "heart_rate_monitor"
)

// EquipmentTypes lists every accepted EquipmentType, in display order.
var EquipmentTypes = []EquipmentType{
	EquipmentTreadmill,
	EquipmentBike,
	EquipmentRower,
	EquipmentElliptical,
	EquipmentSmartTrainer,
	EquipmentHeartRateMonitor,
}

// Valid reports whether t is on the allow-list.
func (t EquipmentType) Valid() bool {
	for _, known := range EquipmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TrailSessionStatus tracks the lifecycle of one attempt at a virtual trail.
type TrailSessionStatus string

const (
	TrailSessionActive    TrailSessionStatus = "active"    // In progress
	TrailSessionPaused    TrailSessionStatus = "paused"    // Temporarily stopped; can resume
	TrailSessionCompleted TrailSessionStatus = "completed" // Finished; terminal
	TrailSessionAbandoned TrailSessionStatus = "abandoned" // Given up; terminal
)

// CanTransitionTo reports whether a session in status s may move to next.
//
//	active -> paused | completed | abandoned
//	paused -> active | completed | abandoned
//
// completed and abandoned are terminal.
func (s TrailSessionStatus) CanTransitionTo(next TrailSessionStatus) bool {
	switch s {
	case TrailSessionActive:
		return next == TrailSessionPaused || next == TrailSessionCompleted || next == TrailSessionAbandoned
	case TrailSessionPaused:
		return next == TrailSessionActive || next == TrailSessionCompleted || next == TrailSessionAbandoned
	default:
		return false
	}
}

// SessionMode describes how a trail session is ridden.
type SessionMode string

const (
	SessionModeSolo  SessionMode = "solo"
	SessionModeGroup SessionMode = "group"
	SessionModeRace  SessionMode = "race"
)

// AchievementFirstCompletion is awarded the first time a user completes a trail.
const AchievementFirstCompletion = "first_completion"

// --- Models ---

// User represents a registered person.
type User struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Username       string    `gorm:"not null"` // Unique (users_username_key)
	Email          string    `gorm:"not null"` // Unique (users_email_key)
	PasswordHash   string    `gorm:"not null"` // bcrypt hash; never serialized
	ProfilePicture *string   // Optional URL; pointer = nullable
	Role           UserRole  `gorm:"not null;default:'user'"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Workout is one logged training session owned by a single user.
type Workout struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID          uuid.UUID `gorm:"type:uuid;not null"`
	Title           string    `gorm:"not null"`
	WorkoutType     string    `gorm:"not null;default:''"` // Free-form label, e.g. "run", "strength"
	DurationMinutes int       `gorm:"not null"`
	Intensity       Intensity `gorm:"not null"`
	CaloriesBurned  *int
	Notes           *string
	CreatedAt       time.Time
}

// SocialPost is a short status update shown in the community feed.
type SocialPost struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`
	Content   string    `gorm:"not null"`
	Likes     int       `gorm:"not null;default:0"` // Incremented in SQL, never read-modify-write
	CreatedAt time.Time
}

// FitnessClub is a community of users organised around a category (running, cycling, ...).
// Who belongs to a club is tracked via ClubMember.
type FitnessClub struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatorID     uuid.UUID `gorm:"type:uuid;not null"`
	Name          string    `gorm:"not null"`
	Description   *string
	Category      string  `gorm:"not null"`
	EquipmentType *string // Optional equipment focus, e.g. "bike"
	MaxMembers    int     `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ClubMember links a User to a FitnessClub. The composite primary key makes
// membership unique per (club, user).
type ClubMember struct {
	ClubID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Role     ClubRole  `gorm:"not null;default:'member'"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

// GroupSession is a scheduled class run by a club, usually on connected equipment.
type GroupSession struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ClubID            uuid.UUID `gorm:"type:uuid;not null"`
	InstructorID      uuid.UUID `gorm:"type:uuid;not null"`
	Title             string    `gorm:"not null"`
	Description       *string
	StartTime         time.Time      `gorm:"not null"`
	DurationMinutes   int            `gorm:"not null"`
	MaxParticipants   int            `gorm:"not null"`
	EquipmentSettings datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // Free-form targets, e.g. {"resistance": 12}
	CreatedAt         time.Time
}

// SessionParticipant links a User to a GroupSession.
type SessionParticipant struct {
	SessionID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	JoinedAt  time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the historical table name.
func (SessionParticipant) TableName() string { return "group_session_participants" }

// UserEquipment is a piece of smart equipment a user has connected.
// ConnectionData is opaque vendor metadata; only EquipmentType is validated.
type UserEquipment struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID         uuid.UUID      `gorm:"type:uuid;not null"`
	EquipmentType  EquipmentType  `gorm:"not null"`
	EquipmentID    string         `gorm:"not null"` // Vendor device id; unique per user
	EquipmentName  string         `gorm:"not null;default:''"`
	ConnectionData datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	LastSyncAt     *time.Time
	ConnectedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName keeps the singular table name used by the schema.
func (UserEquipment) TableName() string { return "user_equipment" }

// EquipmentWorkoutData is one append-only telemetry upload from a device.
type EquipmentWorkoutData struct {
	ID              uuid.UUID                      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID          uuid.UUID                      `gorm:"type:uuid;not null"`
	SessionID       *uuid.UUID                     `gorm:"type:uuid"` // Set when the upload belongs to a group session
	EquipmentID     string                         `gorm:"not null"`
	DistanceKm      float64                        `gorm:"not null;default:0"`
	CaloriesBurned  float64                        `gorm:"not null;default:0"`
	DurationSeconds int                            `gorm:"not null;default:0"`
	SpeedData       datatypes.JSONSlice[float64]   `gorm:"type:jsonb;not null;default:'[]'"`
	ResistanceData  datatypes.JSONSlice[float64]   `gorm:"type:jsonb;not null;default:'[]'"`
	HeartRateData   datatypes.JSONSlice[float64]   `gorm:"type:jsonb;not null;default:'[]'"`
	Timestamps      datatypes.JSONSlice[time.Time] `gorm:"type:jsonb;not null;default:'[]'"`
	RecordedAt      time.Time                      `gorm:"autoCreateTime"`
}

// TableName keeps "data" uncounted.
func (EquipmentWorkoutData) TableName() string { return "equipment_workout_data" }

// SessionLeaderboard holds one participant's current score in a group session.
// (session_id, user_id) is the primary key so every sync upserts the same row.
type SessionLeaderboard struct {
	SessionID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Score           int       `gorm:"not null"`
	DistanceKm      float64   `gorm:"not null"`
	CaloriesBurned  float64   `gorm:"not null"`
	DurationSeconds int       `gorm:"not null"`
	UpdatedAt       time.Time
}

// TableName keeps the singular table name used by the schema.
func (SessionLeaderboard) TableName() string { return "session_leaderboard" }

// VirtualTrail is a real-world route replayed on equipment. RouteData carries the
// elevation profile, resistance profile and checkpoints used to drive the device.
type VirtualTrail struct {
	ID                       uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name                     string         `gorm:"not null"`
	Description              string         `gorm:"not null;default:''"`
	Location                 string         `gorm:"not null;default:''"`
	ActivityType             string         `gorm:"not null"` // running, cycling, walking, rowing
	Difficulty               string         `gorm:"not null"` // easy, moderate, hard, expert
	DistanceKm               float64        `gorm:"not null"`
	ElevationGainM           float64        `gorm:"not null;default:0"`
	EstimatedDurationMinutes int            `gorm:"not null;default:0"`
	Featured                 bool           `gorm:"not null;default:false"`
	RouteData                datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt                time.Time
}

// TrailSession is one user's attempt at a VirtualTrail.
type TrailSession struct {
	ID                    uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID                uuid.UUID          `gorm:"type:uuid;not null"`
	TrailID               uuid.UUID          `gorm:"type:uuid;not null"`
	EquipmentID           *string            // Device used, if any
	SessionMode           SessionMode        `gorm:"not null;default:'solo'"`
	Status                TrailSessionStatus `gorm:"not null;default:'active'"`
	StartedAt             time.Time          `gorm:"not null"`
	CompletedAt           *time.Time
	CompletionTimeSeconds *int
	DistanceCoveredKm     *float64
}

// TrailAchievement records a milestone earned on a trail.
type TrailAchievement struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserID          uuid.UUID `gorm:"type:uuid;not null"`
	TrailID         uuid.UUID `gorm:"type:uuid;not null"`
	AchievementType string    `gorm:"not null"`
	EarnedAt        time.Time `gorm:"autoCreateTime"`
}
