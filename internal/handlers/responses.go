package handlers

import (
	"encoding/json"
	"time"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// Response structs control exactly what is serialised. GORM models never go to the
// client directly, so fields like PasswordHash cannot leak.

type userResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	ProfilePicture *string   `json:"profile_picture"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:             u.ID.String(),
		Username:       u.Username,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Role:           string(u.Role),
		CreatedAt:      u.CreatedAt,
	}
}

type workoutResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	WorkoutType     string    `json:"workout_type"`
	DurationMinutes int       `json:"duration_minutes"`
	Intensity       string    `json:"intensity"`
	CaloriesBurned  *int      `json:"calories_burned"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

func newWorkoutResponse(w models.Workout) workoutResponse {
	return workoutResponse{
		ID:              w.ID.String(),
		UserID:          w.UserID.String(),
		Title:           w.Title,
		WorkoutType:     w.WorkoutType,
		DurationMinutes: w.DurationMinutes,
		Intensity:       string(w.Intensity),
		CaloriesBurned:  w.CaloriesBurned,
		Notes:           w.Notes,
		CreatedAt:       w.CreatedAt,
	}
}

type postResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

func newPostResponse(p models.SocialPost, username string) postResponse {
	return postResponse{
		ID:        p.ID.String(),
		UserID:    p.UserID.String(),
		Username:  username,
		Content:   p.Content,
		Likes:     p.Likes,
		CreatedAt: p.CreatedAt,
	}
}

type clubResponse struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   *string   `json:"description"`
	Category      string    `json:"category"`
	EquipmentType *string   `json:"equipment_type"`
	MaxMembers    int       `json:"max_members"`
	CreatorID     string    `json:"creator_id"`
	CreatorName   string    `json:"creator_name"`
	MemberCount   int64     `json:"member_count"`
	MyRole        string    `json:"my_role,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newClubResponse(v store.ClubView) clubResponse {
	return clubResponse{
		ID:            v.ID.String(),
		Name:          v.Name,
		Description:   v.Description,
		Category:      v.Category,
		EquipmentType: v.EquipmentType,
		MaxMembers:    v.MaxMembers,
		CreatorID:     v.CreatorID.String(),
		CreatorName:   v.CreatorName,
		MemberCount:   v.MemberCount,
		MyRole:        string(v.MyRole),
		CreatedAt:     v.CreatedAt,
	}
}

type memberResponse struct {
	UserID         string    `json:"user_id"`
	Username       string    `json:"username"`
	ProfilePicture *string   `json:"profile_picture"`
	Role           string    `json:"role"`
	JoinedAt       time.Time `json:"joined_at"`
}

type sessionResponse struct {
	ID                string          `json:"id"`
	ClubID            string          `json:"club_id"`
	ClubName          string          `json:"club_name,omitempty"`
	InstructorID      string          `json:"instructor_id"`
	InstructorName    string          `json:"instructor_name,omitempty"`
	Title             string          `json:"title"`
	Description       *string         `json:"description"`
	StartTime         time.Time       `json:"start_time"`
	DurationMinutes   int             `json:"duration_minutes"`
	MaxParticipants   int             `json:"max_participants"`
	ParticipantCount  int64           `json:"participant_count"`
	EquipmentSettings json.RawMessage `json:"equipment_settings"`
	CreatedAt         time.Time       `json:"created_at"`
}

func newSessionResponse(s models.GroupSession) sessionResponse {
	return sessionResponse{
		ID:                s.ID.String(),
		ClubID:            s.ClubID.String(),
		InstructorID:      s.InstructorID.String(),
		Title:             s.Title,
		Description:       s.Description,
		StartTime:         s.StartTime,
		DurationMinutes:   s.DurationMinutes,
		MaxParticipants:   s.MaxParticipants,
		EquipmentSettings: json.RawMessage(objectOrEmpty(json.RawMessage(s.EquipmentSettings))),
		CreatedAt:         s.CreatedAt,
	}
}

type leaderboardEntryResponse struct {
	Rank            int       `json:"rank"`
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	Score           int       `json:"score"`
	DistanceKm      float64   `json:"distance_km"`
	CaloriesBurned  float64   `json:"calories_burned"`
	DurationSeconds int       `json:"duration_seconds"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newLeaderboardResponse(entries []store.LeaderboardEntry) []leaderboardEntryResponse {
	out := make([]leaderboardEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, leaderboardEntryResponse{
			Rank:            e.Rank,
			UserID:          e.UserID.String(),
			Username:        e.Username,
			Score:           e.Score,
			DistanceKm:      e.DistanceKm,
			CaloriesBurned:  e.CaloriesBurned,
			DurationSeconds: e.DurationSeconds,
			UpdatedAt:       e.UpdatedAt,
		})
	}
	return out
}

type equipmentResponse struct {
	ID             string          `json:"id"`
	EquipmentType  string          `json:"equipment_type"`
	EquipmentID    string          `json:"equipment_id"`
	EquipmentName  string          `json:"equipment_name"`
	ConnectionData json.RawMessage `json:"connection_data"`
	LastSyncAt     *time.Time      `json:"last_sync_at"`
	ConnectedAt    time.Time       `json:"connected_at"`
}

func newEquipmentResponse(eq models.UserEquipment) equipmentResponse {
	return equipmentResponse{
		ID:             eq.ID.String(),
		EquipmentType:  string(eq.EquipmentType),
		EquipmentID:    eq.EquipmentID,
		EquipmentName:  eq.EquipmentName,
		ConnectionData: json.RawMessage(objectOrEmpty(json.RawMessage(eq.ConnectionData))),
		LastSyncAt:     eq.LastSyncAt,
		ConnectedAt:    eq.ConnectedAt,
	}
}

type trailResponse struct {
	ID                       string          `json:"id"`
	Name                     string          `json:"name"`
	Description              string          `json:"description"`
	Location                 string          `json:"location"`
	ActivityType             string          `json:"activity_type"`
	Difficulty               string          `json:"difficulty"`
	DistanceKm               float64         `json:"distance_km"`
	ElevationGainM           float64         `json:"elevation_gain_m"`
	EstimatedDurationMinutes int             `json:"estimated_duration_minutes"`
	Featured                 bool            `json:"featured"`
	TotalSessions            int64           `json:"total_sessions"`
	CompletedSessions        int64           `json:"completed_sessions"`
	BestTimeSeconds          *int            `json:"best_time_seconds"`
	RouteData                json.RawMessage `json:"route_data,omitempty"` // Detail view only
	CreatedAt                time.Time       `json:"created_at"`
}

func newTrailResponse(v store.TrailView, withRoute bool) trailResponse {
	resp := trailResponse{
		ID:                       v.ID.String(),
		Name:                     v.Name,
		Description:              v.Description,
		Location:                 v.Location,
		ActivityType:             v.ActivityType,
		Difficulty:               v.Difficulty,
		DistanceKm:               v.DistanceKm,
		ElevationGainM:           v.ElevationGainM,
		EstimatedDurationMinutes: v.EstimatedDurationMinutes,
		Featured:                 v.Featured,
		TotalSessions:            v.TotalSessions,
		CompletedSessions:        v.CompletedSessions,
		BestTimeSeconds:          v.BestTimeSeconds,
		CreatedAt:                v.CreatedAt,
	}
	if withRoute {
		resp.RouteData = json.RawMessage(objectOrEmpty(json.RawMessage(v.RouteData)))
	}
	return resp
}

type trailSessionResponse struct {
	ID                    string     `json:"id"`
	TrailID               string     `json:"trail_id"`
	TrailName             string     `json:"trail_name,omitempty"`
	EquipmentID           *string    `json:"equipment_id"`
	SessionMode           string     `json:"session_mode"`
	Status                string     `json:"status"`
	StartedAt             time.Time  `json:"started_at"`
	CompletedAt           *time.Time `json:"completed_at"`
	CompletionTimeSeconds *int       `json:"completion_time_seconds"`
	DistanceCoveredKm     *float64   `json:"distance_covered_km"`
}

func newTrailSessionResponse(s models.TrailSession, trailName string) trailSessionResponse {
	return trailSessionResponse{
		ID:                    s.ID.String(),
		TrailID:               s.TrailID.String(),
		TrailName:             trailName,
		EquipmentID:           s.EquipmentID,
		SessionMode:           string(s.SessionMode),
		Status:                string(s.Status),
		StartedAt:             s.StartedAt,
		CompletedAt:           s.CompletedAt,
		CompletionTimeSeconds: s.CompletionTimeSeconds,
		DistanceCoveredKm:     s.DistanceCoveredKm,
	}
}

type achievementResponse struct {
	ID              string    `json:"id"`
	TrailID         string    `json:"trail_id"`
	TrailName       string    `json:"trail_name"`
	AchievementType string    `json:"achievement_type"`
	EarnedAt        time.Time `json:"earned_at"`
}
