package handlers

// trails.go handles /api/trails: virtual trails replayed on connected equipment.
//
// Trail session lifecycle:
//
//	active -> paused | completed | abandoned
//	paused -> active | completed | abandoned
//
// The first completed session per (user, trail) earns a first_completion achievement.

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/observability"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// CreateTrailRequest is the JSON body for POST /api/trails (admins only).
type CreateTrailRequest struct {
	Name                     string          `json:"name" validate:"required,max=200"`
	Description              string          `json:"description" validate:"max=2000"`
	Location                 string          `json:"location" validate:"max=200"`
	ActivityType             string          `json:"activity_type" validate:"required,oneof=running cycling walking rowing hiking"`
	Difficulty               string          `json:"difficulty" validate:"required,oneof=easy moderate hard expert"`
	DistanceKm               float64         `json:"distance_km" validate:"required,gt=0"`
	ElevationGainM           float64         `json:"elevation_gain_m" validate:"gte=0"`
	EstimatedDurationMinutes int             `json:"estimated_duration_minutes" validate:"gte=0"`
	Featured                 bool            `json:"featured"`
	RouteData                json.RawMessage `json:"route_data" validate:"omitempty,json_object"`
}

// StartTrailSessionRequest is the JSON body for POST /api/trails/sessions.
type StartTrailSessionRequest struct {
	TrailID     string  `json:"trail_id" validate:"required,uuid"`
	EquipmentID *string `json:"equipment_id" validate:"omitempty,max=100"`
	SessionMode string  `json:"session_mode" validate:"omitempty,oneof=solo group race"`
}

// UpdateTrailSessionRequest is the JSON body for PATCH /api/trails/sessions/:id.
type UpdateTrailSessionRequest struct {
	Status                string   `json:"status" validate:"required,oneof=active paused completed abandoned"`
	CompletionTimeSeconds *int     `json:"completion_time_seconds" validate:"omitempty,gte=0"`
	DistanceCoveredKm     *float64 `json:"distance_covered_km" validate:"omitempty,gte=0"`
}

// EquipmentConfig tells the client how to drive the device along the trail. Each
// profile is copied verbatim from the trail's route_data.
type EquipmentConfig struct {
	TrailID           string          `json:"trail_id"`
	InclineProfile    json.RawMessage `json:"incline_profile"`    // route_data.elevation_profile
	ResistanceProfile json.RawMessage `json:"resistance_profile"` // route_data.resistance_profile
	Checkpoints       json.RawMessage `json:"checkpoints"`        // route_data.checkpoints
}

// buildEquipmentConfig extracts the device profiles from a trail's route_data without
// decoding them, so numbers and nested objects come back byte-for-byte.
func buildEquipmentConfig(trail *store.TrailView) (EquipmentConfig, error) {
	cfg := EquipmentConfig{TrailID: trail.ID.String()}
	if isNullJSON(json.RawMessage(trail.RouteData)) {
		return cfg, nil
	}
	var route map[string]json.RawMessage
	if err := json.Unmarshal(trail.RouteData, &route); err != nil {
		return cfg, fmt.Errorf("decode route_data of trail %s: %w", trail.ID, err)
	}
	cfg.InclineProfile = route["elevation_profile"]
	cfg.ResistanceProfile = route["resistance_profile"]
	cfg.Checkpoints = route["checkpoints"]
	return cfg, nil
}

// GetTrails handles GET /api/trails?activity_type=&difficulty=&location=&featured=. Public.
func GetTrails(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := store.TrailFilter{
			ActivityType: c.Query("activity_type"),
			Difficulty:   c.Query("difficulty"),
			Location:     c.Query("location"),
		}
		if raw := c.Query("featured"); raw != "" {
			featured, err := strconv.ParseBool(raw)
			if err != nil {
				return errorJSON(c, fiber.StatusBadRequest, "Missing or invalid fields: featured")
			}
			filter.Featured = &featured
		}

		trails, err := d.Store.ListTrails(c.UserContext(), filter)
		if err != nil {
			return err
		}
		response := make([]trailResponse, 0, len(trails))
		for _, t := range trails {
			response = append(response, newTrailResponse(t, false))
		}
		return c.JSON(response)
	}
}

// GetTrail handles GET /api/trails/:id, including route_data. Public.
func GetTrail(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", "Trail not found")
		if err != nil {
			return err
		}
		trail, err := d.Store.GetTrail(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Trail not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "trail": newTrailResponse(*trail, true)})
	}
}

// CreateTrail handles POST /api/trails. Guarded by RequireRole(admin) at the route.
func CreateTrail(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CreateTrailRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		trail := models.VirtualTrail{
			Name:                     req.Name,
			Description:              req.Description,
			Location:                 req.Location,
			ActivityType:             req.ActivityType,
			Difficulty:               req.Difficulty,
			DistanceKm:               req.DistanceKm,
			ElevationGainM:           req.ElevationGainM,
			EstimatedDurationMinutes: req.EstimatedDurationMinutes,
			Featured:                 req.Featured,
			RouteData:                objectOrEmpty(req.RouteData),
			CreatedAt:                d.now(),
		}
		if err := d.Store.CreateTrail(c.UserContext(), &trail); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"trail":   newTrailResponse(store.TrailView{VirtualTrail: trail}, true),
		})
	}
}

// GetTrailSessions handles GET /api/trails/sessions: the caller's attempts, newest first.
func GetTrailSessions(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		sessions, err := d.Store.ListTrailSessions(c.UserContext(), userID)
		if err != nil {
			return err
		}
		response := make([]trailSessionResponse, 0, len(sessions))
		for _, s := range sessions {
			response = append(response, newTrailSessionResponse(s.TrailSession, s.TrailName))
		}
		return c.JSON(response)
	}
}

// StartTrailSession handles POST /api/trails/sessions.
func StartTrailSession(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req StartTrailSessionRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}
		trailID := uuid.MustParse(req.TrailID) // validated above

		trail, err := d.Store.GetTrail(c.UserContext(), trailID)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Trail not found")
		}
		if err != nil {
			return err
		}
		config, err := buildEquipmentConfig(trail)
		if err != nil {
			return err
		}

		mode := models.SessionModeSolo
		if req.SessionMode != "" {
			mode = models.SessionMode(req.SessionMode)
		}
		session := models.TrailSession{
			UserID:      userID,
			TrailID:     trailID,
			EquipmentID: req.EquipmentID,
			SessionMode: mode,
			Status:      models.TrailSessionActive,
			StartedAt:   d.now(),
		}
		if err := d.Store.StartTrailSession(c.UserContext(), &session); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":          true,
			"session":          newTrailSessionResponse(session, trail.Name),
			"equipment_config": config,
		})
	}
}

// UpdateTrailSession handles PATCH /api/trails/sessions/:id: pause, resume, complete
// or abandon an attempt. Completing without completion_time_seconds uses the time
// elapsed since started_at.
func UpdateTrailSession(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id", "Trail session not found")
		if err != nil {
			return err
		}
		var req UpdateTrailSessionRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		current, err := d.Store.GetTrailSession(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && current.UserID != userID) {
			return errorJSON(c, fiber.StatusNotFound, "Trail session not found")
		}
		if err != nil {
			return err
		}

		next := models.TrailSessionStatus(req.Status)
		if !current.Status.CanTransitionTo(next) {
			return errorJSON(c, fiber.StatusConflict,
				fmt.Sprintf("Cannot change status from %s to %s", current.Status, next))
		}

		updated := *current
		updated.Status = next
		if req.DistanceCoveredKm != nil {
			updated.DistanceCoveredKm = req.DistanceCoveredKm
		}
		if next == models.TrailSessionCompleted {
			now := d.now()
			updated.CompletedAt = &now
			elapsed := int(now.Sub(current.StartedAt).Seconds())
			if req.CompletionTimeSeconds != nil {
				elapsed = *req.CompletionTimeSeconds
			}
			updated.CompletionTimeSeconds = &elapsed
		}

		awarded, err := d.Store.UpdateTrailSession(c.UserContext(), &updated, current.Status)
		if errors.Is(err, store.ErrStaleStatus) {
			return errorJSON(c, fiber.StatusConflict, "Trail session was updated concurrently, retry")
		}
		if err != nil {
			return err
		}

		if next == models.TrailSessionCompleted {
			observability.RecordTrailCompletion()
			d.publish(c.UserContext(), userID.String(), events.New(events.TypeTrailSessionCompleted, *updated.CompletedAt, fiber.Map{
				"trail_session_id":        updated.ID.String(),
				"trail_id":                updated.TrailID.String(),
				"user_id":                 userID.String(),
				"completion_time_seconds": updated.CompletionTimeSeconds,
				"first_completion":        awarded,
			}))
		}
		return c.JSON(fiber.Map{
			"success":         true,
			"session":         newTrailSessionResponse(updated, ""),
			"new_achievement": awarded,
		})
	}
}

// GetAchievements handles GET /api/trails/achievements.
func GetAchievements(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		achievements, err := d.Store.ListAchievements(c.UserContext(), userID)
		if err != nil {
			return err
		}
		response := make([]achievementResponse, 0, len(achievements))
		for _, a := range achievements {
			response = append(response, achievementResponse{
				ID:              a.ID.String(),
				TrailID:         a.TrailID.String(),
				TrailName:       a.TrailName,
				AchievementType: a.AchievementType,
				EarnedAt:        a.EarnedAt,
			})
		}
		return c.JSON(response)
	}
}
