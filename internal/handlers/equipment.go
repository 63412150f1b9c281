package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/leaderboard"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/observability"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// ConnectEquipmentRequest is the JSON body for POST /api/equipment/connect.
// connection_data is stored opaquely; only equipment_type is checked.
type ConnectEquipmentRequest struct {
	EquipmentType  string          `json:"equipment_type" validate:"required,equipment_type"`
	EquipmentID    string          `json:"equipment_id" validate:"required,max=100"`
	EquipmentName  string          `json:"equipment_name" validate:"max=100"`
	ConnectionData json.RawMessage `json:"connection_data" validate:"omitempty,json_object"`
}

// WorkoutData is the telemetry block of a sync upload. The upper bounds allow a day-long
// session (1000 km, 50000 kcal, 86400 s) and keep every stored value and the derived
// score inside Postgres INTEGER range.
type WorkoutData struct {
	DistanceKm      float64     `json:"distance_km" validate:"gte=0,lte=1000"`
	CaloriesBurned  float64     `json:"calories_burned" validate:"gte=0,lte=50000"`
	DurationSeconds int         `json:"duration_seconds" validate:"gte=0,lte=86400"`
	SpeedData       []float64   `json:"speed_data"`
	ResistanceData  []float64   `json:"resistance_data"`
	HeartRateData   []float64   `json:"heart_rate_data"`
	Timestamps      []time.Time `json:"timestamps"`
}

// SyncRequest is the JSON body for POST /api/equipment/sync.
type SyncRequest struct {
	SessionID   *string      `json:"session_id" validate:"omitempty,uuid"`
	EquipmentID string       `json:"equipment_id" validate:"required"`
	WorkoutData *WorkoutData `json:"workout_data" validate:"required"`
}

// GetEquipment handles GET /api/equipment.
func GetEquipment(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		equipment, err := d.Store.ListEquipment(c.UserContext(), userID)
		if err != nil {
			return err
		}
		response := make([]equipmentResponse, 0, len(equipment))
		for _, eq := range equipment {
			response = append(response, newEquipmentResponse(eq))
		}
		return c.JSON(response)
	}
}

// ConnectEquipment handles POST /api/equipment/connect. Reconnecting the same
// equipment_id updates the existing record.
func ConnectEquipment(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req ConnectEquipmentRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		eq := models.UserEquipment{
			UserID:         userID,
			EquipmentType:  models.EquipmentType(req.EquipmentType),
			EquipmentID:    req.EquipmentID,
			EquipmentName:  req.EquipmentName,
			ConnectionData: objectOrEmpty(req.ConnectionData),
		}
		if err := d.Store.ConnectEquipment(c.UserContext(), &eq); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "equipment": newEquipmentResponse(eq)})
	}
}

// DisconnectEquipment handles DELETE /api/equipment/:equipmentId.
func DisconnectEquipment(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		err = d.Store.DisconnectEquipment(c.UserContext(), userID, c.Params("equipmentId"))
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Equipment not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Equipment disconnected"})
	}
}

// SyncEquipment handles POST /api/equipment/sync.
//
// The upload is always stored. When it names a group session, the caller's leaderboard
// row is replaced with the score for these totals and every live viewer of that
// session receives the new standings.
func SyncEquipment(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req SyncRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		// Array fields are stored as JSONB arrays; nil would become JSON null, so
		// absent series are stored as [].
		wd := req.WorkoutData
		data := models.EquipmentWorkoutData{
			UserID:          userID,
			EquipmentID:     req.EquipmentID,
			DistanceKm:      wd.DistanceKm,
			CaloriesBurned:  wd.CaloriesBurned,
			DurationSeconds: wd.DurationSeconds,
			SpeedData:       nonNil(wd.SpeedData),
			ResistanceData:  nonNil(wd.ResistanceData),
			HeartRateData:   nonNil(wd.HeartRateData),
			Timestamps:      nonNil(wd.Timestamps),
			RecordedAt:      d.now(),
		}
		if req.SessionID != nil {
			sessionID := uuid.MustParse(*req.SessionID) // validated above
			data.SessionID = &sessionID
		}
		// The score is computed for every upload but only stored for session uploads.
		score := leaderboard.Score(wd.DistanceKm, wd.CaloriesBurned, wd.DurationSeconds)

		err = d.Store.RecordSync(c.UserContext(), &data, score)
		switch {
		case errors.Is(err, store.ErrEquipmentNotConnected):
			return errorJSON(c, fiber.StatusNotFound, "Equipment not connected")
		case errors.Is(err, store.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "Session not found")
		case errors.Is(err, store.ErrNotParticipant):
			return errorJSON(c, fiber.StatusForbidden, "Join the session before syncing to it")
		case err != nil:
			return err
		}

		d.publish(c.UserContext(), userID.String(), events.New(events.TypeEquipmentSynced, data.RecordedAt, fiber.Map{
			"data_id":      data.ID.String(),
			"user_id":      userID.String(),
			"equipment_id": data.EquipmentID,
			"session_id":   data.SessionID,
			"score":        score,
		}))

		if data.SessionID == nil {
			observability.RecordSync("solo", data.RecordedAt)
			return c.JSON(fiber.Map{"success": true, "data_id": data.ID.String()})
		}

		observability.RecordSync("session", data.RecordedAt)
		// Live viewers get the new standings; a full or stopped hub just drops the update.
		d.pushLeaderboard(c.UserContext(), *data.SessionID)
		return c.JSON(fiber.Map{"success": true, "data_id": data.ID.String(), "score": score})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// leaderboardMessage is what live viewers receive.
type leaderboardMessage struct {
	Type      string                     `json:"type"`
	SessionID string                     `json:"session_id"`
	Entries   []leaderboardEntryResponse `json:"entries"`
}

func (d *Deps) leaderboardSnapshot(ctx context.Context, sessionID uuid.UUID) ([]byte, error) {
	entries, err := d.Store.Leaderboard(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(leaderboardMessage{
		Type:      "leaderboard",
		SessionID: sessionID.String(),
		Entries:   newLeaderboardResponse(entries),
	})
}

// pushLeaderboard sends the current standings to live viewers. The sync itself has
// already succeeded, so failures here are only logged.
func (d *Deps) pushLeaderboard(ctx context.Context, sessionID uuid.UUID) {
	if d.Hub == nil {
		return
	}
	payload, err := d.leaderboardSnapshot(ctx, sessionID)
	if err != nil {
		d.Log.Warn("build leaderboard snapshot", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	if !d.Hub.BroadcastToSession(sessionID.String(), payload) {
		d.Log.Warn("leaderboard broadcast dropped", zap.String("session_id", sessionID.String()))
	}
}
