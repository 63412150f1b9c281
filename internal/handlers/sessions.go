package handlers

// sessions.go handles /api/clubs/sessions: scheduled group classes within a club.
// Only a club's admin or moderators may schedule; only club members may join.

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// CreateSessionRequest is the JSON body for POST /api/clubs/sessions.
type CreateSessionRequest struct {
	ClubID            string          `json:"club_id" validate:"required,uuid"`
	Title             string          `json:"title" validate:"required,max=200"`
	Description       *string         `json:"description" validate:"omitempty,max=2000"`
	StartTime         time.Time       `json:"start_time" validate:"required"`
	DurationMinutes   int             `json:"duration_minutes" validate:"required,gt=0,lte=600"`
	MaxParticipants   int             `json:"max_participants" validate:"required,gt=0,lte=1000"`
	EquipmentSettings json.RawMessage `json:"equipment_settings" validate:"omitempty,json_object"`
}

// GetSessions handles GET /api/clubs/sessions?club_id=&upcoming=true.
// Only sessions of clubs the caller belongs to are returned.
func GetSessions(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}

		filter := store.SessionFilter{Upcoming: c.QueryBool("upcoming"), Now: d.now()}
		if raw := c.Query("club_id"); raw != "" {
			clubID, err := uuid.Parse(raw)
			if err != nil {
				return errorJSON(c, fiber.StatusBadRequest, "Missing or invalid fields: club_id")
			}
			filter.ClubID = &clubID
		}

		sessions, err := d.Store.ListSessions(c.UserContext(), userID, filter)
		if err != nil {
			return err
		}
		response := make([]sessionResponse, 0, len(sessions))
		for _, s := range sessions {
			r := newSessionResponse(s.GroupSession)
			r.ClubName = s.ClubName
			r.InstructorName = s.InstructorName
			r.ParticipantCount = s.ParticipantCount
			response = append(response, r)
		}
		return c.JSON(response)
	}
}

// CreateSession handles POST /api/clubs/sessions. The caller becomes the instructor.
func CreateSession(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req CreateSessionRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}
		clubID := uuid.MustParse(req.ClubID) // validated above

		// 404 for a missing club before 403, so a typo in club_id isn't reported as a
		// permission problem.
		if _, err := d.Store.GetClub(c.UserContext(), clubID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errorJSON(c, fiber.StatusNotFound, "Club not found")
			}
			return err
		}

		// Non-members get the zero ClubRole, which can't schedule either.
		role, err := d.Store.MemberRole(c.UserContext(), clubID, userID)
		if err != nil && !errors.Is(err, store.ErrNotMember) {
			return err
		}
		if !role.CanScheduleSessions() {
			return errorJSON(c, fiber.StatusForbidden, "Only club admins and moderators can schedule sessions")
		}

		session := models.GroupSession{
			ClubID:            clubID,
			InstructorID:      userID,
			Title:             req.Title,
			Description:       req.Description,
			StartTime:         req.StartTime.UTC(),
			DurationMinutes:   req.DurationMinutes,
			MaxParticipants:   req.MaxParticipants,
			EquipmentSettings: objectOrEmpty(req.EquipmentSettings),
			CreatedAt:         d.now(),
		}
		if err := d.Store.CreateSession(c.UserContext(), &session); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"session": newSessionResponse(session),
		})
	}
}

// JoinSession handles POST /api/clubs/sessions/:id/join.
func JoinSession(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		sessionID, err := paramID(c, "id", "Session not found")
		if err != nil {
			return err
		}

		err = d.Store.JoinSession(c.UserContext(), sessionID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "Session not found")
		case errors.Is(err, store.ErrNotMember):
			return errorJSON(c, fiber.StatusForbidden, "Join the club before joining its sessions")
		case errors.Is(err, store.ErrAlreadyJoined):
			return errorJSON(c, fiber.StatusConflict, "Already joined this session")
		case errors.Is(err, store.ErrCapacityReached):
			return errorJSON(c, fiber.StatusConflict, "Session is full")
		case err != nil:
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Joined session"})
	}
}

// LeaveSession handles POST /api/clubs/sessions/:id/leave.
func LeaveSession(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		sessionID, err := paramID(c, "id", "Session not found")
		if err != nil {
			return err
		}

		err = d.Store.LeaveSession(c.UserContext(), sessionID, userID)
		if errors.Is(err, store.ErrNotParticipant) {
			return errorJSON(c, fiber.StatusNotFound, "Not a participant of this session")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Left session"})
	}
}

// GetLeaderboard handles GET /api/clubs/sessions/:id/leaderboard. Like the session list,
// it is visible only to members of the session's club.
func GetLeaderboard(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID, err := paramID(c, "id", "Session not found")
		if err != nil {
			return err
		}
		if ok, err := d.requireSessionViewer(c, sessionID); !ok {
			return err
		}

		entries, err := d.Store.Leaderboard(c.UserContext(), sessionID)
		if err != nil {
			return err
		}
		return c.JSON(newLeaderboardResponse(entries))
	}
}

// requireSessionViewer checks that the session exists and the caller belongs to its club.
// When ok is false the 403/404 has already been written and the caller just returns err.
func (d *Deps) requireSessionViewer(c *fiber.Ctx, sessionID uuid.UUID) (bool, error) {
	userID, err := currentUserID(c)
	if err != nil {
		return false, err
	}
	session, err := d.Store.GetSession(c.UserContext(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return false, errorJSON(c, fiber.StatusNotFound, "Session not found")
	}
	if err != nil {
		return false, err
	}

	// Same rule as GET /api/clubs/sessions: outsiders can't see a club's sessions.
	_, err = d.Store.MemberRole(c.UserContext(), session.ClubID, userID)
	if errors.Is(err, store.ErrNotMember) {
		return false, errorJSON(c, fiber.StatusForbidden, "Join the club to see this session")
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
