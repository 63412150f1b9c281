package handlers

// clubs.go handles the /api/clubs routes: listing, creating, membership.
//
// --- Permission model ---
// Global roles don't matter here. What a user may do inside a club depends on their
// club_members.role for that club:
//   - admin (the creator): manages the club and schedules sessions; cannot leave
//   - moderator: schedules sessions
//   - member: joins sessions

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/observability"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// CreateClubRequest is the JSON body for POST /api/clubs.
type CreateClubRequest struct {
	Name          string  `json:"name" validate:"required,max=100"`
	Description   *string `json:"description" validate:"omitempty,max=2000"`
	Category      string  `json:"category" validate:"required,max=50"`
	EquipmentType *string `json:"equipment_type" validate:"omitempty,equipment_type"`
	MaxMembers    int     `json:"max_members" validate:"required,gt=0,lte=10000"`
}

// GetClubs handles GET /api/clubs?category=. Public.
func GetClubs(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		clubs, err := d.Store.ListClubs(c.UserContext(), store.ClubFilter{Category: c.Query("category")})
		if err != nil {
			return err
		}
		return c.JSON(clubList(clubs))
	}
}

// GetMyClubs handles GET /api/clubs/mine: clubs the caller belongs to, with my_role.
func GetMyClubs(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		clubs, err := d.Store.ClubsForUser(c.UserContext(), userID)
		if err != nil {
			return err
		}
		return c.JSON(clubList(clubs))
	}
}

func clubList(clubs []store.ClubView) []clubResponse {
	response := make([]clubResponse, 0, len(clubs))
	for _, club := range clubs {
		response = append(response, newClubResponse(club))
	}
	return response
}

// GetClub handles GET /api/clubs/:id. Public.
func GetClub(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", "Club not found")
		if err != nil {
			return err
		}
		club, err := d.Store.GetClub(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Club not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "club": newClubResponse(*club)})
	}
}

// CreateClub handles POST /api/clubs. The creator becomes the club's admin in the same
// transaction as the insert, so the response already shows member_count 1.
func CreateClub(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req CreateClubRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		club := models.FitnessClub{
			CreatorID:     userID,
			Name:          req.Name,
			Description:   req.Description,
			Category:      req.Category,
			EquipmentType: req.EquipmentType,
			MaxMembers:    req.MaxMembers,
			CreatedAt:     d.now(),
		}
		if err := d.Store.CreateClub(c.UserContext(), &club); err != nil {
			return err
		}

		// Re-read through GetClub so the response carries creator_name and member_count
		// exactly as GET /api/clubs/:id would show them.
		view, err := d.Store.GetClub(c.UserContext(), club.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"club":    newClubResponse(*view),
		})
	}
}

// GetClubMembers handles GET /api/clubs/:id/members. Public.
func GetClubMembers(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", "Club not found")
		if err != nil {
			return err
		}
		if _, err := d.Store.GetClub(c.UserContext(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errorJSON(c, fiber.StatusNotFound, "Club not found")
			}
			return err
		}

		members, err := d.Store.ClubMembers(c.UserContext(), id)
		if err != nil {
			return err
		}
		response := make([]memberResponse, 0, len(members))
		for _, m := range members {
			response = append(response, memberResponse{
				UserID:         m.UserID.String(),
				Username:       m.Username,
				ProfilePicture: m.ProfilePicture,
				Role:           string(m.Role),
				JoinedAt:       m.JoinedAt,
			})
		}
		return c.JSON(response)
	}
}

// JoinClub handles POST /api/clubs/:id/join.
func JoinClub(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		clubID, err := paramID(c, "id", "Club not found")
		if err != nil {
			return err
		}

		// The store does the capacity check and the insert under one row lock; each
		// sentinel it can return maps to one response here. Every outcome is counted.
		err = d.Store.JoinClub(c.UserContext(), clubID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			observability.RecordClubJoin("not_found")
			return errorJSON(c, fiber.StatusNotFound, "Club not found")
		case errors.Is(err, store.ErrAlreadyMember):
			observability.RecordClubJoin("already_member")
			return errorJSON(c, fiber.StatusConflict, "Already a member of this club")
		case errors.Is(err, store.ErrCapacityReached):
			observability.RecordClubJoin("full")
			return errorJSON(c, fiber.StatusConflict, "Club is at maximum capacity")
		case err != nil:
			return err
		}

		observability.RecordClubJoin("joined")
		// Keyed by club so one club's joins stay ordered on a single partition.
		d.publish(c.UserContext(), clubID.String(), events.New(events.TypeClubMemberJoined, d.now(), fiber.Map{
			"club_id": clubID.String(),
			"user_id": userID.String(),
		}))
		return c.JSON(fiber.Map{"success": true, "message": "Joined club"})
	}
}

// LeaveClub handles POST /api/clubs/:id/leave.
func LeaveClub(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		clubID, err := paramID(c, "id", "Club not found")
		if err != nil {
			return err
		}

		err = d.Store.LeaveClub(c.UserContext(), clubID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "Club not found")
		case errors.Is(err, store.ErrNotMember):
			return errorJSON(c, fiber.StatusNotFound, "Not a member of this club")
		case errors.Is(err, store.ErrAdminCannotLeave):
			return errorJSON(c, fiber.StatusConflict, "Club admins cannot leave their own club")
		case err != nil:
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Left club"})
	}
}
