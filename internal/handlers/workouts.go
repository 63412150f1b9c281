package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// CreateWorkoutRequest is the JSON body for POST /api/workouts.
type CreateWorkoutRequest struct {
	Title           string  `json:"title" validate:"required,max=200"`
	WorkoutType     string  `json:"workout_type" validate:"max=50"`
	DurationMinutes int     `json:"duration_minutes" validate:"required,gt=0,lte=1440"`
	Intensity       string  `json:"intensity" validate:"required,oneof=low moderate high"`
	CaloriesBurned  *int    `json:"calories_burned" validate:"omitempty,gte=0"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

// GetWorkouts handles GET /api/workouts?limit=, newest first.
func GetWorkouts(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		workouts, err := d.Store.ListWorkouts(c.UserContext(), userID, queryLimit(c))
		if err != nil {
			return err
		}
		response := make([]workoutResponse, 0, len(workouts))
		for _, w := range workouts {
			response = append(response, newWorkoutResponse(w))
		}
		return c.JSON(response)
	}
}

// CreateWorkout handles POST /api/workouts.
func CreateWorkout(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req CreateWorkoutRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		workout := models.Workout{
			UserID:          userID,
			Title:           req.Title,
			WorkoutType:     req.WorkoutType,
			DurationMinutes: req.DurationMinutes,
			Intensity:       models.Intensity(req.Intensity),
			CaloriesBurned:  req.CaloriesBurned,
			Notes:           req.Notes,
			CreatedAt:       d.now(),
		}
		if err := d.Store.CreateWorkout(c.UserContext(), &workout); err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"workout": newWorkoutResponse(workout),
		})
	}
}

// DeleteWorkout handles DELETE /api/workouts/:id. Another user's workout is
// reported as not found.
func DeleteWorkout(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id", "Workout not found")
		if err != nil {
			return err
		}

		err = d.Store.DeleteWorkout(c.UserContext(), userID, id)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Workout not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Workout deleted"})
	}
}
