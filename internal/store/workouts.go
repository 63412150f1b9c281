package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

func (p *Postgres) CreateWorkout(ctx context.Context, w *models.Workout) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return wrap("create workout", p.conn(ctx).Create(w).Error)
}

func (p *Postgres) ListWorkouts(ctx context.Context, userID uuid.UUID, limit int) ([]models.Workout, error) {
	workouts := []models.Workout{}
	err := p.conn(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&workouts).Error
	if err != nil {
		return nil, wrap("list workouts", err)
	}
	return workouts, nil
}

// DeleteWorkout deletes a workout only if userID owns it. Ownership is part of the
// WHERE clause, so someone else's workout looks exactly like a missing one.
func (p *Postgres) DeleteWorkout(ctx context.Context, userID, id uuid.UUID) error {
	res := p.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Workout{})
	if res.Error != nil {
		return wrap("delete workout", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete workout", ErrNotFound)
	}
	return nil
}
