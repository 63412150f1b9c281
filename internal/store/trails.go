package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// trailColumns selects a trail with aggregate statistics over its sessions.
const trailColumns = "t.*, " +
	"(SELECT COUNT(*) FROM trail_sessions ts WHERE ts.trail_id = t.id) AS total_sessions, " +
	"(SELECT COUNT(*) FROM trail_sessions ts WHERE ts.trail_id = t.id AND ts.status = 'completed') AS completed_sessions, " +
	"(SELECT MIN(ts.completion_time_seconds) FROM trail_sessions ts WHERE ts.trail_id = t.id AND ts.status = 'completed') AS best_time_seconds"

// ListTrails returns trails matching every non-empty filter field, featured first and
// then by name. Location is a case-insensitive substring match.
func (p *Postgres) ListTrails(ctx context.Context, f TrailFilter) ([]TrailView, error) {
	query := p.conn(ctx).Table("virtual_trails AS t").Select(trailColumns)
	if f.ActivityType != "" {
		query = query.Where("t.activity_type = ?", f.ActivityType)
	}
	if f.Difficulty != "" {
		query = query.Where("t.difficulty = ?", f.Difficulty)
	}
	if f.Location != "" {
		query = query.Where("t.location ILIKE ?", "%"+f.Location+"%")
	}
	if f.Featured != nil {
		query = query.Where("t.featured = ?", *f.Featured)
	}

	trails := []TrailView{}
	if err := query.Order("t.featured DESC, t.name ASC").Scan(&trails).Error; err != nil {
		return nil, wrap("list trails", err)
	}
	return trails, nil
}

// GetTrail returns one trail with its statistics and route_data.
func (p *Postgres) GetTrail(ctx context.Context, id uuid.UUID) (*TrailView, error) {
	var trail TrailView
	res := p.conn(ctx).Table("virtual_trails AS t").Select(trailColumns).Where("t.id = ?", id).Scan(&trail)
	if res.Error != nil {
		return nil, wrap("get trail", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, wrap("get trail", ErrNotFound)
	}
	return &trail, nil
}

// CreateTrail inserts a trail. An absent route_data is stored as {}.
func (p *Postgres) CreateTrail(ctx context.Context, t *models.VirtualTrail) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if len(t.RouteData) == 0 {
		t.RouteData = []byte("{}")
	}
	return wrap("create trail", p.conn(ctx).Create(t).Error)
}

// StartTrailSession inserts a new attempt. A missing trail fails the foreign key (ErrNotFound).
func (p *Postgres) StartTrailSession(ctx context.Context, s *models.TrailSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return wrap("start trail session", p.conn(ctx).Create(s).Error)
}

// ListTrailSessions returns the user's attempts with trail names, newest first.
func (p *Postgres) ListTrailSessions(ctx context.Context, userID uuid.UUID) ([]TrailSessionView, error) {
	sessions := []TrailSessionView{}
	err := p.conn(ctx).
		Table("trail_sessions AS s").
		Select("s.*, t.name AS trail_name").
		Joins("JOIN virtual_trails t ON t.id = s.trail_id").
		Where("s.user_id = ?", userID).
		Order("s.started_at DESC").
		Scan(&sessions).Error
	if err != nil {
		return nil, wrap("list trail sessions", err)
	}
	return sessions, nil
}

// GetTrailSession loads one attempt by id. Ownership is checked by the caller.
func (p *Postgres) GetTrailSession(ctx context.Context, id uuid.UUID) (*models.TrailSession, error) {
	var s models.TrailSession
	if err := p.conn(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, wrap("get trail session", err)
	}
	return &s, nil
}

// UpdateTrailSession is a compare-and-set on status: the UPDATE only matches while
// the row is still in status from, so two racing PATCHes cannot both apply.
func (p *Postgres) UpdateTrailSession(ctx context.Context, s *models.TrailSession, from models.TrailSessionStatus) (bool, error) {
	awarded := false
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.TrailSession{}).
			Where("id = ? AND status = ?", s.ID, from).
			Updates(map[string]interface{}{
				"status":                  s.Status,
				"completed_at":            s.CompletedAt,
				"completion_time_seconds": s.CompletionTimeSeconds,
				"distance_covered_km":     s.DistanceCoveredKm,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleStatus
		}

		if s.Status != models.TrailSessionCompleted {
			return nil
		}

		// UNIQUE (user_id, trail_id, achievement_type) plus ON CONFLICT DO NOTHING:
		// the first completion inserts a row, later ones insert nothing. RowsAffected
		// tells the two apart.
		achievement := models.TrailAchievement{
			ID:              uuid.New(),
			UserID:          s.UserID,
			TrailID:         s.TrailID,
			AchievementType: models.AchievementFirstCompletion,
		}
		if s.CompletedAt != nil {
			achievement.EarnedAt = *s.CompletedAt
		}
		res = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&achievement)
		if res.Error != nil {
			return res.Error
		}
		awarded = res.RowsAffected == 1
		return nil
	})
	return awarded, wrap("update trail session", err)
}

// ListAchievements returns the user's achievements with trail names, newest first.
func (p *Postgres) ListAchievements(ctx context.Context, userID uuid.UUID) ([]AchievementView, error) {
	achievements := []AchievementView{}
	err := p.conn(ctx).
		Table("trail_achievements AS a").
		Select("a.*, t.name AS trail_name").
		Joins("JOIN virtual_trails t ON t.id = a.trail_id").
		Where("a.user_id = ?", userID).
		Order("a.earned_at DESC").
		Scan(&achievements).Error
	if err != nil {
		return nil, wrap("list achievements", err)
	}
	return achievements, nil
}
