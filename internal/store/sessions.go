package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// CreateSession inserts a group session. The handler has already checked that the
// instructor may schedule for the club; a missing club fails the foreign key (ErrNotFound).
func (p *Postgres) CreateSession(ctx context.Context, s *models.GroupSession) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if len(s.EquipmentSettings) == 0 {
		s.EquipmentSettings = []byte("{}")
	}
	return wrap("create session", p.conn(ctx).Create(s).Error)
}

// ListSessions returns sessions of the clubs userID belongs to, soonest first.
// The inner join on club_members does the visibility filtering: sessions of other
// clubs have no matching membership row and drop out.
func (p *Postgres) ListSessions(ctx context.Context, userID uuid.UUID, f SessionFilter) ([]SessionView, error) {
	query := p.conn(ctx).
		Table("group_sessions AS s").
		Select("s.*, c.name AS club_name, u.username AS instructor_name, " +
			"(SELECT COUNT(*) FROM group_session_participants gp WHERE gp.session_id = s.id) AS participant_count").
		Joins("JOIN fitness_clubs c ON c.id = s.club_id").
		Joins("JOIN users u ON u.id = s.instructor_id").
		Joins("JOIN club_members m ON m.club_id = s.club_id AND m.user_id = ?", userID)

	if f.ClubID != nil {
		query = query.Where("s.club_id = ?", *f.ClubID)
	}
	if f.Upcoming {
		query = query.Where("s.start_time >= ?", f.Now)
	}

	sessions := []SessionView{}
	if err := query.Order("s.start_time ASC").Scan(&sessions).Error; err != nil {
		return nil, wrap("list sessions", err)
	}
	return sessions, nil
}

// GetSession loads one session by id.
func (p *Postgres) GetSession(ctx context.Context, id uuid.UUID) (*models.GroupSession, error) {
	var s models.GroupSession
	if err := p.conn(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, wrap("get session", err)
	}
	return &s, nil
}

// JoinSession locks the session row, checks club membership and capacity, then inserts.
// Same pattern as JoinClub.
func (p *Postgres) JoinSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var s models.GroupSession
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&s, "id = ?", sessionID).Error; err != nil {
			return err
		}

		// Only members of the session's club may take a seat.
		var member int64
		if err := tx.Model(&models.ClubMember{}).
			Where("club_id = ? AND user_id = ?", s.ClubID, userID).
			Count(&member).Error; err != nil {
			return err
		}
		if member == 0 {
			return ErrNotMember
		}

		var joined int64
		if err := tx.Model(&models.SessionParticipant{}).
			Where("session_id = ? AND user_id = ?", sessionID, userID).
			Count(&joined).Error; err != nil {
			return err
		}
		if joined > 0 {
			return ErrAlreadyJoined
		}

		// The row lock on the session makes this count and the insert below atomic
		// with respect to other joins.
		var count int64
		if err := tx.Model(&models.SessionParticipant{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(s.MaxParticipants) {
			return ErrCapacityReached
		}

		return tx.Create(&models.SessionParticipant{SessionID: sessionID, UserID: userID}).Error
	})
	return wrap("join session", err)
}

// LeaveSession frees the caller's seat. Deleting nothing means they never joined.
func (p *Postgres) LeaveSession(ctx context.Context, sessionID, userID uuid.UUID) error {
	res := p.conn(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Delete(&models.SessionParticipant{})
	if res.Error != nil {
		return wrap("leave session", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("leave session", ErrNotParticipant)
	}
	return nil
}

// Leaderboard returns a session's standings by score. Ties keep the order in which
// participants reached the score and share a rank (see RankEntries).
func (p *Postgres) Leaderboard(ctx context.Context, sessionID uuid.UUID) ([]LeaderboardEntry, error) {
	entries := []LeaderboardEntry{}
	err := p.conn(ctx).
		Table("session_leaderboard AS l").
		Select("l.*, u.username").
		Joins("JOIN users u ON u.id = l.user_id").
		Where("l.session_id = ?", sessionID).
		Order("l.score DESC, l.updated_at ASC").
		Scan(&entries).Error
	if err != nil {
		return nil, wrap("leaderboard", err)
	}
	RankEntries(entries)
	return entries, nil
}

// isParticipant reports whether userID joined sessionID, inside tx.
func isParticipant(tx *gorm.DB, sessionID, userID uuid.UUID) (bool, error) {
	var p models.SessionParticipant
	err := tx.Where("session_id = ? AND user_id = ?", sessionID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}
