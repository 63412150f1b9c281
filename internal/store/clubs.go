package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// CreateClub creates the club and makes the creator its admin.
// db.Transaction commits if the callback returns nil and rolls back otherwise,
// so a club never exists without its admin membership.
func (p *Postgres) CreateClub(ctx context.Context, club *models.FitnessClub) error {
	if club.ID == uuid.Nil {
		club.ID = uuid.New()
	}
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(club).Error; err != nil {
			return err
		}
		admin := models.ClubMember{
			ClubID: club.ID,
			UserID: club.CreatorID,
			Role:   models.ClubRoleAdmin,
		}
		return tx.Create(&admin).Error
	})
	return wrap("create club", err)
}

// clubColumns selects a club with the creator's username and a live member count.
const clubColumns = "c.*, u.username AS creator_name, " +
	"(SELECT COUNT(*) FROM club_members m WHERE m.club_id = c.id) AS member_count"

// clubQuery starts a query over fitness_clubs joined to the creator's user row.
// Callers add filters and ordering, then Scan into ClubView.
func (p *Postgres) clubQuery(ctx context.Context, columns string) *gorm.DB {
	return p.conn(ctx).
		Table("fitness_clubs AS c").
		Select(columns).
		Joins("JOIN users u ON u.id = c.creator_id")
}

// ListClubs returns every club (optionally one category), newest first.
func (p *Postgres) ListClubs(ctx context.Context, f ClubFilter) ([]ClubView, error) {
	query := p.clubQuery(ctx, clubColumns)
	if f.Category != "" {
		query = query.Where("c.category = ?", f.Category)
	}

	clubs := []ClubView{}
	if err := query.Order("c.created_at DESC").Scan(&clubs).Error; err != nil {
		return nil, wrap("list clubs", err)
	}
	return clubs, nil
}

// ClubsForUser returns the clubs userID belongs to with their role in each, most
// recently joined first. The second join on club_members ("mine") both filters the
// clubs and supplies my_role.
func (p *Postgres) ClubsForUser(ctx context.Context, userID uuid.UUID) ([]ClubView, error) {
	clubs := []ClubView{}
	err := p.clubQuery(ctx, clubColumns+", mine.role AS my_role").
		Joins("JOIN club_members mine ON mine.club_id = c.id AND mine.user_id = ?", userID).
		Order("mine.joined_at DESC").
		Scan(&clubs).Error
	if err != nil {
		return nil, wrap("clubs for user", err)
	}
	return clubs, nil
}

// GetClub returns one club with creator_name and member_count.
// Scan (unlike First) does not report a missing row, so RowsAffected is checked instead.
func (p *Postgres) GetClub(ctx context.Context, id uuid.UUID) (*ClubView, error) {
	var club ClubView
	res := p.clubQuery(ctx, clubColumns).Where("c.id = ?", id).Scan(&club)
	if res.Error != nil {
		return nil, wrap("get club", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, wrap("get club", ErrNotFound)
	}
	return &club, nil
}

// ClubMembers lists a club's members: admin first, then moderators, then members,
// each group in join order.
func (p *Postgres) ClubMembers(ctx context.Context, clubID uuid.UUID) ([]MemberView, error) {
	members := []MemberView{}
	err := p.conn(ctx).
		Table("club_members AS m").
		Select("m.user_id, u.username, u.profile_picture, m.role, m.joined_at").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.club_id = ?", clubID).
		Order("CASE m.role WHEN 'admin' THEN 0 WHEN 'moderator' THEN 1 ELSE 2 END, m.joined_at").
		Scan(&members).Error
	if err != nil {
		return nil, wrap("club members", err)
	}
	return members, nil
}

// MemberRole returns userID's role in the club, or ErrNotMember.
func (p *Postgres) MemberRole(ctx context.Context, clubID, userID uuid.UUID) (models.ClubRole, error) {
	var member models.ClubMember
	err := p.conn(ctx).Where("club_id = ? AND user_id = ?", clubID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrNotMember
		}
		return "", wrap("member role", err)
	}
	return member.Role, nil
}

// JoinClub enforces max_members under a row lock on the club. Two concurrent joins
// on the same club serialize on SELECT ... FOR UPDATE, so the count each one sees
// includes the other's insert.
func (p *Postgres) JoinClub(ctx context.Context, clubID, userID uuid.UUID) error {
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE: the lock is held until the transaction ends, so the
		// count below cannot change under us. A missing club comes back as
		// gorm.ErrRecordNotFound, which wrap turns into ErrNotFound.
		var club models.FitnessClub
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&club, "id = ?", clubID).Error; err != nil {
			return err
		}

		// Already in the club? The primary key (club_id, user_id) would reject the insert
		// too, but checking first gives a clear sentinel instead of a 23505.
		var existing int64
		if err := tx.Model(&models.ClubMember{}).
			Where("club_id = ? AND user_id = ?", clubID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyMember
		}

		// The admin counts toward max_members.
		var count int64
		if err := tx.Model(&models.ClubMember{}).Where("club_id = ?", clubID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(club.MaxMembers) {
			return ErrCapacityReached
		}

		return tx.Create(&models.ClubMember{ClubID: clubID, UserID: userID, Role: models.ClubRoleMember}).Error
	})
	return wrap("join club", err)
}

// LeaveClub removes userID from the club. The club row is locked like in JoinClub so a
// leave and a join on a full club are applied one after the other. The admin can't leave.
func (p *Postgres) LeaveClub(ctx context.Context, clubID, userID uuid.UUID) error {
	err := p.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var club models.FitnessClub
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&club, "id = ?", clubID).Error; err != nil {
			return err
		}

		var member models.ClubMember
		err := tx.Where("club_id = ? AND user_id = ?", clubID, userID).First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		if err != nil {
			return err
		}
		if member.Role == models.ClubRoleAdmin {
			return ErrAdminCannotLeave
		}

		return tx.Where("club_id = ? AND user_id = ?", clubID, userID).Delete(&models.ClubMember{}).Error
	})
	return wrap("leave club", err)
}
