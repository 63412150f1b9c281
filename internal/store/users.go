package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

func (p *Postgres) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return wrap("create user", p.conn(ctx).Create(user).Error)
}

func (p *Postgres) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := p.conn(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, wrap("user by username", err)
	}
	return &user, nil
}

func (p *Postgres) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := p.conn(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, wrap("user by id", err)
	}
	return &user, nil
}

// UpdateProfile applies the non-nil fields and returns the fresh row. A taken email
// trips users_email_key, which translate maps to ErrEmailTaken.
func (p *Postgres) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*models.User, error) {
	changes := map[string]interface{}{}
	if upd.Email != nil {
		changes["email"] = *upd.Email
	}
	if upd.ProfilePicture != nil {
		changes["profile_picture"] = *upd.ProfilePicture
	}

	// Updates with a map writes exactly these columns (a struct would skip zero values).
	if len(changes) > 0 {
		res := p.conn(ctx).Model(&models.User{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return nil, wrap("update profile", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil, wrap("update profile", ErrNotFound)
		}
	}
	return p.UserByID(ctx, id)
}
