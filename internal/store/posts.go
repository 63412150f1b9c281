package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

func (p *Postgres) CreatePost(ctx context.Context, post *models.SocialPost) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	return wrap("create post", p.conn(ctx).Create(post).Error)
}

func (p *Postgres) ListPosts(ctx context.Context, limit int) ([]PostView, error) {
	posts := []PostView{}
	err := p.conn(ctx).
		Table("social_posts AS p").
		Select("p.*, u.username").
		Joins("JOIN users u ON u.id = p.user_id").
		Order("p.created_at DESC").
		Limit(limit).
		Scan(&posts).Error
	if err != nil {
		return nil, wrap("list posts", err)
	}
	return posts, nil
}

// LikePost runs a single UPDATE ... SET likes = likes + 1 RETURNING likes, so
// concurrent likes never overwrite each other.
func (p *Postgres) LikePost(ctx context.Context, id uuid.UUID) (int, error) {
	var post models.SocialPost
	res := p.conn(ctx).
		Model(&post).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "likes"}}}).
		Where("id = ?", id).
		UpdateColumn("likes", gorm.Expr("likes + ?", 1))
	if res.Error != nil {
		return 0, wrap("like post", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, wrap("like post", ErrNotFound)
	}
	return post.Likes, nil
}

// DeletePost deletes a post only if userID wrote it; see DeleteWorkout.
func (p *Postgres) DeletePost(ctx context.Context, userID, id uuid.UUID) error {
	res := p.conn(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.SocialPost{})
	if res.Error != nil {
		return wrap("delete post", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("delete post", ErrNotFound)
	}
	return nil
}
