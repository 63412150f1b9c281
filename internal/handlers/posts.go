package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/middleware"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// CreatePostRequest is the JSON body for POST /api/posts.
type CreatePostRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// GetPosts handles GET /api/posts?limit=. The feed is public.
func GetPosts(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		posts, err := d.Store.ListPosts(c.UserContext(), queryLimit(c))
		if err != nil {
			return err
		}
		response := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			response = append(response, newPostResponse(p.SocialPost, p.Username))
		}
		return c.JSON(response)
	}
}

// CreatePost handles POST /api/posts.
func CreatePost(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req CreatePostRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		post := models.SocialPost{UserID: userID, Content: req.Content, CreatedAt: d.now()}
		if err := d.Store.CreatePost(c.UserContext(), &post); err != nil {
			return err
		}
		username, _ := c.Locals(middleware.LocalUsername).(string)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"post":    newPostResponse(post, username),
		})
	}
}

// LikePost handles POST /api/posts/:id/like.
func LikePost(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", "Post not found")
		if err != nil {
			return err
		}
		likes, err := d.Store.LikePost(c.UserContext(), id)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Post not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "likes": likes})
	}
}

// DeletePost handles DELETE /api/posts/:id (author only).
func DeletePost(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		id, err := paramID(c, "id", "Post not found")
		if err != nil {
			return err
		}
		err = d.Store.DeletePost(c.UserContext(), userID, id)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "Post not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "Post deleted"})
	}
}
