package handlers

// account.go: registration, login, logout and the caller's own profile.

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
	"github.com/DartinBot/Khyrie-sub002/internal/middleware"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

// RegisterRequest is the JSON body for POST /api/register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"` // bcrypt ignores bytes past 72
}

// LoginRequest is the JSON body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest is the JSON body for PUT /api/profile. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	Email          *string `json:"email" validate:"omitempty,email,max=255"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,url,max=2048"`
}

// Register handles POST /api/register. New accounts always get the "user" role;
// admins are promoted out of band.
func Register(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req RegisterRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			return err
		}

		// Emails are stored lower-case so the unique constraint is effectively
		// case-insensitive. Usernames keep the case the user chose.
		user := models.User{
			Username:     strings.TrimSpace(req.Username),
			Email:        strings.ToLower(strings.TrimSpace(req.Email)),
			PasswordHash: hash,
			Role:         models.UserRoleUser,
		}
		// Uniqueness is enforced by the database constraints, not a lookup first, so
		// two simultaneous registrations can't both win.
		err = d.Store.CreateUser(c.UserContext(), &user)
		switch {
		case errors.Is(err, store.ErrUsernameTaken):
			return errorJSON(c, fiber.StatusConflict, "Username already taken")
		case errors.Is(err, store.ErrEmailTaken):
			return errorJSON(c, fiber.StatusConflict, "Email already registered")
		case err != nil:
			return err
		}

		token, _, err := d.Tokens.Issue(&user)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"token":   token,
			"user":    newUserResponse(&user),
		})
	}
}

// Login handles POST /api/login. Unknown usernames and wrong passwords get the same
// answer so the endpoint can't be used to discover accounts.
func Login(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}

		user, err := d.Store.UserByUsername(c.UserContext(), strings.TrimSpace(req.Username))
		if errors.Is(err, store.ErrNotFound) {
			// Pay the bcrypt cost anyway so response time doesn't reveal the miss.
			auth.SimulatePasswordCheck(req.Password)
			return errorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		if err != nil {
			return err
		}

		match, err := auth.CheckPassword(user.PasswordHash, req.Password)
		if err != nil {
			return err
		}
		if !match {
			return errorJSON(c, fiber.StatusUnauthorized, "Invalid credentials")
		}

		token, _, err := d.Tokens.Issue(user)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"token":   token,
			"user":    newUserResponse(user),
		})
	}
}

// Logout handles POST /api/logout by denylisting the presented token until it expires.
func Logout(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d.Revoker != nil {
			tokenID, _ := c.Locals(middleware.LocalTokenID).(string)
			expiresAt, _ := c.Locals(middleware.LocalTokenExp).(time.Time)
			if err := d.Revoker.Revoke(c.UserContext(), tokenID, expiresAt); err != nil {
				return err
			}
		}
		return c.JSON(fiber.Map{"success": true, "message": "Logged out"})
	}
}

// GetProfile handles GET /api/profile.
func GetProfile(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		user, err := d.Store.UserByID(c.UserContext(), userID)
		if errors.Is(err, store.ErrNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "User not found")
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "user": newUserResponse(user)})
	}
}

// UpdateProfile handles PUT /api/profile.
func UpdateProfile(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := currentUserID(c)
		if err != nil {
			return err
		}
		var req UpdateProfileRequest
		if ok, err := bind(c, &req); !ok {
			return err
		}
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			req.Email = &email
		}

		user, err := d.Store.UpdateProfile(c.UserContext(), userID, store.ProfileUpdate{
			Email:          req.Email,
			ProfilePicture: req.ProfilePicture,
		})
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			return errorJSON(c, fiber.StatusConflict, "Email already registered")
		case errors.Is(err, store.ErrNotFound):
			return errorJSON(c, fiber.StatusNotFound, "User not found")
		case err != nil:
			return err
		}
		return c.JSON(fiber.Map{"success": true, "user": newUserResponse(user)})
	}
}
