// Package handlers contains the HTTP route handlers for the fitness club API.
//
// Each exported function follows the "handler factory" pattern: it takes *Deps and
// returns a fiber.Handler, so the store, token issuer and event publisher are
// injected without globals.
//
// Expected failures (bad input, missing rows, permission problems, conflicts) are
// answered directly with c.Status(...).JSON(fiber.Map{"error": ...}). Anything else
// is returned as an error and becomes a 500 in ErrorHandler, where it is logged.
package handlers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/middleware"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
	"github.com/DartinBot/Khyrie-sub002/internal/websocket"
)

// Deps holds everything the handlers need.
type Deps struct {
	Store   store.Store
	Tokens  *auth.Issuer
	Revoker auth.Revoker // nil disables server-side logout
	Events  events.Publisher
	Hub     *websocket.Hub
	Log     *zap.Logger
	Now     func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

// publish sends an event and logs, rather than fails the request, when it cannot.
func (d *Deps) publish(ctx context.Context, key string, e events.Event) {
	if d.Events == nil {
		return
	}
	if err := d.Events.Publish(ctx, key, e); err != nil {
		d.Log.Warn("publish event", zap.String("type", e.Type), zap.Error(err))
	}
}

const (
	defaultLimit = 50
	maxLimit     = 100
)

// queryLimit reads ?limit=, clamped to [1, maxLimit]. Missing or unparseable values
// fall back to defaultLimit.
func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// currentUserID returns the authenticated caller's id set by middleware.Auth.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals(middleware.LocalUserID).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, "invalid user ID")
	}
	return id, nil
}

// paramID parses a UUID path parameter. A malformed id can't match any row, so it is
// reported as the same 404 a missing row would get.
func paramID(c *fiber.Ctx, name, notFound string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusNotFound, notFound)
	}
	return id, nil
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// ErrorHandler is the app-wide fiber.ErrorHandler. *fiber.Error keeps its status and
// message. Every other error is logged and reported as a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return errorJSON(c, fe.Code, fe.Message)
		}
		log.Error("request failed",
			zap.Error(err),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()))
		return errorJSON(c, fiber.StatusInternalServerError, "internal server error")
	}
}

// NotFound answers any request that matched no route.
func NotFound(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusNotFound, "Route not found")
}
