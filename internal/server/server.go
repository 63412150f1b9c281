// Package server builds the fiber application: global middleware, the route table
// and the error handler. cmd/server owns process lifecycle; tests drive the app
// returned by New through app.Test.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DartinBot/Khyrie-sub002/internal/config"
	"github.com/DartinBot/Khyrie-sub002/internal/handlers"
	"github.com/DartinBot/Khyrie-sub002/internal/middleware"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/observability"
)

// New returns a fiber app with every route registered against d.
func New(cfg *config.Config, d *handlers.Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "FitClub API",
		ErrorHandler: handlers.ErrorHandler(d.Log),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	})

	// --- Global middleware ---
	app.Use(recover.New())
	if cfg.Env == "development" {
		app.Use(logger.New())
	}
	app.Use(middleware.Preflight())
	app.Use(cors.New(cors.Config{
		AllowOrigins: middleware.AllowOrigins,
		AllowMethods: middleware.AllowMethods,
		AllowHeaders: middleware.AllowHeaders,
	}))
	app.Use(observability.Middleware())

	// --- Public routes ---
	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	authed := middleware.Auth(d.Tokens, d.Revoker, d.Log)
	api := app.Group("/api")

	// Account
	api.Post("/register", handlers.Register(d))
	api.Post("/login", handlers.Login(d))
	api.Post("/logout", authed, handlers.Logout(d))
	api.Get("/profile", authed, handlers.GetProfile(d))
	api.Put("/profile", authed, handlers.UpdateProfile(d))

	// Workouts
	api.Get("/workouts", authed, handlers.GetWorkouts(d))
	api.Post("/workouts", authed, handlers.CreateWorkout(d))
	api.Delete("/workouts/:id", authed, handlers.DeleteWorkout(d))

	// Social feed
	api.Get("/posts", handlers.GetPosts(d))
	api.Post("/posts", authed, handlers.CreatePost(d))
	api.Post("/posts/:id/like", authed, handlers.LikePost(d))
	api.Delete("/posts/:id", authed, handlers.DeletePost(d))

	// Clubs. Literal segments (sessions, mine) are registered before /:id so they win.
	clubs := api.Group("/clubs")
	clubs.Get("/sessions", authed, handlers.GetSessions(d))
	clubs.Post("/sessions", authed, handlers.CreateSession(d))
	clubs.Post("/sessions/:id/join", authed, handlers.JoinSession(d))
	clubs.Post("/sessions/:id/leave", authed, handlers.LeaveSession(d))
	clubs.Get("/sessions/:id/leaderboard", authed, handlers.GetLeaderboard(d))
	clubs.Get("/mine", authed, handlers.GetMyClubs(d))
	clubs.Get("/", handlers.GetClubs(d))
	clubs.Post("/", authed, handlers.CreateClub(d))
	clubs.Get("/:id", handlers.GetClub(d))
	clubs.Get("/:id/members", handlers.GetClubMembers(d))
	clubs.Post("/:id/join", authed, handlers.JoinClub(d))
	clubs.Post("/:id/leave", authed, handlers.LeaveClub(d))

	// Equipment
	api.Get("/equipment", authed, handlers.GetEquipment(d))
	api.Post("/equipment/connect", authed, handlers.ConnectEquipment(d))
	api.Post("/equipment/sync", authed, handlers.SyncEquipment(d))
	api.Delete("/equipment/:equipmentId", authed, handlers.DisconnectEquipment(d))

	// Virtual trails
	trails := api.Group("/trails")
	trails.Get("/sessions", authed, handlers.GetTrailSessions(d))
	trails.Post("/sessions", authed, handlers.StartTrailSession(d))
	trails.Patch("/sessions/:id", authed, handlers.UpdateTrailSession(d))
	trails.Get("/achievements", authed, handlers.GetAchievements(d))
	trails.Get("/", handlers.GetTrails(d))
	trails.Post("/", authed, middleware.RequireRole(models.UserRoleAdmin), handlers.CreateTrail(d))
	trails.Get("/:id", handlers.GetTrail(d))

	// Live leaderboard. Browsers cannot set headers on a WebSocket handshake, so Auth
	// also accepts ?token= here.
	app.Get("/ws/sessions/:id/leaderboard", authed, handlers.RequireSessionUpgrade(d), handlers.LiveLeaderboard(d))

	app.Use(handlers.NotFound)
	return app
}
