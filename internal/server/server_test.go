package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DartinBot/Khyrie-sub002/internal/auth"
	"github.com/DartinBot/Khyrie-sub002/internal/config"
	"github.com/DartinBot/Khyrie-sub002/internal/events"
	"github.com/DartinBot/Khyrie-sub002/internal/handlers"
	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store/storetest"
	"github.com/DartinBot/Khyrie-sub002/internal/websocket"
)

type testServer struct {
	app     *fiber.App
	mem     *storetest.Memory
	tokens  *auth.Issuer
	stopHub context.CancelFunc
}

func newTestServer(t *testing.T, revoker auth.Revoker) *testServer {
	t.Helper()
	mem := storetest.New()
	tokens := auth.NewIssuer("test-secret", "fitclub-api", time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	hub := websocket.NewHub()
	go hub.Run(ctx)
	t.Cleanup(cancel)

	deps := &handlers.Deps{
		Store:   mem,
		Tokens:  tokens,
		Revoker: revoker,
		Events:  events.Nop{},
		Hub:     hub,
		Log:     zaptest.NewLogger(t),
	}
	return &testServer{app: New(&config.Config{Env: "test"}, deps), mem: mem, tokens: tokens, stopHub: cancel}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m), string(raw))
	return m
}

func decodeList(t *testing.T, raw []byte) []map[string]interface{} {
	t.Helper()
	var l []map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &l), string(raw))
	return l
}

// register creates an account and returns its token.
func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/register", "", fiber.Map{
		"username": username,
		"email":    username + "@example.com",
		"password": "correct-horse",
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))
	return decode(t, body)["token"].(string)
}

func (s *testServer) createClub(t *testing.T, token string, maxMembers int) string {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/clubs", token, fiber.Map{
		"name":        "Dawn Riders",
		"category":    "cycling",
		"max_members": maxMembers,
	})
	require.Equal(t, fiber.StatusCreated, status, string(body))
	return decode(t, body)["club"].(map[string]interface{})["id"].(string)
}

func (s *testServer) createSession(t *testing.T, token, clubID string) (int, []byte) {
	t.Helper()
	return s.createSessionFor(t, token, clubID, 10)
}

func (s *testServer) createSessionFor(t *testing.T, token, clubID string, maxParticipants int) (int, []byte) {
	t.Helper()
	return s.do(t, http.MethodPost, "/api/clubs/sessions", token, fiber.Map{
		"club_id":          clubID,
		"title":            "Hill intervals",
		"start_time":       time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"duration_minutes": 45,
		"max_participants": maxParticipants,
	})
}

// scheduleSession creates a session as token (a club admin) and returns its id.
func (s *testServer) scheduleSession(t *testing.T, token, clubID string, maxParticipants int) string {
	t.Helper()
	status, body := s.createSessionFor(t, token, clubID, maxParticipants)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	return decode(t, body)["session"].(map[string]interface{})["id"].(string)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	status, body = s.do(t, http.MethodGet, "/api/does-not-exist", "", nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Route not found"}`, string(body))

	status, body = s.do(t, http.MethodOptions, "/api/clubs/whatever", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, body)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "alice")

	status, body := s.do(t, http.MethodGet, "/api/profile", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	user := decode(t, body)["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, string(body), "password")

	status, body = s.do(t, http.MethodPost, "/api/login", "", fiber.Map{"username": "alice", "password": "correct-horse"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.NotEmpty(t, decode(t, body)["token"])

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		status, wrong := s.do(t, http.MethodPost, "/api/login", "", fiber.Map{"username": "alice", "password": "nope-nope"})
		assert.Equal(t, fiber.StatusUnauthorized, status)
		status, ghost := s.do(t, http.MethodPost, "/api/login", "", fiber.Map{"username": "ghost", "password": "nope-nope"})
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.JSONEq(t, string(wrong), string(ghost))
		assert.JSONEq(t, `{"error":"Invalid credentials"}`, string(ghost))
	})

	t.Run("duplicate username", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/register", "", fiber.Map{
			"username": "alice", "email": "other@example.com", "password": "correct-horse",
		})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.JSONEq(t, `{"error":"Username already taken"}`, string(body))
	})

	t.Run("missing fields", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/register", "", fiber.Map{"username": "bob"})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Contains(t, string(body), "email")
		assert.Contains(t, string(body), "password")
	})

	t.Run("protected route without token", func(t *testing.T) {
		status, _ := s.do(t, http.MethodGet, "/api/workouts", "", nil)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newTestServer(t, auth.NewRedisRevoker(client))
	token := s.register(t, "carol")

	status, _ := s.do(t, http.MethodPost, "/api/logout", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := s.do(t, http.MethodGet, "/api/profile", token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, string(body), "revoked")
}

func TestClubCapacityAndRoles(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.register(t, "owner")
	other := s.register(t, "other")

	t.Run("full club rejects joins", func(t *testing.T) {
		clubID := s.createClub(t, owner, 1)
		status, body := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/join", other, nil)
		assert.Equal(t, fiber.StatusConflict, status)
		assert.JSONEq(t, `{"error":"Club is at maximum capacity"}`, string(body))
	})

	t.Run("plain members cannot schedule sessions", func(t *testing.T) {
		clubID := s.createClub(t, owner, 10)
		status, _ := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/join", other, nil)
		require.Equal(t, fiber.StatusOK, status)

		status, body := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/join", other, nil)
		assert.Equal(t, fiber.StatusConflict, status)
		assert.JSONEq(t, `{"error":"Already a member of this club"}`, string(body))

		status, _ = s.createSession(t, other, clubID)
		assert.Equal(t, fiber.StatusForbidden, status)

		status, _ = s.createSession(t, owner, clubID)
		assert.Equal(t, fiber.StatusCreated, status)

		status, body = s.do(t, http.MethodGet, "/api/clubs/"+clubID, "", nil)
		require.Equal(t, fiber.StatusOK, status)
		club := decode(t, body)["club"].(map[string]interface{})
		assert.EqualValues(t, 2, club["member_count"])
		assert.Equal(t, "owner", club["creator_name"])
	})

	t.Run("unknown club", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/clubs/00000000-0000-0000-0000-000000000000/join", other, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.JSONEq(t, `{"error":"Club not found"}`, string(body))
	})
}

func TestSyncScoresSessionLeaderboard(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "dave")
	clubID := s.createClub(t, token, 10)

	status, body := s.createSession(t, token, clubID)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	sessionID := decode(t, body)["session"].(map[string]interface{})["id"].(string)

	status, _ = s.do(t, http.MethodPost, "/api/clubs/sessions/"+sessionID+"/join", token, nil)
	require.Equal(t, fiber.StatusOK, status)

	sync := fiber.Map{
		"session_id":   sessionID,
		"equipment_id": "tm-42",
		"workout_data": fiber.Map{"distance_km": 12.5, "calories_burned": 340, "duration_seconds": 2700},
	}
	status, body = s.do(t, http.MethodPost, "/api/equipment/sync", token, sync)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Equipment not connected"}`, string(body))

	status, _ = s.do(t, http.MethodPost, "/api/equipment/connect", token, fiber.Map{
		"equipment_type": "treadmill",
		"equipment_id":   "tm-42",
	})
	require.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/equipment/sync", token, sync)
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.EqualValues(t, 690, decode(t, body)["score"])

	status, body = s.do(t, http.MethodGet, "/api/clubs/sessions/"+sessionID+"/leaderboard", token, nil)
	require.Equal(t, fiber.StatusOK, status)
	entries := decodeList(t, body)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 1, entries[0]["rank"])
	assert.EqualValues(t, 690, entries[0]["score"])
	assert.Equal(t, "dave", entries[0]["username"])

	require.Len(t, s.mem.Telemetry(), 1)
}

func TestTrailSessionLifecycle(t *testing.T) {
	s := newTestServer(t, nil)

	admin := models.User{Username: "curator", Email: "curator@example.com", PasswordHash: "x", Role: models.UserRoleAdmin}
	require.NoError(t, s.mem.CreateUser(context.Background(), &admin))
	adminToken, _, err := s.tokens.Issue(&admin)
	require.NoError(t, err)
	rider := s.register(t, "erin")

	trail := fiber.Map{
		"name":          "Harbour Loop",
		"activity_type": "cycling",
		"difficulty":    "moderate",
		"distance_km":   18.2,
		"route_data": fiber.Map{
			"elevation_profile":  []float64{0, 1.5, 3},
			"resistance_profile": []int{2, 4},
			"checkpoints":        []fiber.Map{{"km": 9, "name": "Lighthouse"}},
		},
	}
	status, _ := s.do(t, http.MethodPost, "/api/trails", rider, trail)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body := s.do(t, http.MethodPost, "/api/trails", adminToken, trail)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	trailID := decode(t, body)["trail"].(map[string]interface{})["id"].(string)

	start := func() string {
		status, body := s.do(t, http.MethodPost, "/api/trails/sessions", rider, fiber.Map{"trail_id": trailID})
		require.Equal(t, fiber.StatusCreated, status, string(body))
		resp := decode(t, body)
		cfg := resp["equipment_config"].(map[string]interface{})
		assert.Equal(t, []interface{}{0.0, 1.5, 3.0}, cfg["incline_profile"])
		assert.Equal(t, []interface{}{2.0, 4.0}, cfg["resistance_profile"])
		return resp["session"].(map[string]interface{})["id"].(string)
	}

	first := start()
	status, _ = s.do(t, http.MethodPatch, "/api/trails/sessions/"+first, rider, fiber.Map{"status": "paused"})
	require.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, http.MethodPatch, "/api/trails/sessions/"+first, rider,
		fiber.Map{"status": "completed", "completion_time_seconds": 2400})
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.Equal(t, true, decode(t, body)["new_achievement"])

	status, _ = s.do(t, http.MethodPatch, "/api/trails/sessions/"+first, rider, fiber.Map{"status": "active"})
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = s.do(t, http.MethodPatch, "/api/trails/sessions/"+first, adminToken, fiber.Map{"status": "abandoned"})
	assert.Equal(t, fiber.StatusNotFound, status)

	second := start()
	status, body = s.do(t, http.MethodPatch, "/api/trails/sessions/"+second, rider, fiber.Map{"status": "completed"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, decode(t, body)["new_achievement"])

	status, body = s.do(t, http.MethodGet, "/api/trails/achievements", rider, nil)
	require.Equal(t, fiber.StatusOK, status)
	achievements := decodeList(t, body)
	require.Len(t, achievements, 1)
	assert.Equal(t, "Harbour Loop", achievements[0]["trail_name"])

	status, body = s.do(t, http.MethodGet, "/api/trails/"+trailID, "", nil)
	require.Equal(t, fiber.StatusOK, status)
	detail := decode(t, body)["trail"].(map[string]interface{})
	assert.EqualValues(t, 2, detail["completed_sessions"])
	assert.Contains(t, detail, "route_data")

	status, _ = s.do(t, http.MethodGet, "/api/trails?featured=maybe", "", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestSyncRejectsOutOfRangeTelemetry(t *testing.T) {
	s := newTestServer(t, nil)
	token := s.register(t, "frank")
	status, _ := s.do(t, http.MethodPost, "/api/equipment/connect", token, fiber.Map{
		"equipment_type": "bike",
		"equipment_id":   "bk-1",
	})
	require.Equal(t, fiber.StatusOK, status)

	cases := []struct {
		name  string
		data  fiber.Map
		field string
	}{
		{"distance past int64", fiber.Map{"distance_km": 1e19}, "workout_data.distance_km"},
		{"distance past int32 score", fiber.Map{"distance_km": 1e9}, "workout_data.distance_km"},
		{"calories", fiber.Map{"calories_burned": 1e12}, "workout_data.calories_burned"},
		{"duration past int32", fiber.Map{"duration_seconds": int64(1) << 40}, "workout_data.duration_seconds"},
		{"negative distance", fiber.Map{"distance_km": -1}, "workout_data.distance_km"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/api/equipment/sync", token, fiber.Map{
				"equipment_id": "bk-1",
				"workout_data": tc.data,
			})
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Contains(t, string(body), tc.field)
		})
	}
	assert.Empty(t, s.mem.Telemetry())

	status, body := s.do(t, http.MethodPost, "/api/equipment/sync", token, fiber.Map{
		"equipment_id": "bk-1",
		"workout_data": fiber.Map{"distance_km": 1000, "calories_burned": 50000, "duration_seconds": 86400},
	})
	assert.Equal(t, fiber.StatusOK, status, string(body))
}

func TestOnlyOwnersDelete(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.register(t, "gina")
	other := s.register(t, "hank")

	t.Run("workouts", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/workouts", owner, fiber.Map{
			"title":            "Tempo run",
			"duration_minutes": 40,
			"intensity":        "high",
		})
		require.Equal(t, fiber.StatusCreated, status, string(body))
		id := decode(t, body)["workout"].(map[string]interface{})["id"].(string)

		status, body = s.do(t, http.MethodDelete, "/api/workouts/"+id, other, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.JSONEq(t, `{"error":"Workout not found"}`, string(body))

		_, body = s.do(t, http.MethodGet, "/api/workouts", other, nil)
		assert.Empty(t, decodeList(t, body))
		_, body = s.do(t, http.MethodGet, "/api/workouts", owner, nil)
		assert.Len(t, decodeList(t, body), 1)

		status, _ = s.do(t, http.MethodDelete, "/api/workouts/"+id, owner, nil)
		assert.Equal(t, fiber.StatusOK, status)
		status, _ = s.do(t, http.MethodDelete, "/api/workouts/"+id, owner, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("posts", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/posts", owner, fiber.Map{"content": "New PB today"})
		require.Equal(t, fiber.StatusCreated, status, string(body))
		id := decode(t, body)["post"].(map[string]interface{})["id"].(string)

		status, body = s.do(t, http.MethodDelete, "/api/posts/"+id, other, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.JSONEq(t, `{"error":"Post not found"}`, string(body))

		_, body = s.do(t, http.MethodGet, "/api/posts", "", nil)
		posts := decodeList(t, body)
		require.Len(t, posts, 1)
		assert.Equal(t, "gina", posts[0]["username"])

		status, _ = s.do(t, http.MethodDelete, "/api/posts/"+id, owner, nil)
		assert.Equal(t, fiber.StatusOK, status)
		_, body = s.do(t, http.MethodGet, "/api/posts", "", nil)
		assert.Empty(t, decodeList(t, body))
	})
}

func TestProfileEmailMustBeUnique(t *testing.T) {
	s := newTestServer(t, nil)
	s.register(t, "ivan")
	judy := s.register(t, "judy")

	status, body := s.do(t, http.MethodPut, "/api/profile", judy, fiber.Map{"email": "ivan@example.com"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.JSONEq(t, `{"error":"Email already registered"}`, string(body))

	status, body = s.do(t, http.MethodPut, "/api/profile", judy, fiber.Map{"email": "judy.new@example.com"})
	require.Equal(t, fiber.StatusOK, status, string(body))
	assert.Equal(t, "judy.new@example.com", decode(t, body)["user"].(map[string]interface{})["email"])
}

func TestLeavingClubs(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.register(t, "kate")
	member := s.register(t, "liam")
	clubID := s.createClub(t, admin, 10)

	status, _ := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/join", member, nil)
	require.Equal(t, fiber.StatusOK, status)

	status, body := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/leave", admin, nil)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.JSONEq(t, `{"error":"Club admins cannot leave their own club"}`, string(body))

	status, _ = s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/leave", member, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/leave", member, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.JSONEq(t, `{"error":"Not a member of this club"}`, string(body))

	_, body = s.do(t, http.MethodGet, "/api/clubs/"+clubID+"/members", "", nil)
	members := decodeList(t, body)
	require.Len(t, members, 1)
	assert.Equal(t, "kate", members[0]["username"])
}

func TestSessionsAreVisibleToClubMembersOnly(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.register(t, "mona")
	member := s.register(t, "nate")
	outsider := s.register(t, "olga")

	clubID := s.createClub(t, admin, 10)
	status, _ := s.do(t, http.MethodPost, "/api/clubs/"+clubID+"/join", member, nil)
	require.Equal(t, fiber.StatusOK, status)
	sessionID := s.scheduleSession(t, admin, clubID, 1)

	t.Run("listing", func(t *testing.T) {
		_, body := s.do(t, http.MethodGet, "/api/clubs/sessions", member, nil)
		sessions := decodeList(t, body)
		require.Len(t, sessions, 1)
		assert.Equal(t, sessionID, sessions[0]["id"])

		_, body = s.do(t, http.MethodGet, "/api/clubs/sessions", outsider, nil)
		assert.Empty(t, decodeList(t, body))

		_, body = s.do(t, http.MethodGet, "/api/clubs/sessions?club_id="+clubID, outsider, nil)
		assert.Empty(t, decodeList(t, body))
	})

	t.Run("joining", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/api/clubs/sessions/"+sessionID+"/join", outsider, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.JSONEq(t, `{"error":"Join the club before joining its sessions"}`, string(body))

		status, _ = s.do(t, http.MethodPost, "/api/clubs/sessions/"+sessionID+"/join", admin, nil)
		require.Equal(t, fiber.StatusOK, status)

		status, body = s.do(t, http.MethodPost, "/api/clubs/sessions/"+sessionID+"/join", member, nil)
		assert.Equal(t, fiber.StatusConflict, status)
		assert.JSONEq(t, `{"error":"Session is full"}`, string(body))
	})

	t.Run("leaderboard", func(t *testing.T) {
		status, _ := s.do(t, http.MethodGet, "/api/clubs/sessions/"+sessionID+"/leaderboard", member, nil)
		assert.Equal(t, fiber.StatusOK, status)

		status, body := s.do(t, http.MethodGet, "/api/clubs/sessions/"+sessionID+"/leaderboard", outsider, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.JSONEq(t, `{"error":"Join the club to see this session"}`, string(body))

		status, _ = s.do(t, http.MethodGet, "/api/clubs/sessions/00000000-0000-0000-0000-000000000000/leaderboard", member, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})
}
