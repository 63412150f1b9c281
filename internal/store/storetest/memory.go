// Package storetest provides an in-memory store.Store for handler tests.
// It mirrors the Postgres implementation's rules: unique usernames and emails,
// capacity limits, membership requirements, ordering and sentinel errors.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
	"github.com/DartinBot/Khyrie-sub002/internal/store"
)

type memberKey struct{ club, user uuid.UUID }
type participantKey struct{ session, user uuid.UUID }
type equipmentKey struct {
	user   uuid.UUID
	device string
}
type achievementKey struct {
	user, trail uuid.UUID
	kind        string
}

// Memory is a mutex-guarded in-memory Store. The zero value is not usable; call New.
type Memory struct {
	mu  sync.Mutex
	now func() time.Time

	users        map[uuid.UUID]models.User
	workouts     map[uuid.UUID]models.Workout
	posts        map[uuid.UUID]models.SocialPost
	clubs        map[uuid.UUID]models.FitnessClub
	members      map[memberKey]models.ClubMember
	sessions     map[uuid.UUID]models.GroupSession
	participants map[participantKey]models.SessionParticipant
	equipment    map[equipmentKey]models.UserEquipment
	telemetry    []models.EquipmentWorkoutData
	leaderboard  map[participantKey]models.SessionLeaderboard
	trails       map[uuid.UUID]models.VirtualTrail
	trailRuns    map[uuid.UUID]models.TrailSession
	achievements map[achievementKey]models.TrailAchievement
}

var _ store.Store = (*Memory)(nil)

// New returns an empty Memory whose timestamps come from time.Now.
func New() *Memory {
	return &Memory{
		now:          time.Now,
		users:        map[uuid.UUID]models.User{},
		workouts:     map[uuid.UUID]models.Workout{},
		posts:        map[uuid.UUID]models.SocialPost{},
		clubs:        map[uuid.UUID]models.FitnessClub{},
		members:      map[memberKey]models.ClubMember{},
		sessions:     map[uuid.UUID]models.GroupSession{},
		participants: map[participantKey]models.SessionParticipant{},
		equipment:    map[equipmentKey]models.UserEquipment{},
		leaderboard:  map[participantKey]models.SessionLeaderboard{},
		trails:       map[uuid.UUID]models.VirtualTrail{},
		trailRuns:    map[uuid.UUID]models.TrailSession{},
		achievements: map[achievementKey]models.TrailAchievement{},
	}
}

// Telemetry returns a copy of every stored sync upload, oldest first.
func (m *Memory) Telemetry() []models.EquipmentWorkoutData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EquipmentWorkoutData(nil), m.telemetry...)
}

// stamp returns t, or the current time when t is zero.
func (m *Memory) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return m.now().UTC()
	}
	return t
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func applyLimit[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

// --- Users ---

func (m *Memory) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return store.ErrUsernameTaken
		}
		if existing.Email == user.Email {
			return store.ErrEmailTaken
		}
	}
	ensureID(&user.ID)
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}
	user.CreatedAt = m.stamp(user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = *user
	return nil
}

func (m *Memory) UserByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Memory) UserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *Memory) UpdateProfile(_ context.Context, id uuid.UUID, upd store.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if upd.Email != nil {
		for otherID, other := range m.users {
			if otherID != id && other.Email == *upd.Email {
				return nil, store.ErrEmailTaken
			}
		}
		u.Email = *upd.Email
	}
	if upd.ProfilePicture != nil {
		pic := *upd.ProfilePicture
		u.ProfilePicture = &pic
	}
	u.UpdatedAt = m.now().UTC()
	m.users[id] = u
	return &u, nil
}

// --- Workouts ---

func (m *Memory) CreateWorkout(_ context.Context, w *models.Workout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&w.ID)
	w.CreatedAt = m.stamp(w.CreatedAt)
	m.workouts[w.ID] = *w
	return nil
}

func (m *Memory) ListWorkouts(_ context.Context, userID uuid.UUID, limit int) ([]models.Workout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Workout{}
	for _, w := range m.workouts {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyLimit(out, limit), nil
}

func (m *Memory) DeleteWorkout(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workouts[id]
	if !ok || w.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.workouts, id)
	return nil
}

// --- Posts ---

func (m *Memory) CreatePost(_ context.Context, p *models.SocialPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&p.ID)
	p.CreatedAt = m.stamp(p.CreatedAt)
	m.posts[p.ID] = *p
	return nil
}

func (m *Memory) ListPosts(_ context.Context, limit int) ([]store.PostView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.PostView{}
	for _, p := range m.posts {
		out = append(out, store.PostView{SocialPost: p, Username: m.users[p.UserID].Username})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return applyLimit(out, limit), nil
}

func (m *Memory) LikePost(_ context.Context, id uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	p.Likes++
	m.posts[id] = p
	return p.Likes, nil
}

func (m *Memory) DeletePost(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.UserID != userID {
		return store.ErrNotFound
	}
	delete(m.posts, id)
	return nil
}

// --- Clubs ---

func (m *Memory) CreateClub(_ context.Context, club *models.FitnessClub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[club.CreatorID]; !ok {
		return store.ErrNotFound
	}
	ensureID(&club.ID)
	club.CreatedAt = m.stamp(club.CreatedAt)
	club.UpdatedAt = club.CreatedAt
	m.clubs[club.ID] = *club
	m.members[memberKey{club.ID, club.CreatorID}] = models.ClubMember{
		ClubID:   club.ID,
		UserID:   club.CreatorID,
		Role:     models.ClubRoleAdmin,
		JoinedAt: club.CreatedAt,
	}
	return nil
}

func (m *Memory) memberCount(clubID uuid.UUID) int64 {
	var n int64
	for k := range m.members {
		if k.club == clubID {
			n++
		}
	}
	return n
}

func (m *Memory) clubView(c models.FitnessClub) store.ClubView {
	return store.ClubView{
		FitnessClub: c,
		CreatorName: m.users[c.CreatorID].Username,
		MemberCount: m.memberCount(c.ID),
	}
}

func (m *Memory) ListClubs(_ context.Context, f store.ClubFilter) ([]store.ClubView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.ClubView{}
	for _, c := range m.clubs {
		if f.Category != "" && c.Category != f.Category {
			continue
		}
		out = append(out, m.clubView(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ClubsForUser(_ context.Context, userID uuid.UUID) ([]store.ClubView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.ClubView{}
	joined := map[uuid.UUID]time.Time{}
	for k, member := range m.members {
		if k.user != userID {
			continue
		}
		view := m.clubView(m.clubs[k.club])
		view.MyRole = member.Role
		joined[k.club] = member.JoinedAt
		out = append(out, view)
	}
	sort.Slice(out, func(i, j int) bool { return joined[out[i].ID].After(joined[out[j].ID]) })
	return out, nil
}

func (m *Memory) GetClub(_ context.Context, id uuid.UUID) (*store.ClubView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clubs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	view := m.clubView(c)
	return &view, nil
}

func roleOrder(r models.ClubRole) int {
	switch r {
	case models.ClubRoleAdmin:
		return 0
	case models.ClubRoleModerator:
		return 1
	default:
		return 2
	}
}

func (m *Memory) ClubMembers(_ context.Context, clubID uuid.UUID) ([]store.MemberView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.MemberView{}
	for k, member := range m.members {
		if k.club != clubID {
			continue
		}
		u := m.users[k.user]
		out = append(out, store.MemberView{
			UserID:         u.ID,
			Username:       u.Username,
			ProfilePicture: u.ProfilePicture,
			Role:           member.Role,
			JoinedAt:       member.JoinedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if roleOrder(out[i].Role) != roleOrder(out[j].Role) {
			return roleOrder(out[i].Role) < roleOrder(out[j].Role)
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (m *Memory) MemberRole(_ context.Context, clubID, userID uuid.UUID) (models.ClubRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[memberKey{clubID, userID}]
	if !ok {
		return "", store.ErrNotMember
	}
	return member.Role, nil
}

// SetMemberRole changes a member's club role, e.g. to promote a moderator in tests.
func (m *Memory) SetMemberRole(clubID, userID uuid.UUID, role models.ClubRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memberKey{clubID, userID}
	if member, ok := m.members[key]; ok {
		member.Role = role
		m.members[key] = member
	}
}

func (m *Memory) JoinClub(_ context.Context, clubID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	club, ok := m.clubs[clubID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := m.members[memberKey{clubID, userID}]; ok {
		return store.ErrAlreadyMember
	}
	if m.memberCount(clubID) >= int64(club.MaxMembers) {
		return store.ErrCapacityReached
	}
	m.members[memberKey{clubID, userID}] = models.ClubMember{
		ClubID:   clubID,
		UserID:   userID,
		Role:     models.ClubRoleMember,
		JoinedAt: m.now().UTC(),
	}
	return nil
}

func (m *Memory) LeaveClub(_ context.Context, clubID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clubs[clubID]; !ok {
		return store.ErrNotFound
	}
	member, ok := m.members[memberKey{clubID, userID}]
	if !ok {
		return store.ErrNotMember
	}
	if member.Role == models.ClubRoleAdmin {
		return store.ErrAdminCannotLeave
	}
	delete(m.members, memberKey{clubID, userID})
	return nil
}

// --- Sessions ---

func (m *Memory) CreateSession(_ context.Context, s *models.GroupSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.clubs[s.ClubID]; !ok {
		return store.ErrNotFound
	}
	ensureID(&s.ID)
	if len(s.EquipmentSettings) == 0 {
		s.EquipmentSettings = []byte("{}")
	}
	s.CreatedAt = m.stamp(s.CreatedAt)
	m.sessions[s.ID] = *s
	return nil
}

func (m *Memory) participantCount(sessionID uuid.UUID) int64 {
	var n int64
	for k := range m.participants {
		if k.session == sessionID {
			n++
		}
	}
	return n
}

func (m *Memory) ListSessions(_ context.Context, userID uuid.UUID, f store.SessionFilter) ([]store.SessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.SessionView{}
	for _, s := range m.sessions {
		if _, ok := m.members[memberKey{s.ClubID, userID}]; !ok {
			continue
		}
		if f.ClubID != nil && s.ClubID != *f.ClubID {
			continue
		}
		if f.Upcoming && s.StartTime.Before(f.Now) {
			continue
		}
		out = append(out, store.SessionView{
			GroupSession:     s,
			ClubName:         m.clubs[s.ClubID].Name,
			InstructorName:   m.users[s.InstructorID].Username,
			ParticipantCount: m.participantCount(s.ID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) GetSession(_ context.Context, id uuid.UUID) (*models.GroupSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &s, nil
}

func (m *Memory) JoinSession(_ context.Context, sessionID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return store.ErrNotFound
	}
	if _, ok := m.members[memberKey{s.ClubID, userID}]; !ok {
		return store.ErrNotMember
	}
	key := participantKey{sessionID, userID}
	if _, ok := m.participants[key]; ok {
		return store.ErrAlreadyJoined
	}
	if m.participantCount(sessionID) >= int64(s.MaxParticipants) {
		return store.ErrCapacityReached
	}
	m.participants[key] = models.SessionParticipant{SessionID: sessionID, UserID: userID, JoinedAt: m.now().UTC()}
	return nil
}

func (m *Memory) LeaveSession(_ context.Context, sessionID, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := participantKey{sessionID, userID}
	if _, ok := m.participants[key]; !ok {
		return store.ErrNotParticipant
	}
	delete(m.participants, key)
	return nil
}

func (m *Memory) Leaderboard(_ context.Context, sessionID uuid.UUID) ([]store.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.LeaderboardEntry{}
	for k, row := range m.leaderboard {
		if k.session != sessionID {
			continue
		}
		out = append(out, store.LeaderboardEntry{SessionLeaderboard: row, Username: m.users[k.user].Username})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	store.RankEntries(out)
	return out, nil
}

// --- Equipment ---

func (m *Memory) ConnectEquipment(_ context.Context, eq *models.UserEquipment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := equipmentKey{eq.UserID, eq.EquipmentID}
	if len(eq.ConnectionData) == 0 {
		eq.ConnectionData = []byte("{}")
	}
	eq.ConnectedAt = m.now().UTC()
	if existing, ok := m.equipment[key]; ok {
		eq.ID = existing.ID
		eq.LastSyncAt = existing.LastSyncAt
	} else {
		ensureID(&eq.ID)
	}
	m.equipment[key] = *eq
	return nil
}

func (m *Memory) ListEquipment(_ context.Context, userID uuid.UUID) ([]models.UserEquipment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserEquipment{}
	for k, eq := range m.equipment {
		if k.user == userID {
			out = append(out, eq)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.After(out[j].ConnectedAt) })
	return out, nil
}

func (m *Memory) DisconnectEquipment(_ context.Context, userID uuid.UUID, equipmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := equipmentKey{userID, equipmentID}
	if _, ok := m.equipment[key]; !ok {
		return store.ErrNotFound
	}
	delete(m.equipment, key)
	return nil
}

func (m *Memory) RecordSync(_ context.Context, data *models.EquipmentWorkoutData, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := equipmentKey{data.UserID, data.EquipmentID}
	eq, ok := m.equipment[key]
	if !ok {
		return store.ErrEquipmentNotConnected
	}
	if data.SessionID != nil {
		if _, ok := m.sessions[*data.SessionID]; !ok {
			return store.ErrNotFound
		}
		if _, ok := m.participants[participantKey{*data.SessionID, data.UserID}]; !ok {
			return store.ErrNotParticipant
		}
	}

	ensureID(&data.ID)
	data.RecordedAt = m.stamp(data.RecordedAt)
	m.telemetry = append(m.telemetry, *data)

	synced := data.RecordedAt
	eq.LastSyncAt = &synced
	m.equipment[key] = eq

	if data.SessionID != nil {
		m.leaderboard[participantKey{*data.SessionID, data.UserID}] = models.SessionLeaderboard{
			SessionID:       *data.SessionID,
			UserID:          data.UserID,
			Score:           score,
			DistanceKm:      data.DistanceKm,
			CaloriesBurned:  data.CaloriesBurned,
			DurationSeconds: data.DurationSeconds,
			UpdatedAt:       data.RecordedAt,
		}
	}
	return nil
}

// --- Trails ---

func (m *Memory) trailView(t models.VirtualTrail) store.TrailView {
	view := store.TrailView{VirtualTrail: t}
	for _, run := range m.trailRuns {
		if run.TrailID != t.ID {
			continue
		}
		view.TotalSessions++
		if run.Status != models.TrailSessionCompleted {
			continue
		}
		view.CompletedSessions++
		if run.CompletionTimeSeconds != nil && (view.BestTimeSeconds == nil || *run.CompletionTimeSeconds < *view.BestTimeSeconds) {
			best := *run.CompletionTimeSeconds
			view.BestTimeSeconds = &best
		}
	}
	return view
}

func (m *Memory) ListTrails(_ context.Context, f store.TrailFilter) ([]store.TrailView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.TrailView{}
	for _, t := range m.trails {
		if f.ActivityType != "" && t.ActivityType != f.ActivityType {
			continue
		}
		if f.Difficulty != "" && t.Difficulty != f.Difficulty {
			continue
		}
		if f.Location != "" && !strings.Contains(strings.ToLower(t.Location), strings.ToLower(f.Location)) {
			continue
		}
		if f.Featured != nil && t.Featured != *f.Featured {
			continue
		}
		out = append(out, m.trailView(t))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Featured != out[j].Featured {
			return out[i].Featured
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) GetTrail(_ context.Context, id uuid.UUID) (*store.TrailView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trails[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	view := m.trailView(t)
	return &view, nil
}

func (m *Memory) CreateTrail(_ context.Context, t *models.VirtualTrail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ensureID(&t.ID)
	if len(t.RouteData) == 0 {
		t.RouteData = []byte("{}")
	}
	t.CreatedAt = m.stamp(t.CreatedAt)
	m.trails[t.ID] = *t
	return nil
}

func (m *Memory) StartTrailSession(_ context.Context, s *models.TrailSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trails[s.TrailID]; !ok {
		return store.ErrNotFound
	}
	ensureID(&s.ID)
	s.StartedAt = m.stamp(s.StartedAt)
	m.trailRuns[s.ID] = *s
	return nil
}

func (m *Memory) ListTrailSessions(_ context.Context, userID uuid.UUID) ([]store.TrailSessionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.TrailSessionView{}
	for _, run := range m.trailRuns {
		if run.UserID == userID {
			out = append(out, store.TrailSessionView{TrailSession: run, TrailName: m.trails[run.TrailID].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (m *Memory) GetTrailSession(_ context.Context, id uuid.UUID) (*models.TrailSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.trailRuns[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &run, nil
}

func (m *Memory) UpdateTrailSession(_ context.Context, s *models.TrailSession, from models.TrailSessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.trailRuns[s.ID]
	if !ok || current.Status != from {
		return false, store.ErrStaleStatus
	}
	m.trailRuns[s.ID] = *s

	if s.Status != models.TrailSessionCompleted {
		return false, nil
	}
	key := achievementKey{s.UserID, s.TrailID, models.AchievementFirstCompletion}
	if _, ok := m.achievements[key]; ok {
		return false, nil
	}
	earned := m.now().UTC()
	if s.CompletedAt != nil {
		earned = *s.CompletedAt
	}
	m.achievements[key] = models.TrailAchievement{
		ID:              uuid.New(),
		UserID:          s.UserID,
		TrailID:         s.TrailID,
		AchievementType: models.AchievementFirstCompletion,
		EarnedAt:        earned,
	}
	return true, nil
}

func (m *Memory) ListAchievements(_ context.Context, userID uuid.UUID) ([]store.AchievementView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.AchievementView{}
	for k, a := range m.achievements {
		if k.user == userID {
			out = append(out, store.AchievementView{TrailAchievement: a, TrailName: m.trails[a.TrailID].Name})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EarnedAt.After(out[j].EarnedAt) })
	return out, nil
}
