package handlers_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JunoAX/greenquest-go/internal/auth"
	"github.com/JunoAX/greenquest-go/internal/catalog"
	"github.com/JunoAX/greenquest-go/internal/handlers"
	"github.com/JunoAX/greenquest-go/internal/notify"
	"github.com/JunoAX/greenquest-go/internal/progression"
	"github.com/JunoAX/greenquest-go/internal/repository"
	"github.com/JunoAX/greenquest-go/internal/storage"
	"github.com/JunoAX/greenquest-go/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminEmail = "staff@example.com"

var pngProof = "data:image/png;base64," + base64.StdEncoding.EncodeToString(
	[]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01"))

type apiServer struct {
	router *gin.Engine
	engine *progression.Engine
	store  *repository.MemoryStore
}

func newAPIServer(t *testing.T, checks map[string]handlers.HealthCheck) *apiServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cat, err := catalog.Default()
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	hub := notify.NewHub(nil)
	engine := progression.NewEngine(store, cat, storage.NewMemoryStore(), hub, progression.Options{}, nil)
	t.Cleanup(func() { engine.Close(context.Background()) })

	r := gin.New()
	handlers.RegisterRoutes(r, handlers.Dependencies{
		Engine:    engine,
		Catalog:   cat,
		JWT:       auth.NewJWTService("test-secret", "greenquest", time.Hour),
		Validator: validation.New(),
		Hub:       hub,
		Auth: handlers.AuthSettings{
			BcryptCost:        bcrypt.MinCost,
			PasswordMinLength: 6,
			IsAdminEmail:      func(email string) bool { return strings.EqualFold(email, adminEmail) },
		},
		AllowedOrigins: []string{"*"},
		MaxProofBytes:  1024,
		Version:        "test",
		HealthChecks:   checks,
	})
	return &apiServer{router: r, engine: engine, store: store}
}

type request struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

func (s *apiServer) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	switch b := req.body.(type) {
	case nil:
		body = bytes.NewReader(nil)
	case string:
		body = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)
	return w
}

// register signs a user up and returns their token and account id
func (s *apiServer) register(t *testing.T, username, email string) (string, string) {
	t.Helper()
	w := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"username": username,
		"email":    email,
		"password": "recycle123",
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp handlers.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.AccessToken, resp.User.ID.String()
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestRegisterLoginMe(t *testing.T) {
	s := newAPIServer(t, nil)

	w := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"username": "ada",
		"email":    "Ada@Example.com",
		"password": "recycle123",
	}})
	require.Equal(t, http.StatusCreated, w.Code)
	reg := decodeBody[handlers.TokenResponse](t, w)
	assert.Equal(t, "bearer", reg.TokenType)
	assert.EqualValues(t, 3600, reg.ExpiresIn)
	assert.Equal(t, "ada@example.com", reg.User.Email)
	assert.Equal(t, 1, reg.User.Level)
	assert.Equal(t, 0, reg.User.Points)
	assert.Equal(t, 100, reg.User.Progress.PointsToNext)

	w = s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{
		"email":    "ada@example.com",
		"password": "recycle123",
	}})
	require.Equal(t, http.StatusOK, w.Code)
	login := decodeBody[handlers.TokenResponse](t, w)

	w = s.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: login.AccessToken})
	require.Equal(t, http.StatusOK, w.Code)
	me := decodeBody[map[string]any](t, w)
	assert.Equal(t, "ada", me["username"])
	assert.NotContains(t, me, "password_hash")
}

func TestAuthErrors(t *testing.T) {
	s := newAPIServer(t, nil)
	s.register(t, "ada", "ada@example.com")

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"duplicate email", "/api/auth/register", map[string]string{"username": "ada2", "email": "ada@example.com", "password": "recycle123"}, http.StatusConflict, "email_taken", ""},
		{"duplicate username", "/api/auth/register", map[string]string{"username": "ADA", "email": "ada2@example.com", "password": "recycle123"}, http.StatusConflict, "username_taken", ""},
		{"short password", "/api/auth/register", map[string]string{"username": "bob", "email": "bob@example.com", "password": "abc"}, http.StatusBadRequest, "invalid_input", "password"},
		{"invalid email", "/api/auth/register", map[string]string{"username": "bob", "email": "bob", "password": "recycle123"}, http.StatusBadRequest, "invalid_input", "email"},
		{"blank username", "/api/auth/register", map[string]string{"username": "  ", "email": "bob@example.com", "password": "recycle123"}, http.StatusBadRequest, "invalid_input", "username"},
		{"malformed json", "/api/auth/register", `{"username":`, http.StatusBadRequest, "invalid_input", ""},
		{"wrong password", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "nope-nope"}, http.StatusUnauthorized, "invalid_credentials", ""},
		{"unknown email", "/api/auth/login", map[string]string{"email": "who@example.com", "password": "recycle123"}, http.StatusUnauthorized, "invalid_credentials", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: tt.path, body: tt.body})
			assert.Equal(t, tt.wantStatus, w.Code)

			body := decodeBody[map[string]any](t, w)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["detail"])
			if tt.wantField != "" {
				fields, ok := body["fields"].(map[string]any)
				require.True(t, ok, w.Body.String())
				assert.Contains(t, fields, tt.wantField)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newAPIServer(t, nil)

	for _, path := range []string{"/api/auth/me", "/api/challenges", "/api/leaderboard", "/api/notifications", "/api/game-progress"} {
		w := s.do(t, request{method: http.MethodGet, path: path})
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestQuizFlow(t *testing.T) {
	s := newAPIServer(t, nil)
	token, _ := s.register(t, "ada", "ada@example.com")

	w := s.do(t, request{method: http.MethodGet, path: "/api/quiz/questions", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	questions := decodeBody[[]map[string]any](t, w)
	require.Len(t, questions, 5)
	for _, q := range questions {
		assert.NotContains(t, q, "correct_answer")
	}

	w = s.do(t, request{method: http.MethodGet, path: "/api/quiz/questions?category=energy&limit=3", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 1)

	w = s.do(t, request{method: http.MethodGet, path: "/api/quiz/questions?limit=lots", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	answers := []map[string]any{
		{"question_id": "plastic-recycled", "selected_answer": 0},
		{"question_id": "least-water", "selected_answer": 3},
		{"question_id": "main-greenhouse-gas", "selected_answer": 2},
		{"question_id": "bottle-decompose", "selected_answer": 3},
		{"question_id": "renewable-most-used", "selected_answer": 0},
	}
	key := map[string]string{handlers.IdempotencyHeader: "quiz-attempt-1"}

	w = s.do(t, request{method: http.MethodPost, path: "/api/quiz/submit", token: token, body: answers, headers: key})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decodeBody[handlers.QuizSubmitResponse](t, w)
	assert.Equal(t, 4, result.Correct)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 80, result.ScorePercent)
	assert.Equal(t, 80, result.PointsEarned)
	assert.True(t, result.Awarded)
	assert.Equal(t, []string{"Quiz Rookie", "Quiz Master"}, result.NewBadges)

	w = s.do(t, request{method: http.MethodPost, path: "/api/quiz/submit", token: token, body: answers, headers: key})
	require.Equal(t, http.StatusOK, w.Code)
	retry := decodeBody[handlers.QuizSubmitResponse](t, w)
	assert.False(t, retry.Awarded)
	assert.Equal(t, 0, retry.PointsEarned)

	tests := []struct {
		name string
		body any
	}{
		{"object instead of array", map[string]any{"answers": answers}},
		{"blank question id", []map[string]any{{"question_id": " ", "selected_answer": 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, request{method: http.MethodPost, path: "/api/quiz/submit", token: token, body: tt.body})
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}

	w = s.do(t, request{method: http.MethodPost, path: "/api/quiz/submit", token: token, body: []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "empty_submission", decodeBody[map[string]any](t, w)["code"])
}

func TestGameProgressFlow(t *testing.T) {
	s := newAPIServer(t, nil)
	token, _ := s.register(t, "ada", "ada@example.com")

	w := s.do(t, request{method: http.MethodPost, path: "/api/game-progress", token: token, body: map[string]any{
		"game_type": "waste_sorting",
		"level":     1,
		"score":     30,
		"completed": true,
	}, headers: map[string]string{handlers.IdempotencyHeader: "sorting-1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decodeBody[handlers.GameProgressResponse](t, w)
	assert.Equal(t, 30, resp.PointsEarned)
	assert.Equal(t, 1, resp.NewLevel)
	assert.Equal(t, []string{"Sorting Rookie"}, resp.NewBadges)
	assert.Equal(t, "sorting-1", resp.Record.SessionToken)

	w = s.do(t, request{method: http.MethodPost, path: "/api/game-progress", token: token, body: map[string]any{
		"game_type": "chess",
		"level":     0,
		"score":     1,
	}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeBody[map[string]any](t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "game_type")
	assert.Contains(t, fields, "level")

	w = s.do(t, request{method: http.MethodGet, path: "/api/game-progress", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, w), 1)
}

func TestChallengeReviewFlow(t *testing.T) {
	s := newAPIServer(t, nil)
	student, studentID := s.register(t, "ada", "ada@example.com")
	admin, _ := s.register(t, "ms-green", adminEmail)

	w := s.do(t, request{method: http.MethodGet, path: "/api/challenges", token: student})
	require.Equal(t, http.StatusOK, w.Code)
	challenges := decodeBody[[]map[string]any](t, w)
	require.Len(t, challenges, 6)
	assert.Equal(t, true, challenges[0]["unlocked"])
	assert.Equal(t, false, challenges[1]["unlocked"])

	w = s.do(t, request{method: http.MethodPost, path: "/api/challenges/submit-proof", token: student, body: map[string]string{
		"challenge_id": "plant-a-tree",
		"image_data":   pngProof,
	}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "challenge_locked", decodeBody[map[string]any](t, w)["code"])

	w = s.do(t, request{method: http.MethodPost, path: "/api/challenges/submit-proof", token: student, body: map[string]string{
		"challenge_id": "plastic-free-day",
		"image_data":   "data:image/png;base64," + strings.Repeat("A", 8000),
	}})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/api/challenges/submit-proof", token: student, body: map[string]string{
		"challenge_id": "plastic-free-day",
		"image_data":   pngProof,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	submitted := decodeBody[handlers.SubmitProofResponse](t, w)
	assert.Equal(t, "pending", string(submitted.Submission.Status))

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/submissions", token: student})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/submissions", token: admin})
	require.Equal(t, http.StatusOK, w.Code)
	queue := decodeBody[[]map[string]any](t, w)
	require.Len(t, queue, 1)
	assert.Equal(t, submitted.Submission.ID.String(), queue[0]["id"])

	w = s.do(t, request{method: http.MethodGet, path: "/api/admin/submissions?status=bogus", token: admin})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/api/admin/submissions/not-a-uuid/approve", token: admin})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	approvePath := "/api/admin/submissions/" + submitted.Submission.ID.String() + "/approve"
	for i := 0; i < 2; i++ {
		w = s.do(t, request{method: http.MethodPost, path: approvePath, token: admin})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "approved", decodeBody[map[string]any](t, w)["status"])
	}

	w = s.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: student})
	me := decodeBody[map[string]any](t, w)
	assert.EqualValues(t, 50, me["points"])
	assert.Equal(t, []any{"Plastic Warrior"}, me["badges"])

	s.engine.Notifications.Wait()
	w = s.do(t, request{method: http.MethodGet, path: "/api/notifications", token: student})
	require.Equal(t, http.StatusOK, w.Code)
	notifications := decodeBody[[]map[string]any](t, w)
	require.NotEmpty(t, notifications)
	for _, n := range notifications {
		assert.Equal(t, studentID, n["user_id"])
	}

	id := notifications[0]["id"].(string)
	w = s.do(t, request{method: http.MethodPut, path: "/api/notifications/" + id + "/read", token: student})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, w)["read"])

	w = s.do(t, request{method: http.MethodPut, path: "/api/notifications/" + id + "/read", token: admin})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectWithoutBody(t *testing.T) {
	s := newAPIServer(t, nil)
	student, _ := s.register(t, "ada", "ada@example.com")
	admin, _ := s.register(t, "ms-green", adminEmail)

	w := s.do(t, request{method: http.MethodPost, path: "/api/challenges/submit-proof", token: student, body: map[string]string{
		"challenge_id": "plastic-free-day",
		"image_data":   pngProof,
	}})
	require.Equal(t, http.StatusOK, w.Code)
	sub := decodeBody[handlers.SubmitProofResponse](t, w)

	w = s.do(t, request{method: http.MethodPost, path: "/api/admin/submissions/" + sub.Submission.ID.String() + "/reject", token: admin})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "rejected", decodeBody[map[string]any](t, w)["status"])
}

func TestAdminAdjustAndRemind(t *testing.T) {
	s := newAPIServer(t, nil)
	student, studentID := s.register(t, "ada", "ada@example.com")
	admin, _ := s.register(t, "ms-green", adminEmail)

	adjust := func(body any, key string) *httptest.ResponseRecorder {
		return s.do(t, request{
			method:  http.MethodPost,
			path:    "/api/admin/accounts/" + studentID + "/adjust",
			token:   admin,
			body:    body,
			headers: map[string]string{handlers.IdempotencyHeader: key},
		})
	}

	w := adjust(map[string]any{"points_delta": 120, "badges": []string{"Eco Star"}, "reason": "science fair"}, "fair-2024")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, true, body["applied"])
	assert.EqualValues(t, 2, body["account"].(map[string]any)["level"])

	w = adjust(map[string]any{"points_delta": 120, "reason": "science fair"}, "fair-2024")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeBody[map[string]any](t, w)["applied"])

	w = adjust(map[string]any{"points_delta": -500, "reason": "typo"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = adjust(map[string]any{"points_delta": 5}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/api/admin/reminders", token: admin, body: map[string]string{
		"account_id": studentID,
		"message":    "Don't forget today's quiz!",
	}})
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/api/admin/reminders", token: student, body: map[string]string{
		"account_id": studentID,
		"message":    "hi",
	}})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, request{method: http.MethodGet, path: "/api/leaderboard?limit=1", token: student})
	require.Equal(t, http.StatusOK, w.Code)
	board := decodeBody[[]map[string]any](t, w)
	require.Len(t, board, 1)
	assert.Equal(t, "ada", board[0]["username"])
	assert.EqualValues(t, 1, board[0]["rank"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]handlers.HealthCheck
		wantStatus int
		wantState  string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{"passing", map[string]handlers.HealthCheck{"store": func(context.Context) error { return nil }}, http.StatusOK, "healthy"},
		{"failing", map[string]handlers.HealthCheck{"redis": func(context.Context) error { return errors.New("connection refused") }}, http.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAPIServer(t, tt.checks)
			w := s.do(t, request{method: http.MethodGet, path: "/health"})
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody[map[string]any](t, w)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "test", body["version"])
		})
	}
}
