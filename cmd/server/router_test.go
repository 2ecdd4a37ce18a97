package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easybewerbung/bewerbung-api/internal/catalog"
	"github.com/easybewerbung/bewerbung-api/internal/config"
	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/easybewerbung/bewerbung-api/internal/service"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret-with-32-characters!"

type stubDB struct{}

func (stubDB) PingContext(context.Context) error { return nil }

type stubCredits struct{ balance int }

func (s stubCredits) GetBalance(context.Context, uuid.UUID) (int, error) { return s.balance, nil }

func (s stubCredits) ListTransactions(context.Context, uuid.UUID, int) ([]domain.CreditTransaction, error) {
	return nil, nil
}

type stubTemplates struct{}

func (stubTemplates) List(context.Context) ([]*domain.Template, error) { return nil, nil }

func (stubTemplates) Get(context.Context, string) (*domain.Template, error) {
	return nil, catalog.ErrTemplateNotFound
}

func (stubTemplates) Create(context.Context, *domain.Template) error { return nil }

func (stubTemplates) Update(context.Context, string, catalog.Patch) (*domain.Template, error) {
	return nil, catalog.ErrTemplateNotFound
}

func (stubTemplates) Delete(context.Context, string) error { return nil }

func (stubTemplates) Seed(context.Context, bool) (catalog.SeedResult, error) {
	return catalog.SeedResult{}, nil
}

type stubMatching struct{ service.MatchingService }

func (stubMatching) GetCurrentScore(context.Context, uuid.UUID, uuid.UUID) (*domain.MatchingScore, error) {
	return nil, service.ErrScoreNotFound
}

type stubGeneration struct{ service.GenerationService }

func newTestRouter(t *testing.T) (http.Handler, auth.JWTService) {
	t.Helper()
	jwtService, err := auth.NewJWTService(config.AuthConfig{JWTSecret: testSecret, AdminRole: "admin"})
	require.NoError(t, err)

	return newRouter(routerDeps{
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		jwtService: jwtService,
		adminRole:  "admin",
		db:         stubDB{},
		generation: stubGeneration{},
		matching:   stubMatching{},
		credits:    stubCredits{balance: 3},
		templates:  stubTemplates{},
	}), jwtService
}

func doRequest(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestRouter(t *testing.T) {
	h, jwtService := newTestRouter(t)

	userToken, err := jwtService.GenerateToken(context.Background(), uuid.New(), "user")
	require.NoError(t, err)
	adminToken, err := jwtService.GenerateToken(context.Background(), uuid.New(), "admin")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
		{"credits need a token", http.MethodGet, "/credits", "", http.StatusUnauthorized},
		{"credits with a token", http.MethodGet, "/credits", userToken, http.StatusOK},
		{"bad token", http.MethodGet, "/credits", "not-a-jwt", http.StatusUnauthorized},
		{"score path is routed", http.MethodGet, "/applications/" + uuid.NewString() + "/matching-score", userToken, http.StatusNotFound},
		{"bad application id", http.MethodGet, "/applications/abc/matching-score", userToken, http.StatusBadRequest},
		{"admin needs the role", http.MethodGet, "/admin/templates", userToken, http.StatusForbidden},
		{"admin lists templates", http.MethodGet, "/admin/templates", adminToken, http.StatusOK},
		{"admin seeds templates", http.MethodPost, "/admin/templates/seed", adminToken, http.StatusOK},
		{"unknown template", http.MethodGet, "/admin/templates/memoir", adminToken, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestRouterSetsTraceHeader(t *testing.T) {
	h, _ := newTestRouter(t)

	w := doRequest(t, h, http.MethodGet, "/health", "")

	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))
}
