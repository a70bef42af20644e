package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/wanderplan/wanderplan-server/internal/api"
	"github.com/wanderplan/wanderplan-server/internal/cache"
	"github.com/wanderplan/wanderplan-server/internal/config"
	"github.com/wanderplan/wanderplan-server/internal/models"
	"github.com/wanderplan/wanderplan-server/internal/realtime"
	"github.com/wanderplan/wanderplan-server/internal/repository"
	"github.com/wanderplan/wanderplan-server/internal/service"
	"github.com/wanderplan/wanderplan-server/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router      *gin.Engine
	Repository  repository.Repository
	Service     service.Service
	JWTSecret   []byte
	DB          *sqlx.DB
	TestUserID  string
	TestUserJWT string
}

// SetupTestContext creates a new test context with initialized dependencies.
// Caches run in-process so tests need a Postgres instance but no Redis.
func SetupTestContext(t *testing.T) *TestContext {
	cfg := config.LoadConfig()

	if cfg.Database.DBName == "wanderplan" && cfg.Database.TestDBName != "" {
		cfg.Database.DBName = cfg.Database.TestDBName
	} else if cfg.Database.TestDBName == "" {
		cfg.Database.DBName = "wanderplan_test"
	}

	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "test-secret-key"
	}

	db, err := config.SetupDatabase(cfg)
	assert.NoError(t, err, "Failed to set up test database")

	logger := utils.NewLogger()
	repo := repository.NewPostgresRepository(db)
	svc := service.NewDefaultService(repo)
	hub := realtime.NewHub(svc, logger, cfg.Realtime)

	mem := cache.NewMemoryCache()
	insights := cache.NewPlaceInsightCache(mem, cfg.Cache.InsightTTL)
	nudges := cache.NewFeedbackNudge(mem, cfg.Cache.NudgeCooldown, cfg.Cache.NudgeSessions, cfg.Cache.NudgeEditCount)

	handler := api.NewHandler(svc, hub, insights, nudges, logger)

	gin.SetMode(gin.TestMode)
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	testUserID, token := createTestUser(t, repo, cfg.Auth.JWTSecret, "testuser@example.com", "testuser")

	return &TestContext{
		Router:      router,
		Repository:  repo,
		Service:     svc,
		JWTSecret:   []byte(cfg.Auth.JWTSecret),
		DB:          db,
		TestUserID:  testUserID,
		TestUserJWT: token,
	}
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(t *TestContext) {
	if t.DB != nil {
		cleanupTestDatabase(nil, t.Repository)
		t.DB.Close()
	}
}

// cleanupTestDatabase removes any existing test users and data
func cleanupTestDatabase(t *testing.T, repo repository.Repository) {
	pgRepo, ok := repo.(*repository.PostgresRepository)
	if !ok {
		return
	}
	db := pgRepo.GetDB()

	tables := []string{
		"itinerary_changes",
		"itinerary_sequences",
		"place_participants",
		"itinerary_places",
		"itinerary_users",
		"itineraries",
		"users",
	}
	for _, table := range tables {
		if _, err := db.Exec("DELETE FROM " + table); err != nil && t != nil {
			t.Logf("Warning: Failed to clean %s: %v", table, err)
		}
	}
}

func createTestUser(t *testing.T, repo repository.Repository, jwtSecret, email, username string) (string, string) {
	// Clean up any existing test data first
	cleanupTestDatabase(t, repo)
	return CreateUser(t, repo, jwtSecret, email, username)
}

// CreateUser inserts a user and returns its id and a signed JWT. Use it for
// the extra identities collaborator tests need.
func CreateUser(t *testing.T, repo repository.Repository, jwtSecret, email, username string) (string, string) {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("testpassword"), bcrypt.DefaultCost)

	user := &models.User{
		ID:        uuid.New().String(),
		Email:     email,
		Username:  username,
		Name:      "Test User",
		Password:  string(hashedPassword),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	err := repo.CreateUser(context.Background(), user)
	assert.NoError(t, err, "Failed to create test user")

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(jwtSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return user.ID, tokenString
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// DecodeData unmarshals a response envelope and, when out is non-nil,
// re-decodes its data field into out
func DecodeData(t *testing.T, body []byte, out interface{}) models.Response {
	var resp models.Response
	err := json.Unmarshal(body, &resp)
	assert.NoError(t, err, "Failed to decode response envelope")

	if out != nil && resp.Data != nil {
		raw, err := json.Marshal(resp.Data)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, out))
	}
	return resp
}
