package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elimu-fund/bursary-api/internal/middleware"
	"github.com/elimu-fund/bursary-api/internal/models"
	"github.com/elimu-fund/bursary-api/internal/service"
)

type userRepoStub struct {
	users map[string]*models.User
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*models.User)}
}

func (r *userRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *userRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) Create(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	r.users[user.Email] = user
	return nil
}

func (r *userRepoStub) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func newAuthHandler(users *userRepoStub) *AuthHandler {
	svc := service.NewAuthService(users, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "bursary-api",
	})
	return NewAuthHandler(svc)
}

func TestAuthHandlerLoginSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := newUserRepoStub()
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.users["student@example.com"] = &models.User{
		ID:           "user-1",
		Email:        "student@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleStudent,
		Active:       true,
	}
	handler := newAuthHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"email":"student@example.com","password":"supersecret1"}`)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/login", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "user-1", envelope.Data.User.ID)
}

func TestAuthHandlerLoginBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(newUserRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":`))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := newUserRepoStub()
	hash, err := bcrypt.GenerateFromPassword([]byte("supersecret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.users["student@example.com"] = &models.User{
		ID:           "user-1",
		Email:        "student@example.com",
		PasswordHash: string(hash),
		Active:       true,
	}
	handler := newAuthHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"email":"student@example.com","password":"wrongpassword"}`)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/login", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerRegisterCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := newUserRepoStub()
	handler := newAuthHandler(users)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body := bytes.NewBufferString(`{"email":"new@example.com","password":"supersecret1","full_name":"New Student","phone":"+254700000009"}`)
	c.Request, _ = http.NewRequest(http.MethodPost, "/auth/register", body)
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, users.users, "new@example.com")
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(newUserRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Email: "student@example.com", Role: models.RoleStudent})

	handler.Me(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.UserInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "user-1", envelope.Data.ID)
}

func TestAuthHandlerMeWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAuthHandler(newUserRepoStub())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/auth/me", nil)

	handler.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
