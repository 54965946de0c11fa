package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/elimu-fund/bursary-api/internal/models"
	appErrors "github.com/elimu-fund/bursary-api/pkg/errors"
)

type authUserRepoStub struct {
	byEmail   map[string]*models.User
	lastLogin *time.Time
}

func newAuthUserRepoStub() *authUserRepoStub {
	return &authUserRepoStub{byEmail: make(map[string]*models.User)}
}

func (r *authUserRepoStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (r *authUserRepoStub) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range r.byEmail {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *authUserRepoStub) Create(_ context.Context, user *models.User) error {
	user.ID = "user-new"
	r.byEmail[user.Email] = user
	return nil
}

func (r *authUserRepoStub) UpdateLastLogin(_ context.Context, _ string, at time.Time) error {
	r.lastLogin = &at
	return nil
}

func authFixture() (*AuthService, *authUserRepoStub) {
	users := newAuthUserRepoStub()
	svc := NewAuthService(users, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "bursary-api",
	})
	return svc, users
}

func seedUser(t *testing.T, users *authUserRepoStub, email, password string, active bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           "user-1",
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Achieng Odhiambo",
		Role:         models.RoleStudent,
		Active:       active,
	}
	users.byEmail[email] = user
	return user
}

func TestAuthRegisterIssuesToken(t *testing.T) {
	svc, users := authFixture()

	resp, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "New.Student@Example.com",
		Password: "supersecret1",
		FullName: "New Student",
		Phone:    "+254700000003",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, models.RoleStudent, resp.User.Role)

	// Email is normalised before storage.
	stored, ok := users.byEmail["new.student@example.com"]
	require.True(t, ok)
	assert.True(t, stored.Active)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, stored.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthRegisterDuplicateEmail(t *testing.T) {
	svc, users := authFixture()
	seedUser(t, users, "taken@example.com", "supersecret1", true)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "taken@example.com",
		Password: "supersecret1",
		FullName: "Someone Else",
		Phone:    "+254700000004",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginSuccess(t *testing.T) {
	svc, users := authFixture()
	seedUser(t, users, "student@example.com", "supersecret1", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "supersecret1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotNil(t, users.lastLogin)
}

func TestAuthLoginWrongPassword(t *testing.T) {
	svc, users := authFixture()
	seedUser(t, users, "student@example.com", "supersecret1", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "wrongpassword",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginUnknownEmailSameError(t *testing.T) {
	svc, _ := authFixture()

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "nobody@example.com",
		Password: "supersecret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthLoginInactiveAccount(t *testing.T) {
	svc, users := authFixture()
	seedUser(t, users, "student@example.com", "supersecret1", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "student@example.com",
		Password: "supersecret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthValidateTokenRejectsTampered(t *testing.T) {
	svc, users := authFixture()
	user := seedUser(t, users, "student@example.com", "supersecret1", true)

	other := NewAuthService(users, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret: "different-secret",
		AccessTokenExpiry: time.Hour,
	})
	token, err := other.generateAccessToken(user)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
