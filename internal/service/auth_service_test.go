package service

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/models"
	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

func (s *ServiceTestSuite) TestRegisterAndLogin() {
	resp, err := s.svc.Auth.Register(s.ctx, &models.RegisterRequest{
		Name: " Carol ", Email: " Carol@Example.com ", Password: "secret1",
	})
	s.Require().NoError(err)
	s.NotEmpty(resp.Token)
	s.Equal("carol@example.com", resp.User.Email)
	s.Equal("Carol", resp.User.Name)
	s.Equal(types.UserRoleMember, resp.User.Role)
	s.True(resp.User.IsActive)
	s.Equal("aurora", resp.User.Preferences["theme"])

	stored, err := s.repos.UserRepo.FindByEmail(s.ctx, "carol@example.com")
	s.Require().NoError(err)
	s.NotEqual("secret1", stored.Password)

	userID, err := s.svc.Auth.UserIDFromToken(resp.Token)
	s.Require().NoError(err)
	s.Equal(resp.User.ID, userID)

	login, err := s.svc.Auth.Login(s.ctx, &models.LoginRequest{Email: "CAROL@example.com", Password: "secret1"})
	s.Require().NoError(err)
	s.Equal(resp.User.ID, login.User.ID)
	s.NotNil(login.User.LastLoginAt)
}

func (s *ServiceTestSuite) TestRegister_DuplicateEmail() {
	req := &models.RegisterRequest{Name: "Carol", Email: "carol@example.com", Password: "secret1"}
	_, err := s.svc.Auth.Register(s.ctx, req)
	s.Require().NoError(err)

	_, err = s.svc.Auth.Register(s.ctx, &models.RegisterRequest{Name: "Other", Email: "CAROL@example.com", Password: "secret2"})
	s.ErrorIs(err, ErrUserExists)
	s.ErrorIs(err, ErrConflict)

	count, err := s.repos.UserRepo.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *ServiceTestSuite) TestRegister_Validation() {
	cases := []struct {
		name  string
		req   *models.RegisterRequest
		field string
	}{
		{"short name", &models.RegisterRequest{Name: "C", Email: "c@example.com", Password: "secret1"}, "name"},
		{"bad email", &models.RegisterRequest{Name: "Carol", Email: "not-an-email", Password: "secret1"}, "email"},
		{"short password", &models.RegisterRequest{Name: "Carol", Email: "c@example.com", Password: "12345"}, "password"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.svc.Auth.Register(s.ctx, tc.req)
			ve, ok := IsValidation(err)
			s.Require().True(ok, "expected validation error, got %v", err)
			s.Equal(tc.field, ve.Field)
		})
	}
}

func (s *ServiceTestSuite) TestLogin_Rejections() {
	_, err := s.svc.Auth.Register(s.ctx, &models.RegisterRequest{Name: "Carol", Email: "carol@example.com", Password: "secret1"})
	s.Require().NoError(err)

	_, err = s.svc.Auth.Login(s.ctx, &models.LoginRequest{Email: "carol@example.com", Password: "wrong"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.svc.Auth.Login(s.ctx, &models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	s.ErrorIs(err, ErrInvalidCredentials)

	stored, err := s.repos.UserRepo.FindByEmail(s.ctx, "carol@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.repos.UserRepo.SetActive(s.ctx, stored.ID, false))

	_, err = s.svc.Auth.Login(s.ctx, &models.LoginRequest{Email: "carol@example.com", Password: "secret1"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceTestSuite) TestLogin_UnknownEmailPaysBcryptCost() {
	cost, err := bcrypt.Cost(dummyHash())
	s.Require().NoError(err)
	s.Equal(BcryptCost, cost)

	_, err = s.svc.Auth.Login(s.ctx, &models.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceTestSuite) TestAuthenticate_RejectsDisabledAccount() {
	resp, err := s.svc.Auth.Register(s.ctx, &models.RegisterRequest{Name: "Carol", Email: "carol@example.com", Password: "secret1"})
	s.Require().NoError(err)

	userID, err := s.svc.Auth.Authenticate(s.ctx, resp.Token)
	s.Require().NoError(err)
	s.Equal(resp.User.ID, userID)

	s.Require().NoError(s.repos.UserRepo.SetActive(s.ctx, resp.User.ID, false))
	_, err = s.svc.Auth.Authenticate(s.ctx, resp.Token)
	s.ErrorIs(err, ErrAccountDisabled)
	s.ErrorIs(err, ErrUnauthorized)

	s.Require().NoError(s.repos.UserRepo.SetActive(s.ctx, resp.User.ID, true))
	_, err = s.svc.Auth.Authenticate(s.ctx, resp.Token)
	s.NoError(err)

	future := time.Now().Add(time.Hour).Unix()
	orphan, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "deleted-user", "exp": future}).
		SignedString([]byte(s.cfg.JWTSecret))
	s.Require().NoError(err)
	_, err = s.svc.Auth.Authenticate(s.ctx, orphan)
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *ServiceTestSuite) TestUserIDFromToken_Rejections() {
	sign := func(secret string, claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		s.Require().NoError(err)
		return token
	}
	future := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"garbage":      "not.a.token",
		"wrong secret": sign("other-secret", jwt.MapClaims{"sub": s.alice.ID, "exp": future}),
		"expired":      sign(s.cfg.JWTSecret, jwt.MapClaims{"sub": s.alice.ID, "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":    sign(s.cfg.JWTSecret, jwt.MapClaims{"sub": s.alice.ID}),
		"no subject":   sign(s.cfg.JWTSecret, jwt.MapClaims{"exp": future}),
	}
	for name, token := range cases {
		s.Run(name, func() {
			_, err := s.svc.Auth.UserIDFromToken(token)
			s.ErrorIs(err, ErrInvalidToken)
		})
	}

	userID, err := s.svc.Auth.UserIDFromToken(sign(s.cfg.JWTSecret, jwt.MapClaims{"sub": s.alice.ID, "exp": future}))
	s.Require().NoError(err)
	s.Equal(s.alice.ID, userID)
}

func (s *ServiceTestSuite) TestUsers() {
	users, err := s.svc.User.List(s.ctx)
	s.Require().NoError(err)
	s.Len(users, 2)
	for _, u := range users {
		s.Nil(u.Preferences)
	}

	_, err = s.svc.User.Get(s.ctx, "missing")
	s.ErrorIs(err, ErrNotFound)

	updated, err := s.svc.User.UpdatePreferences(s.ctx, s.alice.ID, models.UpdatePreferencesRequest{"theme": "dark"})
	s.Require().NoError(err)
	s.Equal("dark", updated.Preferences["theme"])
	s.Equal("en", updated.Preferences["language"], "untouched keys survive the merge")

	_, err = s.svc.User.UpdatePreferences(s.ctx, s.alice.ID, models.UpdatePreferencesRequest{})
	_, ok := IsValidation(err)
	s.True(ok)
}

func (s *ServiceTestSuite) TestSetActive() {
	admin := s.createUser("root@example.com", "Root", types.UserRoleAdmin)

	_, err := s.svc.User.SetActive(s.ctx, s.alice.ID, s.bob.ID, false)
	s.ErrorIs(err, ErrForbidden)

	_, err = s.svc.User.SetActive(s.ctx, admin.ID, admin.ID, false)
	ve, ok := IsValidation(err)
	s.Require().True(ok)
	s.Equal("isActive", ve.Field)

	bob, err := s.svc.User.SetActive(s.ctx, admin.ID, s.bob.ID, false)
	s.Require().NoError(err)
	s.False(bob.IsActive)

	_, err = s.svc.User.SetActive(s.ctx, admin.ID, "missing", true)
	s.ErrorIs(err, ErrNotFound)
}
