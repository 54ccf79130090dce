// Package service holds the business rules behind each HTTP and websocket operation.
package service

import (
	"context"
	"strings"

	"devlink/internal/models"
	"devlink/internal/repository"
	"devlink/internal/token"
	"devlink/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// dummyHash keeps login timing flat when the email is unknown.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("devlink-timing-guard"), bcryptCost)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=2,max=30,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult carries both tokens; the refresh token is set as a cookie by the handler.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	User         *models.User
}

type AuthService struct {
	users  repository.UserRepository
	tokens *token.Service
}

func NewAuthService(users repository.UserRepository, tokens *token.Service) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates an account. Email is compared case-insensitively.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	exists, err := s.users.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("Email already exists")
	}
	exists, err = s.users.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError("Username already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: string(hash),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and rotates the stored refresh token. Unknown
// email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	invalid := models.NewUnauthorizedError("Invalid email or password!")

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(in.Password))
			return nil, invalid
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, invalid
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	refreshToken, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, &refreshToken); err != nil {
		return nil, err
	}

	return &LoginResult{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}

// Me returns the authenticated user's account.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Refresh exchanges the session's refresh token for a new access token. The
// token must verify and still be the one stored for its user.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", models.NewUnauthorizedError("Token required")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return "", models.NewUnauthorizedError("Invalid or expired refresh token")
	}

	user, err := s.users.GetByIDAndRefreshToken(ctx, claims.UserID, refreshToken)
	if err != nil {
		return "", err
	}

	accessToken, err := s.tokens.IssueAccessToken(user.ID, user.Username)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return accessToken, nil
}

// Logout forgets whichever session holds refreshToken. An unknown or empty
// token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	_, err := s.users.ClearRefreshToken(ctx, refreshToken)
	return err
}
