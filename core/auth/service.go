package auth

import (
	"context"
	"errors"
	"strings"

	"fortify/core/apperr"
	"fortify/logger"
	"fortify/model"
	"fortify/repository"
)

// MinPasswordLength is the shortest password accepted at signup.
const MinPasswordLength = 8

// Credentials is the signup/login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token  string `json:"token"`
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
}

// Service authenticates users and issues session tokens.
type Service struct {
	users  repository.UserRepository
	tokens *TokenManager
}

func NewService(users repository.UserRepository, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (c Credentials) validate(checkLength bool) error {
	var fields apperr.FieldErrors
	email := normalizeEmail(c.Email)
	if email == "" {
		fields.Add("email", "is required")
	} else if at := strings.Index(email, "@"); at <= 0 || at == len(email)-1 {
		fields.Add("email", "must be a valid email address")
	}
	if c.Password == "" {
		fields.Add("password", "is required")
	} else if checkLength && len(c.Password) < MinPasswordLength {
		fields.Add("password", "must be at least 8 characters")
	}
	return fields.Err()
}

// Signup registers a new user. The email is stored lower-cased and must be unused.
func (s *Service) Signup(ctx context.Context, in Credentials) (*model.User, error) {
	if err := in.validate(true); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{Email: normalizeEmail(in.Email), PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			logger.Warn("[Signup] 邮箱已存在", logger.String("email", user.Email))
			return nil, apperr.Conflict("email already in use", err)
		}
		return nil, err
	}

	logger.Info("[Signup] 注册成功", logger.Int64("userId", user.ID))
	return user, nil
}

// Login checks credentials and returns a signed token. Unknown email and wrong password look the same.
func (s *Service) Login(ctx context.Context, in Credentials) (*LoginResult, error) {
	if err := in.validate(false); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !CheckPasswordHash(in.Password, user.PasswordHash) {
		logger.Warn("[Login] 登录失败", logger.String("email", normalizeEmail(in.Email)))
		return nil, apperr.Validation("invalid credentials")
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, UserID: user.ID, Email: user.Email}, nil
}

// Profile returns the account behind an authenticated token.
func (s *Service) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// The token outlived its account.
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}
