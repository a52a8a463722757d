package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/matheus3301/courier/internal/apperr"
	"github.com/matheus3301/courier/internal/media"
	"github.com/matheus3301/courier/internal/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// ImageUploader stores a profile picture and returns its URL.
type ImageUploader interface {
	Upload(ctx context.Context, folder string, data []byte) (string, error)
}

// Session is what signup and login hand back to the client.
type Session struct {
	User  *store.User
	Token string
}

// Service implements signup, login and profile updates.
type Service struct {
	db       *store.DB
	tokens   *Tokens
	uploader ImageUploader
	logger   *zap.Logger
}

// NewService creates an account service.
func NewService(db *store.DB, tokens *Tokens, uploader ImageUploader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, tokens: tokens, uploader: uploader, logger: logger}
}

// SignupInput holds the fields required to create an account.
type SignupInput struct {
	FullName string
	Email    string
	Password string
	Bio      string
}

// Signup creates an account and returns a session for it.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Bio) == "" {
		return nil, apperr.New(apperr.Validation, "Missing Details")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.Wrap(apperr.Validation, "Password too long", err)
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &store.User{
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: string(hash),
		Bio:          in.Bio,
	}
	if err := s.db.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.Wrap(apperr.Conflict, "Account already exists", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("account created", zap.String("user_id", u.ID))
	return s.session(u)
}

// Login verifies credentials and returns a fresh session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperr.New(apperr.Validation, "Missing Details")
	}
	u, err := s.db.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.Validation, "Invalid credentials")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.Validation, "Invalid credentials")
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, apperr.New(apperr.Unauthorized, "Not authorized, no token")
	}
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "Not authorized, token failed", err)
	}
	u, err := s.db.GetUser(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.Unauthorized, "User not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateProfile changes name and bio, and the picture when pic is non-empty.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName, bio string, pic []byte) (*store.User, error) {
	var url string
	if len(pic) > 0 {
		var err error
		url, err = s.uploader.Upload(ctx, "user_profiles", pic)
		if media.IsRejected(err) {
			return nil, apperr.Wrap(apperr.Validation, "Invalid image", err)
		}
		if err != nil {
			s.logger.Warn("profile picture upload failed", zap.String("user_id", userID), zap.Error(err))
			return nil, apperr.Wrap(apperr.Upload, "Image upload failed", err)
		}
	}
	u, err := s.db.UpdateProfile(ctx, userID, strings.TrimSpace(fullName), bio, url)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "User not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return u, nil
}

func (s *Service) session(u *store.User) (*Session, error) {
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: tok}, nil
}
