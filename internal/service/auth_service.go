package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Raivel16/gestor-tareas/internal/domain"
	"github.com/Raivel16/gestor-tareas/internal/repository"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/bcrypt"
)

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

type RegisterInput struct {
	FullName        string `json:"full_name" form:"full_name"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FullName, validation.Required.Error("full name is required"), validation.RuneLength(1, 255)),
		validation.Field(&in.Email, validation.Required.Error("email is required"), is.EmailFormat.Error("email is not valid")),
		validation.Field(&in.Password, validation.Required.Error("password is required"), validation.RuneLength(6, 0).Error("password must be at least 6 characters")),
		validation.Field(&in.ConfirmPassword, validation.Required.Error("confirm password is required")),
	)
}

// AuthService registers accounts and exchanges credentials for bearer tokens.
type AuthService struct {
	users  userStore
	tokens *TokenManager
	audit  *AuditService
	cost   int
}

func NewAuthService(users userStore, tokens *TokenManager, audit *AuditService) *AuthService {
	return &AuthService{users: users, tokens: tokens, audit: audit, cost: bcrypt.DefaultCost}
}

// RequestMeta is the client info recorded in the activity log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta RequestMeta) (*domain.User, string, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.Validate(); err != nil {
		return nil, "", fromValidation(err)
	}
	if in.Password != in.ConfirmPassword {
		return nil, "", invalid("passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &domain.User{FullName: in.FullName, Email: in.Email, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.audit.LogWithRequest(ctx, u.ID, domain.AuditActionRegister, domain.AuditCategoryAuth, meta.IP, meta.UserAgent, nil)
	return u, token, nil
}

// Login answers ErrInvalidCredentials for an unknown email and a wrong password alike.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", invalid("email and password are required")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID)
	if err != nil {
		return nil, "", fmt.Errorf("sign token: %w", err)
	}

	s.audit.LogWithRequest(ctx, u.ID, domain.AuditActionLogin, domain.AuditCategoryAuth, meta.IP, meta.UserAgent, nil)
	return u, token, nil
}

// Me returns the account behind a verified token.
func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return u, nil
}
