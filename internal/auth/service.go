package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"etender/db"
	"etender/internal/clock"
	"etender/internal/errs"
	"etender/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Service struct {
	store  *db.Storage
	tokens *Issuer
}

func NewService(store *db.Storage, tokens *Issuer) *Service {
	return &Service{store: store, tokens: tokens}
}

type Session struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Login checks the password and issues a token. Unknown email and wrong
// password fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errs.Is(err, errs.KindNotFound) {
		return nil, &errs.UnauthorizedError{Reason: "invalid credentials"}
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, &errs.UnauthorizedError{Reason: "invalid credentials"}
	}
	token, exp, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: exp.Format("2006-01-02T15:04:05Z07:00"), User: *u}, nil
}

// SeedUser is one entry of the users file.
type SeedUser struct {
	ID           string      `yaml:"id"`
	Email        string      `yaml:"email"`
	Name         string      `yaml:"name"`
	Role         models.Role `yaml:"role"`
	Organization string      `yaml:"organization"`
	Password     string      `yaml:"password"`
	PasswordHash string      `yaml:"password_hash"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

func ParseSeed(data []byte) ([]SeedUser, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}
	for i, u := range f.Users {
		if strings.TrimSpace(u.Email) == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		if !models.ValidRole(u.Role) {
			return nil, fmt.Errorf("users[%d]: unknown role %q", i, u.Role)
		}
		if u.Password == "" && u.PasswordHash == "" {
			return nil, fmt.Errorf("users[%d]: password or password_hash is required", i)
		}
	}
	return f.Users, nil
}

// LoadSeed creates the users listed in path. Existing emails are left alone,
// so the seed can run on every start.
func LoadSeed(ctx context.Context, store *db.Storage, path string, clk clock.Clock) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read users file: %w", err)
	}
	users, err := ParseSeed(data)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, su := range users {
		hash := su.PasswordHash
		if hash == "" {
			b, err := bcrypt.GenerateFromPassword([]byte(su.Password), bcrypt.DefaultCost)
			if err != nil {
				return created, fmt.Errorf("hash password for %s: %w", su.Email, err)
			}
			hash = string(b)
		}
		id := su.ID
		if id == "" {
			id = uuid.NewString()
		}
		ok, err := store.CreateUser(ctx, &models.User{
			ID:           id,
			Email:        strings.ToLower(strings.TrimSpace(su.Email)),
			Name:         strings.TrimSpace(su.Name),
			Role:         su.Role,
			Organization: strings.TrimSpace(su.Organization),
			PasswordHash: hash,
			CreatedAt:    clk.Now(),
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}
