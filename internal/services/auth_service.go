package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yukikurage/pinboard-api/internal/constants"
	"github.com/yukikurage/pinboard-api/internal/identity"
	"github.com/yukikurage/pinboard-api/internal/models"
	"github.com/yukikurage/pinboard-api/internal/password"
	"github.com/yukikurage/pinboard-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrInvalidAssertion      = errors.New("invalid identity assertion")
	ErrUserNotFound          = errors.New("user not found")
	ErrPasswordTooLong       = errors.New("password too long")
	ErrFederationUnavailable = errors.New("federated sign-in is not configured")
)

// PasswordHasher hashes and checks local account passwords.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenIssuer mints bearer tokens for an authenticated user.
type TokenIssuer interface {
	Issue(userID uint64) (string, error)
}

// IdentityVerifier checks an assertion from an external identity provider.
type IdentityVerifier interface {
	Verify(ctx context.Context, assertion string) (*identity.Identity, error)
}

// AuthService handles authentication related business logic.
type AuthService struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	verifier IdentityVerifier
	log      *slog.Logger
}

// NewAuthService creates a new AuthService. verifier may be nil, in which
// case federated sign-in reports ErrFederationUnavailable.
func NewAuthService(userRepo repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, verifier IdentityVerifier, log *slog.Logger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		verifier: verifier,
		log:      log,
	}
}

// AuthResult is a freshly issued token and the user it belongs to.
type AuthResult struct {
	Token string
	User  *models.User
}

// RegisterInput represents the required information to create a local account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// FederationEnabled reports whether federated sign-in can be served.
func (s *AuthService) FederationEnabled() bool {
	return s.verifier != nil
}

// Register creates a local account and signs it in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	if _, err := s.userRepo.FindByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		if errors.Is(err, password.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: &hashed,
		AuthProvider: models.AuthProviderLocal,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "auth_provider", user.AuthProvider)

	return s.issue(user)
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Email    string
	Password string
}

// Login verifies local credentials. Unknown emails, accounts without a
// password and wrong passwords all yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user.PasswordHash == nil || !s.hasher.Verify(input.Password, *user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// FederatedLogin verifies an ID token and signs in the account with the
// verified email, creating a federated account on first sign-in.
func (s *AuthService) FederatedLogin(ctx context.Context, assertion string) (*AuthResult, error) {
	if s.verifier == nil {
		return nil, ErrFederationUnavailable
	}

	id, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		s.log.InfoContext(ctx, "federated assertion rejected", "error", err)
		return nil, ErrInvalidAssertion
	}

	user, err := s.userRepo.FindByEmail(ctx, id.Email)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user = newFederatedUser(id)
	if err := s.userRepo.Create(ctx, user); err != nil {
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// Lost a race with a concurrent sign-in for the same email.
		user, err = s.userRepo.FindByEmail(ctx, id.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		return s.issue(user)
	}

	s.log.InfoContext(ctx, "user registered", "user_id", user.ID, "auth_provider", user.AuthProvider)

	return s.issue(user)
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, User: user}, nil
}

func newFederatedUser(id *identity.Identity) *models.User {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = constants.DefaultGoogleName
	}

	subject := id.Subject
	user := &models.User{
		Name:               name,
		Email:              id.Email,
		FederatedSubjectID: &subject,
		AuthProvider:       models.AuthProviderFederated,
	}
	if id.Picture != "" {
		picture := id.Picture
		user.ProfilePictureURL = &picture
	}
	return user
}
