package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sparksfinance/ledger-core/internal/logger"
	"github.com/sparksfinance/ledger-core/internal/models"
	"github.com/sparksfinance/ledger-core/internal/repositories"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserAlreadyExists is returned when the username or email is taken.
	ErrUserAlreadyExists = errors.New("username or email already exists")
	// ErrUserDoesNotExist is returned when the username is unknown.
	ErrUserDoesNotExist = errors.New("username does not exist")
	// ErrInvalidCredentials is returned on a password mismatch.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserReader defines read-only operations for users.
type UserReader interface {
	GetByUsernameOrEmail(ctx context.Context, username *string, email *string) (*models.UserDB, error)
}

// UserWriter defines write operations for users.
type UserWriter interface {
	Save(ctx context.Context, user *models.UserDB) error
}

// JWTGenerator defines an interface for generating JWT tokens.
type JWTGenerator interface {
	Generate(ctx context.Context, userID uuid.UUID) (string, error)
}

// AuthService handles registration and login.
type AuthService struct {
	runner TxRunner
	reader UserReader
	writer UserWriter
	jwt    JWTGenerator
	audit  Auditor
}

func NewAuthService(runner TxRunner, reader UserReader, writer UserWriter, jwt JWTGenerator, audit Auditor) *AuthService {
	return &AuthService{
		runner: runner,
		reader: reader,
		writer: writer,
		jwt:    jwt,
		audit:  audit,
	}
}

// Register creates a new user with a bcrypt-hashed password.
func (svc *AuthService) Register(ctx context.Context, username, password, email string, meta RequestMeta) error {
	user, err := svc.reader.GetByUsernameOrEmail(ctx, &username, &email)
	if err != nil {
		logger.Log.Errorw("failed to check user exists", "err", err)
		return err
	}
	if user != nil {
		return ErrUserAlreadyExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.Errorw("failed to hash password", "err", err)
		return err
	}

	newUser := &models.UserDB{
		UserID:       uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}

	err = svc.runner.Do(ctx, func(ctx context.Context) error {
		if err := svc.writer.Save(ctx, newUser); err != nil {
			return err
		}
		return svc.audit.Record(ctx, newUser.UserID, models.AuditUserRegistered, username, "user registered", meta)
	})
	if err != nil {
		if repositories.IsUniqueViolation(err) {
			// Lost the race against a concurrent registration.
			return ErrUserAlreadyExists
		}
		logger.Log.Errorw("failed to save user", "err", err)
		return err
	}

	return nil
}

// Login authenticates a user and returns a JWT token.
func (svc *AuthService) Login(ctx context.Context, username, password string, meta RequestMeta) (string, error) {
	user, err := svc.reader.GetByUsernameOrEmail(ctx, &username, nil)
	if err != nil {
		logger.Log.Errorw("failed to get user", "err", err)
		return "", err
	}
	if user == nil {
		return "", ErrUserDoesNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		logger.Log.Warnw("invalid credentials", "username", username)
		return "", ErrInvalidCredentials
	}

	token, err := svc.jwt.Generate(ctx, user.UserID)
	if err != nil {
		logger.Log.Errorw("failed to generate JWT", "err", err)
		return "", err
	}

	if err := svc.audit.Record(ctx, user.UserID, models.AuditUserLogin, username, "user logged in", meta); err != nil {
		logger.Log.Warnw("failed to audit login", "username", username, "err", err)
	}

	return token, nil
}
