package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/repository"
	"user_backend/internal/utils"
	"user_backend/internal/worker"
)

const invalidCredentials = "Invalid phone or password"

// AuthService provides authentication related services
type AuthService interface {
	Register(ctx context.Context, phone, password, fullName string) (*model.User, error)
	Login(ctx context.Context, phone, password string) (*model.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error)
	Logout(ctx context.Context, access *utils.Claims, refreshToken string) error
}

// AuthDeps groups the collaborators of the auth service.
type AuthDeps struct {
	Users    repository.UserRepository
	Tx       repository.Transactor
	Hasher   PasswordHasher
	Tokens   *TokenService
	Revoker  TokenRevoker
	Tasks    TaskPublisher
	Recorder AuthRecorder
	Logger   *slog.Logger
}

type authService struct {
	AuthDeps
}

// NewAuthService creates a new AuthService
func NewAuthService(deps AuthDeps) AuthService {
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &authService{AuthDeps: deps}
}

// Register creates a new, not yet verified user account
func (s *authService) Register(ctx context.Context, phone, password, fullName string) (user *model.User, err error) {
	defer func() { s.Recorder.AuthEvent("register", err) }()

	phoneNumber, err := model.ParsePhoneNumber(phone)
	if err != nil {
		return nil, apperror.Validation("Invalid phone number", apperror.Details{"phone_number": phone})
	}

	hashedPassword, err := hashPassword(ctx, s.Hasher, password)
	if err != nil {
		return nil, err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.Users.FindByPhone(ctx, phoneNumber)
		if err == nil {
			return apperror.AlreadyExists("User already registered", nil)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := utils.CurrentTime()
		user = &model.User{
			FullName:       fullName,
			PhoneNumber:    phoneNumber,
			HashedPassword: hashedPassword,
			IsActive:       false,
			Role:           model.RoleUser,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperror.AlreadyExists("User already registered", nil)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	payload := worker.VerificationPayload{UserID: user.ID, PhoneNumber: user.PhoneNumber.String(), Token: uuid.NewString()}
	if pubErr := s.Tasks.Enqueue(ctx, worker.TaskSendVerificationToken, payload); pubErr != nil {
		apperror.LogError(s.Logger, "failed to enqueue verification token", pubErr)
	}
	return user, nil
}

// Login authenticates a user and returns an access and refresh token pair.
// Unknown phones and wrong passwords fail identically.
func (s *authService) Login(ctx context.Context, phone, password string) (pair *model.TokenPair, err error) {
	defer func() { s.Recorder.AuthEvent("login", err) }()

	phoneNumber, err := model.ParsePhoneNumber(phone)
	if err != nil {
		s.Hasher.DummyVerify(ctx, password)
		return nil, apperror.Authentication(invalidCredentials)
	}

	user, err := s.Users.FindByPhone(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.Hasher.DummyVerify(ctx, password)
			return nil, apperror.Authentication(invalidCredentials)
		}
		return nil, err
	}

	if !s.Hasher.Verify(ctx, password, user.HashedPassword) {
		return nil, apperror.Authentication(invalidCredentials)
	}

	access, err := s.Tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Tokens.IssueRefresh(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "Bearer"}, nil
}

// Refresh issues a new access token for a valid refresh token. The role comes
// from the stored user, so role changes apply on the next refresh.
func (s *authService) Refresh(ctx context.Context, refreshToken string) (pair *model.TokenPair, err error) {
	defer func() { s.Recorder.AuthEvent("refresh", err) }()

	if refreshToken == "" {
		return nil, apperror.Authentication("Refresh token is missing")
	}
	claims, err := s.Tokens.Decode(refreshToken)
	if err != nil {
		return nil, err
	}
	if _, err := RequireType(claims, model.TokenTypeRefresh); err != nil {
		return nil, err
	}
	userID, err := SubjectID(claims)
	if err != nil {
		return nil, err
	}
	if err := s.checkRevoked(ctx, claims); err != nil {
		return nil, err
	}

	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.Authentication("Invalid token (user not found)")
		}
		return nil, err
	}

	access, err := s.Tokens.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &model.TokenPair{AccessToken: access, TokenType: "Bearer"}, nil
}

// Logout revokes the access token and, when it belongs to the same user, the
// refresh token. A rejected refresh token leaves both tokens valid.
func (s *authService) Logout(ctx context.Context, access *utils.Claims, refreshToken string) (err error) {
	defer func() { s.Recorder.AuthEvent("logout", err) }()

	if refreshToken == "" {
		return s.Revoker.Revoke(ctx, access.ID, expiry(access))
	}

	claims, err := s.Tokens.Decode(refreshToken)
	if err != nil {
		return err
	}
	if _, err := RequireType(claims, model.TokenTypeRefresh); err != nil {
		return err
	}
	if claims.Subject != access.Subject {
		return apperror.Authentication("Refresh token does not belong to the current user")
	}

	if err := s.Revoker.Revoke(ctx, access.ID, expiry(access)); err != nil {
		return err
	}
	return s.Revoker.Revoke(ctx, claims.ID, expiry(claims))
}

// checkRevoked fails closed: when the denylist is unreachable the token is refused.
func (s *authService) checkRevoked(ctx context.Context, claims *utils.Claims) error {
	revoked, err := s.Revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return err
	}
	if revoked {
		return apperror.Authentication("Token has been revoked")
	}
	return nil
}

// hashPassword runs bcrypt outside of any transaction so a slow hash never
// holds a pooled connection.
func hashPassword(ctx context.Context, hasher PasswordHasher, password string) (string, error) {
	if len(password) > utils.MaxPasswordBytes {
		return "", apperror.Validation("Password is too long",
			apperror.Details{"password": "must be at most 72 bytes"})
	}
	hashed, err := hasher.Hash(ctx, password)
	if err != nil {
		return "", apperror.Internal(err)
	}
	return hashed, nil
}
