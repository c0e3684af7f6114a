package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/repository"
	"user_backend/internal/storage"
	"user_backend/internal/utils"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 500

	MaxAvatarSize = 5 * 1024 * 1024 // 5MB
)

var avatarContentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// AvatarUpload is an image submitted for a user's avatar.
type AvatarUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// UserService defines operations on user accounts
type UserService interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	List(ctx context.Context, limit, offset int) ([]model.User, error)
	Update(ctx context.Context, actor *model.User, id int64, req model.UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, id int64) error
	SetAvatar(ctx context.Context, id int64, upload AvatarUpload) (*model.User, error)
	DeleteUnverified(ctx context.Context, olderThan time.Duration) (int64, error)
	CreateAdmin(ctx context.Context, phone, password, fullName string) (*model.User, bool, error)
}

// UserDeps groups the collaborators of the user service.
type UserDeps struct {
	Users  repository.UserRepository
	Roles  repository.RoleRepository
	Tx     repository.Transactor
	Hasher PasswordHasher
	Store  storage.ObjectStore
	Logger *slog.Logger
}

type userService struct {
	UserDeps
}

// NewUserService creates a new UserService
func NewUserService(deps UserDeps) UserService {
	if deps.Store == nil {
		deps.Store = storage.Disabled{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &userService{UserDeps: deps}
}

func (s *userService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return s.Users.FindByID(ctx, id)
}

// List returns a page of users. A non-positive limit selects the default and
// limits above MaxListLimit are capped.
func (s *userService) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Users.List(ctx, model.ListParams{Limit: limit, Offset: offset})
}

// Update applies req to user id on behalf of actor. Non-admins may only update
// their own name and phone number.
func (s *userService) Update(ctx context.Context, actor *model.User, id int64, req model.UpdateUserRequest) (*model.User, error) {
	if !actor.IsAdmin() {
		if actor == nil || actor.ID != id {
			return nil, apperror.PermissionDenied("You are not authorized to update this user")
		}
		if req.IsActive != nil || req.Role != nil {
			return nil, apperror.PermissionDenied("You are not authorized to change is_active or role")
		}
	}

	patch := model.UserPatch{FullName: req.FullName, IsActive: req.IsActive, Role: req.Role}
	if req.PhoneNumber != nil {
		phone, err := model.ParsePhoneNumber(*req.PhoneNumber)
		if err != nil {
			return nil, apperror.Validation("Invalid phone number", apperror.Details{"phone_number": *req.PhoneNumber})
		}
		patch.PhoneNumber = &phone
	}
	if req.Role != nil && !slices.Contains(model.Roles, *req.Role) {
		return nil, apperror.Validation("Unknown role", apperror.Details{"role": *req.Role})
	}

	var user *model.User
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.Users.Update(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Delete removes user id and then its avatar object.
func (s *userService) Delete(ctx context.Context, id int64) error {
	var avatarKey *string
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.Users.FindByID(ctx, id)
		if err != nil {
			return err
		}
		avatarKey = user.AvatarKey
		return s.Users.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if avatarKey != nil {
		s.removeObject(ctx, *avatarKey)
	}
	return nil
}

// SetAvatar stores a new avatar image for user id and replaces the previous one.
func (s *userService) SetAvatar(ctx context.Context, id int64, upload AvatarUpload) (*model.User, error) {
	ext := strings.ToLower(filepath.Ext(upload.Filename))
	contentType, ok := avatarContentTypes[ext]
	if !ok {
		return nil, apperror.BadRequest("Invalid file format. Only .jpg, .jpeg, .png and .webp are allowed", apperror.Details{"filename": upload.Filename})
	}
	if upload.Size <= 0 || upload.Size > MaxAvatarSize {
		return nil, apperror.BadRequest("File size exceeds limit", apperror.Details{"max_bytes": MaxAvatarSize})
	}

	current, err := s.Users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", id, uuid.NewString(), ext)
	if err := s.Store.Put(ctx, key, upload.Content, upload.Size, contentType); err != nil {
		return nil, err
	}

	user, err := s.Users.Update(ctx, id, model.UserPatch{AvatarKey: &key})
	if err != nil {
		s.removeObject(ctx, key)
		return nil, err
	}

	if current.AvatarKey != nil && *current.AvatarKey != key {
		s.removeObject(ctx, *current.AvatarKey)
	}
	return user, nil
}

// DeleteUnverified deletes inactive users created more than olderThan ago.
func (s *userService) DeleteUnverified(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := utils.CurrentTime().Add(-olderThan)
	return s.Users.DeleteUnverifiedBefore(ctx, cutoff)
}

// CreateAdmin seeds the roles and creates an active admin. When the phone is
// already registered the existing user is returned and created is false.
func (s *userService) CreateAdmin(ctx context.Context, phone, password, fullName string) (user *model.User, created bool, err error) {
	phoneNumber, err := model.ParsePhoneNumber(phone)
	if err != nil {
		return nil, false, apperror.Validation("Invalid phone number", apperror.Details{"phone_number": phone})
	}
	if password == "" {
		return nil, false, apperror.Validation("Password is required", nil)
	}
	hashedPassword, err := hashPassword(ctx, s.Hasher, password)
	if err != nil {
		return nil, false, err
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Roles.EnsureRoles(ctx, model.Roles); err != nil {
			return err
		}

		existing, err := s.Users.FindByPhone(ctx, phoneNumber)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := utils.CurrentTime()
		user = &model.User{
			FullName:       fullName,
			PhoneNumber:    phoneNumber,
			HashedPassword: hashedPassword,
			IsActive:       true,
			Role:           model.RoleAdmin,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		created = true
		return s.Users.Create(ctx, user)
	})
	if err != nil {
		return nil, false, err
	}
	return user, created, nil
}

func (s *userService) removeObject(ctx context.Context, key string) {
	if err := s.Store.Delete(ctx, key); err != nil {
		apperror.LogError(s.Logger, "failed to delete avatar object", err)
	}
}
