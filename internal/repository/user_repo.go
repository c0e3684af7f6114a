package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/utils"
)

var (
	usersTable       = utils.ConvertAndPluralize("User")
	uniquePhoneIndex = utils.ConstraintName("uq", usersTable, "phone_number")
)

const userColumns = `id, full_name, phone_number, hashed_password, is_active, role, avatar_key, created_at, updated_at`

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByPhone(ctx context.Context, phone model.PhoneNumber) (*model.User, error)
	List(ctx context.Context, params model.ListParams) ([]model.User, error)
	Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id int64) error
	DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new UserRepository. Calls made with a context from
// TxManager.WithinTx run inside that transaction.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u     model.User
		phone string
	)
	if err := row.Scan(&u.ID, &u.FullName, &phone, &u.HashedPassword, &u.IsActive,
		&u.Role, &u.AvatarKey, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.PhoneNumber = model.PhoneNumber(phone)
	return &u, nil
}

func userNotFound(key string, value any) error {
	return oops.Code(apperror.CodeNotFound).
		Public("User not found").
		With(key, value).
		Wrap(ErrNotFound)
}

// translateWriteError maps constraint violations to domain errors.
func translateWriteError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == "" || pgErr.ConstraintName == uniquePhoneIndex {
				return oops.Code(apperror.CodeAlreadyExists).
					Public("Phone number already exists").
					Wrap(ErrDuplicate)
			}
		case pgerrcode.ForeignKeyViolation:
			return apperror.Validation("Unknown role", nil)
		}
	}
	return apperror.Database(operation, err)
}

// Create inserts a new user and fills in its generated id
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := fmt.Sprintf(`INSERT INTO %s (full_name, phone_number, hashed_password, is_active, role, created_at, updated_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`, usersTable)
	err := conn(ctx, r.db).QueryRow(ctx, sql,
		user.FullName, string(user.PhoneNumber), user.HashedPassword, user.IsActive, user.Role,
		user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		return translateWriteError("insert user", err)
	}
	return nil
}

// FindByID retrieves a user by their ID
func (r *userRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, userColumns, usersTable)
	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound("user_id", id)
		}
		return nil, apperror.Database("find user by id", err)
	}
	return user, nil
}

// FindByPhone retrieves a user by their phone number
func (r *userRepository) FindByPhone(ctx context.Context, phone model.PhoneNumber) (*model.User, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE phone_number = $1`, userColumns, usersTable)
	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, sql, string(phone)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound("phone_number", string(phone))
		}
		return nil, apperror.Database("find user by phone", err)
	}
	return user, nil
}

// List returns a page of users ordered by id
func (r *userRepository) List(ctx context.Context, params model.ListParams) ([]model.User, error) {
	sql := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id LIMIT $1 OFFSET $2`, userColumns, usersTable)
	rows, err := conn(ctx, r.db).Query(ctx, sql, params.Limit, params.Offset)
	if err != nil {
		return nil, apperror.Database("list users", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Database("scan user row", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Database("iterate user rows", err)
	}
	return users, nil
}

// Update applies the non-nil fields of patch and returns the updated user.
// An empty patch returns the current record unchanged.
func (r *userRepository) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	var setClauses []string
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.PhoneNumber != nil {
		add("phone_number", string(*patch.PhoneNumber))
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	if patch.Role != nil {
		add("role", *patch.Role)
	}
	if patch.AvatarKey != nil {
		add("avatar_key", *patch.AvatarKey)
	}
	add("updated_at", utils.CurrentTime())
	args = append(args, id)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(fmt.Sprintf("UPDATE %s SET ", usersTable))
	queryBuilder.WriteString(strings.Join(setClauses, ", "))
	queryBuilder.WriteString(fmt.Sprintf(" WHERE id = $%d RETURNING %s", len(args), userColumns))

	user, err := scanUser(conn(ctx, r.db).QueryRow(ctx, queryBuilder.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, userNotFound("user_id", id)
		}
		return nil, translateWriteError("update user", err)
	}
	return user, nil
}

// Delete removes a user by ID
func (r *userRepository) Delete(ctx context.Context, id int64) error {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, usersTable)
	tag, err := conn(ctx, r.db).Exec(ctx, sql, id)
	if err != nil {
		return apperror.Database("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return userNotFound("user_id", id)
	}
	return nil
}

// DeleteUnverifiedBefore removes inactive users created before cutoff and
// returns how many were deleted.
func (r *userRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	sql := fmt.Sprintf(`DELETE FROM %s WHERE is_active = FALSE AND created_at < $1`, usersTable)
	tag, err := conn(ctx, r.db).Exec(ctx, sql, cutoff)
	if err != nil {
		return 0, apperror.Database("delete unverified users", err)
	}
	return tag.RowsAffected(), nil
}
