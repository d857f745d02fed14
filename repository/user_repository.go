package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/healthbbs/models"
)

// UserRepository owns user records keyed by email.
type UserRepository struct {
	base
}

// NewUserRepository creates a UserRepository on top of db.
func NewUserRepository(db *gorm.DB, opts ...Option) *UserRepository {
	return &UserRepository{base: newBase(db, opts)}
}

// Create inserts u. An existing email yields ErrConflict and leaves the stored record untouched.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.timestamp()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	res := r.db.WithContext(ctx).Create(u)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		if _, err := r.Get(ctx, u.Email); err == nil {
			return ErrConflict
		}
		r.log.Error("user create failed", zap.String("email", u.Email), zap.Error(res.Error))
		return unavailable("create user", res.Error)
	}
	return nil
}

// Get loads a user by email.
func (r *UserRepository) Get(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get user", err)
	}
	return &u, nil
}

// Delete removes a user by email.
func (r *UserRepository) Delete(ctx context.Context, email string) error {
	res := r.db.WithContext(ctx).Where("email = ?", email).Delete(&models.User{})
	if res.Error != nil {
		return unavailable("delete user", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
