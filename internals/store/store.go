package store

import (
	"context"
	"errors"
	"strings"

	"github.com/eduardohgo/pry-lapape/internals/models"

	"gorm.io/gorm"
)

var (
	// ErrDuplicateEmail is returned by Create when the normalized email is
	// already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrNotFound is returned by the finders when no account matches.
	ErrNotFound = errors.New("account not found")
)

// Store is the credential store. It exposes whole-record operations only:
// callers load an account, mutate it in memory and persist it back with Save.
// There are no partial-field updates.
type Store struct {
	db *gorm.DB
}

// New wraps an open GORM handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new account. The email is normalized before the write and
// a unique-index violation maps to ErrDuplicateEmail.
func (s *Store) Create(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)

	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", user.Email).First(&existing).Error
	if err == nil {
		return ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindByEmail loads an account, with its sessions in insertion order, by
// normalized email.
func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", models.NormalizeEmail(email))
}

// FindByID loads an account, with its sessions in insertion order, by id.
func (s *Store) FindByID(ctx context.Context, id uint) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Sessions", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where(query, arg).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Save persists the whole account record, rewriting its owned session set to
// match user.Sessions exactly. The write is a single transaction; concurrent
// saves of the same account are last-write-wins.
func (s *Store) Save(ctx context.Context, user *models.User) error {
	user.Email = models.NormalizeEmail(user.Email)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sessions").Save(user).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return err
		}

		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		if len(user.Sessions) == 0 {
			return nil
		}
		for i := range user.Sessions {
			user.Sessions[i].ID = 0
			user.Sessions[i].UserID = user.ID
		}
		return tx.Create(&user.Sessions).Error
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// The sqlite driver reports constraint failures as plain errors.
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}
