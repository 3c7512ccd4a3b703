package users

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrInvalidUsername indicates the supplied username is empty.
var ErrInvalidUsername = errors.New("users: invalid username")

// ServiceConfig describes the dependencies required for account resolution.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages workspace accounts referenced by meetings and blocks.
type Service struct {
	db    *gorm.DB
	now   func() time.Time
	cache sync.Map
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		db:  cfg.Database,
		now: clock,
	}, nil
}

// EnsureAccount returns the account id for the username, creating the row
// when the username has not been seen before.
func (s *Service) EnsureAccount(username string) (int64, error) {
	username = normalize(username)
	if username == "" {
		return 0, ErrInvalidUsername
	}

	if cached, ok := s.cache.Load(username); ok {
		if id, ok := cached.(int64); ok {
			return id, nil
		}
	}

	var account Account
	err := s.db.Where("username = ?", username).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = Account{Username: username, LastSeenAt: s.now()}
		if err := s.db.Create(&account).Error; err != nil {
			return 0, err
		}
	} else if err != nil {
		return 0, err
	} else {
		_ = s.db.Model(&Account{}).
			Where("id = ?", account.ID).
			Update("last_seen_at", s.now()).Error
	}

	s.cache.Store(username, account.ID)
	return account.ID, nil
}

// ResolveSubject maps a bearer token subject back to an account id. Subjects
// are the decimal account id issued at token time; unknown subjects fail.
func (s *Service) ResolveSubject(subject string) (int64, error) {
	id, err := strconv.ParseInt(normalize(subject), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("users: malformed subject %q: %w", subject, err)
	}
	var account Account
	if err := s.db.Where("id = ?", id).First(&account).Error; err != nil {
		return 0, err
	}
	return account.ID, nil
}

// EnsureDefaultAccount guarantees the anonymous editor row exists.
func (s *Service) EnsureDefaultAccount() error {
	var account Account
	err := s.db.Where("id = ?", DefaultAccountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		account = Account{
			ID:          DefaultAccountID,
			Username:    "anonymous",
			DisplayName: "Anonymous",
			LastSeenAt:  s.now(),
		}
		return s.db.Create(&account).Error
	}
	return err
}
