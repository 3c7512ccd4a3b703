package users

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:users_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&Account{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestEnsureAccountCreatesOnce(t *testing.T) {
	service := newTestService(t)

	first, err := service.EnsureAccount("  planner ")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}
	second, err := service.EnsureAccount("planner")
	if err != nil {
		t.Fatalf("ensure account again: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable account id, got %d then %d", first, second)
	}

	other, err := service.EnsureAccount("reviewer")
	if err != nil {
		t.Fatalf("ensure second account: %v", err)
	}
	if other == first {
		t.Fatalf("distinct usernames share account id %d", first)
	}
}

func TestEnsureAccountRejectsBlankUsername(t *testing.T) {
	service := newTestService(t)

	if _, err := service.EnsureAccount("   "); err != ErrInvalidUsername {
		t.Fatalf("expected ErrInvalidUsername, got %v", err)
	}
}

func TestResolveSubject(t *testing.T) {
	service := newTestService(t)

	id, err := service.EnsureAccount("planner")
	if err != nil {
		t.Fatalf("ensure account: %v", err)
	}

	resolved, err := service.ResolveSubject(fmt.Sprintf("%d", id))
	if err != nil {
		t.Fatalf("resolve subject: %v", err)
	}
	if resolved != id {
		t.Fatalf("resolved %d, want %d", resolved, id)
	}

	if _, err := service.ResolveSubject("planner"); err == nil {
		t.Fatal("expected malformed subject to fail")
	}
	if _, err := service.ResolveSubject("99999"); err == nil {
		t.Fatal("expected unknown subject to fail")
	}
}

func TestEnsureDefaultAccount(t *testing.T) {
	service := newTestService(t)

	if err := service.EnsureDefaultAccount(); err != nil {
		t.Fatalf("ensure default account: %v", err)
	}
	if err := service.EnsureDefaultAccount(); err != nil {
		t.Fatalf("ensure default account twice: %v", err)
	}

	resolved, err := service.ResolveSubject("1")
	if err != nil {
		t.Fatalf("resolve default account: %v", err)
	}
	if resolved != DefaultAccountID {
		t.Fatalf("resolved %d, want %d", resolved, DefaultAccountID)
	}
}
