package user_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"triad-service/internal/config"
	"triad-service/internal/model"
	"triad-service/internal/repo"
	usersvc "triad-service/internal/service/user"
	appErr "triad-service/pkg/errors"

	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, *usersvc.Service) {
	t.Helper()
	db, err := repo.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return db, usersvc.NewService(db)
}

func createUser(t *testing.T, db *gorm.DB, name, status string) *model.User {
	t.Helper()
	user := &model.User{Name: name, IdentityHash: "hash-" + name, PasswordHash: "x", Status: status}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	return user
}

func TestUpdateProfileNickname(t *testing.T) {
	db, svc := newTestService(t)
	user := createUser(t, db, "alice", "normal")
	ctx := context.Background()

	nick := "  Ali  "
	updated, err := svc.UpdateProfile(ctx, user.ID, usersvc.UpdateProfileRequest{Nickname: &nick})
	if err != nil {
		t.Fatalf("expected update to succeed, got %v", err)
	}
	if updated.Nickname != "Ali" {
		t.Fatalf("expected trimmed nickname, got %q", updated.Nickname)
	}

	long := strings.Repeat("é", 33)
	if _, err := svc.UpdateProfile(ctx, user.ID, usersvc.UpdateProfileRequest{Nickname: &long}); !errors.Is(err, appErr.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}

	id, err := svc.Identity(ctx, user.ID)
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	if id.Name != "Ali" || id.IdentityHash != "hash-alice" || id.UserID != user.ID {
		t.Fatalf("unexpected identity %+v", id)
	}
}

func TestIdentity(t *testing.T) {
	db, svc := newTestService(t)
	ctx := context.Background()
	banned := createUser(t, db, "mallory", "banned")

	if _, err := svc.Identity(ctx, banned.ID); !errors.Is(err, appErr.ErrUnauthorized) {
		t.Fatalf("expected banned user to be rejected, got %v", err)
	}
	if _, err := svc.Identity(ctx, 999); !errors.Is(err, appErr.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
	if _, err := svc.GetProfile(ctx, 999); !errors.Is(err, appErr.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}
