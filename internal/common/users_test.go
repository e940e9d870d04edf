package common

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"music-ledger-go/internal/database"
	"music-ledger-go/internal/models"
	"music-ledger-go/internal/store"
)

func TestResolveUsers(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "common.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		_, err := db.CreateUser(ctx, store.CreateUserParams{
			Id:           fmt.Sprintf("user-%d", i),
			Phone:        fmt.Sprintf("091000000%d", i),
			PasswordHash: "x",
			DisplayName:  fmt.Sprintf("User %d", i),
			Role:         models.RoleUser,
		})
		if err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
	}

	all, err := ResolveUsers(ctx, db, "")
	if err != nil {
		t.Fatalf("ResolveUsers failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 users, got %d", len(all))
	}

	one, err := ResolveUsers(ctx, db, "0910000001")
	if err != nil {
		t.Fatalf("ResolveUsers by phone failed: %v", err)
	}
	if len(one) != 1 || one[0].Id != "user-1" {
		t.Errorf("Expected user-1, got %+v", one)
	}

	if _, err := ResolveUsers(ctx, db, "0999999999"); !errors.Is(err, store.ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}
