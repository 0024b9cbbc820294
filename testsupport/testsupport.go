// Package testsupport builds throwaway databases and fixtures for package tests.
package testsupport

import (
	"context"
	"testing"

	"fortify/config"
	"fortify/db"
	"fortify/model"

	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory SQLite database that is closed when the test ends.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(&config.Config{DBDriver: "sqlite", SQLitePath: ":memory:", LogLevel: "silent"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return gdb
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t testing.TB, gdb *gorm.DB, email string) *model.User {
	t.Helper()

	user := &model.User{Email: email, PasswordHash: "x"}
	if err := gdb.WithContext(context.Background()).Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}

// CreateStandardRudiment inserts an ownerless, shared rudiment.
func CreateStandardRudiment(t testing.TB, gdb *gorm.DB, name string) *model.Rudiment {
	t.Helper()

	r := &model.Rudiment{Name: name, Category: "Standard", TempoIncrement: model.DefaultTempoIncrement, IsStandard: true}
	if err := gdb.Create(r).Error; err != nil {
		t.Fatalf("failed to create standard rudiment %s: %v", name, err)
	}
	return r
}

// CreateCustomRudiment inserts a rudiment owned by ownerID.
func CreateCustomRudiment(t testing.TB, gdb *gorm.DB, ownerID int64, name string) *model.Rudiment {
	t.Helper()

	r := &model.Rudiment{Name: name, Category: "Custom", TempoIncrement: model.DefaultTempoIncrement, UserID: &ownerID}
	if err := gdb.Create(r).Error; err != nil {
		t.Fatalf("failed to create custom rudiment %s: %v", name, err)
	}
	return r
}

// CreateSession inserts a session directly, bypassing validation, so tests control the date.
func CreateSession(t testing.TB, gdb *gorm.DB, s *model.PracticeSession) *model.PracticeSession {
	t.Helper()

	if err := gdb.Create(s).Error; err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return s
}
