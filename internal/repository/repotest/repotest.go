// Package repotest opens throwaway in-memory SQLite databases for tests.
package repotest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nm90/educational-mvc-sub001/internal/config"
	"github.com/nm90/educational-mvc-sub001/internal/repository"
)

// Store bundles a migrated database and its repositories.
type Store struct {
	DB    *repository.DB
	Gorm  *gorm.DB
	Users *repository.UserRepo
	Tasks *repository.TaskRepo
}

// Open returns a migrated, empty database private to t.
func Open(t testing.TB) *Store {
	t.Helper()

	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	db, err := repository.NewDB(config.DatabaseConfig{Driver: repository.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g, err := repository.NewGorm(db)
	require.NoError(t, err)

	s := &Store{
		DB:    db,
		Gorm:  g,
		Users: repository.NewUserRepo(g),
		Tasks: repository.NewTaskRepo(db),
	}
	require.NoError(t, repository.Migrate(context.Background(), s.Users, s.Tasks))
	return s
}

// Seeded is Open plus the demo data.
func Seeded(t testing.TB) *Store {
	t.Helper()

	s := Open(t)
	require.NoError(t, repository.Seed(context.Background(), s.Users, s.Tasks))
	return s
}
