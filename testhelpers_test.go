package auth_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	"github.com/medtrack/go-authkit"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testConfig struct{}

func (c testConfig) GetSigningKey() string { return "test-signing-key-please-rotate" }

func (c testConfig) GetIssuer() string { return "go-authkit.test" }

func (c testConfig) GetAudience() []string { return []string{"api"} }

func (c testConfig) GetTokenExpiration() int { return 15 }

func (c testConfig) GetRefreshTokenExpiration() int { return 30 }

func (c testConfig) GetVerificationTokenExpiration() int { return 24 }

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	applyMigrations(t, db)

	t.Cleanup(func() {
		_ = db.Close()
		_ = sqldb.Close()
	})

	return db
}

func applyMigrations(t *testing.T, db *bun.DB) {
	t.Helper()

	raw, err := auth.GetMigrationsFS().ReadFile("data/sql/migrations/20250901000000_create_auth_tables.up.sql")
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err = db.Exec(stmt)
		require.NoError(t, err)
	}
}

func setupRepos(t *testing.T) auth.RepositoryManager {
	t.Helper()

	repos := auth.NewRepositoryManager(setupTestDB(t))
	repos.MustValidate()
	return repos
}

func seedUser(t *testing.T, repos auth.RepositoryManager, email, password string, verified bool) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := repos.Users().Register(context.Background(), &auth.User{
		Email:         email,
		Username:      strings.Split(email, "@")[0],
		PasswordHash:  hash,
		EmailVerified: verified,
	})
	require.NoError(t, err)

	return user
}

func testDevice() auth.DeviceInfo {
	return auth.DeviceInfo{
		DeviceID:          "device-001",
		DeviceType:        string(auth.DeviceTypeAndroid),
		NotificationToken: "fcm-token-1",
	}
}

// memorySink records activity events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *memorySink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memorySink) find(eventType auth.ActivityEventType) (auth.ActivityEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.events {
		if e.EventType == eventType {
			return e, true
		}
	}
	return auth.ActivityEvent{}, false
}

func (s *memorySink) eventTypes() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}
