package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	user, err := CreateUser("testuser", "user@example.com", "password123")
	require.NoError(t, err)

	assert.Equal(t, ROLE_USER, user.Role)
	assert.Equal(t, STATUS_ACTIVE, user.Status)
	assert.Equal(t, SYNC_STATUS_PENDING, user.SyncStatus)
	assert.NotEqual(t, "password123", user.Password, "password must be stored hashed")
	assert.True(t, user.CheckPassword("password123"))
	assert.False(t, user.CheckPassword("wrong"))
}

func TestCreateUserValidation(t *testing.T) {
	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short name", "ab", "user@example.com", "password123"},
		{"bad email", "testuser", "not-an-email", "password123"},
		{"short password", "testuser", "user@example.com", "short"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CreateUser(tc.username, tc.email, tc.password)
			assert.Error(t, err)
		})
	}
}

func TestUserMarkSynced(t *testing.T) {
	user := &User{SyncStatus: SYNC_STATUS_PENDING}

	user.MarkSynced(`{"synced_at":"2026-03-01T00:00:00Z"}`)

	assert.True(t, user.IsSynced())
	require.NotNil(t, user.CreatorUpSyncedAt, "synced status always carries a timestamp")
	assert.WithinDuration(t, time.Now(), *user.CreatorUpSyncedAt, time.Minute)
	assert.Contains(t, user.CreatorUpMetadata, "synced_at")
}

func TestUserMarkSyncedKeepsMetadataWhenEmpty(t *testing.T) {
	user := &User{CreatorUpMetadata: `{"email":"creator@example.com"}`}

	user.MarkSynced("")

	assert.Equal(t, `{"email":"creator@example.com"}`, user.CreatorUpMetadata)
	assert.True(t, user.IsSynced())
}

func TestUserIsActive(t *testing.T) {
	assert.True(t, (&User{Status: STATUS_ACTIVE}).IsActive())
	assert.False(t, (&User{Status: STATUS_DISABLED}).IsActive())
	assert.False(t, (&User{Status: STATUS_INACTIVE}).IsActive())
}
