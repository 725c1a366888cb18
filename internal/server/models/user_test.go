package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_RotatePassword_BoundsHistory(t *testing.T) {
	u := &User{PasswordDigest: "d0", PasswordHistory: []string{}}

	for i := 1; i <= 7; i++ {
		u.RotatePassword(fmt.Sprintf("d%d", i))
	}

	assert.Equal(t, "d7", u.PasswordDigest)
	want := []string{"d6", "d5", "d4", "d3", "d2"}
	if diff := cmp.Diff(want, u.PasswordHistory); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestUser_RotatePassword_FromEmptyHistory(t *testing.T) {
	u := &User{PasswordDigest: "old"}
	u.RotatePassword("new")

	assert.Equal(t, "new", u.PasswordDigest)
	assert.Equal(t, []string{"old"}, u.PasswordHistory)
}

func TestUser_Clone_IsDeep(t *testing.T) {
	failed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	orig := &User{
		ID:              "1",
		Username:        "alice",
		PasswordHistory: []string{"a"},
		LastFailedAt:    &failed,
	}

	c := orig.Clone()
	require.Equal(t, orig, c)

	c.PasswordHistory[0] = "mutated"
	*c.LastFailedAt = failed.Add(time.Hour)

	assert.Equal(t, "a", orig.PasswordHistory[0])
	assert.Equal(t, failed, *orig.LastFailedAt)
}

func TestUser_Clone_Nil(t *testing.T) {
	var u *User
	assert.Nil(t, u.Clone())
	assert.Nil(t, u.View())
}

func TestUser_View_StripsSecrets(t *testing.T) {
	now := time.Now().UTC()
	u := &User{
		ID:              "42",
		Email:           "a@x.com",
		Username:        "alice",
		PasswordDigest:  "$2a$10$secret",
		PasswordHistory: []string{"old"},
		LoginAttempts:   3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	want := &UserView{ID: "42", Username: "alice", Email: "a@x.com", CreatedAt: now, UpdatedAt: now}
	if diff := cmp.Diff(want, u.View()); diff != "" {
		t.Fatalf("view mismatch (-want +got):\n%s", diff)
	}
}
