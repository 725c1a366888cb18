package users

import (
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

var baseTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleUser(t *testing.T, n int) *models.User {
	t.Helper()
	created := baseTime.Add(time.Duration(n) * time.Minute)
	return &models.User{
		ID:              fmt.Sprintf("id-%d", n),
		Email:           fmt.Sprintf("user%d@example.com", n),
		Username:        fmt.Sprintf("user%d", n),
		PasswordDigest:  fmt.Sprintf("$2a$10$digest%d", n),
		PasswordHistory: []string{},
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}
