package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidRoles_ContainsAll(t *testing.T) {
	roles := ValidRoles()
	expected := []string{RoleUser, RoleAdmin}
	assert.ElementsMatch(t, expected, roles)
}

func TestIsValidRole_ValidRoles(t *testing.T) {
	for _, r := range ValidRoles() {
		assert.True(t, IsValidRole(r), "expected %q to be valid", r)
	}
}

func TestIsValidRole_Invalid(t *testing.T) {
	assert.False(t, IsValidRole("unknown"))
	assert.False(t, IsValidRole(""))
	assert.False(t, IsValidRole("user"))
	assert.False(t, IsValidRole("admin"))
	assert.False(t, IsValidRole("SUPERADMIN"))
}

func TestUser_PasswordHashExcludedFromJSON(t *testing.T) {
	u := User{
		ID:           "user-1",
		Email:        "jane@example.com",
		PasswordHash: "$2a$10$abcdefg",
		Username:     "jane",
		Role:         RoleUser,
	}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.NotContains(t, decoded, "password_hash")
	assert.NotContains(t, decoded, "PasswordHash")
	assert.Equal(t, "jane@example.com", decoded["email"])
	assert.Equal(t, "jane", decoded["username"])
}

func TestUser_DefaultFields(t *testing.T) {
	u := User{}
	assert.Empty(t, u.Role)
	assert.True(t, u.CreatedAt.IsZero())
}
