package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolePolicy_HomeIsAlwaysAllowed(t *testing.T) {
	policy, err := NewRolePolicy(map[string]RoleRoutes{
		"viewer": {Home: "/reports"},
	})
	require.NoError(t, err)

	assert.True(t, policy.Allowed("viewer", "/reports"))
	assert.True(t, policy.Allowed("viewer", "/reports/2026/q3"))
	assert.False(t, policy.Allowed("viewer", "/reportsx"))
	assert.False(t, policy.Allowed("viewer", "/quotes"))
}

func TestRolePolicy_DoesNotAliasInput(t *testing.T) {
	allow := []string{"/a"}
	routes := map[string]RoleRoutes{"r": {Home: "/home", Allow: allow}}
	policy, err := NewRolePolicy(routes)
	require.NoError(t, err)

	allow[0] = "*"
	routes["r"] = RoleRoutes{Home: "/other"}

	assert.False(t, policy.Allowed("r", "/anything"))
	home, ok := policy.Home("r")
	assert.True(t, ok)
	assert.Equal(t, "/home", home)
}

func TestDefaultRolePolicy(t *testing.T) {
	policy := DefaultRolePolicy()

	assert.Equal(t, []string{"admin", "production", "sales", "shipping"}, policy.Roles())
	assert.True(t, policy.Allowed("admin", "/api/v1/anything"))
	assert.True(t, policy.Allowed("sales", "/quotes"))
	assert.True(t, policy.Allowed("sales", "/api/v1/customer-files/7/soft"))
	assert.False(t, policy.Allowed("sales", "/api/v1/shipping-weight-presets"))
	assert.True(t, policy.Allowed("production", "/api/v1/production-orders-knit-colors"))
	assert.True(t, policy.Allowed("shipping", "/api/v1/shipping-dimension-presets/3"))
	assert.False(t, policy.Allowed("shipping", "/api/v1/quotes-approval"))
	assert.False(t, policy.Allowed("intruder", "/quotes"))
}

func TestNewRolePolicy_Validation(t *testing.T) {
	_, err := NewRolePolicy(nil)
	assert.Error(t, err)

	_, err = NewRolePolicy(map[string]RoleRoutes{"sales": {Home: "quotes"}})
	assert.Error(t, err)

	_, err = NewRolePolicy(map[string]RoleRoutes{"sales": {Home: "/quotes", Allow: []string{"customers"}}})
	assert.Error(t, err)
}

func TestLoadRolePolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 1
roles:
  sales:
    home: /quotes
    allow:
      - /customers
      - /api/v1/quotes-approval
  warehouse:
    home: /shipping
`), 0o644))

	policy, err := LoadRolePolicy(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "warehouse"}, policy.Roles())
	assert.True(t, policy.Allowed("sales", "/api/v1/quotes-approval/12"))
	assert.True(t, policy.Allowed("warehouse", "/shipping"))
	assert.False(t, policy.Allowed("warehouse", "/customers"))

	_, err = LoadRolePolicy(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	badVersion := filepath.Join(dir, "v2.yaml")
	require.NoError(t, os.WriteFile(badVersion, []byte("version: 2\nroles: {}\n"), 0o644))
	_, err = LoadRolePolicy(badVersion)
	assert.Error(t, err)
}
