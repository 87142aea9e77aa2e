package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Scope
		ok    bool
	}{
		{"org read", "acme:read", Scope{Org: "acme", Level: LevelRead}, true},
		{"org write", "acme:write", Scope{Org: "acme", Level: LevelWrite}, true},
		{"org audit", "acme:audit", Scope{Org: "acme", Level: LevelAudit}, true},
		{"wildcard org", "*:write", Scope{Org: "*", Level: LevelWrite}, true},
		{"wildcard level", "acme:*", Scope{Org: "acme", Level: LevelAny}, true},
		{"full wildcard", "*:*", Scope{Org: "*", Level: LevelAny}, true},
		{"surrounding whitespace", "  acme:read", Scope{Org: "acme", Level: LevelRead}, true},
		{"unknown level", "acme:admin", Scope{}, false},
		{"no separator", "acme", Scope{}, false},
		{"empty org", ":read", Scope{}, false},
		{"empty level", "acme:", Scope{}, false},
		{"empty string", "", Scope{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseScope(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		org      string
		required Level
		want     bool
	}{
		{"exact match", []string{"acme:read"}, "acme", LevelRead, true},
		{"higher level satisfies lower", []string{"acme:write"}, "acme", LevelRead, true},
		{"audit satisfies write", []string{"acme:audit"}, "acme", LevelWrite, true},
		{"lower level rejected", []string{"acme:read"}, "acme", LevelWrite, false},
		{"read cannot audit", []string{"acme:read"}, "acme", LevelAudit, false},
		{"wrong org rejected", []string{"acme:audit"}, "globex", LevelRead, false},
		{"wildcard org", []string{"*:write"}, "anything", LevelWrite, true},
		{"wildcard org insufficient level", []string{"*:read"}, "acme", LevelWrite, false},
		{"wildcard level", []string{"acme:*"}, "acme", LevelAudit, true},
		{"full wildcard", []string{"*:*"}, "acme", LevelAudit, true},
		{"second scope matches", []string{"globex:read", "acme:write"}, "acme", LevelWrite, true},
		{"malformed scopes ignored", []string{"garbage", "acme:bogus", "acme:read"}, "acme", LevelRead, true},
		{"no permissions", nil, "acme", LevelRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.org, tt.required))
		})
	}
}

func TestNormalizePermissions(t *testing.T) {
	t.Run("string slice", func(t *testing.T) {
		assert.Equal(t, []string{"a:read", "b:write"},
			NormalizePermissions([]string{"a:read", "b:write"}))
	})

	t.Run("interface slice from JSON", func(t *testing.T) {
		claim := []interface{}{"a:read", "b:write", 42, ""}
		assert.Equal(t, []string{"a:read", "b:write"}, NormalizePermissions(claim))
	})

	t.Run("comma-joined string", func(t *testing.T) {
		assert.Equal(t, []string{"a:read", "b:write"},
			NormalizePermissions("a:read, b:write"))
	})

	t.Run("unsupported type", func(t *testing.T) {
		assert.Nil(t, NormalizePermissions(42))
		assert.Nil(t, NormalizePermissions(nil))
	})
}

func TestOrgsFromPermissions(t *testing.T) {
	orgs := OrgsFromPermissions([]string{
		"acme:read", "acme:write", "globex:audit", "*:read", "bad-entry",
	})
	assert.Equal(t, []string{"*", "acme", "globex"}, orgs)
}
