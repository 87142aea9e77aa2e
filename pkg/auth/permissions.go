package auth

import (
	"sort"
	"strings"
)

// Level is an access level required by a route or granted by a scope.
// Levels are ordered: read < write < audit. The wildcard "*" satisfies
// any required level.
type Level string

const (
	LevelRead  Level = "read"
	LevelWrite Level = "write"
	LevelAudit Level = "audit"
	LevelAny   Level = "*"
)

var levelRank = map[Level]int{
	LevelRead:  1,
	LevelWrite: 2,
	LevelAudit: 3,
}

// Scope is a parsed "<org>:<level>" permission. Org may be "*".
type Scope struct {
	Org   string
	Level Level
}

// ParseScope parses a single permission string. Malformed entries yield
// ok == false and are ignored by the caller.
func ParseScope(s string) (Scope, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Scope{}, false
	}
	level := Level(parts[1])
	if level != LevelAny {
		if _, known := levelRank[level]; !known {
			return Scope{}, false
		}
	}
	return Scope{Org: parts[0], Level: level}, true
}

// Satisfies reports whether the scope grants the required level for org.
func (s Scope) Satisfies(org string, required Level) bool {
	if s.Org != org && s.Org != "*" {
		return false
	}
	if s.Level == LevelAny {
		return true
	}
	return levelRank[s.Level] >= levelRank[required]
}

// HasPermission reports whether any held permission satisfies
// (org, required).
func HasPermission(permissions []string, org string, required Level) bool {
	for _, p := range permissions {
		scope, ok := ParseScope(p)
		if !ok {
			continue
		}
		if scope.Satisfies(org, required) {
			return true
		}
	}
	return false
}

// NormalizePermissions coerces the token's permissions claim into a
// string slice. The claim arrives either as a JSON array of strings or
// as a single comma-joined string.
func NormalizePermissions(claim interface{}) []string {
	switch v := claim.(type) {
	case []string:
		return v
	case []interface{}:
		perms := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				perms = append(perms, s)
			}
		}
		return perms
	case string:
		var perms []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				perms = append(perms, part)
			}
		}
		return perms
	default:
		return nil
	}
}

// OrgsFromPermissions returns the distinct org components of the held
// scopes, sorted. A wildcard org scope is reported verbatim as "*".
func OrgsFromPermissions(permissions []string) []string {
	seen := make(map[string]struct{})
	for _, p := range permissions {
		scope, ok := ParseScope(p)
		if !ok {
			continue
		}
		seen[scope.Org] = struct{}{}
	}

	orgs := make([]string, 0, len(seen))
	for org := range seen {
		orgs = append(orgs, org)
	}
	sort.Strings(orgs)
	return orgs
}
