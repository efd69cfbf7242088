package shared

import (
	"crypto/rand"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

type Scope string

const (
	ScopeFilesRead        Scope = "files.read"
	ScopeFilesWrite       Scope = "files.write"
	ScopeFilesDelete      Scope = "files.delete"
	ScopeAIChat           Scope = "ai.chat"
	ScopeAIComplete       Scope = "ai.complete"
	ScopeWorkflowsTrigger Scope = "workflows.trigger"
	ScopeWorkflowsRead    Scope = "workflows.read"
	ScopeEmailSend        Scope = "email.send"
	ScopeKeysManage       Scope = "keys.manage"

	// ScopeAdmin grants every other scope.
	ScopeAdmin Scope = "admin"
)

var AllScopes = []Scope{
	ScopeFilesRead,
	ScopeFilesWrite,
	ScopeFilesDelete,
	ScopeAIChat,
	ScopeAIComplete,
	ScopeWorkflowsTrigger,
	ScopeWorkflowsRead,
	ScopeEmailSend,
	ScopeKeysManage,
	ScopeAdmin,
}

func (s Scope) String() string {
	return string(s)
}

func (s Scope) Valid() bool {
	for _, known := range AllScopes {
		if s == known {
			return true
		}
	}
	return false
}

func ParseScope(raw string) (Scope, error) {
	s := Scope(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown scope %q", raw)
	}
	return s, nil
}

// Scopes is a set of permissions persisted as a JSON array column.
type Scopes []Scope

// ParseScopes validates every entry and drops duplicates, keeping first-seen order.
func ParseScopes(raw []string) (Scopes, error) {
	out := make(Scopes, 0, len(raw))
	seen := make(map[Scope]struct{}, len(raw))
	for _, r := range raw {
		s, err := ParseScope(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// KnownScopes keeps the recognised entries of raw and discards the rest.
func KnownScopes(raw []string) Scopes {
	out := make(Scopes, 0, len(raw))
	seen := make(map[Scope]struct{}, len(raw))
	for _, r := range raw {
		s := Scope(r)
		if !s.Valid() {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (s Scopes) Has(scope Scope) bool {
	for _, held := range s {
		if held == scope {
			return true
		}
	}
	return false
}

func (s Scopes) IsAdmin() bool {
	return s.Has(ScopeAdmin)
}

// Missing returns the entries of required not held by s.
func (s Scopes) Missing(required ...Scope) []Scope {
	var missing []Scope
	for _, r := range required {
		if !s.Has(r) {
			missing = append(missing, r)
		}
	}
	return missing
}

func (s Scopes) Strings() []string {
	out := make([]string, len(s))
	for i, scope := range s {
		out[i] = string(scope)
	}
	return out
}

func (s Scopes) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *Scopes) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Scopes", value)
	}

	return json.Unmarshal(bytes, s)
}
