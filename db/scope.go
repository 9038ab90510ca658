package db

import "strings"

// Scope is the storage area a variable name selects with its sigils
type Scope int

const (
	ScopeCharacter     Scope = iota // no sigil: per character, persistent
	ScopeActorTemp                  // @name: per actor, dropped on logout
	ScopeServer                     // $name: server wide, persistent
	ScopeServerTemp                 // $@name: server wide, dropped on restart
	ScopeAccount                    // #name: per account, persistent
	ScopeGlobalAccount              // ##name: per account across servers, persistent
)

var scopeNames = map[Scope]string{
	ScopeCharacter:     "character",
	ScopeActorTemp:     "actor-temp",
	ScopeServer:        "server",
	ScopeServerTemp:    "server-temp",
	ScopeAccount:       "account",
	ScopeGlobalAccount: "global-account",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "unknown"
}

// ScopeOf returns the scope a variable name selects
func ScopeOf(name string) Scope {
	switch {
	case strings.HasPrefix(name, "$@"):
		return ScopeServerTemp
	case strings.HasPrefix(name, "$"):
		return ScopeServer
	case strings.HasPrefix(name, "@"):
		return ScopeActorTemp
	case strings.HasPrefix(name, "##"):
		return ScopeGlobalAccount
	case strings.HasPrefix(name, "#"):
		return ScopeAccount
	}
	return ScopeCharacter
}

// PerActor reports whether the scope needs an attached actor
func (s Scope) PerActor() bool {
	return s != ScopeServer && s != ScopeServerTemp
}

// Persistent reports whether the scope survives a restart
func (s Scope) Persistent() bool {
	return s != ScopeActorTemp && s != ScopeServerTemp
}

// IsStringName reports whether name holds strings rather than integers
func IsStringName(name string) bool {
	return strings.HasSuffix(name, "$") && name != "$"
}

// Key addresses one variable slot inside a scope
type Key struct {
	Scope Scope
	Owner int // character, account or 0 for server scopes
	Name  string
	Index int
}

// ParseScope is the inverse of Scope.String
func ParseScope(s string) (Scope, bool) {
	for scope, name := range scopeNames {
		if name == s {
			return scope, true
		}
	}
	return 0, false
}
