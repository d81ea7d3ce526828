package domain

import (
	"fmt"
	"strings"
)

// Permission strings have the form "<action>:<resource>", e.g. "read:order".
// Either side may be the wildcard "*"; "*:*" grants everything.
const (
	Wildcard      = "*"
	PermissionAll = "*:*"
)

// Levels orders the hierarchical access levels used by minimum-level
// requirements, weakest first.
var Levels = []string{"read", "write", "admin"}

// FormatPermission joins an action and resource into a permission string.
func FormatPermission(action, resource string) string {
	return action + ":" + resource
}

// SplitPermission splits "action:resource". Permissions with no separator are
// malformed and never match anything.
func SplitPermission(perm string) (action, resource string, ok bool) {
	action, resource, ok = strings.Cut(perm, ":")
	if !ok || action == "" || resource == "" {
		return "", "", false
	}
	return action, resource, true
}

// ValidPermission reports whether perm is a well-formed permission string.
func ValidPermission(perm string) bool {
	_, _, ok := SplitPermission(perm)
	return ok
}

// MatchPermission reports whether the granted set satisfies the required
// permission. Match order: exact, resource wildcard ("*:<resource>"), action
// wildcard ("<action>:*"), then the global wildcard "*:*" which short-circuits
// everything.
func MatchPermission(granted []string, required string) bool {
	action, resource, ok := SplitPermission(required)
	if !ok {
		return false
	}

	resourceWildcard := FormatPermission(Wildcard, resource)
	actionWildcard := FormatPermission(action, Wildcard)

	for _, g := range granted {
		switch g {
		case required, resourceWildcard, actionWildcard, PermissionAll:
			return true
		}
	}
	return false
}

// MatchLevel reports whether the granted set satisfies at least the given
// level for a resource. The hierarchy is scanned from the required level
// upward: "write" passes with "write:<r>" or "admin:<r>", never with
// "read:<r>" alone. An unknown level never matches.
func MatchLevel(granted []string, resource, level string) bool {
	start := -1
	for i, l := range Levels {
		if l == level {
			start = i
			break
		}
	}
	if start < 0 {
		return false
	}
	for _, l := range Levels[start:] {
		if MatchPermission(granted, FormatPermission(l, resource)) {
			return true
		}
	}
	return false
}

// Requirement is the typed authorization requirement attached to a route at
// registration time. Exactly one of the four shapes below is used per route;
// routes without a requirement are not gated by the authorization engine.
type Requirement interface {
	fmt.Stringer
	requirement()
}

// ResourceAction requires a single "<Action>:<Resource>" permission.
type ResourceAction struct {
	Resource string
	Action   string
}

// AnyOf passes when at least one of the listed permissions is granted.
type AnyOf []string

// AllOf passes only when every listed permission is granted.
type AllOf []string

// MinimumLevel requires at least Level (from Levels) on Resource.
type MinimumLevel struct {
	Resource string
	Level    string
}

func (r ResourceAction) requirement() {}
func (r AnyOf) requirement()          {}
func (r AllOf) requirement()          {}
func (r MinimumLevel) requirement()   {}

func (r ResourceAction) String() string {
	return FormatPermission(r.Action, r.Resource)
}

func (r AnyOf) String() string {
	return "any of [" + strings.Join(r, ", ") + "]"
}

func (r AllOf) String() string {
	return "all of [" + strings.Join(r, ", ") + "]"
}

func (r MinimumLevel) String() string {
	return FormatPermission(r.Level, r.Resource) + " or higher"
}
