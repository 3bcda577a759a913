// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package puppet

import (
	"regexp"
	"slices"
)

// Match is one field predicate of a query filter: an exact string or
// a pattern. The zero Match is unset and matches everything.
type Match struct {
	exact   *string
	pattern *regexp.Regexp
}

// Exact matches the string value exactly.
func Exact(value string) Match { return Match{exact: &value} }

// Pattern matches values the expression finds a match in.
func Pattern(expression *regexp.Regexp) Match { return Match{pattern: expression} }

// IsSet reports whether the Match constrains anything.
func (m Match) IsSet() bool { return m.exact != nil || m.pattern != nil }

// Matches evaluates the predicate. An unset Match is true.
func (m Match) Matches(value string) bool {
	switch {
	case m.exact != nil:
		return *m.exact == value
	case m.pattern != nil:
		return m.pattern.MatchString(value)
	default:
		return true
	}
}

func (m Match) String() string {
	switch {
	case m.exact != nil:
		return "=" + *m.exact
	case m.pattern != nil:
		return "~" + m.pattern.String()
	default:
		return "*"
	}
}

// ContactQueryFilter selects contacts.
type ContactQueryFilter struct {
	ID     Match
	Name   Match
	Alias  Match
	Handle Match
}

// IsEmpty reports whether no field is set.
func (f ContactQueryFilter) IsEmpty() bool {
	return !f.ID.IsSet() && !f.Name.IsSet() && !f.Alias.IsSet() && !f.Handle.IsSet()
}

// Matches is the conjunction of the set fields.
func (f ContactQueryFilter) Matches(payload ContactPayload) bool {
	return f.ID.Matches(payload.ID) &&
		f.Name.Matches(payload.Name) &&
		f.Alias.Matches(payload.Alias) &&
		f.Handle.Matches(payload.Handle)
}

// RoomQueryFilter selects rooms.
type RoomQueryFilter struct {
	ID    Match
	Topic Match
}

// IsEmpty reports whether no field is set.
func (f RoomQueryFilter) IsEmpty() bool { return !f.ID.IsSet() && !f.Topic.IsSet() }

// Matches is the conjunction of the set fields.
func (f RoomQueryFilter) Matches(payload RoomPayload) bool {
	return f.ID.Matches(payload.ID) && f.Topic.Matches(payload.Topic)
}

// MessageQueryFilter selects messages. Types, when non-empty, lists
// the accepted message types.
type MessageQueryFilter struct {
	ID         Match
	TalkerID   Match
	RoomID     Match
	ListenerID Match
	Text       Match
	Types      []MessageType
}

// IsEmpty reports whether no field is set.
func (f MessageQueryFilter) IsEmpty() bool {
	return !f.ID.IsSet() && !f.TalkerID.IsSet() && !f.RoomID.IsSet() &&
		!f.ListenerID.IsSet() && !f.Text.IsSet() && len(f.Types) == 0
}

// Matches is the conjunction of the set fields.
func (f MessageQueryFilter) Matches(payload MessagePayload) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, payload.Type) {
		return false
	}
	return f.ID.Matches(payload.ID) &&
		f.TalkerID.Matches(payload.TalkerID) &&
		f.RoomID.Matches(payload.RoomID) &&
		f.ListenerID.Matches(payload.ListenerID) &&
		f.Text.Matches(payload.Text)
}

// RoomMemberQueryFilter selects members of one room. ContactAlias is
// checked against the member's contact payload, which is hydrated only
// when the field is set.
type RoomMemberQueryFilter struct {
	Name         Match
	RoomAlias    Match
	ContactAlias Match
}

// IsEmpty reports whether no field is set.
func (f RoomMemberQueryFilter) IsEmpty() bool {
	return !f.Name.IsSet() && !f.RoomAlias.IsSet() && !f.ContactAlias.IsSet()
}
