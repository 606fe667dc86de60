package models

import "fmt"

// Role is the access level of a user. Only two roles exist.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// EventStatus is the lifecycle state of an event proposal.
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventDeclined EventStatus = "declined"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventPending, EventApproved, EventDeclined:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s EventStatus) IsTerminal() bool {
	switch s {
	case EventApproved, EventDeclined:
		return true
	}
	return false
}

func ParseEventStatus(s string) (EventStatus, error) {
	st := EventStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown event status %q", s)
	}
	return st, nil
}

// TaskStatus is the aggregate completion state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted:
		return true
	}
	return false
}

func ParseTaskStatus(s string) (TaskStatus, error) {
	st := TaskStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown task status %q", s)
	}
	return st, nil
}

// VoteDirection is the side of a vote.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

func (d VoteDirection) Valid() bool {
	switch d {
	case VoteUp, VoteDown:
		return true
	}
	return false
}

func ParseVoteDirection(s string) (VoteDirection, error) {
	d := VoteDirection(s)
	if !d.Valid() {
		return "", fmt.Errorf("unknown vote direction %q", s)
	}
	return d, nil
}
