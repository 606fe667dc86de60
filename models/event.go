package models

import (
	"slices"
	"time"
)

// Comment is an append-only entry in an event's discussion thread.
type Comment struct {
	UserID    string    `json:"user" bson:"user_id"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Task is a unit of work attached to an event and assigned to one or more users.
type Task struct {
	ID          string     `json:"id" bson:"id"`
	Title       string     `json:"title" bson:"title"`
	AssignedTo  []string   `json:"assignedTo" bson:"assigned_to"`
	Deadline    *time.Time `json:"deadline,omitempty" bson:"deadline,omitempty"`
	Status      TaskStatus `json:"status" bson:"status"`
	CompletedBy []string   `json:"completedBy" bson:"completed_by"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
}

func (t *Task) IsAssigned(userID string) bool {
	return slices.Contains(t.AssignedTo, userID)
}

func (t *Task) HasCompleted(userID string) bool {
	return slices.Contains(t.CompletedBy, userID)
}

// AllAssigneesDone reports whether every assignee appears in CompletedBy.
func (t *Task) AllAssigneesDone() bool {
	for _, id := range t.AssignedTo {
		if !t.HasCompleted(id) {
			return false
		}
	}
	return true
}

// Unassign drops userID from an open task. If the remaining assignees have
// all recorded completion the task becomes completed. A task left with no
// assignees stays pending for an admin to reassign or close.
func (t *Task) Unassign(userID string) bool {
	if t.Status == TaskCompleted || !t.IsAssigned(userID) {
		return false
	}
	t.AssignedTo = slices.DeleteFunc(t.AssignedTo, func(id string) bool { return id == userID })
	t.CompletedBy = slices.DeleteFunc(t.CompletedBy, func(id string) bool { return id == userID })
	if len(t.AssignedTo) > 0 && t.AllAssigneesDone() {
		t.Status = TaskCompleted
	}
	return true
}

// DoneFor reports whether the task counts as completed from userID's point of view.
func (t *Task) DoneFor(userID string) bool {
	return t.Status == TaskCompleted || t.HasCompleted(userID)
}

// Event is a community event proposal together with its votes, discussion and tasks.
// The sub-collections are stored inside the event document.
type Event struct {
	ID                   string      `json:"id" gorm:"primaryKey;size:36" bson:"_id"`
	Title                string      `json:"title" gorm:"not null" bson:"title"`
	Description          string      `json:"description" bson:"description"`
	Venue                string      `json:"venue,omitempty" bson:"venue,omitempty"`
	SuggestedDate        *time.Time  `json:"suggestedDate,omitempty" bson:"suggested_date,omitempty"`
	ExpectedParticipants *int        `json:"expectedParticipants,omitempty" bson:"expected_participants,omitempty"`
	Status               EventStatus `json:"status" gorm:"type:varchar(16);index;not null;default:pending" bson:"status"`
	ProposedBy           string      `json:"proposedBy" gorm:"size:36;index;not null" bson:"proposed_by"`
	Upvotes              []string    `json:"upvotes" gorm:"serializer:json" bson:"upvotes"`
	Downvotes            []string    `json:"downvotes" gorm:"serializer:json" bson:"downvotes"`
	Discussion           []Comment   `json:"discussion" gorm:"serializer:json" bson:"discussion"`
	Tasks                []Task      `json:"tasks" gorm:"serializer:json" bson:"tasks"`
	Version              int64       `json:"-" gorm:"not null;default:0" bson:"version"`
	CreatedAt            time.Time   `json:"createdAt" bson:"created_at"`
	UpdatedAt            time.Time   `json:"updatedAt" bson:"updated_at"`
}

// TaskByID returns a pointer into the event's task list, or nil.
func (e *Event) TaskByID(id string) *Task {
	for i := range e.Tasks {
		if e.Tasks[i].ID == id {
			return &e.Tasks[i]
		}
	}
	return nil
}

// Clone returns a deep copy so that a failed mutation never leaks into stored state.
func (e *Event) Clone() *Event {
	c := *e
	c.Upvotes = slices.Clone(e.Upvotes)
	c.Downvotes = slices.Clone(e.Downvotes)
	c.Discussion = slices.Clone(e.Discussion)
	if e.SuggestedDate != nil {
		d := *e.SuggestedDate
		c.SuggestedDate = &d
	}
	if e.ExpectedParticipants != nil {
		n := *e.ExpectedParticipants
		c.ExpectedParticipants = &n
	}
	if e.Tasks != nil {
		c.Tasks = make([]Task, len(e.Tasks))
		for i, t := range e.Tasks {
			t.AssignedTo = slices.Clone(t.AssignedTo)
			t.CompletedBy = slices.Clone(t.CompletedBy)
			if t.Deadline != nil {
				d := *t.Deadline
				t.Deadline = &d
			}
			c.Tasks[i] = t
		}
	}
	return &c
}

// EventPatch is a partial update of the editable event fields.
type EventPatch struct {
	Title                *string    `json:"title"`
	Description          *string    `json:"description"`
	Venue                *string    `json:"venue"`
	SuggestedDate        *time.Time `json:"suggestedDate"`
	ExpectedParticipants *int       `json:"expectedParticipants"`
}

// Apply copies the non-nil fields of p onto e.
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.Venue != nil {
		e.Venue = *p.Venue
	}
	if p.SuggestedDate != nil {
		d := *p.SuggestedDate
		e.SuggestedDate = &d
	}
	if p.ExpectedParticipants != nil {
		n := *p.ExpectedParticipants
		e.ExpectedParticipants = &n
	}
}
