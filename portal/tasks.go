package portal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"portal-backend/models"
)

type TaskInput struct {
	Title      string
	AssignedTo []string
	Deadline   *time.Time
}

// TaskView is a task together with the event it belongs to.
type TaskView struct {
	EventID    string      `json:"eventId"`
	EventTitle string      `json:"eventTitle"`
	Task       models.Task `json:"task"`
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// AddTask attaches a new pending task to an event.
//
// AddTask is not idempotent: a retried call creates a second task, so
// callers should deliver it at most once.
func (s *Service) AddTask(ctx context.Context, actor models.Actor, eventID string, in TaskInput) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	assignees := uniqueIDs(in.AssignedTo)
	if title == "" || len(assignees) == 0 {
		return nil, ErrEmptyAssignment
	}
	for _, id := range assignees {
		if _, err := s.users.FindByID(ctx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("assignee %s: %w", id, ErrNotFound)
			}
			return nil, err
		}
	}
	task := models.Task{
		ID:          models.NewID(),
		Title:       title,
		AssignedTo:  assignees,
		Deadline:    in.Deadline,
		Status:      models.TaskPending,
		CompletedBy: []string{},
		CreatedAt:   s.now(),
	}
	_, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		e.Tasks = append(e.Tasks, task)
		e.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("add task", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "task_id": task.ID, "actor_id": actor.ID}).Info("task added")
	return &task, nil
}

// RecordCompletion marks the task done for the actor. The task as a whole
// becomes completed once every assignee has recorded completion. Repeating
// the call fails with ErrAlreadyCompleted and changes nothing.
func (s *Service) RecordCompletion(ctx context.Context, actor models.Actor, eventID, taskID string) (*models.Task, error) {
	var done models.Task
	_, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		t := e.TaskByID(taskID)
		if t == nil {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		if !t.IsAssigned(actor.ID) {
			return ErrNotAssigned
		}
		if t.Status == models.TaskCompleted || t.HasCompleted(actor.ID) {
			return ErrAlreadyCompleted
		}
		t.CompletedBy = append(t.CompletedBy, actor.ID)
		if t.AllAssigneesDone() {
			t.Status = models.TaskCompleted
		}
		e.UpdatedAt = s.now()
		done = *t
		return nil
	})
	if err != nil {
		s.logStorage("record completion", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "task_id": taskID, "actor_id": actor.ID, "status": done.Status}).Info("task completion recorded")
	return &done, nil
}

// SetTaskStatus is the admin override that sets a task's aggregate status
// directly. Resetting to pending clears the recorded completions.
func (s *Service) SetTaskStatus(ctx context.Context, actor models.Actor, eventID, taskID string, status models.TaskStatus) (*models.Task, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("unknown task status %q", status)
	}
	var updated models.Task
	_, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		t := e.TaskByID(taskID)
		if t == nil {
			return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
		}
		t.Status = status
		if status == models.TaskPending {
			t.CompletedBy = []string{}
		}
		e.UpdatedAt = s.now()
		updated = *t
		return nil
	})
	if err != nil {
		s.logStorage("set task status", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "task_id": taskID, "actor_id": actor.ID, "status": status}).Info("task status overridden")
	return &updated, nil
}

// taskSummary walks events and returns the actor's open tasks on approved
// events and the number of tasks already done from the actor's view.
func taskSummary(events []*models.Event, actorID string) ([]TaskView, int) {
	pending := []TaskView{}
	completed := 0
	for _, e := range events {
		for _, t := range e.Tasks {
			if !t.IsAssigned(actorID) {
				continue
			}
			if t.DoneFor(actorID) {
				completed++
				continue
			}
			if e.Status == models.EventApproved {
				pending = append(pending, TaskView{EventID: e.ID, EventTitle: e.Title, Task: t})
			}
		}
	}
	return pending, completed
}

// PendingTasks lists the actor's open tasks across approved events.
func (s *Service) PendingTasks(ctx context.Context, actor models.Actor) ([]TaskView, error) {
	events, err := s.events.List(ctx, EventFilter{})
	if err != nil {
		return nil, err
	}
	pending, _ := taskSummary(events, actor.ID)
	return pending, nil
}
