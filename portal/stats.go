package portal

import (
	"context"

	"portal-backend/models"
)

// AdminStats is the admin dashboard summary.
type AdminStats struct {
	PendingUsers   int64 `json:"pendingUsers"`
	PendingEvents  int64 `json:"pendingEvents"`
	TotalUsers     int64 `json:"totalUsers"`
	ActiveEvents   int64 `json:"activeEvents"`
	TasksPending   int   `json:"tasksPending"`
	TasksCompleted int   `json:"tasksCompleted"`
}

// MemberStats is the member dashboard summary.
type MemberStats struct {
	UpcomingEvents int `json:"upcomingEvents"`
	MyProposals    int `json:"myProposals"`
	TasksPending   int `json:"tasksPending"`
	TasksCompleted int `json:"tasksCompleted"`
}

// AdminStats derives the admin counters from the current users and events.
// Nothing is cached.
func (s *Service) AdminStats(ctx context.Context, actor models.Actor) (*AdminStats, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	member, unapproved, approved := models.RoleMember, false, true
	pendingUsers, err := s.users.Count(ctx, UserFilter{Role: &member, Approved: &unapproved})
	if err != nil {
		return nil, err
	}
	totalUsers, err := s.users.Count(ctx, UserFilter{Approved: &approved})
	if err != nil {
		return nil, err
	}
	events, err := s.events.List(ctx, EventFilter{})
	if err != nil {
		return nil, err
	}
	st := &AdminStats{PendingUsers: pendingUsers, TotalUsers: totalUsers}
	for _, e := range events {
		switch e.Status {
		case models.EventPending:
			st.PendingEvents++
		case models.EventApproved:
			st.ActiveEvents++
		}
	}
	pending, completed := taskSummary(events, actor.ID)
	st.TasksPending, st.TasksCompleted = len(pending), completed
	return st, nil
}

// MemberStats derives the member counters for the actor.
func (s *Service) MemberStats(ctx context.Context, actor models.Actor) (*MemberStats, error) {
	events, err := s.events.List(ctx, EventFilter{})
	if err != nil {
		return nil, err
	}
	st := &MemberStats{}
	for _, e := range events {
		if e.Status == models.EventApproved {
			st.UpcomingEvents++
		}
		if e.ProposedBy == actor.ID {
			st.MyProposals++
		}
	}
	pending, completed := taskSummary(events, actor.ID)
	st.TasksPending, st.TasksCompleted = len(pending), completed
	return st, nil
}
