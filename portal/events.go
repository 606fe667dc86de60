package portal

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"portal-backend/models"
)

// EventInput carries the fields of a new proposal.
type EventInput struct {
	Title                string
	Description          string
	Venue                string
	SuggestedDate        *time.Time
	ExpectedParticipants *int
}

func validatePatch(p models.EventPatch) (models.EventPatch, error) {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return p, invalid("title must not be empty")
		}
		p.Title = &t
	}
	if p.ExpectedParticipants != nil && *p.ExpectedParticipants < 0 {
		return p, invalid("expected participants must not be negative")
	}
	return p, nil
}

// Propose creates a pending event owned by the actor.
func (s *Service) Propose(ctx context.Context, actor models.Actor, in EventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if in.ExpectedParticipants != nil && *in.ExpectedParticipants < 0 {
		return nil, invalid("expected participants must not be negative")
	}
	now := s.now()
	e := &models.Event{
		ID:                   models.NewID(),
		Title:                title,
		Description:          in.Description,
		Venue:                strings.TrimSpace(in.Venue),
		SuggestedDate:        in.SuggestedDate,
		ExpectedParticipants: in.ExpectedParticipants,
		Status:               models.EventPending,
		ProposedBy:           actor.ID,
		Upvotes:              []string{},
		Downvotes:            []string{},
		Discussion:           []models.Comment{},
		Tasks:                []models.Task{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.events.Insert(ctx, e); err != nil {
		s.logStorage("propose", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": e.ID, "actor_id": actor.ID}).Info("event proposed")
	return e, nil
}

func (s *Service) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	return s.events.FindByID(ctx, eventID)
}

// ListEvents returns events, optionally restricted to one status.
func (s *Service) ListEvents(ctx context.Context, status *models.EventStatus) ([]*models.Event, error) {
	return s.events.List(ctx, EventFilter{Status: status})
}

// MyProposals returns every event the actor proposed, whatever its status.
func (s *Service) MyProposals(ctx context.Context, actor models.Actor) ([]*models.Event, error) {
	return s.events.List(ctx, EventFilter{ProposedBy: actor.ID})
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(ids, func(v string) bool { return v == id })
}

// Vote casts or withdraws the actor's vote. Repeating the same direction
// removes the vote; voting the other way moves it. After the call the actor
// is in at most one of the two sets.
func (s *Service) Vote(ctx context.Context, actor models.Actor, eventID string, dir models.VoteDirection) (*models.Event, error) {
	if !dir.Valid() {
		return nil, invalid("unknown vote direction %q", dir)
	}
	e, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		same, other := &e.Upvotes, &e.Downvotes
		if dir == models.VoteDown {
			same, other = other, same
		}
		*other = without(*other, actor.ID)
		if slices.Contains(*same, actor.ID) {
			*same = without(*same, actor.ID)
		} else {
			*same = append(*same, actor.ID)
		}
		return nil
	})
	if err != nil {
		s.logStorage("vote", err)
		return nil, err
	}
	return e, nil
}

// Comment appends to the event's discussion.
func (s *Service) Comment(ctx context.Context, actor models.Actor, eventID, text string) (*models.Event, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	e, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		e.Discussion = append(e.Discussion, models.Comment{
			UserID:    actor.ID,
			Text:      text,
			CreatedAt: s.now(),
		})
		return nil
	})
	if err != nil {
		s.logStorage("comment", err)
		return nil, err
	}
	return e, nil
}

func canEdit(actor models.Actor, e *models.Event) bool {
	if actor.IsAdmin() {
		return true
	}
	return e.ProposedBy == actor.ID && e.Status == models.EventPending
}

// UpdateFields edits a proposal. Admins may edit any event; the proposer
// only while it is pending.
func (s *Service) UpdateFields(ctx context.Context, actor models.Actor, eventID string, patch models.EventPatch) (*models.Event, error) {
	patch, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}
	e, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		if !canEdit(actor, e) {
			return ErrForbidden
		}
		patch.Apply(e)
		e.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("update event", err)
		return nil, err
	}
	return e, nil
}

func decide(e *models.Event, status models.EventStatus) error {
	if e.Status != models.EventPending {
		return ErrInvalidTransition
	}
	e.Status = status
	return nil
}

// Decide moves a pending event to approved or declined. It is the only way
// out of pending, and both targets are terminal.
func (s *Service) Decide(ctx context.Context, actor models.Actor, eventID string, status models.EventStatus) (*models.Event, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !status.IsTerminal() {
		return nil, invalid("cannot move an event to %q", status)
	}
	e, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		if err := decide(e, status); err != nil {
			return err
		}
		e.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("decide event", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID, "status": status}).Info("event decided")
	return e, nil
}

// UpdateAndApprove edits and approves a pending event in one write. If
// either step is rejected the event is left untouched.
func (s *Service) UpdateAndApprove(ctx context.Context, actor models.Actor, eventID string, patch models.EventPatch) (*models.Event, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	patch, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}
	e, err := s.events.Update(ctx, eventID, func(e *models.Event) error {
		patch.Apply(e)
		if err := decide(e, models.EventApproved); err != nil {
			return err
		}
		e.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		s.logStorage("update and approve event", err)
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID, "status": e.Status}).Info("event updated and approved")
	return e, nil
}

// Withdraw lets the proposer delete their own event while it is still pending.
func (s *Service) Withdraw(ctx context.Context, actor models.Actor, eventID string) error {
	err := s.events.Delete(ctx, eventID, func(e *models.Event) error {
		if e.ProposedBy != actor.ID {
			return ErrForbidden
		}
		if e.Status != models.EventPending {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		s.logStorage("withdraw event", err)
		return err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID}).Info("event withdrawn")
	return nil
}

// DeleteEvent removes an event regardless of status. Admins and the
// proposer may do this.
func (s *Service) DeleteEvent(ctx context.Context, actor models.Actor, eventID string) error {
	err := s.events.Delete(ctx, eventID, func(e *models.Event) error {
		if !actor.IsAdmin() && e.ProposedBy != actor.ID {
			return ErrForbidden
		}
		return nil
	})
	if err != nil {
		s.logStorage("delete event", err)
		return err
	}
	s.log.WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID}).Info("event deleted")
	return nil
}
