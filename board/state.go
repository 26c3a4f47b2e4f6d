package board

import (
	"time"

	"leadboard/models"
)

// State is the client-side view of leads and messages. Leads are kept newest
// first by created_at and messages newest first by generated_at.
type State struct {
	Leads    []models.Lead
	Messages []models.Message
}

// Action describes one change to State.
type Action interface {
	apply(State) State
}

// Reduce returns the state that results from applying a to s. s is not modified.
func Reduce(s State, a Action) State {
	return a.apply(s)
}

type LeadsLoaded struct{ Leads []models.Lead }

func (a LeadsLoaded) apply(s State) State {
	s.Leads = append([]models.Lead(nil), a.Leads...)
	return s
}

type MessagesLoaded struct{ Messages []models.Message }

func (a MessagesLoaded) apply(s State) State {
	s.Messages = append([]models.Message(nil), a.Messages...)
	return s
}

// LeadCreated puts a not yet confirmed lead at the top of the list.
type LeadCreated struct{ Lead models.Lead }

func (a LeadCreated) apply(s State) State {
	leads := make([]models.Lead, 0, len(s.Leads)+1)
	s.Leads = append(append(leads, a.Lead), s.Leads...)
	return s
}

// LeadConfirmed swaps the temporary lead for the stored one.
type LeadConfirmed struct {
	TempID string
	Lead   models.Lead
}

func (a LeadConfirmed) apply(s State) State {
	s.Leads = mapLeads(s.Leads, func(l models.Lead) models.Lead {
		if l.ID == a.TempID {
			return a.Lead
		}
		return l
	})
	return s
}

// LeadUpdated replaces a lead and the copy embedded in its messages.
type LeadUpdated struct{ Lead models.Lead }

func (a LeadUpdated) apply(s State) State {
	s.Leads = mapLeads(s.Leads, func(l models.Lead) models.Lead {
		if l.ID == a.Lead.ID {
			return a.Lead
		}
		return l
	})
	s.Messages = mapMessages(s.Messages, func(m models.Message) models.Message {
		if m.LeadID == a.Lead.ID {
			lead := a.Lead
			m.Lead = &lead
		}
		return m
	})
	return s
}

// LeadRemoved drops a lead along with its messages.
type LeadRemoved struct{ ID string }

func (a LeadRemoved) apply(s State) State {
	s.Leads = filterLeads(s.Leads, func(l models.Lead) bool { return l.ID != a.ID })
	s.Messages = filterMessages(s.Messages, func(m models.Message) bool { return m.LeadID != a.ID })
	return s
}

// LeadRestored puts a removed lead back in created_at order.
type LeadRestored struct{ Lead models.Lead }

func (a LeadRestored) apply(s State) State {
	rest := filterLeads(s.Leads, func(l models.Lead) bool { return l.ID != a.Lead.ID })
	s.Leads = insertByTime(rest, a.Lead, func(l models.Lead) time.Time { return l.CreatedAt })
	return s
}

// LeadDiscarded drops a temporary lead whose creation failed.
type LeadDiscarded struct{ TempID string }

func (a LeadDiscarded) apply(s State) State {
	s.Leads = filterLeads(s.Leads, func(l models.Lead) bool { return l.ID != a.TempID })
	return s
}

type MessageStatusChanged struct {
	ID     string
	Status models.MessageStatus
	At     time.Time
}

func (a MessageStatusChanged) apply(s State) State {
	s.Messages = mapMessages(s.Messages, func(m models.Message) models.Message {
		if m.ID == a.ID {
			m.Status = a.Status
			m.UpdatedAt = a.At
		}
		return m
	})
	return s
}

type MessageUpdated struct{ Message models.Message }

func (a MessageUpdated) apply(s State) State {
	s.Messages = mapMessages(s.Messages, func(m models.Message) models.Message {
		if m.ID == a.Message.ID {
			return a.Message
		}
		return m
	})
	return s
}

type MessageRemoved struct{ ID string }

func (a MessageRemoved) apply(s State) State {
	s.Messages = filterMessages(s.Messages, func(m models.Message) bool { return m.ID != a.ID })
	return s
}

// MessageRestored puts a removed message back in generated_at order.
type MessageRestored struct{ Message models.Message }

func (a MessageRestored) apply(s State) State {
	rest := filterMessages(s.Messages, func(m models.Message) bool { return m.ID != a.Message.ID })
	s.Messages = insertByTime(rest, a.Message, func(m models.Message) time.Time { return m.GeneratedAt })
	return s
}

// insertByTime places v before the first element older than it, or at the end.
func insertByTime[T any](list []T, v T, at func(T) time.Time) []T {
	out := make([]T, 0, len(list)+1)
	ts := at(v)
	for i, item := range list {
		if at(item).Before(ts) {
			out = append(out, list[:i]...)
			out = append(out, v)
			return append(out, list[i:]...)
		}
	}
	out = append(out, list...)
	return append(out, v)
}

func mapLeads(in []models.Lead, fn func(models.Lead) models.Lead) []models.Lead {
	out := make([]models.Lead, len(in))
	for i, l := range in {
		out[i] = fn(l)
	}
	return out
}

func filterLeads(in []models.Lead, keep func(models.Lead) bool) []models.Lead {
	out := make([]models.Lead, 0, len(in))
	for _, l := range in {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func mapMessages(in []models.Message, fn func(models.Message) models.Message) []models.Message {
	out := make([]models.Message, len(in))
	for i, m := range in {
		out[i] = fn(m)
	}
	return out
}

func filterMessages(in []models.Message, keep func(models.Message) bool) []models.Message {
	out := make([]models.Message, 0, len(in))
	for _, m := range in {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// FindLead returns the lead with the given id.
func (s State) FindLead(id string) (models.Lead, bool) {
	for _, l := range s.Leads {
		if l.ID == id {
			return l, true
		}
	}
	return models.Lead{}, false
}

// FindMessage returns the message with the given id.
func (s State) FindMessage(id string) (models.Message, bool) {
	for _, m := range s.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return models.Message{}, false
}

// MessagesFor returns the messages of one lead in state order.
func (s State) MessagesFor(leadID string) []models.Message {
	return filterMessages(s.Messages, func(m models.Message) bool { return m.LeadID == leadID })
}

// Stats counts the messages in the state per status.
func (s State) Stats() models.MessageStats {
	stats := models.MessageStats{Total: int64(len(s.Messages))}
	for _, m := range s.Messages {
		switch m.Status {
		case models.MessageStatusDraft:
			stats.Draft++
		case models.MessageStatusApproved:
			stats.Approved++
		case models.MessageStatusSent:
			stats.Sent++
		}
	}
	return stats
}
