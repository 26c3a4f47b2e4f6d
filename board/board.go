package board

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"leadboard/apiclient"
	"leadboard/models"
	"leadboard/store"
	"leadboard/utils"
	"leadboard/worker"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownLead    = errors.New("lead is not on the board")
	ErrUnknownMessage = errors.New("message is not on the board")
	ErrNoSelection    = errors.New("no leads selected")
	ErrNotSaved       = errors.New("message was generated but not saved")
	ErrLeadPending    = errors.New("lead is still being saved")
)

// API is the subset of the REST client the board works against.
type API interface {
	ListLeads(ctx context.Context, q apiclient.LeadQuery) ([]models.Lead, *models.Pagination, error)
	CreateLead(ctx context.Context, input models.CreateLeadInput) (*models.Lead, error)
	UpdateLead(ctx context.Context, id string, input models.UpdateLeadInput) (*models.Lead, error)
	DeleteLead(ctx context.Context, id string) error
	ListMessages(ctx context.Context, q apiclient.MessageQuery) ([]models.Message, *models.Pagination, error)
	UpdateMessage(ctx context.Context, id string, input models.UpdateMessageInput) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	GenerateMessage(ctx context.Context, input models.GenerateMessageInput) (*models.GenerateMessageResult, error)
}

// LeadForm is what a user submits when adding or editing a lead.
type LeadForm struct {
	Name        string `json:"name" validate:"required,max=50"`
	Role        string `json:"role" validate:"required,max=100"`
	Company     string `json:"company" validate:"required,max=100"`
	LinkedInURL string `json:"linkedin_url" validate:"omitempty,linkedin"`
}

func (f LeadForm) trimmed() LeadForm {
	return LeadForm{
		Name:        strings.TrimSpace(f.Name),
		Role:        strings.TrimSpace(f.Role),
		Company:     strings.TrimSpace(f.Company),
		LinkedInURL: strings.TrimSpace(f.LinkedInURL),
	}
}

func (f LeadForm) linkedIn() *string {
	if f.LinkedInURL == "" {
		return nil
	}
	u := f.LinkedInURL
	return &u
}

// MessageForm is what a user submits when editing a message.
type MessageForm struct {
	Content string               `json:"content" validate:"required,min=10,max=2000"`
	Status  models.MessageStatus `json:"status" validate:"required,status"`
}

// Board holds the optimistic client-side state. Every mutation is applied
// locally first and rolled back when the server rejects it.
type Board struct {
	API      API
	Notifier Notifier
	Logger   *logrus.Entry
	Now      func() time.Time

	mu        sync.Mutex
	state     State
	revisions map[string]uint64
	bulk      *worker.BulkGenerator
}

func New(api API, notifier Notifier, logger *logrus.Entry) *Board {
	if logger == nil {
		logger = utils.ComponentLogger("board")
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	b := &Board{
		API:       api,
		Notifier:  notifier,
		Logger:    logger,
		Now:       time.Now,
		revisions: make(map[string]uint64),
	}
	b.bulk = worker.NewBulkGenerator(apiLeadGenerator{api: api}, 0, logger)
	return b
}

// SetBulkDelay sets the pause between requests of a bulk run.
func (b *Board) SetBulkDelay(d time.Duration) {
	b.bulk.Delay = d
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return State{
		Leads:    append([]models.Lead(nil), b.state.Leads...),
		Messages: append([]models.Message(nil), b.state.Messages...),
	}
}

// Stats counts the board's messages per status.
func (b *Board) Stats() models.MessageStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.Stats()
}

func (b *Board) dispatch(a Action) {
	b.state = Reduce(b.state, a)
}

// mutate applies an optimistic action and returns the revision the response must match.
func (b *Board) mutate(key string, a Action) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatch(a)
	b.revisions[key]++
	return b.revisions[key]
}

// settle applies a if rev is still the latest revision of key.
func (b *Board) settle(key string, rev uint64, actions ...Action) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revisions[key] != rev {
		b.Logger.WithField("key", key).Debug("Discarding stale response")
		return false
	}
	for _, a := range actions {
		b.dispatch(a)
	}
	return true
}

func leadKey(id string) string    { return "lead:" + id }
func messageKey(id string) string { return "message:" + id }

// Load fetches every lead and message from the server.
func (b *Board) Load(ctx context.Context) error {
	leads, err := b.fetchLeads(ctx)
	if err != nil {
		b.notifyError("Failed to load leads", err)
		return err
	}
	messages, err := b.fetchMessages(ctx)
	if err != nil {
		b.notifyError("Failed to load messages", err)
		return err
	}

	b.mu.Lock()
	b.dispatch(LeadsLoaded{Leads: leads})
	b.dispatch(MessagesLoaded{Messages: messages})
	b.mu.Unlock()
	return nil
}

// ReloadMessages replaces the local messages with the server's.
func (b *Board) ReloadMessages(ctx context.Context) error {
	messages, err := b.fetchMessages(ctx)
	if err != nil {
		b.notifyError("Failed to load messages", err)
		return err
	}
	b.mu.Lock()
	b.dispatch(MessagesLoaded{Messages: messages})
	b.mu.Unlock()
	return nil
}

func (b *Board) fetchLeads(ctx context.Context) ([]models.Lead, error) {
	var all []models.Lead
	for page := 1; ; page++ {
		leads, p, err := b.API.ListLeads(ctx, apiclient.LeadQuery{Page: page, PageSize: store.MaxPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, leads...)
		if p == nil || page >= p.TotalPages {
			return all, nil
		}
	}
}

func (b *Board) fetchMessages(ctx context.Context) ([]models.Message, error) {
	var all []models.Message
	for page := 1; ; page++ {
		messages, p, err := b.API.ListMessages(ctx, apiclient.MessageQuery{Page: page, PageSize: store.MaxPageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, messages...)
		if p == nil || page >= p.TotalPages {
			return all, nil
		}
	}
}

// CreateLead shows the lead immediately under a temporary id and swaps in
// the stored record once the server confirms it.
func (b *Board) CreateLead(ctx context.Context, form LeadForm) (*models.Lead, error) {
	form = form.trimmed()
	if err := utils.ValidateStruct(form); err != nil {
		return nil, err
	}

	now := b.Now()
	tempID := models.TempIDPrefix + strconv.FormatInt(now.UnixNano(), 10)
	rev := b.mutate(leadKey(tempID), LeadCreated{Lead: models.Lead{
		ID:          tempID,
		Name:        form.Name,
		Role:        form.Role,
		Company:     form.Company,
		LinkedInURL: form.linkedIn(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}})

	lead, err := b.API.CreateLead(ctx, models.CreateLeadInput{
		Name:        form.Name,
		Role:        form.Role,
		Company:     form.Company,
		LinkedInURL: form.linkedIn(),
	})
	if err != nil {
		if b.settle(leadKey(tempID), rev, LeadDiscarded{TempID: tempID}) {
			b.notifyError("Failed to save lead", err)
		}
		return nil, err
	}

	b.settle(leadKey(tempID), rev, LeadConfirmed{TempID: tempID, Lead: *lead})
	return lead, nil
}

// UpdateLead applies the form to the lead and its messages, reverting both on failure.
func (b *Board) UpdateLead(ctx context.Context, id string, form LeadForm) (*models.Lead, error) {
	form = form.trimmed()
	if err := utils.ValidateStruct(form); err != nil {
		return nil, err
	}

	original, ok := b.Snapshot().FindLead(id)
	if !ok {
		return nil, ErrUnknownLead
	}
	if original.IsTemporary() {
		return nil, ErrLeadPending
	}
	edited := original
	edited.Name = form.Name
	edited.Role = form.Role
	edited.Company = form.Company
	edited.LinkedInURL = form.linkedIn()
	edited.UpdatedAt = b.Now()
	rev := b.mutate(leadKey(id), LeadUpdated{Lead: edited})

	lead, err := b.API.UpdateLead(ctx, id, models.UpdateLeadInput{
		Name:        &form.Name,
		Role:        &form.Role,
		Company:     &form.Company,
		LinkedInURL: &form.LinkedInURL,
	})
	if err != nil {
		if b.settle(leadKey(id), rev, LeadUpdated{Lead: original}) {
			b.notifyError("Failed to save lead", err)
		}
		return nil, err
	}

	b.settle(leadKey(id), rev, LeadUpdated{Lead: *lead})
	return lead, nil
}

// DeleteLead removes the lead and its messages. On failure the lead is put
// back in place and messages are reloaded from the server.
func (b *Board) DeleteLead(ctx context.Context, id string) error {
	original, ok := b.Snapshot().FindLead(id)
	if !ok {
		return ErrUnknownLead
	}
	if original.IsTemporary() {
		return ErrLeadPending
	}
	rev := b.mutate(leadKey(id), LeadRemoved{ID: id})

	if err := b.API.DeleteLead(ctx, id); err != nil {
		if b.settle(leadKey(id), rev, LeadRestored{Lead: original}) {
			b.notifyError("Delete Failed", err)
			if rerr := b.ReloadMessages(ctx); rerr != nil {
				b.Logger.WithError(rerr).Warn("Could not reload messages after failed lead delete")
			}
		}
		return err
	}

	b.Notifier.Notify(Notice{
		Level:       LevelSuccess,
		Title:       "Lead Deleted",
		Description: "Lead and all related messages have been successfully deleted.",
	})
	return nil
}

// ChangeMessageStatus moves a message to another column.
func (b *Board) ChangeMessageStatus(ctx context.Context, id string, status models.MessageStatus) (*models.Message, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	original, ok := b.Snapshot().FindMessage(id)
	if !ok {
		return nil, ErrUnknownMessage
	}
	rev := b.mutate(messageKey(id), MessageStatusChanged{ID: id, Status: status, At: b.Now()})

	msg, err := b.API.UpdateMessage(ctx, id, models.UpdateMessageInput{Status: &status})
	if err != nil {
		if b.settle(messageKey(id), rev, MessageStatusChanged{ID: id, Status: original.Status, At: original.UpdatedAt}) {
			b.notifyError("Failed to update message status", err)
		}
		return nil, err
	}

	b.settle(messageKey(id), rev, MessageUpdated{Message: *msg})
	return msg, nil
}

// EditMessage saves new content and status for a message.
func (b *Board) EditMessage(ctx context.Context, id string, form MessageForm) (*models.Message, error) {
	form.Content = strings.TrimSpace(form.Content)
	if err := utils.ValidateStruct(form); err != nil {
		return nil, err
	}
	original, ok := b.Snapshot().FindMessage(id)
	if !ok {
		return nil, ErrUnknownMessage
	}
	edited := original
	edited.Content = form.Content
	edited.Status = form.Status
	edited.UpdatedAt = b.Now()
	rev := b.mutate(messageKey(id), MessageUpdated{Message: edited})

	msg, err := b.API.UpdateMessage(ctx, id, models.UpdateMessageInput{Content: &form.Content, Status: &form.Status})
	if err != nil {
		if b.settle(messageKey(id), rev, MessageUpdated{Message: original}) {
			b.notifyError("Failed to update message", err)
		}
		return nil, err
	}

	b.settle(messageKey(id), rev, MessageUpdated{Message: *msg})
	return msg, nil
}

// DeleteMessage removes a message, restoring it in generated_at order on failure.
func (b *Board) DeleteMessage(ctx context.Context, id string) error {
	original, ok := b.Snapshot().FindMessage(id)
	if !ok {
		return ErrUnknownMessage
	}
	rev := b.mutate(messageKey(id), MessageRemoved{ID: id})

	if err := b.API.DeleteMessage(ctx, id); err != nil {
		if b.settle(messageKey(id), rev, MessageRestored{Message: original}) {
			b.notifyError("Delete Failed", err)
		}
		return err
	}

	b.Notifier.Notify(Notice{
		Level:       LevelSuccess,
		Title:       "Message Deleted",
		Description: "Message has been successfully deleted.",
	})
	return nil
}

// RegenerateMessage asks for a fresh draft without storing a new message and
// writes the text into the existing one.
func (b *Board) RegenerateMessage(ctx context.Context, id string) (*models.Message, error) {
	snap := b.Snapshot()
	original, ok := snap.FindMessage(id)
	if !ok {
		return nil, ErrUnknownMessage
	}
	lead, ok := b.leadOf(snap, original)
	if !ok {
		return nil, ErrUnknownLead
	}

	result, err := b.API.GenerateMessage(ctx, generateInput(lead, false))
	if err != nil {
		b.notifyError("Failed to generate message", err)
		return nil, err
	}

	edited := original
	edited.Content = result.Message
	edited.UpdatedAt = b.Now()
	rev := b.mutate(messageKey(id), MessageUpdated{Message: edited})

	content := result.Message
	msg, err := b.API.UpdateMessage(ctx, id, models.UpdateMessageInput{Content: &content})
	if err != nil {
		if b.settle(messageKey(id), rev, MessageUpdated{Message: original}) {
			b.notifyError("Failed to save regenerated message", err)
		}
		return nil, err
	}

	b.settle(messageKey(id), rev, MessageUpdated{Message: *msg})
	b.Notifier.Notify(Notice{Level: LevelSuccess, Title: "New Message Generated!", Description: msg.Content})
	return msg, nil
}

func (b *Board) leadOf(s State, m models.Message) (models.Lead, bool) {
	if m.Lead != nil {
		return *m.Lead, true
	}
	return s.FindLead(m.LeadID)
}

// GenerateForLead stores a new draft for the lead and reloads messages.
func (b *Board) GenerateForLead(ctx context.Context, leadID string) (*models.GenerateMessageResult, error) {
	lead, ok := b.Snapshot().FindLead(leadID)
	if !ok {
		return nil, ErrUnknownLead
	}

	result, err := b.API.GenerateMessage(ctx, generateInput(lead, true))
	if err != nil {
		b.notifyError("Failed to generate message", err)
		return nil, err
	}
	if !result.SavedToDB || result.MessageID == "" {
		b.notifyError("Failed to generate message", ErrNotSaved)
		return result, ErrNotSaved
	}

	if err := b.ReloadMessages(ctx); err != nil {
		return result, err
	}
	b.Notifier.Notify(Notice{Level: LevelSuccess, Title: "Message Generated Successfully!", Description: result.Message})
	return result, nil
}

// BulkGenerate generates a draft for each selected lead in board order, then
// reloads messages from the server.
func (b *Board) BulkGenerate(ctx context.Context, leadIDs []string, onProgress worker.ProgressFunc) (models.BulkProgress, error) {
	leads := b.selected(leadIDs)
	if len(leads) == 0 {
		b.Notifier.Notify(Notice{
			Level:       LevelWarning,
			Title:       "No Leads Selected",
			Description: "Please select at least one lead to generate messages.",
		})
		return models.BulkProgress{}, ErrNoSelection
	}

	var final models.BulkProgress
	_, err := b.bulk.Run(ctx, leads, func(p models.BulkProgress) {
		final = p
		if onProgress != nil {
			onProgress(p)
		}
	})
	if err != nil {
		b.notifyError("Bulk Generation Failed", err)
		return final, err
	}

	if err := b.ReloadMessages(ctx); err != nil {
		b.Logger.WithError(err).Warn("Could not reload messages after bulk generation")
	}

	succeeded := final.Succeeded()
	if failed := len(final.Results) - succeeded; failed > 0 {
		level := LevelWarning
		if succeeded == 0 {
			level = LevelError
		}
		b.Notifier.Notify(Notice{
			Level:       level,
			Title:       "Bulk Generation Completed",
			Description: fmt.Sprintf("Success: %d, Failed: %d", succeeded, failed),
		})
	}
	return final, nil
}

// ExportCSV renders the selected leads and their board messages as CSV.
func (b *Board) ExportCSV(leadIDs []string) ([]byte, error) {
	leads := b.selected(leadIDs)
	if len(leads) == 0 {
		b.Notifier.Notify(Notice{
			Level:       LevelWarning,
			Title:       "No Leads Selected",
			Description: "Please select at least one lead to export.",
		})
		return nil, ErrNoSelection
	}

	snap := b.Snapshot()
	var messages []models.Message
	for _, l := range leads {
		messages = append(messages, snap.MessagesFor(l.ID)...)
	}

	var buf bytes.Buffer
	if err := utils.WriteLeadsCSV(&buf, leads, messages); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// selected returns the board's leads whose ids are in ids, in board order.
func (b *Board) selected(ids []string) []models.Lead {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	snap := b.Snapshot()
	out := make([]models.Lead, 0, len(ids))
	for _, l := range snap.Leads {
		if want[l.ID] && !l.IsTemporary() {
			out = append(out, l)
		}
	}
	return out
}

func (b *Board) notifyError(title string, err error) {
	b.Notifier.Notify(Notice{Level: LevelError, Title: title, Description: describe(err)})
}

func describe(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func generateInput(lead models.Lead, save bool) models.GenerateMessageInput {
	return models.GenerateMessageInput{
		LeadID:      lead.ID,
		Name:        lead.Name,
		Role:        lead.Role,
		Company:     lead.Company,
		LinkedInURL: lead.LinkedIn(),
		SaveToDB:    &save,
	}
}

// apiLeadGenerator drives bulk runs through the generate-message endpoint.
type apiLeadGenerator struct {
	api API
}

func (g apiLeadGenerator) GenerateForLead(ctx context.Context, lead models.Lead) (*models.GenerateMessageResult, error) {
	return g.api.GenerateMessage(ctx, generateInput(lead, true))
}
