package board

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"leadboard/apiclient"
	"leadboard/models"
	"leadboard/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) ListLeads(ctx context.Context, q apiclient.LeadQuery) ([]models.Lead, *models.Pagination, error) {
	args := m.Called(ctx, q)
	leads, _ := args.Get(0).([]models.Lead)
	page, _ := args.Get(1).(*models.Pagination)
	return leads, page, args.Error(2)
}

func (m *mockAPI) CreateLead(ctx context.Context, input models.CreateLeadInput) (*models.Lead, error) {
	args := m.Called(ctx, input)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockAPI) UpdateLead(ctx context.Context, id string, input models.UpdateLeadInput) (*models.Lead, error) {
	args := m.Called(ctx, id, input)
	lead, _ := args.Get(0).(*models.Lead)
	return lead, args.Error(1)
}

func (m *mockAPI) DeleteLead(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAPI) ListMessages(ctx context.Context, q apiclient.MessageQuery) ([]models.Message, *models.Pagination, error) {
	args := m.Called(ctx, q)
	messages, _ := args.Get(0).([]models.Message)
	page, _ := args.Get(1).(*models.Pagination)
	return messages, page, args.Error(2)
}

func (m *mockAPI) UpdateMessage(ctx context.Context, id string, input models.UpdateMessageInput) (*models.Message, error) {
	args := m.Called(ctx, id, input)
	msg, _ := args.Get(0).(*models.Message)
	return msg, args.Error(1)
}

func (m *mockAPI) DeleteMessage(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAPI) GenerateMessage(ctx context.Context, input models.GenerateMessageInput) (*models.GenerateMessageResult, error) {
	args := m.Called(ctx, input)
	result, _ := args.Get(0).(*models.GenerateMessageResult)
	return result, args.Error(1)
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) levels() []Level {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Level, len(r.notices))
	for i, n := range r.notices {
		out[i] = n.Level
	}
	return out
}

var errServer = &apiclient.APIError{Status: 500, Message: "Failed to update message"}

func newBoard(t *testing.T, leads []models.Lead, messages []models.Message) (*Board, *mockAPI, *recorder) {
	t.Helper()
	api := &mockAPI{}
	rec := &recorder{}
	b := New(api, rec, nil)
	b.Now = func() time.Time { return at(59) }
	b.mu.Lock()
	b.dispatch(LeadsLoaded{Leads: leads})
	b.dispatch(MessagesLoaded{Messages: messages})
	b.mu.Unlock()
	t.Cleanup(func() { api.AssertExpectations(t) })
	return b, api, rec
}

func onePage(total int64) *models.Pagination {
	return &models.Pagination{Page: 1, PageSize: 100, Total: total, TotalPages: 1}
}

func TestBoard_LoadPagesThroughEverything(t *testing.T) {
	b, api, _ := newBoard(t, nil, nil)

	api.On("ListLeads", mock.Anything, apiclient.LeadQuery{Page: 1, PageSize: 100}).
		Return([]models.Lead{lead("a", 2)}, &models.Pagination{Page: 1, PageSize: 100, Total: 101, TotalPages: 2}, nil).Once()
	api.On("ListLeads", mock.Anything, apiclient.LeadQuery{Page: 2, PageSize: 100}).
		Return([]models.Lead{lead("b", 1)}, &models.Pagination{Page: 2, PageSize: 100, Total: 101, TotalPages: 2}, nil).Once()
	api.On("ListMessages", mock.Anything, apiclient.MessageQuery{Page: 1, PageSize: 100}).
		Return([]models.Message{message("m1", "a", 1)}, onePage(1), nil).Once()

	require.NoError(t, b.Load(context.Background()))

	snap := b.Snapshot()
	assert.Equal(t, []string{"a", "b"}, leadIDs(snap))
	assert.Equal(t, []string{"m1"}, messageIDs(snap))
}

func TestBoard_LoadFailureNotifies(t *testing.T) {
	b, api, rec := newBoard(t, nil, nil)
	api.On("ListLeads", mock.Anything, mock.Anything).Return(nil, nil, errors.New("connection refused")).Once()

	assert.Error(t, b.Load(context.Background()))
	assert.Equal(t, []Level{LevelError}, rec.levels())
}

func TestBoard_CreateLeadShowsTempThenConfirms(t *testing.T) {
	b, api, _ := newBoard(t, []models.Lead{lead("a", 1)}, nil)

	var during []string
	stored := models.Lead{ID: "lead-1", Name: "Ada", Role: "CTO", Company: "AE", CreatedAt: at(59)}
	api.On("CreateLead", mock.Anything, models.CreateLeadInput{Name: "Ada", Role: "CTO", Company: "AE"}).
		Run(func(mock.Arguments) { during = leadIDs(b.Snapshot()) }).
		Return(&stored, nil).Once()

	got, err := b.CreateLead(context.Background(), LeadForm{Name: " Ada ", Role: "CTO", Company: "AE"})
	require.NoError(t, err)
	assert.Equal(t, "lead-1", got.ID)

	require.Len(t, during, 2)
	assert.True(t, strings.HasPrefix(during[0], models.TempIDPrefix))
	assert.Equal(t, []string{"lead-1", "a"}, leadIDs(b.Snapshot()))
}

func TestBoard_PendingLeadRejectsEditAndDelete(t *testing.T) {
	b, api, rec := newBoard(t, []models.Lead{lead("a", 1)}, nil)

	started := make(chan struct{})
	release := make(chan struct{})
	stored := models.Lead{ID: "lead-1", Name: "Ada", Role: "CTO", Company: "AE", CreatedAt: at(59)}
	api.On("CreateLead", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&stored, nil).Once()

	done := make(chan error)
	go func() {
		_, err := b.CreateLead(context.Background(), LeadForm{Name: "Ada", Role: "CTO", Company: "AE"})
		done <- err
	}()
	<-started

	tempID := leadIDs(b.Snapshot())[0]
	require.True(t, strings.HasPrefix(tempID, models.TempIDPrefix))

	_, err := b.UpdateLead(context.Background(), tempID, LeadForm{Name: "Ada", Role: "CEO", Company: "AE"})
	assert.ErrorIs(t, err, ErrLeadPending)
	assert.ErrorIs(t, b.DeleteLead(context.Background(), tempID), ErrLeadPending)

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"lead-1", "a"}, leadIDs(b.Snapshot()))
	assert.Empty(t, rec.levels())
}

func TestBoard_CreateLeadFailureDiscardsTemp(t *testing.T) {
	b, api, rec := newBoard(t, []models.Lead{lead("a", 1)}, nil)
	api.On("CreateLead", mock.Anything, mock.Anything).Return(nil, errServer).Once()

	_, err := b.CreateLead(context.Background(), LeadForm{Name: "Ada", Role: "CTO", Company: "AE"})
	assert.ErrorIs(t, err, errServer)
	assert.Equal(t, []string{"a"}, leadIDs(b.Snapshot()))
	assert.Equal(t, []Level{LevelError}, rec.levels())
}

func TestBoard_LeadFormValidation(t *testing.T) {
	b, _, _ := newBoard(t, []models.Lead{lead("a", 1)}, nil)

	tests := []struct {
		name  string
		form  LeadForm
		field string
		tag   string
	}{
		{"name too long", LeadForm{Name: strings.Repeat("n", 51), Role: "CTO", Company: "AE"}, "name", "max"},
		{"role too long", LeadForm{Name: "Ada", Role: strings.Repeat("r", 101), Company: "AE"}, "role", "max"},
		{"blank company", LeadForm{Name: "Ada", Role: "CTO", Company: "  "}, "company", "required"},
		{"bad linkedin", LeadForm{Name: "Ada", Role: "CTO", Company: "AE", LinkedInURL: "https://example.com/in/ada"}, "linkedin_url", "linkedin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.CreateLead(context.Background(), tt.form)
			var verr *utils.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Failed(tt.field, tt.tag), verr.Error())
		})
	}
	assert.Equal(t, []string{"a"}, leadIDs(b.Snapshot()))
}

func TestBoard_UpdateLeadRollsBackLeadAndMessages(t *testing.T) {
	a := lead("a", 1)
	m := message("m1", "a", 1)
	m.Lead = &a
	b, api, rec := newBoard(t, []models.Lead{a}, []models.Message{m})

	var during State
	api.On("UpdateLead", mock.Anything, "a", mock.MatchedBy(func(in models.UpdateLeadInput) bool {
		return *in.Company == "Globex" && in.LinkedInURL != nil && *in.LinkedInURL == ""
	})).Run(func(mock.Arguments) { during = b.Snapshot() }).Return(nil, errServer).Once()

	_, err := b.UpdateLead(context.Background(), "a", LeadForm{Name: a.Name, Role: a.Role, Company: "Globex"})
	require.Error(t, err)

	assert.Equal(t, "Globex", during.Leads[0].Company)
	assert.Equal(t, "Globex", during.Messages[0].Lead.Company)

	snap := b.Snapshot()
	assert.Equal(t, "Acme", snap.Leads[0].Company)
	assert.Equal(t, "Acme", snap.Messages[0].Lead.Company)
	assert.Equal(t, []Level{LevelError}, rec.levels())
}

func TestBoard_UpdateLeadAppliesServerRecord(t *testing.T) {
	a := lead("a", 1)
	b, api, _ := newBoard(t, []models.Lead{a}, nil)

	stored := a
	stored.Role = "CEO"
	stored.UpdatedAt = at(58)
	api.On("UpdateLead", mock.Anything, "a", mock.Anything).Return(&stored, nil).Once()

	_, err := b.UpdateLead(context.Background(), "a", LeadForm{Name: a.Name, Role: "CEO", Company: a.Company})
	require.NoError(t, err)
	assert.Equal(t, at(58), b.Snapshot().Leads[0].UpdatedAt)

	_, err = b.UpdateLead(context.Background(), "missing", LeadForm{Name: "x", Role: "y", Company: "z"})
	assert.ErrorIs(t, err, ErrUnknownLead)
}

func TestBoard_DeleteLeadFailureRestoresAndReloads(t *testing.T) {
	leads := []models.Lead{lead("c", 30), lead("b", 20), lead("a", 10)}
	messages := []models.Message{message("m1", "b", 1)}
	b, api, rec := newBoard(t, leads, messages)

	api.On("DeleteLead", mock.Anything, "b").Return(errors.New("timeout")).Once()
	api.On("ListMessages", mock.Anything, mock.Anything).Return(messages, onePage(1), nil).Once()

	require.Error(t, b.DeleteLead(context.Background(), "b"))

	snap := b.Snapshot()
	assert.Equal(t, []string{"c", "b", "a"}, leadIDs(snap))
	assert.Equal(t, []string{"m1"}, messageIDs(snap))
	assert.Equal(t, []Level{LevelError}, rec.levels())
}

func TestBoard_DeleteLeadSuccess(t *testing.T) {
	b, api, rec := newBoard(t, []models.Lead{lead("a", 1)}, []models.Message{message("m1", "a", 1)})
	api.On("DeleteLead", mock.Anything, "a").Return(nil).Once()

	require.NoError(t, b.DeleteLead(context.Background(), "a"))
	assert.Empty(t, b.Snapshot().Leads)
	assert.Empty(t, b.Snapshot().Messages)
	assert.Equal(t, []Level{LevelSuccess}, rec.levels())
}

func TestBoard_ChangeMessageStatus(t *testing.T) {
	b, api, rec := newBoard(t, []models.Lead{lead("a", 1)}, []models.Message{message("m1", "a", 1)})

	approved := message("m1", "a", 1)
	approved.Status = models.MessageStatusApproved
	approved.UpdatedAt = at(40)
	api.On("UpdateMessage", mock.Anything, "m1", mock.Anything).Return(&approved, nil).Once()

	_, err := b.ChangeMessageStatus(context.Background(), "m1", models.MessageStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, at(40), b.Snapshot().Messages[0].UpdatedAt)

	api.On("UpdateMessage", mock.Anything, "m1", mock.Anything).Return(nil, errServer).Once()
	_, err = b.ChangeMessageStatus(context.Background(), "m1", models.MessageStatusSent)
	require.Error(t, err)
	assert.Equal(t, models.MessageStatusApproved, b.Snapshot().Messages[0].Status)
	assert.Equal(t, []Level{LevelError}, rec.levels())

	_, err = b.ChangeMessageStatus(context.Background(), "m1", "archived")
	assert.Error(t, err)
}

func TestBoard_StaleResponseIsDiscarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	b, api, rec := newBoard(t, []models.Lead{lead("a", 1)}, []models.Message{message("m1", "a", 1)})

	started := make(chan struct{})
	release := make(chan struct{})
	isStatus := func(s models.MessageStatus) interface{} {
		return mock.MatchedBy(func(in models.UpdateMessageInput) bool { return in.Status != nil && *in.Status == s })
	}

	api.On("UpdateMessage", mock.Anything, "m1", isStatus(models.MessageStatusApproved)).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(nil, errServer).Once()

	sent := message("m1", "a", 1)
	sent.Status = models.MessageStatusSent
	api.On("UpdateMessage", mock.Anything, "m1", isStatus(models.MessageStatusSent)).Return(&sent, nil).Once()

	done := make(chan error)
	go func() {
		_, err := b.ChangeMessageStatus(context.Background(), "m1", models.MessageStatusApproved)
		done <- err
	}()
	<-started

	_, err := b.ChangeMessageStatus(context.Background(), "m1", models.MessageStatusSent)
	require.NoError(t, err)

	close(release)
	assert.Error(t, <-done)

	assert.Equal(t, models.MessageStatusSent, b.Snapshot().Messages[0].Status)
	assert.Empty(t, rec.levels())
}

func TestBoard_EditMessage(t *testing.T) {
	b, api, _ := newBoard(t, []models.Lead{lead("a", 1)}, []models.Message{message("m1", "a", 1)})

	_, err := b.EditMessage(context.Background(), "m1", MessageForm{Content: "too short", Status: models.MessageStatusDraft})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Failed("content", "min"))

	_, err = b.EditMessage(context.Background(), "m1", MessageForm{Content: "Long enough content", Status: "archived"})
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Failed("status", "status"))

	api.On("UpdateMessage", mock.Anything, "m1", mock.Anything).Return(nil, errServer).Once()
	_, err = b.EditMessage(context.Background(), "m1", MessageForm{Content: "A much better opener", Status: models.MessageStatusApproved})
	require.Error(t, err)
	assert.Equal(t, "Hello from m1", b.Snapshot().Messages[0].Content)
	assert.Equal(t, models.MessageStatusDraft, b.Snapshot().Messages[0].Status)
}

func TestBoard_DeleteMessageFailureRestoresOrder(t *testing.T) {
	messages := []models.Message{message("m10", "a", 10), message("m8", "a", 8), message("m5", "a", 5)}
	b, api, _ := newBoard(t, []models.Lead{lead("a", 1)}, messages)
	api.On("DeleteMessage", mock.Anything, "m8").Return(errServer).Once()

	require.Error(t, b.DeleteMessage(context.Background(), "m8"))
	assert.Equal(t, []string{"m10", "m8", "m5"}, messageIDs(b.Snapshot()))

	assert.ErrorIs(t, b.DeleteMessage(context.Background(), "ghost"), ErrUnknownMessage)
}

func TestBoard_RegenerateMessage(t *testing.T) {
	a := lead("a", 1)
	m := message("m1", "a", 1)
	m.Lead = &a
	b, api, rec := newBoard(t, []models.Lead{a}, []models.Message{m})

	api.On("GenerateMessage", mock.Anything, mock.MatchedBy(func(in models.GenerateMessageInput) bool {
		return in.LeadID == "a" && in.SaveToDB != nil && !*in.SaveToDB
	})).Return(&models.GenerateMessageResult{Message: "Fresh take"}, nil).Once()

	saved := m
	saved.Content = "Fresh take"
	api.On("UpdateMessage", mock.Anything, "m1", mock.MatchedBy(func(in models.UpdateMessageInput) bool {
		return in.Content != nil && *in.Content == "Fresh take" && in.Status == nil
	})).Return(&saved, nil).Once()

	got, err := b.RegenerateMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh take", got.Content)
	assert.Equal(t, "Fresh take", b.Snapshot().Messages[0].Content)
	assert.Equal(t, []Level{LevelSuccess}, rec.levels())
}

func TestBoard_RegenerateFailureLeavesMessage(t *testing.T) {
	b, api, _ := newBoard(t, []models.Lead{lead("a", 1)}, []models.Message{message("m1", "a", 1)})
	api.On("GenerateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("upstream")).Once()

	_, err := b.RegenerateMessage(context.Background(), "m1")
	require.Error(t, err)
	assert.Equal(t, "Hello from m1", b.Snapshot().Messages[0].Content)
}

func TestBoard_GenerateForLead(t *testing.T) {
	b, api, _ := newBoard(t, []models.Lead{lead("a", 1)}, nil)

	api.On("GenerateMessage", mock.Anything, mock.Anything).
		Return(&models.GenerateMessageResult{Message: "Hi", SavedToDB: true, MessageID: "m1"}, nil).Once()
	api.On("ListMessages", mock.Anything, mock.Anything).
		Return([]models.Message{message("m1", "a", 1)}, onePage(1), nil).Once()

	_, err := b.GenerateForLead(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, messageIDs(b.Snapshot()))

	api.On("GenerateMessage", mock.Anything, mock.Anything).
		Return(&models.GenerateMessageResult{Message: "Hi", SavedToDB: false}, nil).Once()
	_, err = b.GenerateForLead(context.Background(), "a")
	assert.ErrorIs(t, err, ErrNotSaved)
}

func TestBoard_BulkGenerate(t *testing.T) {
	leads := []models.Lead{lead("c", 3), lead("b", 2), lead("a", 1)}
	b, api, rec := newBoard(t, leads, nil)

	isLead := func(id string) interface{} {
		return mock.MatchedBy(func(in models.GenerateMessageInput) bool {
			return in.LeadID == id && in.SaveToDB != nil && *in.SaveToDB
		})
	}
	api.On("GenerateMessage", mock.Anything, isLead("c")).Return(&models.GenerateMessageResult{SavedToDB: true, MessageID: "m1"}, nil).Once()
	api.On("GenerateMessage", mock.Anything, isLead("a")).Return(nil, errServer).Once()
	api.On("ListMessages", mock.Anything, mock.Anything).Return([]models.Message{message("m1", "c", 1)}, onePage(1), nil).Once()

	var frames int
	final, err := b.BulkGenerate(context.Background(), []string{"a", "c"}, func(models.BulkProgress) { frames++ })
	require.NoError(t, err)

	assert.True(t, final.Done)
	require.Len(t, final.Results, 2)
	assert.Equal(t, "c", final.Results[0].LeadID)
	assert.True(t, final.Results[0].Success)
	assert.False(t, final.Results[1].Success)
	assert.Equal(t, 6, frames)
	assert.Equal(t, []string{"m1"}, messageIDs(b.Snapshot()))
	assert.Equal(t, []Level{LevelWarning}, rec.levels())
}

func TestBoard_BulkGenerateNeedsSelection(t *testing.T) {
	b, _, rec := newBoard(t, []models.Lead{lead("a", 1)}, nil)

	_, err := b.BulkGenerate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoSelection)
	assert.Equal(t, []Level{LevelWarning}, rec.levels())
}

func TestBoard_ExportCSV(t *testing.T) {
	messages := []models.Message{message("m2", "a", 2), message("m1", "a", 1), message("m3", "b", 3)}
	b, _, _ := newBoard(t, []models.Lead{lead("b", 2), lead("a", 1)}, messages)

	out, err := b.ExportCSV([]string{"a"})
	require.NoError(t, err)
	lines := strings.Split(string(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], `"Lead a"`)
	assert.Contains(t, lines[1], `"2","Message 1 (draft): Hello from m2 | Message 2 (draft): Hello from m1","draft"`)

	_, err = b.ExportCSV(nil)
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestBoard_Stats(t *testing.T) {
	b, _, _ := newBoard(t, nil, []models.Message{message("m1", "a", 1), message("m2", "a", 2)})
	assert.Equal(t, models.MessageStats{Total: 2, Draft: 2}, b.Stats())
}
