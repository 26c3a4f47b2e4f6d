package apiclient

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"leadboard/config"
	"leadboard/models"
	"leadboard/routes"
	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"
)

const testSecret = "test-secret"

type templateGenerator struct {
	mu    sync.Mutex
	fails map[string]bool
}

func (g *templateGenerator) Generate(_ context.Context, p utils.GenerateParams) (*utils.GenerateOutput, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fails[p.Name] {
		return nil, errors.New("failed to generate message: upstream unavailable")
	}
	return &utils.GenerateOutput{
		Message:    "Hi " + p.Name + ", great to see what " + p.Company + " is building.",
		TokensUsed: 12,
		Model:      "test-model",
	}, nil
}

func newTestServer(t *testing.T, gen utils.MessageGenerator) *Client {
	t.Helper()

	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	app := fiber.New()
	routes.SetupRoutes(app, routes.Dependencies{
		DB:               db,
		Generator:        gen,
		JWTSecret:        testSecret,
		DisableAccessLog: true,
	})

	ln := fasthttputil.NewInmemoryListener()
	go app.Listener(ln) //nolint:errcheck
	t.Cleanup(func() {
		_ = app.Shutdown()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	token, err := utils.IssueAPIToken(testSecret, "tester", time.Hour)
	require.NoError(t, err)

	client := New("http://leadboard.local/", token)
	client.Timeout = 5 * time.Second
	client.HTTP.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }
	client.Dialer.NetDial = func(network, addr string) (net.Conn, error) { return ln.Dial() }
	return client
}

func TestClient_LeadLifecycle(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})
	ctx := context.Background()

	lead, err := client.CreateLead(ctx, models.CreateLeadInput{
		Name:        "Ada Lovelace",
		Role:        "CTO",
		Company:     "Analytical Engines",
		LinkedInURL: utils.Pointer("https://linkedin.com/in/ada"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, lead.ID)

	leads, page, err := client.ListLeads(ctx, LeadQuery{Search: "analytical"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	require.NotNil(t, page)
	assert.Equal(t, int64(1), page.Total)

	updated, err := client.UpdateLead(ctx, lead.ID, models.UpdateLeadInput{Role: utils.Pointer("CEO"), LinkedInURL: utils.Pointer("")})
	require.NoError(t, err)
	assert.Equal(t, "CEO", updated.Role)
	assert.Nil(t, updated.LinkedInURL)

	require.NoError(t, client.DeleteLead(ctx, lead.ID))

	_, err = client.GetLead(ctx, lead.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_ValidationErrorsSurface(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})

	_, err := client.CreateLead(context.Background(), models.CreateLeadInput{Name: "Ada", Role: "CTO"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "Name, role, and company are required fields", apiErr.Message)
}

func TestClient_RequiresToken(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})
	client.Token = ""

	_, _, err := client.ListLeads(context.Background(), LeadQuery{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusUnauthorized, apiErr.Status)
}

func TestClient_MessagesAndGeneration(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})
	ctx := context.Background()

	lead, err := client.CreateLead(ctx, models.CreateLeadInput{Name: "Grace", Role: "Admiral", Company: "Navy"})
	require.NoError(t, err)

	result, err := client.GenerateMessage(ctx, models.GenerateMessageInput{
		LeadID: lead.ID, Name: lead.Name, Role: lead.Role, Company: lead.Company,
	})
	require.NoError(t, err)
	assert.True(t, result.SavedToDB)
	require.NotEmpty(t, result.MessageID)

	unsaved, err := client.GenerateMessage(ctx, models.GenerateMessageInput{
		LeadID: lead.ID, Name: lead.Name, Role: lead.Role, Company: lead.Company, SaveToDB: utils.Pointer(false),
	})
	require.NoError(t, err)
	assert.False(t, unsaved.SavedToDB)

	sent := models.MessageStatusSent
	msg, err := client.UpdateMessage(ctx, result.MessageID, models.UpdateMessageInput{Status: &sent})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusSent, msg.Status)

	manual, err := client.CreateMessage(ctx, models.CreateMessageInput{LeadID: lead.ID, Content: "Following up on my last note"})
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusDraft, manual.Status)

	messages, _, err := client.ListMessages(ctx, MessageQuery{LeadID: lead.ID, Status: "all"})
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	stats, err := client.MessageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStats{Total: 2, Draft: 1, Sent: 1}, *stats)

	require.NoError(t, client.DeleteMessage(ctx, manual.ID))
	_, err = client.GetMessage(ctx, manual.ID)
	assert.True(t, IsNotFound(err))
}

func TestClient_ExportLeads(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})
	ctx := context.Background()

	lead, err := client.CreateLead(ctx, models.CreateLeadInput{Name: "Ada", Role: "CTO", Company: "AE"})
	require.NoError(t, err)

	csv, err := client.ExportLeads(ctx, []string{lead.ID})
	require.NoError(t, err)
	lines := strings.Split(string(csv), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(utils.ExportHeaders, ","), lines[0])
	assert.Contains(t, lines[1], `"No messages"`)

	_, err = client.ExportLeads(ctx, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusBadRequest, apiErr.Status)
}

func TestClient_BulkGenerate(t *testing.T) {
	gen := &templateGenerator{fails: map[string]bool{"Grace": true}}
	client := newTestServer(t, gen)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var ids []string
	for _, name := range []string{"Ada", "Grace", "Alan"} {
		lead, err := client.CreateLead(ctx, models.CreateLeadInput{Name: name, Role: "Engineer", Company: name + " Co"})
		require.NoError(t, err)
		ids = append(ids, lead.ID)
	}

	var frames []models.BulkProgress
	final, err := client.BulkGenerate(ctx, ids, func(p models.BulkProgress) {
		frames = append(frames, p)
	})
	require.NoError(t, err)

	assert.True(t, final.Done)
	assert.Equal(t, 3, final.Total)
	require.Len(t, final.Results, 3)
	assert.Equal(t, 2, final.Succeeded())
	assert.Equal(t, "Grace", final.Results[1].LeadName)
	assert.False(t, final.Results[1].Success)
	assert.Contains(t, final.Results[1].Error, "upstream unavailable")

	require.NotEmpty(t, frames)
	assert.Equal(t, 0, frames[0].Current)
	assert.Empty(t, frames[0].Results)

	stats, err := client.MessageStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Draft)
}

func TestClient_BulkGenerateRejectsEmptySelection(t *testing.T) {
	client := newTestServer(t, &templateGenerator{})

	_, err := client.BulkGenerate(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrBulkRejected)
}
