package board

import (
	"context"
	"net"
	"testing"
	"time"

	"leadboard/apiclient"
	"leadboard/config"
	"leadboard/models"
	"leadboard/routes"
	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"
)

// newServedBoard runs the real routes on an in-memory listener and points a
// board at them through the REST client.
func newServedBoard(t *testing.T) (*Board, *recorder) {
	t.Helper()

	db, err := config.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	app := fiber.New()
	routes.SetupRoutes(app, routes.Dependencies{
		DB:               db,
		Generator:        utils.NewFallbackGenerator(),
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

	client := apiclient.New("http://leadboard.local", "")
	client.Timeout = 5 * time.Second
	client.HTTP.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }

	rec := &recorder{}
	return New(client, rec, nil), rec
}

func TestBoard_EditLeadWithoutLinkedInOnServer(t *testing.T) {
	b, rec := newServedBoard(t)
	ctx := context.Background()

	created, err := b.CreateLead(ctx, LeadForm{Name: "Ada", Role: "CTO", Company: "AE"})
	require.NoError(t, err)
	require.Nil(t, created.LinkedInURL)

	updated, err := b.UpdateLead(ctx, created.ID, LeadForm{Name: "Ada", Role: "CEO", Company: "AE"})
	require.NoError(t, err)
	assert.Equal(t, "CEO", updated.Role)
	assert.Nil(t, updated.LinkedInURL)

	onBoard, ok := b.Snapshot().FindLead(created.ID)
	require.True(t, ok)
	assert.Equal(t, "CEO", onBoard.Role)
	assert.Empty(t, rec.levels())
}

func TestBoard_ClearLinkedInOnServer(t *testing.T) {
	b, rec := newServedBoard(t)
	ctx := context.Background()

	created, err := b.CreateLead(ctx, LeadForm{
		Name:        "Grace",
		Role:        "Admiral",
		Company:     "Navy",
		LinkedInURL: "https://www.linkedin.com/in/grace/",
	})
	require.NoError(t, err)
	require.NotNil(t, created.LinkedInURL)

	updated, err := b.UpdateLead(ctx, created.ID, LeadForm{Name: "Grace", Role: "Admiral", Company: "Navy"})
	require.NoError(t, err)
	assert.Nil(t, updated.LinkedInURL)

	require.NoError(t, b.Load(ctx))
	reloaded, ok := b.Snapshot().FindLead(created.ID)
	require.True(t, ok)
	assert.Nil(t, reloaded.LinkedInURL)
	assert.Empty(t, rec.levels())
}

func TestBoard_InvalidLinkedInRejectedByServer(t *testing.T) {
	b, _ := newServedBoard(t)
	ctx := context.Background()

	created, err := b.CreateLead(ctx, LeadForm{Name: "Ada", Role: "CTO", Company: "AE"})
	require.NoError(t, err)

	_, err = b.API.UpdateLead(ctx, created.ID, models.UpdateLeadInput{LinkedInURL: utils.Pointer("not-a-url")})
	var apiErr *apiclient.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusBadRequest, apiErr.Status)
}
