package controller

import (
	"context"
	"errors"

	"leadboard/middleware"
	"leadboard/models"
	"leadboard/store"
	"leadboard/worker"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type BulkController struct {
	Leads   store.LeadStore
	Runners *worker.BulkRunners
	Logger  *logrus.Entry
}

func NewBulkController(leads store.LeadStore, runners *worker.BulkRunners, logger *logrus.Entry) *BulkController {
	return &BulkController{
		Leads:   leads,
		Runners: runners,
		Logger:  componentLogger(logger, "bulk"),
	}
}

// HandleBulkGenerateWS reads one BulkRequest and streams progress frames
// until the run completes. The run keeps going if the client disconnects.
// Each token subject gets its own runner; unauthenticated servers share one.
func (bc *BulkController) HandleBulkGenerateWS(c *websocket.Conn) {
	defer c.Close()

	var input models.BulkRequest
	if err := c.ReadJSON(&input); err != nil {
		bc.Logger.WithError(err).Warn("Error reading bulk request")
		return
	}
	if len(input.LeadIDs) == 0 {
		bc.writeError(c, "Please select at least one lead")
		return
	}

	ctx := context.Background()
	leads, err := bc.Leads.ListByIDs(ctx, input.LeadIDs)
	if err != nil {
		bc.Logger.WithError(err).Error("Error loading leads for bulk run")
		bc.writeError(c, "Failed to load leads")
		return
	}
	if len(leads) == 0 {
		bc.writeError(c, "None of the selected leads exist")
		return
	}

	subject, _ := c.Locals("subject").(string)
	connected := true
	results, err := bc.Runners.For(subject).Run(ctx, leads, func(p models.BulkProgress) {
		if !connected {
			return
		}
		if werr := c.WriteJSON(models.BulkFrame{Type: models.BulkFrameProgress, Progress: &p}); werr != nil {
			bc.Logger.WithError(werr).Warn("Client left during bulk run")
			connected = false
		}
	})
	if errors.Is(err, worker.ErrBulkRunActive) {
		bc.writeError(c, err.Error())
		return
	}

	for _, r := range results {
		middleware.RecordBulkResult(r.Success)
	}
}

func (bc *BulkController) writeError(c *websocket.Conn, msg string) {
	if err := c.WriteJSON(models.BulkFrame{Type: models.BulkFrameError, Error: msg}); err != nil {
		bc.Logger.WithError(err).Warn("Error writing bulk error frame")
	}
}
