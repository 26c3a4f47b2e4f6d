package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"leadboard/models"

	"github.com/sirupsen/logrus"
)

var ErrBulkRunActive = errors.New("a bulk generation run is already in progress")

const notSavedError = "message generated but not saved"

// LeadGenerator generates and stores a message for one lead.
type LeadGenerator interface {
	GenerateForLead(ctx context.Context, lead models.Lead) (*models.GenerateMessageResult, error)
}

// ProgressFunc receives a snapshot after every state change of a run.
type ProgressFunc func(models.BulkProgress)

// BulkGenerator walks a selection of leads one at a time. A failed lead is
// recorded and the run moves on; there is no way to stop a run once started.
type BulkGenerator struct {
	Generator LeadGenerator
	Delay     time.Duration
	Logger    *logrus.Entry

	running atomic.Bool
	sleep   func(time.Duration)
}

func NewBulkGenerator(gen LeadGenerator, delay time.Duration, logger *logrus.Entry) *BulkGenerator {
	return &BulkGenerator{
		Generator: gen,
		Delay:     delay,
		Logger:    logger,
		sleep:     time.Sleep,
	}
}

// Running reports whether a run is in progress.
func (bg *BulkGenerator) Running() bool {
	return bg.running.Load()
}

func (bg *BulkGenerator) Run(ctx context.Context, leads []models.Lead, onProgress ProgressFunc) ([]models.BulkResult, error) {
	if !bg.running.CompareAndSwap(false, true) {
		return nil, ErrBulkRunActive
	}
	defer bg.running.Store(false)

	started := time.Now()
	progress := models.BulkProgress{
		Total:   len(leads),
		Results: make([]models.BulkResult, 0, len(leads)),
	}
	publish := func() {
		if onProgress == nil {
			return
		}
		snapshot := progress
		snapshot.Results = append([]models.BulkResult(nil), progress.Results...)
		onProgress(snapshot)
	}

	bg.logger().WithField("leads", len(leads)).Info("Bulk generation started")
	publish()

	for i, lead := range leads {
		progress.Current = i + 1
		progress.CurrentLead = lead.Name
		publish()

		result := models.BulkResult{LeadID: lead.ID, LeadName: lead.Name}
		res, err := bg.Generator.GenerateForLead(ctx, lead)
		switch {
		case err != nil:
			result.Error = err.Error()
			bg.logger().WithError(err).WithField("lead_id", lead.ID).Warn("Bulk generation failed for lead")
		case res == nil || !res.SavedToDB:
			result.Error = notSavedError
		default:
			result.Success = true
		}
		progress.Results = append(progress.Results, result)
		publish()

		if bg.Delay > 0 && i < len(leads)-1 {
			bg.sleep(bg.Delay)
		}
	}

	progress.CurrentLead = ""
	progress.Done = true
	publish()

	bg.logger().WithFields(logrus.Fields{
		"leads":     len(leads),
		"succeeded": progress.Succeeded(),
		"duration":  time.Since(started).String(),
	}).Info("Bulk generation finished")

	return progress.Results, nil
}

func (bg *BulkGenerator) logger() *logrus.Entry {
	if bg.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return bg.Logger
}

// BulkRunners keeps one BulkGenerator per session, so a session can have at
// most one run in progress without blocking other sessions.
type BulkRunners struct {
	Generator LeadGenerator
	Delay     time.Duration
	Logger    *logrus.Entry

	mu      sync.Mutex
	runners map[string]*BulkGenerator
}

func NewBulkRunners(gen LeadGenerator, delay time.Duration, logger *logrus.Entry) *BulkRunners {
	return &BulkRunners{
		Generator: gen,
		Delay:     delay,
		Logger:    logger,
		runners:   make(map[string]*BulkGenerator),
	}
}

// For returns the runner for the session, creating it on first use.
func (r *BulkRunners) For(session string) *BulkGenerator {
	r.mu.Lock()
	defer r.mu.Unlock()

	bg, ok := r.runners[session]
	if !ok {
		logger := r.Logger
		if logger != nil {
			logger = logger.WithField("session", session)
		}
		bg = NewBulkGenerator(r.Generator, r.Delay, logger)
		r.runners[session] = bg
	}
	return bg
}
