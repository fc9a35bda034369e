package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"docstream-platform/internal/logger"
	"docstream-platform/internal/telemetry"
	"docstream-platform/models"
	"docstream-platform/repositories"
)

// visibilityTimeout hides a leased event from other pollers. It exceeds the
// longest stage deadline so a live worker never loses its lease mid-stage.
const visibilityTimeout = 15 * time.Minute

// Dispatcher polls the outbox and fans leased events out to a fixed pool of
// workers. Delivery is at-least-once: the coordinator tolerates redelivery,
// so a crash between processing and ack only costs a duplicate no-op.
type Dispatcher struct {
	outbox      *repositories.OutboxRepository
	coordinator *Coordinator
	workerCount int
	interval    time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
	events   chan models.OutboxEvent
}

func NewDispatcher(outbox *repositories.OutboxRepository, coordinator *Coordinator, workerCount int, pollInterval time.Duration) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 4
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &Dispatcher{
		outbox:      outbox,
		coordinator: coordinator,
		workerCount: workerCount,
		interval:    pollInterval,
		stopChan:    make(chan struct{}),
		events:      make(chan models.OutboxEvent),
	}
}

// Start launches the poll loop and worker pool.
func (d *Dispatcher) Start() {
	logger.Info("dispatcher starting", "workers", d.workerCount, "pollInterval", d.interval.String())

	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.wg.Add(1)
	go d.pollLoop()
}

// Stop drains the pool. In-flight events finish; unclaimed leases expire on
// their own.
func (d *Dispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
	logger.Info("dispatcher stopped")
}

func (d *Dispatcher) pollLoop() {
	defer d.wg.Done()
	defer close(d.events)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.poll()
		}
	}
}

func (d *Dispatcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	events, err := d.outbox.Lease(ctx, d.workerCount*2, visibilityTimeout)
	if err != nil {
		logger.Error("outbox lease failed", "error", err)
		return
	}

	if pending, err := d.outbox.PendingCount(ctx); err == nil {
		telemetry.OutboxPending.Set(float64(pending))
	}

	for _, ev := range events {
		select {
		case d.events <- ev:
		case <-d.stopChan:
			// Leases expire; another poller picks the rest up.
			return
		}
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for ev := range d.events {
		logger.Debug("worker claimed event", "worker", id, "eventId", ev.ID, "type", ev.EventType)
		d.handle(ev)
	}
}

func (d *Dispatcher) handle(ev models.OutboxEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), visibilityTimeout)
	defer cancel()

	switch ev.EventType {
	case models.EventTypeIngestionRequested:
		d.handleIngestionRequested(ctx, ev)
	default:
		logger.Warn("unknown outbox event type, acking", "eventId", ev.ID, "type", ev.EventType)
		d.ack(ctx, ev)
	}
}

func (d *Dispatcher) handleIngestionRequested(ctx context.Context, ev models.OutboxEvent) {
	var payload models.IngestionRequestedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		logger.Error("malformed outbox payload, acking to avoid poison loop", "eventId", ev.ID, "error", err)
		d.ack(ctx, ev)
		return
	}

	err := d.coordinator.Run(ctx, payload.Payload.TenantID, payload.Payload.JobID, payload.Payload.VersionID)
	if err == nil {
		d.ack(ctx, ev)
		return
	}

	var retry *RetryableError
	if errors.As(err, &retry) && retry.Job.NextRetryAt != nil {
		if releaseErr := d.outbox.Release(ctx, ev.ID, truncateError(retry.Cause), *retry.Job.NextRetryAt); releaseErr != nil {
			logger.Error("outbox release failed", "eventId", ev.ID, "error", releaseErr)
		}
		return
	}

	// Infrastructure error before the job could be moved. Release with a
	// short delay so the lease does not pin the event for its full timeout.
	logger.Error("event handling failed", "eventId", ev.ID, "error", err)
	if releaseErr := d.outbox.Release(ctx, ev.ID, truncateError(err), time.Now().Add(d.interval*2)); releaseErr != nil {
		logger.Error("outbox release failed", "eventId", ev.ID, "error", releaseErr)
	}
}

func (d *Dispatcher) ack(ctx context.Context, ev models.OutboxEvent) {
	if err := d.outbox.MarkProcessed(ctx, ev.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("outbox ack failed", "eventId", ev.ID, "error", err)
	}
}
