// Package batch runs many resize requests with per-item failure isolation.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"time"

	apperrors "github.com/anime-shed/imgtool-go/internal/errors"
	"github.com/anime-shed/imgtool-go/internal/logger"
	"github.com/anime-shed/imgtool-go/internal/observer"
	"github.com/anime-shed/imgtool-go/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Transformer is the single-item operation a batch fans out over
type Transformer interface {
	Transform(ctx context.Context, req models.ResizeRequest) (*models.TransformResult, error)
}

// Orchestrator runs batches. Workers of 1 is sequential, 0 uses every CPU.
type Orchestrator struct {
	transformer Transformer
	workers     int
	events      observer.Subject
}

// NewOrchestrator creates a batch orchestrator; events may be nil
func NewOrchestrator(transformer Transformer, workers int, events observer.Subject) *Orchestrator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{
		transformer: transformer,
		workers:     workers,
		events:      events,
	}
}

// Run attempts every request and returns once all of them are recorded.
// Items are stored at their input index whatever the completion order.
func (o *Orchestrator) Run(ctx context.Context, reqs []models.ResizeRequest) models.BatchOutcome {
	start := time.Now()
	outcome := models.BatchOutcome{
		BatchID: uuid.NewString(),
		Items:   make([]models.BatchItem, len(reqs)),
	}
	if len(reqs) == 0 {
		return outcome
	}

	o.publish(ctx, observer.Event{
		EventType: observer.BatchStarted,
		BatchID:   outcome.BatchID,
		Success:   true,
		Metadata:  map[string]interface{}{"items": len(reqs), "workers": o.workers},
	})

	workers := min(o.workers, len(reqs))
	if workers == 1 {
		for i, req := range reqs {
			outcome.Items[i] = o.process(ctx, outcome.BatchID, i, req)
		}
	} else {
		o.runPooled(ctx, outcome.BatchID, workers, reqs, outcome.Items)
	}

	for _, item := range outcome.Items {
		if item.Succeeded() {
			outcome.Succeeded++
		} else {
			outcome.Failed++
		}
	}
	outcome.Duration = time.Since(start)

	o.publish(ctx, observer.Event{
		EventType:      observer.BatchCompleted,
		BatchID:        outcome.BatchID,
		ProcessingTime: outcome.Duration,
		Success:        outcome.Failed == 0,
		Metadata:       map[string]interface{}{"succeeded": outcome.Succeeded, "failed": outcome.Failed},
	})
	return outcome
}

func (o *Orchestrator) runPooled(ctx context.Context, batchID string, workers int, reqs []models.ResizeRequest, items []models.BatchItem) {
	pool := NewWorkerPool(workers)
	pool.Start()
	defer pool.Close()

	for i, req := range reqs {
		if !pool.Submit(func() {
			// each job writes only its own slot
			items[i] = o.process(ctx, batchID, i, req)
		}) {
			items[i] = failedItem(i, req.Source, apperrors.NewCancelledError(nil))
		}
	}
	pool.Wait()

	logger.WithFields(logrus.Fields{
		"batch_id":  batchID,
		"workers":   workers,
		"completed": pool.GetStats().CompletedJobs,
	}).Debug("Batch pool drained")
}

// process runs one item. Items reached after cancellation are recorded as
// cancelled without being attempted.
func (o *Orchestrator) process(ctx context.Context, batchID string, index int, req models.ResizeRequest) (item models.BatchItem) {
	if err := ctx.Err(); err != nil {
		item = failedItem(index, req.Source, apperrors.NewCancelledError(err))
		o.publishItem(ctx, batchID, req, item, 0)
		return item
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			item = failedItem(index, req.Source, apperrors.NewInternalError(fmt.Sprintf("panic: %v", r), nil))
		}
		o.publishItem(ctx, batchID, req, item, time.Since(start))
	}()

	o.publish(ctx, observer.Event{EventType: observer.TransformStarted, BatchID: batchID, Source: req.Source})
	result, err := o.transformer.Transform(ctx, req)
	if err != nil {
		return failedItem(index, req.Source, err)
	}
	return models.BatchItem{Index: index, Source: req.Source, Result: result}
}

func failedItem(index int, source string, err error) models.BatchItem {
	return models.BatchItem{
		Index:  index,
		Source: source,
		Error: &models.ItemError{
			Kind:    string(apperrors.KindOf(err)),
			Message: err.Error(),
			Field:   apperrors.FieldOf(err),
		},
	}
}

func (o *Orchestrator) publishItem(ctx context.Context, batchID string, req models.ResizeRequest, item models.BatchItem, elapsed time.Duration) {
	event := observer.Event{
		EventType:      observer.TransformCompleted,
		BatchID:        batchID,
		Source:         req.Source,
		ProcessingTime: elapsed,
		Success:        item.Succeeded(),
		Metadata:       map[string]interface{}{"index": item.Index},
	}
	if item.Result != nil {
		event.Output = item.Result.OutputPath
	}
	if item.Error != nil {
		event.EventType = observer.TransformFailed
		event.ErrorKind = item.Error.Kind
		event.ErrorMessage = item.Error.Message
	}
	o.publish(ctx, event)
}

func (o *Orchestrator) publish(ctx context.Context, event observer.Event) {
	if o.events != nil {
		// delivered even after cancellation
		o.events.NotifyObservers(context.WithoutCancel(ctx), event)
	}
}
