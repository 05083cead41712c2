package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"oneoftools/internal/models"
	"oneoftools/pkg/helius"
)

// Outcome is what happened to one transaction or task
type Outcome string

const (
	OutcomeSkippedMissingNFT Outcome = "skipped_missing_nft"
	OutcomeIgnoredPrint      Outcome = "ignored_print"
	OutcomeUntracked         Outcome = "untracked"
	OutcomeRecorded          Outcome = "recorded"
	OutcomeFloorRefreshed    Outcome = "floor_refreshed"
	OutcomeFloorSkipped      Outcome = "floor_skipped"
)

// Broadcaster pushes recorded events to live subscribers
type Broadcaster interface {
	Broadcast(slug string, event *models.NFTEvent)
}

// Processor runs one enriched transaction through the ingestion pipeline
type Processor struct {
	resolver    *Resolver
	store       *EventStore
	aggregator  *Aggregator
	floor       *FloorRecalculator
	scheduler   FloorScheduler
	broadcaster Broadcaster
	secret      string
}

// ProcessorDeps groups the collaborators of a Processor. Scheduler and Broadcaster may be nil.
type ProcessorDeps struct {
	Resolver    *Resolver
	Store       *EventStore
	Aggregator  *Aggregator
	Floor       *FloorRecalculator
	Scheduler   FloorScheduler
	Broadcaster Broadcaster
	Secret      string
}

func NewProcessor(deps ProcessorDeps) *Processor {
	return &Processor{
		resolver:    deps.Resolver,
		store:       deps.Store,
		aggregator:  deps.Aggregator,
		floor:       deps.Floor,
		scheduler:   deps.Scheduler,
		broadcaster: deps.Broadcaster,
		secret:      deps.Secret,
	}
}

// Authorize checks the shared secret of a direct task delivery
func (p *Processor) Authorize(authorization string) error {
	return checkSecret(p.secret, authorization)
}

// HandleTransaction normalizes, classifies and records tx, then schedules a floor refresh
// once the stats transaction has committed
func (p *Processor) HandleTransaction(ctx context.Context, tx *helius.EnhancedTransaction) (Outcome, error) {
	outcome, recorded, err := p.handle(ctx, tx)
	if err != nil || outcome != OutcomeRecorded {
		return outcome, err
	}
	if recorded.Type.AffectsFloor() {
		p.scheduleFloor(ctx, recorded.CollectionSlug)
	}
	return outcome, nil
}

// handle returns the recorded event when the outcome is OutcomeRecorded
func (p *Processor) handle(ctx context.Context, tx *helius.EnhancedTransaction) (Outcome, *models.NFTEvent, error) {
	activity, err := NormalizeTransaction(tx)
	if err != nil {
		if errors.Is(err, ErrMissingNFTEvent) {
			logrus.WithField("signature", tx.Signature).Info("Skipping transaction without nft event")
			return OutcomeSkippedMissingNFT, nil, nil
		}
		return "", nil, err
	}

	fields := logrus.Fields{"signature": activity.Signature, "mint": activity.Mint, "type": activity.Type}

	resolution, err := p.resolver.Resolve(ctx, activity.Mint)
	if err != nil {
		return "", nil, err
	}
	if resolution.ShouldIgnore {
		logrus.WithFields(fields).Info("Ignoring print edition")
		return OutcomeIgnoredPrint, nil, nil
	}
	if !resolution.Tracked() {
		if err := p.store.AppendUntracked(ctx, activity); err != nil {
			return "", nil, err
		}
		logrus.WithFields(fields).Debug("Filed untracked activity")
		return OutcomeUntracked, nil, nil
	}

	slug := resolution.Entry.CollectionSlug
	result, err := p.aggregator.Record(ctx, slug, activity)
	if err != nil {
		return "", nil, err
	}
	if p.broadcaster != nil && !result.Duplicate {
		p.broadcaster.Broadcast(slug, result.Event)
	}
	return OutcomeRecorded, result.Event, nil
}

// scheduleFloor is best effort, failures are only logged
func (p *Processor) scheduleFloor(ctx context.Context, slug string) {
	if p.scheduler == nil {
		return
	}
	if err := p.scheduler.ScheduleFloorRefresh(ctx, slug); err != nil {
		logrus.WithField("slug", slug).Warnf("Failed to schedule floor refresh: %v", err)
	}
}

// Backfill records historical events of one mint and schedules a single floor refresh at the end.
// It returns the number of events recorded.
func (p *Processor) Backfill(ctx context.Context, events []helius.NFTEvent) (int, error) {
	recorded := 0
	slugs := map[string]bool{}
	for _, event := range events {
		tx := TransactionFromEvent(event)
		if tx.Signature == "" {
			continue
		}
		outcome, ev, err := p.handle(ctx, &tx)
		if err != nil {
			return recorded, err
		}
		if outcome == OutcomeRecorded {
			recorded++
			if ev.Type.AffectsFloor() {
				slugs[ev.CollectionSlug] = true
			}
		}
	}
	for slug := range slugs {
		p.scheduleFloor(ctx, slug)
	}
	return recorded, nil
}

// RefreshFloor recalculates the floor of slug. A listings outage is logged and reported as skipped.
func (p *Processor) RefreshFloor(ctx context.Context, slug string) (Outcome, error) {
	if _, err := p.floor.Recalculate(ctx, slug); err != nil {
		if errors.Is(err, ErrListingsUnavailable) {
			return OutcomeFloorSkipped, nil
		}
		return "", err
	}
	return OutcomeFloorRefreshed, nil
}

// HandleTask runs a task taken off the queue. Errors for which IsPermanent holds must not be retried.
func (p *Processor) HandleTask(ctx context.Context, task *Task) (Outcome, error) {
	if err := p.Authorize(task.Authorization); err != nil {
		return "", err
	}

	switch task.Kind {
	case TaskKindNFTEvent:
		body, err := base64.StdEncoding.DecodeString(task.Payload)
		if err != nil {
			return "", fmt.Errorf("%w: payload is not base64: %v", ErrMalformedPayload, err)
		}
		tx, err := DecodeTransaction(body)
		if err != nil {
			return "", err
		}
		return p.HandleTransaction(ctx, tx)
	case TaskKindFloorRefresh:
		if task.Slug == "" {
			return "", fmt.Errorf("%w: floor refresh without slug", ErrMalformedPayload)
		}
		return p.RefreshFloor(ctx, task.Slug)
	default:
		return "", fmt.Errorf("%w: unknown task kind %q", ErrMalformedPayload, task.Kind)
	}
}
