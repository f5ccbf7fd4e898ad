// Package worker provides async claim processing from the EventBus.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openclaims/gavel/internal/domain"
	"github.com/openclaims/gavel/internal/engine"
)

// Worker adjudicates submitted claims asynchronously: it subscribes to the
// claim-submitted topic, runs the decision engine, persists the claim,
// decision, and audit trail, and publishes the result.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *engine.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, eng *engine.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: eng,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the claim-submitted topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicClaimSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("worker started", "topic", domain.TopicClaimSubmitted)
	return nil
}

func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()
	return w.processClaim(ctx, msg)
}

// processClaim adjudicates one submitted claim end to end.
func (w *Worker) processClaim(ctx context.Context, msg *domain.Message) error {
	start := time.Now()

	var claim domain.Claim
	if err := json.Unmarshal(msg.Payload, &claim); err != nil {
		slog.Error("failed to parse claim message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing claim", "claim_id", claim.ID)

	decision := w.engine.Evaluate(ctx, &claim)

	// Apply the decision to the claim workflow state
	fromStatus := claim.Status
	now := time.Now().UTC()
	if err := claim.Transition(decision.Status, now); err != nil {
		slog.Error("decision produced an invalid transition",
			"claim_id", claim.ID,
			"from", fromStatus,
			"to", decision.Status,
			"error", err,
		)
		return err
	}

	if w.repo != nil {
		if err := w.repo.SaveClaim(ctx, &claim); err != nil {
			slog.Error("failed to save claim", "claim_id", claim.ID, "error", err)
		}
		if err := w.repo.SaveDecision(ctx, decision); err != nil {
			slog.Error("failed to save decision", "claim_id", claim.ID, "error", err)
		}

		entry := &domain.HistoryEntry{
			ID:         uuid.New().String(),
			ClaimID:    claim.ID,
			FromStatus: fromStatus,
			ToStatus:   decision.Status,
			Reason:     firstReason(decision.Reasons),
			Actor:      "engine",
			CreatedAt:  now,
		}
		if err := w.repo.AppendHistory(ctx, entry); err != nil {
			slog.Error("failed to append history", "claim_id", claim.ID, "error", err)
		}
	}

	// Publish the decision; under_review claims also go to the review queue
	payload, _ := json.Marshal(decision)
	if err := w.bus.Publish(ctx, domain.TopicClaimDecision, payload); err != nil {
		slog.Error("failed to publish decision", "claim_id", claim.ID, "error", err)
	}

	if decision.Status == domain.StatusUnderReview {
		if err := w.bus.Publish(ctx, domain.TopicManualReview, payload); err != nil {
			slog.Error("failed to publish review request", "claim_id", claim.ID, "error", err)
		}
	}

	slog.Info("claim processed",
		"claim_id", claim.ID,
		"status", decision.Status,
		"confidence", decision.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func firstReason(reasons []string) string {
	if len(reasons) == 0 {
		return ""
	}
	return reasons[0]
}

// Stop gracefully stops the worker: unsubscribes, then waits for any
// in-flight claim handler to finish.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("worker stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
