// Package report assembles ranked match results into delivery-ready
// payloads and tracks what each user has already received.
package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/metrics"
	"github.com/jobsight/jobsight/internal/pipeline"
)

// Assembler packages match results per user and hands them to the external
// delivery collaborator. The per-user delivered set is updated only after a
// successful hand-off.
type Assembler struct {
	delivered pipeline.DeliveredStore
	deliverer pipeline.Deliverer
	clock     pipeline.Clock
	logger    *zap.Logger
}

// New constructs an Assembler.
func New(
	delivered pipeline.DeliveredStore,
	deliverer pipeline.Deliverer,
	clock pipeline.Clock,
	logger *zap.Logger,
) *Assembler {
	return &Assembler{
		delivered: delivered,
		deliverer: deliverer,
		clock:     clock,
		logger:    logger,
	}
}

// Assemble builds the delivery payload for one match result, marking items
// the user has already received.
func (a *Assembler) Assemble(
	ctx context.Context,
	result pipeline.MatchResult,
	vacancies map[string]pipeline.VacancyRecord,
) (pipeline.RecommendationPayload, error) {
	already, err := a.delivered.Delivered(ctx, result.UserID)
	if err != nil {
		return pipeline.RecommendationPayload{}, fmt.Errorf("load delivered set for %s: %w", result.UserID, err)
	}

	items := make([]pipeline.RecommendationItem, 0, len(result.Entries))
	for _, entry := range result.Entries {
		vac, ok := vacancies[entry.Identity]
		if !ok {
			continue
		}
		items = append(items, pipeline.RecommendationItem{
			Identity:            entry.Identity,
			Title:               vac.Title,
			Company:             vac.Company,
			URL:                 vac.URL,
			Location:            vac.Location,
			Score:               entry.Score,
			MatchedSkills:       entry.MatchedSkills,
			PreviouslyDelivered: already[entry.Identity],
		})
	}

	return pipeline.RecommendationPayload{
		UserID:      result.UserID,
		GeneratedAt: result.GeneratedAt,
		Items:       items,
	}, nil
}

// Dispatch hands the payload to the delivery collaborator. The delivered
// set is only updated on acknowledgment; a failed hand-off leaves it
// untouched so the items are resent next cycle.
func (a *Assembler) Dispatch(ctx context.Context, payload pipeline.RecommendationPayload) error {
	if err := a.deliverer.Deliver(ctx, payload); err != nil {
		metrics.RecordDelivery("failed")
		return fmt.Errorf("deliver to %s: %w", payload.UserID, err)
	}

	identities := make([]string, 0, len(payload.Items))
	for _, item := range payload.Items {
		if item.PreviouslyDelivered {
			continue
		}
		identities = append(identities, item.Identity)
	}
	if len(identities) > 0 {
		if err := a.delivered.MarkDelivered(ctx, payload.UserID, identities); err != nil {
			return fmt.Errorf("mark delivered for %s: %w", payload.UserID, err)
		}
	}
	metrics.RecordDelivery("ok")
	a.logger.Info("recommendations delivered",
		zap.String("user_id", payload.UserID),
		zap.Int("items", len(payload.Items)),
		zap.Int("newly_delivered", len(identities)),
	)
	return nil
}
