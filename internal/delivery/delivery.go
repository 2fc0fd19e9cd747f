// Package delivery provides hand-off adapters to the external delivery
// channel. The channel itself (dashboard, chat bot) is out of scope; these
// adapters only move payloads across the boundary and report the ack.
package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/jobsight/jobsight/internal/pipeline"
)

// JSONDirDeliverer writes one JSON document per user payload into a spool
// directory watched by the delivery collaborator.
type JSONDirDeliverer struct {
	dir string
}

// NewJSONDir creates the spool directory if needed.
func NewJSONDir(dir string) (*JSONDirDeliverer, error) {
	if dir == "" {
		return nil, fmt.Errorf("delivery directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create delivery directory: %w", err)
	}
	return &JSONDirDeliverer{dir: dir}, nil
}

// Deliver writes the payload; a successful write is the acknowledgment.
func (d *JSONDirDeliverer) Deliver(_ context.Context, payload pipeline.RecommendationPayload) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal payload for %s: %w", payload.UserID, err)
	}
	name := fmt.Sprintf("%s_%s.json", payload.UserID, payload.GeneratedAt.UTC().Format("20060102T150405"))
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write payload for %s: %w", payload.UserID, err)
	}
	return nil
}

// LogDeliverer logs payload summaries instead of delivering (dry runs).
type LogDeliverer struct {
	logger *zap.Logger
}

// NewLog wires a logger-backed deliverer.
func NewLog(logger *zap.Logger) *LogDeliverer {
	return &LogDeliverer{logger: logger}
}

// Deliver logs the payload summary.
func (d *LogDeliverer) Deliver(_ context.Context, payload pipeline.RecommendationPayload) error {
	d.logger.Info("recommendation payload",
		zap.String("user_id", payload.UserID),
		zap.Int("items", len(payload.Items)),
	)
	return nil
}
