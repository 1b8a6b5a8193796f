package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// OverdueMarker is the slice of the credit repository the sweep uses.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, orgID int64) (int64, error)
}

// OverdueScan flips SENT and PARTIAL invoices past their due date to OVERDUE.
type OverdueScan struct {
	Logger    *slog.Logger
	Registers RegisterSource
	Credit    OverdueMarker
}

// Handle runs the sweep across every org.
func (s *OverdueScan) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	registers, err := s.Registers.Registers(ctx)
	if err != nil {
		return fmt.Errorf("jobs: list registers: %w", err)
	}
	seen := make(map[int64]bool)
	for _, reg := range registers {
		if seen[reg.OrgID] {
			continue
		}
		seen[reg.OrgID] = true
		flipped, err := s.Credit.MarkOverdue(ctx, reg.OrgID)
		if err != nil {
			return fmt.Errorf("jobs: mark overdue org %d: %w", reg.OrgID, err)
		}
		if flipped > 0 {
			s.Logger.Info("invoices marked overdue",
				slog.Int64("org_id", reg.OrgID),
				slog.Int64("count", flipped))
		}
	}
	return nil
}
