package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-retail/meridian/internal/inventory"
)

// Report cache keys and lifetime. The inventory reports handler serves these
// entries until the next scan replaces them.
const (
	KeyLowStock    = "reports:lowstock:%d:%d" // org, location
	KeyExpiring    = "reports:expiring:%d:%d" // org, location
	reportCacheTTL = 26 * time.Hour
)

// Register is one (org, location) pair the stock scans cover.
type Register struct {
	OrgID      int64
	LocationID int64
}

// RegisterSource lists the registers to scan.
type RegisterSource interface {
	Registers(ctx context.Context) ([]Register, error)
}

// PGRegisterSource lists active locations from postgres.
type PGRegisterSource struct {
	Pool *pgxpool.Pool
}

// Registers lists active (org, location) pairs.
func (s *PGRegisterSource) Registers(ctx context.Context) ([]Register, error) {
	rows, err := s.Pool.Query(ctx, `SELECT org_id, id FROM locations WHERE is_active ORDER BY org_id, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var registers []Register
	for rows.Next() {
		var reg Register
		if err := rows.Scan(&reg.OrgID, &reg.LocationID); err != nil {
			return nil, err
		}
		registers = append(registers, reg)
	}
	return registers, rows.Err()
}

// StockReporter is the slice of the inventory service the scans use.
type StockReporter interface {
	LowStock(ctx context.Context, orgID, locationID int64) ([]inventory.LowStockRow, error)
	ExpiringSoon(ctx context.Context, orgID, locationID int64) ([]inventory.ExpiringRow, error)
}

// StockScans rebuilds the cached low-stock and expiring-soon reports.
type StockScans struct {
	Logger    *slog.Logger
	Registers RegisterSource
	Stock     StockReporter
	Redis     *redis.Client
}

// HandleLowStock rebuilds the low-stock report for every register.
func (s *StockScans) HandleLowStock(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	registers, err := s.Registers.Registers(ctx)
	if err != nil {
		return fmt.Errorf("jobs: list registers: %w", err)
	}
	for _, reg := range registers {
		rows, err := s.Stock.LowStock(ctx, reg.OrgID, reg.LocationID)
		if err != nil {
			return fmt.Errorf("jobs: low stock org %d location %d: %w", reg.OrgID, reg.LocationID, err)
		}
		if err := s.cache(ctx, fmt.Sprintf(KeyLowStock, reg.OrgID, reg.LocationID), rows); err != nil {
			return err
		}
		s.Logger.Info("low stock report cached",
			slog.Int64("org_id", reg.OrgID),
			slog.Int64("location_id", reg.LocationID),
			slog.Int("rows", len(rows)))
	}
	return nil
}

// HandleExpiry rebuilds the expiring-soon report for every register.
func (s *StockScans) HandleExpiry(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	registers, err := s.Registers.Registers(ctx)
	if err != nil {
		return fmt.Errorf("jobs: list registers: %w", err)
	}
	for _, reg := range registers {
		rows, err := s.Stock.ExpiringSoon(ctx, reg.OrgID, reg.LocationID)
		if err != nil {
			return fmt.Errorf("jobs: expiring org %d location %d: %w", reg.OrgID, reg.LocationID, err)
		}
		if err := s.cache(ctx, fmt.Sprintf(KeyExpiring, reg.OrgID, reg.LocationID), rows); err != nil {
			return err
		}
		s.Logger.Info("expiring report cached",
			slog.Int64("org_id", reg.OrgID),
			slog.Int64("location_id", reg.LocationID),
			slog.Int("rows", len(rows)))
	}
	return nil
}

func (s *StockScans) cache(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.Redis.Set(ctx, key, body, reportCacheTTL).Err(); err != nil {
		return fmt.Errorf("jobs: cache %s: %w", key, err)
	}
	return nil
}
