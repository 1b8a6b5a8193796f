// Package jobs runs the background scans: nightly low-stock and expiring-soon
// reports cached in redis, the invoice overdue sweep, and the ledger chain
// integrity check.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan rebuilds the cached low-stock report per org.
	TaskLowStockScan = "stock:lowstock_scan"
	// TaskExpiryScan rebuilds the cached expiring-soon report per org.
	TaskExpiryScan = "stock:expiry_scan"
	// TaskOverdueScan flips past-due invoices to OVERDUE.
	TaskOverdueScan = "credit:overdue_scan"
	// TaskLedgerIntegrity re-verifies balance chaining on every ledger.
	TaskLedgerIntegrity = "ledger:integrity"
)

// ScanPayload carries scheduling metadata shared by the scan tasks.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

func newScanTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanTask constructs the low-stock scan task.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskLowStockScan, at)
}

// NewExpiryScanTask constructs the expiring-soon scan task.
func NewExpiryScanTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskExpiryScan, at)
}

// NewOverdueScanTask constructs the invoice overdue sweep task.
func NewOverdueScanTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskOverdueScan, at)
}

// NewLedgerIntegrityTask constructs the ledger integrity task.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	return newScanTask(TaskLedgerIntegrity, at)
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// Enqueue submits a prepared task.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
