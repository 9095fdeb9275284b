// Package dispatch turns the terminal's PENDING_SYNC queue into confirmed
// server state. A dispatch cycle snapshots the pending orders, pushes them
// to the reconciliation endpoint as one batch, and marks exactly the subset
// the server confirmed. Orders created while a push is in flight are simply
// picked up on the next cycle.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"restaurant-pos/localstore"
	"restaurant-pos/models"

	"go.uber.org/zap"
)

type Dispatcher struct {
	store   localstore.Store
	client  *http.Client
	baseURL string
	token   string
	log     *zap.Logger
}

func New(store localstore.Store, baseURL, token string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		token:   token,
		log:     log,
	}
}

type syncRequest struct {
	Orders []models.Order `json:"orders"`
}

// OrderResult is the server's per-order outcome.
type OrderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type syncResponse struct {
	Success   bool          `json:"success"`
	Results   []OrderResult `json:"results"`
	SyncedIDs []string      `json:"syncedIds"`
	FailedIDs []string      `json:"failedIds"`
}

// CycleReport summarizes one dispatch cycle.
type CycleReport struct {
	Attempted     int
	Synced        int
	AlreadyExists int
	Failed        int
}

// RunCycle executes one dispatch cycle. An empty pending queue is a no-op
// with no network call. A transport failure or non-2xx response leaves every
// order untouched at PENDING_SYNC; there is no partial local mutation on
// total failure. Per-order FAILED outcomes keep that order pending and
// record the server's detail for the operator; SYNCED and ALREADY_EXISTS
// both mean the server has the order, so both stop its retries.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleReport, error) {
	pending, err := d.store.GetPendingOrders()
	if err != nil {
		return CycleReport{}, fmt.Errorf("read pending orders: %w", err)
	}
	if len(pending) == 0 {
		return CycleReport{}, nil
	}
	report := CycleReport{Attempted: len(pending)}

	body, err := json.Marshal(syncRequest{Orders: pending})
	if err != nil {
		return report, fmt.Errorf("encode sync batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/api/sync/orders", bytes.NewReader(body))
	if err != nil {
		return report, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.token)

	resp, err := d.client.Do(req)
	if err != nil {
		// Transport failure, timeout included: retry next cycle.
		d.log.Warn("sync push failed, will retry",
			zap.Int("orders", len(pending)), zap.Error(err))
		return report, fmt.Errorf("push sync batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		d.log.Warn("sync push rejected, will retry",
			zap.Int("status", resp.StatusCode), zap.ByteString("body", detail))
		return report, fmt.Errorf("sync endpoint returned %d", resp.StatusCode)
	}

	var out syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return report, fmt.Errorf("decode sync response: %w", err)
	}

	var syncedIDs []string
	for _, r := range out.Results {
		switch r.Status {
		case models.OutcomeSynced:
			report.Synced++
			syncedIDs = append(syncedIDs, r.ID)
		case models.OutcomeAlreadyExists:
			report.AlreadyExists++
			syncedIDs = append(syncedIDs, r.ID)
		case models.OutcomeFailed:
			report.Failed++
			d.log.Warn("order rejected by server, kept pending",
				zap.String("order_id", r.ID), zap.String("detail", r.Error))
			if err := d.store.MarkOrderFailed(r.ID, r.Error); err != nil {
				return report, fmt.Errorf("record failure for %s: %w", r.ID, err)
			}
		}
	}

	if err := d.store.MarkOrdersSynced(syncedIDs); err != nil {
		return report, fmt.Errorf("mark orders synced: %w", err)
	}

	d.log.Info("dispatch cycle complete",
		zap.Int("attempted", report.Attempted),
		zap.Int("synced", report.Synced),
		zap.Int("already_exists", report.AlreadyExists),
		zap.Int("failed", report.Failed))
	return report, nil
}

// Run dispatches on a fixed cadence until the context is cancelled. Failed
// cycles are retried indefinitely: a lost order is unacceptable, so forward
// progress wins over giving up.
func (d *Dispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.RunCycle(ctx); err != nil {
				d.log.Warn("dispatch cycle failed", zap.Error(err))
			}
		}
	}
}
