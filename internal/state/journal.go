/*

This file contains the action journal queries: inserting the outcome of each
orchestrated action, recording sync snapshots for position history, and the
read queries the web surface serves.

*/

package state

import (
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/borrowfi/borrowfi-go/internal/types"
)

// RecordAction persists the outcome of one orchestrated action. A nil DB is
// a no-op so the client runs fine without persistence configured.
func RecordAction(record types.ActionRecord) error {
	if DB == nil {
		return nil
	}

	query := `
		INSERT INTO action_records (action_id, kind, amount, success, error_class, error_message, tx_hashes, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	`
	_, err := DB.Exec(query,
		record.ActionID,
		string(record.Kind),
		record.Amount,
		record.Success,
		record.ErrorClass,
		record.ErrorMessage,
		pq.Array(record.TxHashes),
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action record: %w", err)
	}
	return nil
}

// RecordSyncSnapshot persists one row of position history per successful sync.
func RecordSyncSnapshot(snap types.Snapshot, derived types.DerivedMetrics) error {
	if DB == nil {
		return nil
	}

	query := `
		INSERT INTO sync_snapshots (collateral, loan, ltc_ratio, is_healthy, borrowable, pool_available_borrow, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := DB.Exec(query,
		snap.Position.Collateral.String(),
		snap.Position.Loan.String(),
		derived.LTCRatio.String(),
		derived.IsHealthy,
		derived.Borrowable.String(),
		snap.PoolLiquidity.AvailableBorrow.String(),
		snap.SyncedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync snapshot: %w", err)
	}
	return nil
}

// GetRecentActions returns the newest action records, most recent first.
func GetRecentActions(limit int) ([]types.ActionRecord, error) {
	if DB == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT record_id, action_id, kind, amount, success,
		       COALESCE(error_class, ''), COALESCE(error_message, ''), tx_hashes, created_at
		FROM action_records
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := DB.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query action records: %w", err)
	}
	defer rows.Close()

	var records []types.ActionRecord
	for rows.Next() {
		var record types.ActionRecord
		var kind string
		var hashes pq.StringArray
		err := rows.Scan(
			&record.RecordID,
			&record.ActionID,
			&kind,
			&record.Amount,
			&record.Success,
			&record.ErrorClass,
			&record.ErrorMessage,
			&hashes,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action record: %w", err)
		}
		record.Kind = types.ActionKind(kind)
		record.TxHashes = hashes
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating action records: %w", err)
	}
	return records, nil
}

// GetSyncHistory returns position history rows within the window, oldest
// first, for charting.
func GetSyncHistory(since time.Time) ([]types.SyncHistoryPoint, error) {
	if DB == nil {
		return nil, nil
	}

	query := `
		SELECT collateral, loan, ltc_ratio, is_healthy, synced_at
		FROM sync_snapshots
		WHERE synced_at >= $1
		ORDER BY synced_at ASC
	`
	rows, err := DB.Query(query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync history: %w", err)
	}
	defer rows.Close()

	var points []types.SyncHistoryPoint
	for rows.Next() {
		var point types.SyncHistoryPoint
		err := rows.Scan(&point.Collateral, &point.Loan, &point.LTCRatio, &point.IsHealthy, &point.SyncedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync history row: %w", err)
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating sync history: %w", err)
	}
	return points, nil
}
