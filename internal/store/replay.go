package store

import (
	"context"
	"fmt"
)

// ReadFactBatches returns every fact batch with seq greater than afterSeq,
// in seq order. Pass 0 to read the whole log.
func (s *Store) ReadFactBatches(ctx context.Context, afterSeq int64) ([]FactBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, recorded_at, records
		FROM fact_batches
		WHERE seq > ?
		ORDER BY seq ASC
	`, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("query fact batches: %w", err)
	}
	defer rows.Close()

	var batches []FactBatch
	for rows.Next() {
		var (
			b    FactBatch
			data string
		)
		if err := rows.Scan(&b.Seq, &b.RecordedAt, &data); err != nil {
			return nil, fmt.Errorf("scan fact batch: %w", err)
		}
		if b.Records, err = unmarshalRecords(data); err != nil {
			return nil, fmt.Errorf("fact batch %d: %w", b.Seq, err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fact batches: %w", err)
	}
	return batches, nil
}

// History summarises a recorded session for replay comparison.
type History struct {
	Batches     []FactBatch
	Runs        []TaskRun
	LastSeq     int64
	Completed   int
	Interrupted int
}

// LoadHistory reads the whole fact log and every task run.
func (s *Store) LoadHistory(ctx context.Context) (History, error) {
	var h History

	batches, err := s.ReadFactBatches(ctx, 0)
	if err != nil {
		return h, fmt.Errorf("load history: %w", err)
	}
	h.Batches = batches
	if n := len(batches); n > 0 {
		h.LastSeq = batches[n-1].Seq
	}

	runs, err := s.ReadTaskRuns(ctx, "")
	if err != nil {
		return h, fmt.Errorf("load history: %w", err)
	}
	h.Runs = runs
	for _, r := range runs {
		switch r.Outcome {
		case "completed":
			h.Completed++
		case "interrupted":
			h.Interrupted++
		}
	}
	return h, nil
}
