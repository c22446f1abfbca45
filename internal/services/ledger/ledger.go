// Package ledger implements the Progress Ledger (C2): a per-job snapshot
// plus append-only history log, both persisted through the blob store.
// Grounded on the teacher's internal/jobs/state/progress.go (snapshot +
// append log, record/read, total order within a job).
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
	"github.com/antigravity-dev/ragforge/internal/models"
)

// Ledger is a blob-store-backed interfaces.ProgressLedger.
type Ledger struct {
	store  interfaces.BlobStore
	logger arbor.ILogger

	mu   sync.Mutex // serialises sequence-number assignment per process
	seqs map[string]int
}

// New creates a Ledger over store.
func New(store interfaces.BlobStore, logger arbor.ILogger) *Ledger {
	return &Ledger{store: store, logger: logger, seqs: make(map[string]int)}
}

func snapshotKey(jobID string) string { return fmt.Sprintf("%s/progress/latest.json", jobID) }
func historyKey(jobID string) string  { return fmt.Sprintf("%s/progress/history.jsonl", jobID) }

// Record appends event to the job's history log and replaces its snapshot.
// The sequence number is assigned here, overwriting event.Sequence; within
// a process this keeps sequence numbers strictly increasing even if the
// caller races (the orchestrator's single-owner discipline means this
// should never actually contend, but the mutex is cheap insurance).
func (l *Ledger) Record(ctx context.Context, jobID string, event models.ProgressEvent) error {
	l.mu.Lock()
	l.seqs[jobID]++
	event.Sequence = l.seqs[jobID]
	l.mu.Unlock()

	event.JobID = jobID
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}

	existing, _, err := l.store.Get(ctx, historyKey(jobID))
	if err != nil {
		existing = nil // first event for this job
	}
	var buf bytes.Buffer
	buf.Write(existing)
	buf.Write(line)
	buf.WriteByte('\n')

	if _, err := l.store.Put(ctx, historyKey(jobID), &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("write history: %w", err)
	}

	snapshot := models.ProgressSnapshot{
		JobID:       jobID,
		Sequence:    event.Sequence,
		Status:      event.Status,
		Phase:       event.Phase,
		Progress:    event.Progress,
		LastUpdated: event.Timestamp,
	}
	snapBytes, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := l.store.Put(ctx, snapshotKey(jobID), bytes.NewReader(snapBytes), "application/json"); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	l.logger.Debug().Str("job_id", jobID).Int("sequence", event.Sequence).Str("phase", event.Phase).Msg("progress event recorded")
	return nil
}

// Read returns the latest snapshot and, if includeHistory is true, the full
// ordered event history.
func (l *Ledger) Read(ctx context.Context, jobID string, includeHistory bool) (*models.ProgressSnapshot, []models.ProgressEvent, error) {
	data, _, err := l.store.Get(ctx, snapshotKey(jobID))
	if err != nil {
		return nil, nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snapshot models.ProgressSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	if !includeHistory {
		return &snapshot, nil, nil
	}

	histData, _, err := l.store.Get(ctx, historyKey(jobID))
	if err != nil {
		return &snapshot, nil, fmt.Errorf("read history: %w", err)
	}

	var events []models.ProgressEvent
	for _, line := range strings.Split(strings.TrimRight(string(histData), "\n"), "\n") {
		if line == "" {
			continue
		}
		var event models.ProgressEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			l.logger.Warn().Err(err).Str("job_id", jobID).Msg("skipping malformed history line")
			continue
		}
		events = append(events, event)
	}

	return &snapshot, events, nil
}

// GC deletes the progress snapshot and history for every job whose snapshot
// is terminal (completed or failed) and older than olderThan. It returns the
// job IDs it swept. Errors reading or deleting an individual job's records
// are logged and skipped rather than aborting the sweep.
func (l *Ledger) GC(ctx context.Context, olderThan time.Duration) ([]string, error) {
	infos, err := l.store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list blob store for gc: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	var swept []string

	for _, info := range infos {
		const suffix = "/progress/latest.json"
		if !strings.HasSuffix(info.Key, suffix) {
			continue
		}
		jobID := strings.TrimSuffix(info.Key, suffix)

		snapshot, _, err := l.Read(ctx, jobID, false)
		if err != nil {
			l.logger.Warn().Err(err).Str("job_id", jobID).Msg("gc: failed to read snapshot, skipping")
			continue
		}
		if snapshot.Status != models.JobStatusCompleted && snapshot.Status != models.JobStatusFailed {
			continue
		}
		if snapshot.LastUpdated.After(cutoff) {
			continue
		}

		if err := l.store.Delete(ctx, historyKey(jobID)); err != nil {
			l.logger.Warn().Err(err).Str("job_id", jobID).Msg("gc: failed to delete history")
			continue
		}
		if err := l.store.Delete(ctx, snapshotKey(jobID)); err != nil {
			l.logger.Warn().Err(err).Str("job_id", jobID).Msg("gc: failed to delete snapshot")
			continue
		}

		swept = append(swept, jobID)
	}

	if len(swept) > 0 {
		l.logger.Info().Int("count", len(swept)).Msg("ledger gc swept terminal jobs")
	}

	return swept, nil
}
