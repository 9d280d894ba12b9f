package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"searchtrack/internal"
	"searchtrack/internal/storage"
)

// Observer is told about pipeline progress. Implementations must not fail
// the run; errors are theirs to swallow.
type Observer interface {
	BatchStarted(total int)
	RecordSkipped(id string)
	BatchFinished(summary internal.ProcessingSummary, elapsed time.Duration)
	SingleFinished(result internal.SingleInsertResult, elapsed time.Duration)
}

type NopObserver struct{}

func (NopObserver) BatchStarted(int)                                          {}
func (NopObserver) RecordSkipped(string)                                      {}
func (NopObserver) BatchFinished(internal.ProcessingSummary, time.Duration)   {}
func (NopObserver) SingleFinished(internal.SingleInsertResult, time.Duration) {}

// Observers fans every event out to each member in order.
type Observers []Observer

func (o Observers) BatchStarted(total int) {
	for _, obs := range o {
		obs.BatchStarted(total)
	}
}

func (o Observers) RecordSkipped(id string) {
	for _, obs := range o {
		obs.RecordSkipped(id)
	}
}

func (o Observers) BatchFinished(summary internal.ProcessingSummary, elapsed time.Duration) {
	for _, obs := range o {
		obs.BatchFinished(summary, elapsed)
	}
}

func (o Observers) SingleFinished(result internal.SingleInsertResult, elapsed time.Duration) {
	for _, obs := range o {
		obs.SingleFinished(result, elapsed)
	}
}

type LogObserver struct {
	Log zerolog.Logger
}

func (l LogObserver) BatchStarted(total int) {
	l.Log.Info().Int("records", total).Msg("batch ingest started")
}

func (l LogObserver) RecordSkipped(id string) {
	l.Log.Debug().Str("record_id", id).Msg("skipping duplicate record")
}

func (l LogObserver) BatchFinished(summary internal.ProcessingSummary, elapsed time.Duration) {
	l.Log.Info().
		Int("processed", summary.RecordsProcessed).
		Int("skipped", summary.RecordsSkipped).
		Int("total", summary.TotalRecords).
		Dur("elapsed", elapsed).
		Msg("batch ingest done")
}

func (l LogObserver) SingleFinished(result internal.SingleInsertResult, elapsed time.Duration) {
	l.Log.Info().Str("record_id", result.RecordID).Str("action", result.Action).Dur("elapsed", elapsed).Msg("single record done")
}

// RunRecorder writes one audit row per finished run into the sqlite run log.
type RunRecorder struct {
	DB  *storage.DB
	Log zerolog.Logger
}

func (r RunRecorder) BatchStarted(int)     {}
func (r RunRecorder) RecordSkipped(string) {}

func (r RunRecorder) BatchFinished(summary internal.ProcessingSummary, elapsed time.Duration) {
	r.insert("batch", elapsed, map[string]int{
		"processed": summary.RecordsProcessed,
		"skipped":   summary.RecordsSkipped,
		"total":     summary.TotalRecords,
	})
}

func (r RunRecorder) SingleFinished(result internal.SingleInsertResult, elapsed time.Duration) {
	counts := map[string]int{"processed": 0, "skipped": 0, "total": 1}
	if result.Action == internal.ActionInserted {
		counts["processed"] = 1
	} else {
		counts["skipped"] = 1
	}
	r.insert("single", elapsed, counts)
}

func (r RunRecorder) insert(kind string, elapsed time.Duration, counts map[string]int) {
	if r.DB == nil {
		return
	}
	timings := map[string]float64{"totalMs": float64(elapsed.Milliseconds())}
	if err := r.DB.InsertRun(traceID(), kind, timings, counts); err != nil {
		r.Log.Warn().Err(err).Str("kind", kind).Msg("failed to record run")
	}
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
