package pipeline

import (
	"context"
	"strings"
	"time"

	"searchtrack/internal"
	"searchtrack/internal/storage"
)

var storedTimestampZone = time.FixedZone("GMT-5", -5*60*60)

type PruneResult struct {
	Kept    int
	Removed int
}

// Prune drops data rows whose search timestamp is older than daysToKeep days
// before now. Rows without a readable timestamp are dropped as well. The
// header is always kept.
func Prune(ctx context.Context, store storage.Rewriter, daysToKeep int, now time.Time) (PruneResult, error) {
	rows, err := store.ReadAll(ctx)
	if err != nil {
		return PruneResult{}, storeErr("read", err)
	}
	if len(rows) <= 1 {
		return PruneResult{}, nil
	}

	cutoff := now.AddDate(0, 0, -daysToKeep)
	kept := [][]string{rows[0]}
	for _, row := range rows[1:] {
		if len(row) <= internal.ColSearchTimestamp {
			continue
		}
		ts, ok := parseStoredTimestamp(row[internal.ColSearchTimestamp])
		if ok && !ts.Before(cutoff) {
			kept = append(kept, row)
		}
	}

	result := PruneResult{Kept: len(kept) - 1, Removed: len(rows) - len(kept)}
	if result.Removed == 0 {
		return result, nil
	}
	if err := store.Rewrite(ctx, kept); err != nil {
		return PruneResult{}, storeErr("rewrite", err)
	}
	return result, nil
}

func parseStoredTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{"02/01/2006 15:04:05", "02/01/2006"} {
		if t, err := time.ParseInLocation(layout, value, storedTimestampZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
