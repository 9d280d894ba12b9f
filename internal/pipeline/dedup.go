package pipeline

import (
	"strings"

	"github.com/google/uuid"

	"searchtrack/internal"
)

type Partition struct {
	New          []internal.RawSearchRecord
	SkippedIDs   []string
	SkippedCount int
}

// ExistingIDs collects the ID column of a stored table. Row 0 is the header
// and is used to locate the column; data rows with an empty id are ignored.
func ExistingIDs(rows [][]string) map[string]struct{} {
	ids := map[string]struct{}{}
	if len(rows) == 0 {
		return ids
	}
	col := idColumn(rows[0])
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[col])
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

func idColumn(header []string) int {
	for i, name := range header {
		if strings.TrimSpace(name) == internal.Header[internal.ColID] {
			return i
		}
	}
	return internal.ColID
}

// PartitionCandidates splits candidates into new records and duplicates of
// already stored ids. The existing set is not updated while scanning, so
// repeated ids inside one batch are all kept. Survivors keep input order.
func PartitionCandidates(existing map[string]struct{}, candidates []internal.RawSearchRecord) Partition {
	out := Partition{New: make([]internal.RawSearchRecord, 0, len(candidates))}
	for _, rec := range candidates {
		id := candidateID(rec)
		if _, dup := existing[id]; dup {
			out.SkippedIDs = append(out.SkippedIDs, id)
			out.SkippedCount++
			continue
		}
		out.New = append(out.New, rec)
	}
	return out
}

// candidateID is the record id, or a fresh placeholder that cannot match a
// stored id when the record has none.
func candidateID(rec internal.RawSearchRecord) string {
	if rec.ID.Valid {
		return strings.TrimSpace(rec.ID.Value)
	}
	return "sin-id-" + uuid.NewString()
}
