package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"searchtrack/internal"
)

const (
	MessageBatchInserted  = "Datos insertados correctamente"
	MessageSingleInserted = "Registro individual insertado"
)

// Response is the body returned to the webhook caller for every request.
type Response struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	RecordsProcessed *int   `json:"records_processed,omitempty"`
	RecordsSkipped   *int   `json:"records_skipped,omitempty"`
	TotalRecords     *int   `json:"total_records,omitempty"`
	RecordID         string `json:"record_id,omitempty"`
	Action           string `json:"action,omitempty"`
	Timestamp        string `json:"timestamp"`
}

// Request is a decoded webhook body: either a batch or a single record.
type Request struct {
	Batch  []internal.RawSearchRecord
	Single *internal.RawSearchRecord
}

func (r Request) IsBatch() bool { return r.Single == nil }

// DecodeRequest routes an insert_search_tracking envelope to the batch path
// and anything else to the single-record path, whose record is the whole body.
func DecodeRequest(body []byte) (Request, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Request{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedInput)
	}

	var env internal.BatchRequest
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	if env.Action == internal.ActionInsertSearchTracking {
		if kind := jsonKind(env.Data); kind != "array" {
			return Request{}, &BatchShapeError{Received: kind}
		}
		var batch []internal.RawSearchRecord
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
		}
		if batch == nil {
			batch = []internal.RawSearchRecord{}
		}
		return Request{Batch: batch}, nil
	}

	var rec internal.RawSearchRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return Request{Single: &rec}, nil
}

func jsonKind(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "missing"
	}
	switch raw[0] {
	case '[':
		return "array"
	case '{':
		return "object"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// Handle decodes body, runs it through the pipeline and always produces a
// Response. The returned error is the failure cause, if any, for the caller
// to map onto its transport status.
func (p *Pipeline) Handle(ctx context.Context, body []byte, now time.Time) (Response, error) {
	ts := now.UTC().Format(time.RFC3339Nano)

	req, err := DecodeRequest(body)
	if err != nil {
		return Failure(err, now), err
	}

	if req.IsBatch() {
		summary, err := p.Ingest(ctx, req.Batch)
		if err != nil {
			return Failure(err, now), err
		}
		return Response{
			Success:          true,
			Message:          MessageBatchInserted,
			RecordsProcessed: &summary.RecordsProcessed,
			RecordsSkipped:   &summary.RecordsSkipped,
			TotalRecords:     &summary.TotalRecords,
			Timestamp:        ts,
		}, nil
	}

	result, err := p.InsertSingle(ctx, *req.Single)
	if err != nil {
		return Failure(err, now), err
	}
	return Response{
		Success:   true,
		Message:   MessageSingleInserted,
		RecordID:  result.RecordID,
		Action:    result.Action,
		Timestamp: ts,
	}, nil
}

func Failure(err error, now time.Time) Response {
	return Response{
		Success:   false,
		Message:   "Error processing data: " + err.Error(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}

// IsClientError reports whether err was caused by the request body rather
// than by the store.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedInput) || errors.Is(err, ErrInvalidBatchShape)
}
