package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"searchtrack/internal"
	"searchtrack/internal/config"
	"searchtrack/internal/pipeline"
	"searchtrack/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		StoreBackend:    config.BackendSQLite,
		SheetName:       "SearchTracking",
		SheetID:         "sheet-1",
		HTTPAddr:        ":0",
		MaxBodyBytes:    1 << 20,
		AnonEmailDomain: "example.com",
		DisplayZone:     "America/Lima",
		LockStore:       true,
	}
}

func newTestService(t *testing.T, store storage.TableStore) *Service {
	t.Helper()
	cfg := testConfig()
	svc := NewService(cfg, pipeline.New(store, cfg), zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, pipeline.Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

const batchBody = `{
  "action": "insert_search_tracking",
  "data": [
    {"id": "test-123", "check_in_date": "2025-01-15", "check_out_date": "2025-01-17", "guests": 2},
    {"id": 77, "search_timestamp": "2025-01-15T14:30:00Z"}
  ]
}`

func TestPostBatchThenReplay(t *testing.T) {
	h := newTestService(t, openDB(t)).Router()

	rec, resp := post(t, h, batchBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, pipeline.MessageBatchInserted, resp.Message)
	require.NotNil(t, resp.RecordsProcessed)
	assert.Equal(t, 2, *resp.RecordsProcessed)
	assert.Equal(t, 0, *resp.RecordsSkipped)
	assert.Equal(t, "2025-01-15T12:00:00Z", resp.Timestamp)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	_, resp = post(t, h, batchBody)
	assert.Equal(t, 0, *resp.RecordsProcessed)
	assert.Equal(t, 2, *resp.RecordsSkipped)
}

func TestPostSingleRecord(t *testing.T) {
	h := newTestService(t, openDB(t)).Router()

	_, resp := post(t, h, `{"id": "solo-1", "guests": "3"}`)
	assert.True(t, resp.Success)
	assert.Equal(t, pipeline.MessageSingleInserted, resp.Message)
	assert.Equal(t, "solo-1", resp.RecordID)
	assert.Equal(t, internal.ActionInserted, resp.Action)
	assert.Nil(t, resp.RecordsProcessed)

	_, resp = post(t, h, `{"id": "solo-1"}`)
	assert.Equal(t, internal.ActionSkippedDuplicate, resp.Action)
}

func TestPostRejectsBadPayloads(t *testing.T) {
	h := newTestService(t, openDB(t)).Router()

	rec, resp := post(t, h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.True(t, strings.HasPrefix(resp.Message, "Error processing data: "))

	rec, resp = post(t, h, `{"action":"insert_search_tracking","data":{"id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, resp.Message, "received object")
	assert.NotEmpty(t, resp.Timestamp)
}

type brokenStore struct{ storage.TableStore }

func (brokenStore) RowCount(context.Context) (int, error) {
	return 0, errors.New("spreadsheet unavailable")
}

func TestPostStoreFailureIsServerError(t *testing.T) {
	h := newTestService(t, brokenStore{}).Router()

	rec, resp := post(t, h, batchBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "spreadsheet unavailable")
}

type panickingStore struct{ storage.TableStore }

func (panickingStore) RowCount(context.Context) (int, error) { panic("boom") }

func TestPanicBecomesFailureBody(t *testing.T) {
	h := newTestService(t, panickingStore{}).Router()

	rec, resp := post(t, h, batchBody)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "boom")
}

func TestHealthProbe(t *testing.T) {
	h := newTestService(t, openDB(t)).Router()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-Id"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "SearchTracking", body["sheet_name"])
	assert.Equal(t, "sheet-1", body["sheet_id"])
}
