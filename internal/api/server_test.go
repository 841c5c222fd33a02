package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/lampd/internal/store"
	"github.com/danmuck/lampd/internal/testutil/testlog"
)

type fakeStatus struct {
	status bool
}

func (f *fakeStatus) Status() bool { return f.status }

type fakeHistory struct {
	records []store.Record
}

func (f *fakeHistory) Len() int { return len(f.records) }

func (f *fakeHistory) Page(offset, limit int) []store.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(f.records) || limit <= 0 {
		return []store.Record{}
	}
	end := offset + limit
	if end > len(f.records) {
		end = len(f.records)
	}
	return f.records[offset:end]
}

type fakeBanner struct {
	message   string
	active    bool
	dismissed int
}

func (f *fakeBanner) Current() (string, bool) { return f.message, f.active }
func (f *fakeBanner) Dismiss()                { f.dismissed++; f.active = false; f.message = "" }

func newTestServer(t *testing.T) (*Server, *fakeStatus, *fakeHistory, *fakeBanner) {
	t.Helper()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	status := &fakeStatus{status: true}
	history := &fakeHistory{records: []store.Record{
		{ID: 3, Status: true, Time: base.Add(2 * time.Hour)},
		{ID: 2, Status: false, Time: base.Add(time.Hour)},
		{ID: 1, Status: true, Time: base},
	}}
	banner := &fakeBanner{}
	srv := New(Config{ListenAddr: ":0"}, status, history, banner, testlog.Logger(t))
	return srv, status, history, banner
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealthRoute(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["service"] != "lampd" || body["status"] != "ok" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStatusRoute(t *testing.T) {
	srv, status, _, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/lamp/status")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body struct {
		Status bool `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Status {
		t.Fatalf("expected status true")
	}

	status.status = false
	w = do(t, srv, http.MethodGet, "/lamp/status")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status {
		t.Fatalf("expected status false")
	}
}

func TestHistoryRoutePaging(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/lamp/history?offset=1&limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	var body struct {
		Total   int            `json:"total"`
		Records []store.Record `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 {
		t.Fatalf("unexpected total: %d", body.Total)
	}
	if len(body.Records) != 1 || body.Records[0].ID != 2 {
		t.Fatalf("unexpected page: %+v", body.Records)
	}
}

func TestHistoryRouteDefaultsOnBadParams(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/lamp/history?offset=bogus&limit=-4")
	var body struct {
		Total   int            `json:"total"`
		Records []store.Record `json:"records"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Records) != 3 {
		t.Fatalf("bad params should fall back to first page, got %d records", len(body.Records))
	}
}

func TestNotificationRoutes(t *testing.T) {
	srv, _, _, banner := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/lamp/notification")
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != nil {
		t.Fatalf("expected null message, got %v", body["message"])
	}

	banner.message = "Unable to process request"
	banner.active = true
	w = do(t, srv, http.MethodGet, "/lamp/notification")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Unable to process request" {
		t.Fatalf("unexpected message: %v", body["message"])
	}

	w = do(t, srv, http.MethodPost, "/lamp/notification/dismiss")
	if w.Code != http.StatusNoContent {
		t.Fatalf("unexpected dismiss status: %d", w.Code)
	}
	if banner.dismissed != 1 {
		t.Fatalf("expected dismiss forwarded once, got %d", banner.dismissed)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv, _, _, _ := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Fatalf("expected metrics exposition output")
	}
}
