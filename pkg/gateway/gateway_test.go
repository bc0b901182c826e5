package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/phaiel/weaveclassify/internal/metrics"
	"github.com/phaiel/weaveclassify/pkg/vectorindex"
	"github.com/phaiel/weaveclassify/pkg/weave"
)

type stubClassifier struct {
	resp     weave.Response
	err      error
	snapshot *vectorindex.Snapshot
}

func (s *stubClassifier) Classify(ctx context.Context, req weave.Request) (weave.Response, error) {
	return s.resp, s.err
}

func (s *stubClassifier) Snapshot() *vectorindex.Snapshot {
	return s.snapshot
}

type stubReloader struct {
	err error
}

func (s *stubReloader) Reload(ctx context.Context) error {
	return s.err
}

func TestHandleHealth(t *testing.T) {
	gw := New(&stubClassifier{}, &stubReloader{}, nil, nil, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleClassifySuccess(t *testing.T) {
	match := weave.PatternMatch{PatternID: "sleep/nap", Confidence: 0.9}
	gw := New(&stubClassifier{resp: weave.Response{
		RequestID: "req-1",
		Match:     &match,
		Status:    weave.StatusSuccess,
	}}, &stubReloader{}, nil, nil, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	body := bytes.NewBufferString(`{"weaveUnit":{"id":"u1","text":"child naps"}}`)
	resp, err := http.Post(srv.URL+"/classify", "application/json", body)
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var dto classifyResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dto.Match == nil || dto.Match.PatternID != "sleep/nap" {
		t.Fatalf("expected match sleep/nap, got %+v", dto.Match)
	}
}

func TestHandleClassifyMalformedBody(t *testing.T) {
	gw := New(&stubClassifier{}, &stubReloader{}, nil, nil, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewBufferString("not json"))
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleClassifyIndexEmptyMapsTo503(t *testing.T) {
	gw := New(&stubClassifier{resp: weave.Response{Status: weave.StatusError, ErrorMessage: weave.ErrorCodeIndexEmpty}}, &stubReloader{}, nil, nil, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewBufferString(`{"weaveUnit":{"text":"x"}}`))
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}

	var dto classifyResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dto.Status != string(weave.StatusError) || dto.ErrorMessage != weave.ErrorCodeIndexEmpty {
		t.Fatalf("expected status=error errorMessage=%s, got %+v", weave.ErrorCodeIndexEmpty, dto)
	}
}

func TestHandleClassifyInvalidRangeMapsTo400(t *testing.T) {
	gw := New(&stubClassifier{resp: weave.Response{Status: weave.StatusSuccess}}, &stubReloader{}, nil, nil, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewBufferString(`{"weaveUnit":{"text":"x"},"maxAlternatives":50}`))
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	var dto classifyResponseDTO
	if err := json.NewDecoder(resp.Body).Decode(&dto); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dto.Status != string(weave.StatusError) || dto.ErrorMessage != weave.ErrorCodeInputInvalid {
		t.Fatalf("expected status=error errorMessage=%s, got %+v", weave.ErrorCodeInputInvalid, dto)
	}
}

func TestHandleClassifyRecordsMetrics(t *testing.T) {
	reg := metrics.NewRegistry()
	gw := New(&stubClassifier{resp: weave.Response{Status: weave.StatusSuccess}}, &stubReloader{}, nil, reg, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewBufferString(`{"weaveUnit":{"text":"x"}}`))
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()

	if got := testutil.ToFloat64(reg.Requests.WithLabelValues(string(weave.StatusSuccess))); got != 1 {
		t.Fatalf("requests_total{status=success} = %v, want 1", got)
	}
}

func TestHandleClassifyBackpressure(t *testing.T) {
	gw := New(&stubClassifier{}, &stubReloader{}, nil, nil, time.Second, 0)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/classify", "application/json", bytes.NewBufferString(`{"weaveUnit":{"text":"x"}}`))
	if err != nil {
		t.Fatalf("POST /classify error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503 when inflight capacity is zero", resp.StatusCode)
	}
}

func TestHandleReload(t *testing.T) {
	reg := metrics.NewRegistry()
	gw := New(&stubClassifier{}, &stubReloader{}, nil, reg, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reload-patterns", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /reload-patterns error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := testutil.ToFloat64(reg.ReloadTotal.WithLabelValues("success")); got != 1 {
		t.Fatalf("reload_total{outcome=success} = %v, want 1", got)
	}
}

func TestHandleReloadFailureMapsToUnprocessable(t *testing.T) {
	reg := metrics.NewRegistry()
	gw := New(&stubClassifier{}, &stubReloader{err: weave.Wrap(weave.KindLoadFailure, "reload", weave.ErrDuplicateID)}, nil, reg, time.Second, 4)
	srv := httptest.NewServer(gw.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/reload-patterns", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /reload-patterns error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	if got := testutil.ToFloat64(reg.ReloadTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("reload_total{outcome=failure} = %v, want 1", got)
	}
}
