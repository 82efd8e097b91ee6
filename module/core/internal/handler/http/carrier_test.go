package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nandanugg/carrier-geo/module/core/domain"
)

type mockTelemetryService struct {
	reportFn func(ctx context.Context, r *domain.TelemetryReport) error
	latestFn func(ctx context.Context, carrierID string) (*domain.CarrierPosition, error)
}

func (m *mockTelemetryService) Report(ctx context.Context, r *domain.TelemetryReport) error {
	return m.reportFn(ctx, r)
}

func (m *mockTelemetryService) Latest(ctx context.Context, carrierID string) (*domain.CarrierPosition, error) {
	return m.latestFn(ctx, carrierID)
}

func setupCarrierRouter(svc telemetryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewCarrierHandler(svc).Register(r.Group(""))
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestReportPosition_Accepted(t *testing.T) {
	var got *domain.TelemetryReport
	svc := &mockTelemetryService{
		reportFn: func(_ context.Context, r *domain.TelemetryReport) error {
			got = r
			return nil
		},
	}

	w := postJSON(setupCarrierRouter(svc), "/carriers/TN01AB1234/position",
		`{"lat":13.0827,"lng":80.2707,"speed":0,"heading":0,"timestamp":1715003456}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if got == nil {
		t.Fatal("expected Report to be called")
	}
	if got.CarrierID != "TN01AB1234" {
		t.Errorf("expected TN01AB1234, got %s", got.CarrierID)
	}
	if got.Lat != 13.0827 || got.Lng != 80.2707 {
		t.Errorf("unexpected coordinate %f,%f", got.Lat, got.Lng)
	}
	if !got.Timestamp.Equal(time.Unix(1715003456, 0)) {
		t.Errorf("unexpected timestamp %v", got.Timestamp)
	}
}

func TestReportPosition_NoTimestampLeavesZero(t *testing.T) {
	var got *domain.TelemetryReport
	svc := &mockTelemetryService{
		reportFn: func(_ context.Context, r *domain.TelemetryReport) error {
			got = r
			return nil
		},
	}

	w := postJSON(setupCarrierRouter(svc), "/carriers/c1/position", `{"lat":1,"lng":2,"speed":3,"heading":4}`)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if !got.Timestamp.IsZero() {
		t.Errorf("expected zero timestamp, got %v", got.Timestamp)
	}
}

func TestReportPosition_MissingField(t *testing.T) {
	svc := &mockTelemetryService{
		reportFn: func(_ context.Context, _ *domain.TelemetryReport) error {
			t.Fatal("Report should not be called")
			return nil
		},
	}

	w := postJSON(setupCarrierRouter(svc), "/carriers/c1/position", `{"lat":1,"lng":2,"speed":3}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportPosition_MalformedJSON(t *testing.T) {
	w := postJSON(setupCarrierRouter(&mockTelemetryService{}), "/carriers/c1/position", `{"lat":`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestReportPosition_ValidationError(t *testing.T) {
	svc := &mockTelemetryService{
		reportFn: func(_ context.Context, _ *domain.TelemetryReport) error {
			return &domain.ValidationError{Fields: []string{"lat"}}
		},
	}

	w := postJSON(setupCarrierRouter(svc), "/carriers/c1/position", `{"lat":91,"lng":2,"speed":3,"heading":4}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body struct {
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Fields) != 1 || body.Fields[0] != "lat" {
		t.Errorf("expected [lat], got %v", body.Fields)
	}
}

func TestReportPosition_ServiceError(t *testing.T) {
	svc := &mockTelemetryService{
		reportFn: func(_ context.Context, _ *domain.TelemetryReport) error {
			return errors.New("db down")
		},
	}

	w := postJSON(setupCarrierRouter(svc), "/carriers/c1/position", `{"lat":1,"lng":2,"speed":3,"heading":4}`)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGetPosition_Success(t *testing.T) {
	ts := time.Unix(1715003456, 0)
	svc := &mockTelemetryService{
		latestFn: func(_ context.Context, carrierID string) (*domain.CarrierPosition, error) {
			if carrierID != "c1" {
				t.Fatalf("unexpected carrierID: %s", carrierID)
			}
			return &domain.CarrierPosition{
				CarrierID: "c1",
				Location:  domain.Coordinate{Lat: 13.0827, Lng: 80.2707},
				Speed:     42,
				Heading:   90,
				UpdatedAt: ts,
			}, nil
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/carriers/c1/position", nil)
	setupCarrierRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp positionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Latitude != 13.0827 || resp.Speed != 42 || resp.Timestamp != 1715003456 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGetPosition_AwaitingData(t *testing.T) {
	svc := &mockTelemetryService{
		latestFn: func(_ context.Context, _ string) (*domain.CarrierPosition, error) {
			return nil, domain.ErrPositionNotFound
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/carriers/c9/position", nil)
	setupCarrierRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "awaiting_data" {
		t.Errorf("expected awaiting_data, got %q", body["status"])
	}
}

func TestGetPosition_StoreError(t *testing.T) {
	svc := &mockTelemetryService{
		latestFn: func(_ context.Context, _ string) (*domain.CarrierPosition, error) {
			return nil, errors.New("timeout")
		},
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/carriers/c1/position", nil)
	setupCarrierRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
