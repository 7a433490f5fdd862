package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"opent1d/internal/domain"
)

func TestSettingsHandler_GetEmpty(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodGet, "/api/v1/settings/librelinkup", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var got domain.Settings
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != (domain.Settings{}) {
		t.Fatalf("expected empty settings, got %+v", got)
	}
}

func TestSettingsHandler_PutThenGet(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.do(t, http.MethodPut, "/api/v1/settings/librelinkup", `{"username":"foo@bar.com","password":"secret"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/settings/librelinkup", "")
	var got domain.Settings
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := domain.Settings{
		LibreLinkUpUsername: "foo@bar.com",
		LibreLinkUpPassword: "secret",
		LibreLinkUpRegion:   "eu",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("settings mismatch (-want +got):\n%s", diff)
	}
}

func TestSettingsHandler_PutIdempotent(t *testing.T) {
	ts := newTestServer(t)
	body := `{"username":"foo@bar.com","password":"secret"}`
	for i := 0; i < 3; i++ {
		if rr := ts.do(t, http.MethodPut, "/api/v1/settings/librelinkup", body); rr.Code != http.StatusOK {
			t.Fatalf("save %d: %d", i, rr.Code)
		}
	}
	stored, err := ts.store.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LibreLinkUpUsername != "foo@bar.com" || stored.LibreLinkUpPassword != "secret" {
		t.Fatalf("unexpected stored settings %+v", stored)
	}
}

func TestSettingsHandler_PutErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"username":`, http.StatusBadRequest},
		{"unknown field", `{"username":"a","password":"b","region":"us"}`, http.StatusBadRequest},
		{"missing username", `{"username":"","password":"b"}`, http.StatusBadRequest},
		{"missing password", `{"username":"a","password":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rr := ts.do(t, http.MethodPut, "/api/v1/settings/librelinkup", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
			var resp apiError
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil || resp.Error == "" {
				t.Fatalf("expected json error body, got %v %+v", err, resp)
			}
		})
	}
}

func TestSettingsHandler_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rr := ts.do(t, http.MethodDelete, "/api/v1/settings/librelinkup", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "GET, PUT" {
		t.Fatalf("unexpected Allow header %q", allow)
	}
}

func TestMeasurementsHandler(t *testing.T) {
	ts := newTestServer(t)
	now := time.Now().UTC().Truncate(time.Second)
	if err := ts.store.SaveCGM(context.Background(),
		domain.NewCGMEntry(now.Add(-30*time.Hour), 4.0),
		domain.NewCGMEntry(now.Add(-2*time.Hour), 5.5),
		domain.NewCGMEntry(now.Add(-1*time.Hour), 10.0),
	); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := ts.do(t, http.MethodGet, "/api/v1/measurements", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Hours        int           `json:"hours"`
		Measurements []measurement `json:"measurements"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []measurement{
		{Timestamp: now.Add(-2 * time.Hour), Mmol: 5.5, Mgdl: 99},
		{Timestamp: now.Add(-1 * time.Hour), Mmol: 10.0, Mgdl: 180},
	}
	if resp.Hours != 24 {
		t.Fatalf("expected default of 24 hours, got %d", resp.Hours)
	}
	if diff := cmp.Diff(want, resp.Measurements); diff != "" {
		t.Fatalf("measurements mismatch (-want +got):\n%s", diff)
	}

	rr = ts.do(t, http.MethodGet, "/api/v1/measurements?hours=48", "")
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Measurements) != 3 {
		t.Fatalf("expected 3 readings in 48h, got %d", len(resp.Measurements))
	}
}

func TestMeasurementsHandler_InvalidHours(t *testing.T) {
	ts := newTestServer(t)
	for _, q := range []string{"0", "-1", "abc", "2161"} {
		rr := ts.do(t, http.MethodGet, "/api/v1/measurements?hours="+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("hours=%s: expected 400, got %d", q, rr.Code)
		}
	}
	if rr := ts.do(t, http.MethodPost, "/api/v1/measurements", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
