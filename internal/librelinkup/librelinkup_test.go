package librelinkup

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestToTime(t *testing.T) {
	tests := []struct {
		ts       string
		expected time.Time
	}{
		{ts: "6/20/2023 10:01:57 PM", expected: time.Date(2023, time.June, 20, 22, 1, 57, 0, time.UTC)},
		{ts: "12/20/2023 10:01:57 PM", expected: time.Date(2023, time.December, 20, 22, 1, 57, 0, time.UTC)},
		{ts: "12/20/2023 10:01:57 AM", expected: time.Date(2023, time.December, 20, 10, 1, 57, 0, time.UTC)},
		{ts: "8/2/2023 6:51:00 AM", expected: time.Date(2023, time.August, 2, 6, 51, 0, 0, time.UTC)},
		{ts: "10/9/2023 11:00:00 PM", expected: time.Date(2023, time.October, 9, 23, 0, 0, 0, time.UTC)},
		{ts: "1/1/2024 12:00:00 AM", expected: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range tests {
		got, err := ToTime(tc.ts)
		if err != nil {
			t.Fatalf("ToTime(%q): %v", tc.ts, err)
		}
		if !got.Equal(tc.expected) {
			t.Errorf("ToTime(%q) = %v, want %v", tc.ts, got, tc.expected)
		}
	}
}

func TestEndpointByRegion(t *testing.T) {
	e, ok := EndpointByRegion("us")
	if !ok || e.Hostname != "api-us.libreview.io" {
		t.Fatalf("unexpected endpoint %+v ok=%v", e, ok)
	}
	if _, ok := EndpointByRegion("xx"); ok {
		t.Fatalf("expected unknown region")
	}
	if EndpointDefault.Region != DefaultRegion {
		t.Fatalf("default endpoint region %q != %q", EndpointDefault.Region, DefaultRegion)
	}
	if got := EndpointEU.GraphURL("p1"); got != "https://api-eu.libreview.io/llu/connections/p1/graph" {
		t.Fatalf("graph url: %s", got)
	}
}

func writeGzipJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Set("Content-Type", "application/json")
	zw := gzip.NewWriter(w)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		t.Errorf("encode: %v", err)
	}
	_ = zw.Close()
}

type fakeLibre struct {
	t        *testing.T
	status   int
	redirect string
	lastAuth string
}

func (f *fakeLibre) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /llu/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Product") != apiProduct || r.Header.Get("Version") != apiVersion {
			f.t.Errorf("missing LibreLinkUp headers: %v", r.Header)
		}
		var creds struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		resp := map[string]any{"status": f.status}
		data := map[string]any{"authTicket": map[string]any{"token": "t1", "expires": 1, "duration": 2}}
		if f.redirect != "" {
			data = map[string]any{"redirect": true, "region": f.redirect}
		}
		resp["data"] = data
		if f.status != 0 {
			resp["error"] = map[string]any{"message": "bad"}
		}
		writeGzipJSON(f.t, w, resp)
	})
	mux.HandleFunc("GET /llu/connections/", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		writeGzipJSON(f.t, w, map[string]any{
			"status": 0,
			"data":   []map[string]any{{"id": "c1", "patientId": "p1"}},
			"ticket": map[string]any{"token": "t2"},
		})
	})
	mux.HandleFunc("GET /llu/connections/p1/graph", func(w http.ResponseWriter, r *http.Request) {
		f.lastAuth = r.Header.Get("Authorization")
		writeGzipJSON(f.t, w, map[string]any{
			"status": 0,
			"data": map[string]any{
				"connection": map[string]any{"patientId": "p1"},
				"graphData": []map[string]any{
					{"FactoryTimestamp": "6/20/2023 10:01:57 PM", "Value": 5.5, "ValueInMgPerDl": 99},
				},
			},
			"ticket": map[string]any{"token": "t3"},
		})
	})
	return mux
}

func TestClient_LoginConnectionsGraph(t *testing.T) {
	f := &fakeLibre{t: t}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	ctx := context.Background()

	ticket, err := c.Login(ctx, "a@b.c", "pw", EndpointEU)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if ticket.Token != "t1" || ticket.Endpoint() != EndpointEU {
		t.Fatalf("unexpected ticket %+v", ticket)
	}

	conns, err := ticket.Connections(ctx)
	if err != nil {
		t.Fatalf("connections: %v", err)
	}
	if len(conns) != 1 || conns[0].PatientID != "p1" {
		t.Fatalf("unexpected connections %+v", conns)
	}
	if f.lastAuth != "Bearer t1" {
		t.Fatalf("expected bearer t1, got %q", f.lastAuth)
	}
	if ticket.Token != "t2" {
		t.Fatalf("token not refreshed: %q", ticket.Token)
	}

	_, graph, err := ticket.Graph(ctx, "p1")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if len(graph) != 1 || graph[0].Value != 5.5 {
		t.Fatalf("unexpected graph %+v", graph)
	}
	if f.lastAuth != "Bearer t2" || ticket.Token != "t3" {
		t.Fatalf("auth=%q token=%q", f.lastAuth, ticket.Token)
	}
}

func TestClient_LoginFailed(t *testing.T) {
	f := &fakeLibre{t: t, status: statusBadCredentials}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.Login(context.Background(), "a", "b", EndpointEU); !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
	if _, err := c.FindEndpoint(context.Background(), "a", "b"); !errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected ErrLoginFailed, got %v", err)
	}
}

func TestClient_OtherStatus(t *testing.T) {
	f := &fakeLibre{t: t, status: 4}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Login(context.Background(), "a", "b", EndpointEU)
	if err == nil || errors.Is(err, ErrLoginFailed) {
		t.Fatalf("expected generic login error, got %v", err)
	}
}

func TestClient_RegionRedirect(t *testing.T) {
	f := &fakeLibre{t: t, redirect: "us"}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.Login(context.Background(), "a", "b", EndpointEU); !errors.Is(err, ErrWrongRegionEndpoint) {
		t.Fatalf("expected ErrWrongRegionEndpoint, got %v", err)
	}
	e, err := c.FindEndpoint(context.Background(), "a", "b")
	if err != nil {
		t.Fatalf("find endpoint: %v", err)
	}
	if e != EndpointUS {
		t.Fatalf("expected US endpoint, got %+v", e)
	}

	f.redirect = "zz"
	if _, err := c.FindEndpoint(context.Background(), "a", "b"); err == nil {
		t.Fatalf("expected unknown region error")
	}
}

func TestClient_FindEndpointNoRedirect(t *testing.T) {
	f := &fakeLibre{t: t}
	srv := httptest.NewServer(f.handler())
	defer srv.Close()

	e, err := NewClient(WithBaseURL(srv.URL)).FindEndpoint(context.Background(), "a", "b")
	if err != nil || e != EndpointDefault {
		t.Fatalf("got %+v, %v", e, err)
	}
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(WithBaseURL(srv.URL)).Login(context.Background(), "a", "b", EndpointEU); err == nil {
		t.Fatalf("expected error on 502")
	}
}
