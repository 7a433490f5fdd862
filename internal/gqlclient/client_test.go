package gqlclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"

	"opent1d/internal/credentials"
	"opent1d/internal/domain"
	"opent1d/internal/form"
	"opent1d/internal/graph"
	"opent1d/internal/librelinkup"
	"opent1d/internal/storage"
)

type stubVerifier struct{ err error }

func (v stubVerifier) FindEndpoint(context.Context, string, string) (librelinkup.Endpoint, error) {
	return librelinkup.EndpointAU, v.err
}

type countingHandler struct {
	next  http.Handler
	calls atomic.Int32
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	h.next.ServeHTTP(w, r)
}

func newServer(t *testing.T, verifier credentials.Verifier) (*Client, *storage.MemoryStore, *countingHandler) {
	t.Helper()
	store := storage.NewMemoryStore()
	var opts []credentials.Option
	if verifier != nil {
		opts = append(opts, credentials.WithVerifier(verifier))
	}
	svc := credentials.NewService(store, opts...)
	h := &countingHandler{next: graph.NewHandler(graph.NewResolver(svc, store))}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, store, h
}

func TestClient_FetchSettingsCaches(t *testing.T) {
	c, store, h := newServer(t, nil)
	want := domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b", LibreLinkUpRegion: "us"}
	_ = store.SaveSettings(context.Background(), &want)

	for i := 0; i < 2; i++ {
		got, err := c.FetchSettings(context.Background())
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("settings (-want +got):\n%s", diff)
		}
	}
	if h.calls.Load() != 1 {
		t.Fatalf("expected one network call, got %d", h.calls.Load())
	}
}

func TestClient_SaveUpdatesCachedSettings(t *testing.T) {
	c, _, h := newServer(t, stubVerifier{})
	if _, err := c.FetchSettings(context.Background()); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	saved, err := c.SaveSettings(context.Background(), "foo@bar.com", "pw")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.LibreLinkUpRegion != "au" {
		t.Fatalf("expected verified region au, got %q", saved.LibreLinkUpRegion)
	}

	calls := h.calls.Load()
	got, err := c.FetchSettings(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if h.calls.Load() != calls {
		t.Fatalf("fetch after save should be served from cache")
	}
	if diff := cmp.Diff(saved, got); diff != "" {
		t.Fatalf("cached settings (-want +got):\n%s", diff)
	}
}

func TestClient_GraphQLErrorMessage(t *testing.T) {
	c, _, _ := newServer(t, stubVerifier{err: librelinkup.ErrLoginFailed})
	_, err := c.SaveSettings(context.Background(), "a", "b")
	if err == nil || err.Error() != "Login failed, please verify username and password" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.FetchSettings(context.Background()); err == nil {
		t.Fatalf("expected error against closed server")
	}
}

func TestClient_DrivesFormController(t *testing.T) {
	c, store, _ := newServer(t, nil)
	_ = store.SaveSettings(context.Background(), &domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b", LibreLinkUpRegion: "eu"})

	ctrl := form.New(c)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if v := ctrl.View().Values; v.Username != "a" || v.Password != "b" {
		t.Fatalf("unexpected loaded values %+v", v)
	}
	_ = ctrl.Edit(form.FieldPassword, "new")
	if err := ctrl.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	stored, _ := store.GetSettings(context.Background())
	if stored.LibreLinkUpUsername != "a" || stored.LibreLinkUpPassword != "new" {
		t.Fatalf("unexpected stored settings %+v", stored)
	}
}
