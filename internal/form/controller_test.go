package form

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"opent1d/internal/domain"
)

type saveCall struct{ username, password string }

type fakeClient struct {
	mu        sync.Mutex
	fetch     domain.Settings
	fetchErr  error
	saveErr   error
	saveResp  *domain.Settings
	saves     []saveCall
	saveGate  chan struct{} // when set, SaveSettings blocks until it receives
	saveEnter chan struct{}
}

func (f *fakeClient) FetchSettings(context.Context) (domain.Settings, error) {
	return f.fetch, f.fetchErr
}

func (f *fakeClient) SaveSettings(_ context.Context, username, password string) (domain.Settings, error) {
	f.mu.Lock()
	f.saves = append(f.saves, saveCall{username, password})
	gate, enter := f.saveGate, f.saveEnter
	err, resp := f.saveErr, f.saveResp
	f.mu.Unlock()
	if enter != nil {
		enter <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Settings{}, err
	}
	if resp != nil {
		return *resp, nil
	}
	return domain.Settings{LibreLinkUpUsername: username, LibreLinkUpPassword: password, LibreLinkUpRegion: "eu"}, nil
}

func loaded(t *testing.T, f *fakeClient, opts ...Option) *Controller {
	t.Helper()
	c := New(f, opts...)
	if err := c.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestApply(t *testing.T) {
	base := Values{Username: "u", Password: "p", Region: "eu"}
	tests := []struct {
		name    string
		field   Field
		value   string
		want    Values
		wantErr error
	}{
		{"username", FieldUsername, "x", Values{Username: "x", Password: "p", Region: "eu"}, nil},
		{"password", FieldPassword, "y", Values{Username: "u", Password: "y", Region: "eu"}, nil},
		{"empty value", FieldUsername, "", Values{Password: "p", Region: "eu"}, nil},
		{"region is read-only", Field("region"), "us", base, ErrUnknownField},
		{"unknown", Field("email"), "x", base, ErrUnknownField},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Apply(base, tc.field, tc.value)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("values (-want +got):\n%s", diff)
			}
		})
	}
}

func TestController_InitialPhase(t *testing.T) {
	c := New(&fakeClient{})
	v := c.View()
	if v.Phase != Loading || v.ShowForm() {
		t.Fatalf("expected loading with no form, got %+v", v)
	}
	if err := c.Edit(FieldUsername, "x"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if err := c.Save(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestController_LoadShowsFetchedValues(t *testing.T) {
	f := &fakeClient{fetch: domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b", LibreLinkUpRegion: "us"}}
	c := loaded(t, f)
	v := c.View()
	if v.Phase != Ready || !v.ShowForm() {
		t.Fatalf("expected ready, got %v", v.Phase)
	}
	if diff := cmp.Diff(Values{Username: "a", Password: "b", Region: "us"}, v.Values); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestController_LoadFailedRendersNoValues(t *testing.T) {
	f := &fakeClient{fetch: domain.Settings{LibreLinkUpUsername: "a"}, fetchErr: errors.New("network down")}
	c := New(f)
	if err := c.Load(context.Background()); err == nil {
		t.Fatalf("expected load error")
	}
	v := c.View()
	if v.Phase != LoadFailed || v.ShowForm() {
		t.Fatalf("expected load failure without form, got %+v", v)
	}
	if v.Error != "network down" {
		t.Fatalf("unexpected error %q", v.Error)
	}
	if v.Values != (Values{}) {
		t.Fatalf("failed load must not carry values: %+v", v.Values)
	}
	if err := c.Edit(FieldPassword, "x"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestController_EditIsolatesFields(t *testing.T) {
	c := loaded(t, &fakeClient{fetch: domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b"}})

	if err := c.Edit(FieldUsername, "x"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if v := c.View().Values; v.Password != "b" || v.Username != "x" {
		t.Fatalf("editing username changed password: %+v", v)
	}
	if err := c.Edit(FieldPassword, "y"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if v := c.View().Values; v.Username != "x" || v.Password != "y" {
		t.Fatalf("editing password changed username: %+v", v)
	}
	if err := c.Edit(Field("region"), "us"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected ErrUnknownField, got %v", err)
	}
}

func TestController_SaveSubmitsLocalValues(t *testing.T) {
	f := &fakeClient{fetch: domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b"}}
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := loaded(t, f, WithClock(func() time.Time { return now }))

	_ = c.Edit(FieldUsername, "x")
	_ = c.Edit(FieldPassword, "y")
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if diff := cmp.Diff([]saveCall{{"x", "y"}}, f.saves, cmp.AllowUnexported(saveCall{})); diff != "" {
		t.Fatalf("submitted (-want +got):\n%s", diff)
	}

	v := c.View()
	if v.Phase != Ready || v.Error != "" {
		t.Fatalf("expected ready without error, got %+v", v)
	}
	if v.Values.Region != "eu" {
		t.Fatalf("region should be refreshed from the response, got %q", v.Values.Region)
	}
	n, ok := c.Notification()
	if !ok {
		t.Fatalf("expected a notification")
	}
	want := Notification{Kind: NotificationSuccess, Title: "Sign in to LibreLinkUp", Message: "Login was successful!", ExpiresAt: now.Add(9 * time.Second)}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Fatalf("notification (-want +got):\n%s", diff)
	}
	if _, ok := c.Notification(); ok {
		t.Fatalf("notification should be consumed")
	}
}

func TestController_SaveKeepsLocalValuesByDefault(t *testing.T) {
	f := &fakeClient{saveResp: &domain.Settings{LibreLinkUpUsername: "server", LibreLinkUpPassword: "server", LibreLinkUpRegion: "us"}}
	c := loaded(t, f)
	_ = c.Edit(FieldUsername, "local")
	_ = c.Edit(FieldPassword, "local")
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if diff := cmp.Diff(Values{Username: "local", Password: "local", Region: "us"}, c.View().Values); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestController_SaveAdoptsResponse(t *testing.T) {
	f := &fakeClient{saveResp: &domain.Settings{LibreLinkUpUsername: "server", LibreLinkUpPassword: "pw", LibreLinkUpRegion: "us"}}
	c := loaded(t, f, WithAdoptSaved(true))
	_ = c.Edit(FieldUsername, "local")
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if diff := cmp.Diff(Values{Username: "server", Password: "pw", Region: "us"}, c.View().Values); diff != "" {
		t.Fatalf("values (-want +got):\n%s", diff)
	}
}

func TestController_SaveFailureKeepsValues(t *testing.T) {
	f := &fakeClient{
		fetch:   domain.Settings{LibreLinkUpUsername: "a", LibreLinkUpPassword: "b", LibreLinkUpRegion: "eu"},
		saveErr: errors.New("Login failed, please verify username and password"),
	}
	c := loaded(t, f)
	_ = c.Edit(FieldPassword, "wrong")

	if err := c.Save(context.Background()); err == nil {
		t.Fatalf("expected save error")
	}
	v := c.View()
	if v.Phase != SaveFailed || !v.ShowForm() {
		t.Fatalf("expected save failure with form, got %v", v.Phase)
	}
	if diff := cmp.Diff(Values{Username: "a", Password: "wrong", Region: "eu"}, v.Values); diff != "" {
		t.Fatalf("values changed on failure (-want +got):\n%s", diff)
	}
	if v.Error != "Login failed, please verify username and password" {
		t.Fatalf("unexpected error %q", v.Error)
	}
	n, ok := c.Notification()
	if !ok || n.Kind != NotificationError || n.Message != v.Error {
		t.Fatalf("expected error notification, got %+v %v", n, ok)
	}

	// edits and retries remain possible
	if err := c.Edit(FieldPassword, "right"); err != nil {
		t.Fatalf("edit after failure: %v", err)
	}
	f.mu.Lock()
	f.saveErr = nil
	f.mu.Unlock()
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if v := c.View(); v.Phase != Ready || v.Error != "" {
		t.Fatalf("expected ready after retry, got %+v", v)
	}
}

func TestController_NotificationExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := loaded(t, &fakeClient{}, WithClock(func() time.Time { return now }))
	if err := c.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if c.View().Notification == nil {
		t.Fatalf("expected visible notification")
	}
	now = now.Add(9 * time.Second)
	if c.View().Notification != nil {
		t.Fatalf("notification should expire after 9s")
	}
	if _, ok := c.Notification(); ok {
		t.Fatalf("expired notification should not pop")
	}
}

func TestController_EditsDuringSave(t *testing.T) {
	f := &fakeClient{saveGate: make(chan struct{}), saveEnter: make(chan struct{})}
	c := loaded(t, f)
	_ = c.Edit(FieldUsername, "first")

	done := make(chan error, 1)
	go func() { done <- c.Save(context.Background()) }()
	<-f.saveEnter

	if c.View().Phase != Saving {
		t.Fatalf("expected saving phase")
	}
	if err := c.Edit(FieldUsername, "second"); err != nil {
		t.Fatalf("edit during save: %v", err)
	}
	close(f.saveGate)
	if err := <-done; err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := c.View().Values.Username; got != "second" {
		t.Fatalf("edit during save was lost, got %q", got)
	}
	if f.saves[0].username != "first" {
		t.Fatalf("save should submit the values at submit time, got %q", f.saves[0].username)
	}
}

func TestController_ConcurrentSavesBothReachStore(t *testing.T) {
	f := &fakeClient{saveGate: make(chan struct{}), saveEnter: make(chan struct{})}
	c := loaded(t, f)

	errs := make(chan error, 2)
	go func() { errs <- c.Save(context.Background()) }()
	<-f.saveEnter
	go func() { errs <- c.Save(context.Background()) }()
	<-f.saveEnter

	f.saveGate <- struct{}{}
	if err := <-errs; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if c.View().Phase != Saving {
		t.Fatalf("phase should stay saving while a save is in flight")
	}
	f.saveGate <- struct{}{}
	if err := <-errs; err != nil {
		t.Fatalf("second save: %v", err)
	}
	if c.View().Phase != Ready {
		t.Fatalf("expected ready after both saves")
	}
	if len(f.saves) != 2 {
		t.Fatalf("expected two saves, got %d", len(f.saves))
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{Loading: "loading", LoadFailed: "load_failed", Ready: "ready", Saving: "saving", SaveFailed: "save_failed", Phase(42): "unknown"} {
		if got := p.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", p, got, want)
		}
	}
}
