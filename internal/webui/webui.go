// Package webui serves the server-rendered LibreLinkUp settings page at /.
package webui

import (
	"bytes"
	"context"
	"html/template"
	"net/http"

	"opent1d/internal/audit"
	"opent1d/internal/domain"
	"opent1d/internal/form"
	"opent1d/internal/observability"
	"opent1d/web"
)

// SettingsService reads and saves the settings in process.
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, username, password string) (domain.Settings, error)
}

// serviceClient adapts a SettingsService to form.Client.
type serviceClient struct{ svc SettingsService }

func (c serviceClient) FetchSettings(ctx context.Context) (domain.Settings, error) {
	return c.svc.Get(ctx)
}

func (c serviceClient) SaveSettings(ctx context.Context, username, password string) (domain.Settings, error) {
	return c.svc.Save(ctx, username, password)
}

// Handler renders the settings form. Each request drives a fresh
// form.Controller: GET loads, POST loads, applies the submitted fields and
// saves.
type Handler struct {
	client form.Client
	tmpl   *template.Template
	logger observability.Logger
}

// New parses the embedded templates.
func New(svc SettingsService, logger observability.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/settings.html")
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Handler{client: serviceClient{svc: svc}, tmpl: tmpl, logger: logger.WithComponent("webui")}, nil
}

type pageData struct {
	Phase        string
	Values       form.Values
	Error        string
	Notification *form.Notification
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	ctx := audit.WithActor(r.Context(), "webui")
	ctrl := form.New(h.client)

	switch r.Method {
	case http.MethodGet, http.MethodHead:
		_ = ctrl.Load(ctx)
		h.render(w, r, ctrl.View(), http.StatusOK)
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if err := ctrl.Load(ctx); err != nil {
			h.render(w, r, ctrl.View(), http.StatusOK)
			return
		}
		for _, f := range form.Fields {
			if vals, ok := r.PostForm[string(f)]; ok && len(vals) > 0 {
				_ = ctrl.Edit(f, vals[0])
			}
		}
		status := http.StatusOK
		if err := ctrl.Save(ctx); err != nil {
			h.logger.InfoContext(ctx, "settings form save failed", observability.Err(err))
			status = http.StatusUnprocessableEntity
		}
		h.render(w, r, ctrl.View(), status)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, v form.View, status int) {
	data := pageData{Phase: v.Phase.String(), Error: v.Error, Notification: v.Notification}
	if v.ShowForm() {
		data.Values = v.Values
	}
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, data); err != nil {
		h.logger.ErrorContext(r.Context(), "render settings page", observability.Err(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
