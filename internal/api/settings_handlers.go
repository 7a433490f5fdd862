package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"opent1d/internal/domain"
	"opent1d/internal/glucose"
)

const (
	defaultMeasurementHours = 24
	maxMeasurementHours     = 24 * 90
	maxSettingsBodyBytes    = 64 << 10
)

type settingsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type measurement struct {
	Timestamp time.Time `json:"timestamp"`
	Mmol      float32   `json:"mmol"`
	Mgdl      int       `json:"mgdl"`
}

// GET|PUT /api/v1/settings/librelinkup
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := s.settings.Get(r.Context())
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		var input settingsRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingsBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&input); err != nil {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
		saved, err := s.settings.Save(r.Context(), input.Username, input.Password)
		if err != nil {
			s.writeStoreErr(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		w.Header().Set("Allow", "GET, PUT")
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

// GET /api/v1/measurements?hours=N
func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErr(r.Context(), w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	hours := defaultMeasurementHours
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed <= 0 || parsed > maxMeasurementHours {
			s.writeErr(r.Context(), w, http.StatusBadRequest, "invalid hours",
				"must be between 1 and "+strconv.Itoa(maxMeasurementHours))
			return
		}
		hours = parsed
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	entries, err := s.store.LoadCGMInterval(r.Context(), from, to)
	if err != nil {
		s.writeStoreErr(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"hours":        hours,
		"measurements": toMeasurements(entries),
	})
}

func toMeasurements(entries []domain.CGMEntry) []measurement {
	out := make([]measurement, 0, len(entries))
	for _, e := range entries {
		mmol := float32(e.Mmoll)
		out = append(out, measurement{
			Timestamp: e.Timestamp.UTC(),
			Mmol:      mmol,
			Mgdl:      glucose.MmolToMg(mmol),
		})
	}
	return out
}
