package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/dependency"
	"github.com/opticore/opticore/internal/fields"
	"github.com/opticore/opticore/internal/nonce"
	"github.com/opticore/opticore/internal/optimizer"
	"github.com/opticore/opticore/internal/render"
	"github.com/opticore/opticore/internal/settings"
)

// SaveMessage is returned after a successful settings save
const SaveMessage = "Settings saved successfully! Cache cleared."

// saveAction is posted alongside the form values and ignored
const saveAction = "action"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// FieldResponse is one field as exposed by the console API
type FieldResponse struct {
	fields.Field
	Dependency *dependency.Expression `json:"dependency,omitempty"`
	Value      string                 `json:"value"`
	Visible    bool                   `json:"visible"`
}

// SectionResponse is one catalog section as exposed by the console API
type SectionResponse struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Icon   string          `json:"icon"`
	Fields []FieldResponse `json:"fields"`
}

// InputState is the raw state of one live form input
type InputState struct {
	Type    string `json:"type"`
	Value   string `json:"value"`
	Checked bool   `json:"checked"`
}

// VisibilityRequest asks which rows change when an input changes
type VisibilityRequest struct {
	// Changed is the field whose input fired; empty re-evaluates every row
	Changed string `json:"changed"`
	// Values are the live input values, checkboxes as "1" or ""
	Values map[string]string `json:"values"`
	// Inputs are raw input states, resolved into Values
	Inputs map[string]InputState `json:"inputs"`
	// Visible is the visibility rows currently have
	Visible map[string]bool `json:"visible"`
}

// WatchResponse describes one input that other rows depend on
type WatchResponse struct {
	Field      string   `json:"field"`
	Events     []string `json:"events"`
	Dependents []string `json:"dependents"`
}

func (s *Server) setupConsoleRoutes(router *mux.Router, static http.Handler) {
	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.config.Metrics.Enable {
		router.Handle(s.config.Metrics.Path, s.metricsManager.GetMetricsHandler()).Methods("GET")
	}

	// API endpoints for the settings console
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/settings", s.handleSaveSettings).Methods("GET", "POST")
	apiRouter.HandleFunc("/settings/visibility", s.handleVisibility).Methods("POST")
	apiRouter.HandleFunc("/dependencies", s.handleDependencies).Methods("GET")
	apiRouter.HandleFunc("/fields", s.handleListFields).Methods("GET")

	router.PathPrefix(StaticPrefix).Handler(static).Methods("GET", "HEAD")
	router.HandleFunc("/settings", s.handleSettingsPage).Methods("GET")
	router.Handle("/", http.RedirectHandler("/settings", http.StatusFound)).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
		"uptime":  int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	blob, err := s.store.Load(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to load settings")
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	token, err := s.nonces.Create(nonce.ActionSaveSettings)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create form token")
		http.Error(w, "Failed to create form token", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	err = s.renderer.RenderPage(&buf, render.PageData{
		Title:     s.config.Site.Title + " Settings",
		Version:   s.version,
		Nonce:     token,
		SaveURL:   "/api/v1/settings",
		StaticURL: strings.TrimSuffix(StaticPrefix, "/"),
		Settings:  blob,
	})
	if err != nil {
		s.logger.WithError(err).Error("Failed to render settings page")
		http.Error(w, "Failed to render settings page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// handleSaveSettings replaces the stored blob with the submitted form
// and wipes the cache so minified files are rebuilt on the next render
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.metricsManager.RecordSettingsSave(false)
		s.writeError(w, "Invalid form data", http.StatusBadRequest)
		return
	}

	if err := s.nonces.Verify(r.Form.Get(render.NonceField), nonce.ActionSaveSettings); err != nil {
		s.metricsManager.RecordSettingsSave(false)
		s.logger.WithError(err).WithField("remote_ip", r.RemoteAddr).Warn("Rejected settings save")
		s.writeError(w, "Invalid security token", http.StatusForbidden)
		return
	}

	blob := s.formBlob(r.Form)
	if err := s.store.Save(r.Context(), blob); err != nil {
		s.metricsManager.RecordSettingsSave(false)
		s.logger.WithError(err).Error("Failed to save settings")
		s.writeError(w, "Failed to save settings", http.StatusInternalServerError)
		return
	}
	s.metricsManager.RecordSettingsSave(true)

	cached, err := s.cache.List(r.Context(), optimizer.CacheRoot)
	if err != nil {
		s.logger.WithError(err).Debug("Failed to list cache directory")
	}
	err = s.cache.Reset(r.Context(), optimizer.CacheRoot)
	s.metricsManager.RecordCacheWipe(err == nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to clear cache directory")
	}

	s.logger.WithFields(logrus.Fields{
		"keys":          len(blob),
		"cache_entries": len(cached),
	}).Info("Settings saved")

	s.writeJSON(w, map[string]string{"message": SaveMessage})
}

// formBlob strips the input prefix from every submitted key and
// sanitizes the values. Textarea values keep their line breaks.
func (s *Server) formBlob(form url.Values) settings.Blob {
	blob := settings.Blob{}
	for rawKey := range form {
		if rawKey == saveAction || rawKey == render.NonceField {
			continue
		}

		key := strings.ReplaceAll(rawKey, render.InputPrefix, "")
		value := form.Get(rawKey)

		if f, ok := s.catalog.Field(key); ok && f.Type == fields.TypeTextarea {
			blob[key] = settings.SanitizeTextarea(value)
		} else {
			blob[key] = settings.SanitizeText(value)
		}
	}
	return blob
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	blob, err := s.store.Load(r.Context())
	if err != nil {
		s.writeError(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	sections := make([]SectionResponse, 0, len(s.catalog.Sections()))
	for _, sec := range s.catalog.Sections() {
		out := SectionResponse{ID: sec.ID, Title: sec.Title, Icon: sec.Icon, Fields: []FieldResponse{}}
		for _, f := range sec.Fields {
			out.Fields = append(out.Fields, FieldResponse{
				Field:      f,
				Dependency: s.renderer.Expression(f),
				Value:      render.DisplayValue(f, blob),
				Visible:    s.renderer.Visible(f, blob),
			})
		}
		sections = append(sections, out)
	}

	s.writeJSON(w, sections)
}

// handleVisibility evaluates the rows that depend on a changed input
// against the live form values
func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req VisibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	values := make(map[string]string, len(req.Values)+len(req.Inputs))
	for id, v := range req.Values {
		values[id] = v
	}
	for id, in := range req.Inputs {
		values[id] = dependency.ResolveInputValue(in.Type, in.Value, in.Checked)
	}

	controller := dependency.NewController(s.dependencyRows(), req.Visible)
	toggles := controller.Refresh(req.Changed, func(id string) string {
		return values[id]
	})

	s.writeJSON(w, map[string]interface{}{
		"toggles": toggles,
	})
}

// handleDependencies lists every input that drives other rows, with the
// events that should trigger a refresh
func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	controller := dependency.NewController(s.dependencyRows(), nil)

	watched := controller.Watched()
	out := make([]WatchResponse, 0, len(watched))
	for _, id := range watched {
		inputType := "text"
		if f, ok := s.catalog.Field(id); ok {
			inputType = f.Type.InputType()
		}
		out = append(out, WatchResponse{
			Field:      id,
			Events:     dependency.TriggerEvents(inputType),
			Dependents: controller.Dependents(id),
		})
	}

	s.writeJSON(w, out)
}

func (s *Server) dependencyRows() []dependency.Row {
	var rows []dependency.Row
	for _, f := range s.catalog.Fields() {
		if expr := s.renderer.Expression(f); expr != nil {
			rows = append(rows, dependency.Row{FieldID: f.ID, Expression: expr})
		}
	}
	return rows
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Data:    map[string]string{"message": message},
		Error:   message,
	})
	s.logger.WithField("error", message).WithField("status", statusCode).Warn("API error")
}
