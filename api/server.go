package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/storage"
	"tailplane/theme"
	"tailplane/ui"
)

// maxBodyBytes bounds posted descriptor bodies.
const maxBodyBytes = 1 << 20

// Source provides the descriptor currently served.
type Source interface {
	Current() (*descriptor.Descriptor, descriptor.ValidationResult)
	LastError() error
	Path() string
}

type Server struct {
	store    *storage.Store
	source   Source
	tokens   *theme.Handler
	ws       *WSConnectionManager
	upgrader websocket.Upgrader
}

// NewServer creates the HTTP API. store may be nil when history is disabled.
func NewServer(store *storage.Store, source Source) *Server {
	s := &Server{
		store:  store,
		source: source,
		ws:     NewWSConnectionManager(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.tokens = theme.NewHandler(func() (*descriptor.Descriptor, string) {
		d, _ := s.source.Current()
		return d, s.source.Path()
	})
	return s
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/descriptor", s.handleDescriptor)
	mux.HandleFunc("/api/validate", s.handleValidate)
	mux.HandleFunc("/api/migrate", s.handleMigrate)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/export/", s.handleExport)
	mux.HandleFunc("/api/tokens.css", s.tokens.HandleTokens)
	mux.HandleFunc("/api/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
}

// HandleChange records metrics for snap and notifies websocket clients.
func (s *Server) HandleChange(snap *model.Snapshot, d *descriptor.Descriptor) {
	recordSnapshot(snap)
	s.ws.Broadcast(map[string]any{
		"type":     "descriptor_changed",
		"ok":       snap.OK(),
		"snapshot": snap,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	d, _ := s.source.Current()
	resp["loaded"] = d != nil
	if err := s.source.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---------- descriptor / validation ----------

type descriptorResponse struct {
	Source     string          `json:"source"`
	Schema     string          `json:"schema"`
	Descriptor json.RawMessage `json:"descriptor"`
	LastError  string          `json:"last_error,omitempty"`
}

func (s *Server) handleDescriptor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	d, _ := s.source.Current()
	if d == nil {
		s.notLoaded(w)
		return
	}

	raw, err := descriptor.Marshal(d, descriptor.FormatJSON)
	if err != nil {
		http.Error(w, "failed to encode descriptor", http.StatusInternalServerError)
		return
	}

	resp := descriptorResponse{
		Source:     s.source.Path(),
		Schema:     d.Schema().String(),
		Descriptor: raw,
	}
	if err := s.source.LastError(); err != nil {
		resp.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateResponse struct {
	Source string `json:"source,omitempty"`
	Schema string `json:"schema"`
	OK     bool   `json:"ok"`
	descriptor.ValidationResult
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d, res := s.source.Current()
		if d == nil {
			s.notLoaded(w)
			return
		}
		writeJSON(w, http.StatusOK, validateResponse{
			Source:           s.source.Path(),
			Schema:           d.Schema().String(),
			OK:               res.OK(),
			ValidationResult: res,
		})

	case http.MethodPost:
		d, _, ok := readDescriptor(w, r)
		if !ok {
			return
		}
		res := descriptor.Validate(d)
		writeJSON(w, http.StatusOK, validateResponse{
			Schema:           d.Schema().String(),
			OK:               res.OK(),
			ValidationResult: res,
		})

	default:
		w.Header().Set("Allow", http.MethodGet+", "+http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	d, format, ok := readDescriptor(w, r)
	if !ok {
		return
	}
	if v := r.URL.Query().Get("output"); v != "" {
		out, err := descriptor.ParseFormat(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		format = out
	}

	migrated, err := descriptor.MigrateLegacy(d)
	if err != nil {
		var amb *descriptor.AmbiguousMigrationError
		if errors.As(err, &amb) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   err.Error(),
				"content": amb.Content,
				"legacy":  amb.Legacy,
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := descriptor.Marshal(migrated, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType(format))
	_, _ = w.Write(body)
}

// readDescriptor decodes the request body in the ?format= given format
// (json by default) and writes the error response itself when it fails.
func readDescriptor(w http.ResponseWriter, r *http.Request) (*descriptor.Descriptor, descriptor.Format, bool) {
	format := descriptor.FormatJSON
	if v := r.URL.Query().Get("format"); v != "" {
		f, err := descriptor.ParseFormat(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil, "", false
		}
		format = f
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusRequestEntityTooLarge)
		return nil, "", false
	}

	d, err := descriptor.Parse(data, format)
	if err != nil {
		writeLoadError(w, err)
		return nil, "", false
	}
	return d, format, true
}

func writeLoadError(w http.ResponseWriter, err error) {
	resp := map[string]any{"error": err.Error()}

	var malformed *descriptor.MalformedConfigError
	var dup *descriptor.DuplicateKeyError
	switch {
	case errors.As(err, &malformed):
		resp["kind"] = "malformed"
		resp["field"] = malformed.Field
		resp["line"] = malformed.Line
	case errors.As(err, &dup):
		resp["kind"] = "duplicate_key"
		resp["field"] = dup.Field
		resp["key"] = dup.Key
		resp["line"] = dup.Line
		resp["first_line"] = dup.FirstLine
	default:
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, resp)
}

func (s *Server) notLoaded(w http.ResponseWriter) {
	resp := map[string]string{"error": "no descriptor loaded"}
	if err := s.source.LastError(); err != nil {
		resp["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, resp)
}

// ---------- history / export ----------

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	to := now

	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		from = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}
		to = t
	}

	snaps := []model.Snapshot{}
	if s.store != nil {
		list, err := s.store.ListSnapshots(from, to)
		if err != nil {
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
		snaps = append(snaps, list...)
	}

	writeJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/api/export/")
	ext, ok := strings.CutPrefix(name, "descriptor.")
	if !ok {
		http.NotFound(w, r)
		return
	}
	format, err := descriptor.ParseFormat(ext)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	d, _ := s.source.Current()
	if d == nil {
		s.notLoaded(w)
		return
	}

	body, err := descriptor.Marshal(d, format)
	if err != nil {
		http.Error(w, "failed to encode descriptor", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("tailwind-config-%s.%s", time.Now().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(body)
}

func contentType(f descriptor.Format) string {
	switch f {
	case descriptor.FormatJSON:
		return "application/json"
	case descriptor.FormatYAML:
		return "application/yaml"
	case descriptor.FormatJS:
		return "application/javascript; charset=utf-8"
	case descriptor.FormatTOML:
		return "application/toml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ---------- websocket ----------

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ui.Logf("error", "[api] websocket upgrade: %v", err)
		return
	}
	s.ws.Add(conn)
	defer func() {
		s.ws.Remove(conn)
		conn.Close()
	}()

	hello := map[string]any{"type": "hello", "source": s.source.Path()}
	if d, res := s.source.Current(); d != nil {
		hello["schema"] = d.Schema().String()
		hello["ok"] = res.OK()
	}
	if err := s.ws.WriteJSON(conn, hello); err != nil {
		return
	}

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ui.Logf("error", "[api] writeJSON: %v", err)
	}
}
