package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/storage"
)

type fakeSource struct {
	d    *descriptor.Descriptor
	err  error
	path string
}

func (f *fakeSource) Current() (*descriptor.Descriptor, descriptor.ValidationResult) {
	if f.d == nil {
		return nil, descriptor.ValidationResult{}
	}
	return f.d, descriptor.Validate(f.d)
}

func (f *fakeSource) LastError() error { return f.err }
func (f *fakeSource) Path() string { return f.path }

const currentJSON = `{
  "content": ["./*.html"],
  "darkMode": "media",
  "theme": {"screens": {"sm": "480px", "md": "768px"}},
  "plugins": []
}`

const legacyJSON = `{"content": [], "purge": ["./*.html"], "darkMode": "class"}`

func newTestServer(t *testing.T, src *fakeSource) (*Server, *http.ServeMux) {
	t.Helper()
	s := NewServer(storage.New(t.TempDir()), src)
	mux := http.NewServeMux()
	s.Register(mux)
	return s, mux
}

func loadedSource(t *testing.T) *fakeSource {
	t.Helper()
	d, err := descriptor.Parse([]byte(currentJSON), descriptor.FormatJSON)
	require.NoError(t, err)
	return &fakeSource{d: d, path: "tailwind.config.json"}
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHealth(t *testing.T) {
	_, mux := newTestServer(t, &fakeSource{err: errors.New("boom")})
	rec := do(mux, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, false, resp["loaded"])
	assert.Equal(t, "boom", resp["last_error"])
}

func TestDescriptorEndpoint(t *testing.T) {
	_, mux := newTestServer(t, loadedSource(t))
	rec := do(mux, http.MethodGet, "/api/descriptor", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp descriptorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "current", resp.Schema)
	assert.Equal(t, "tailwind.config.json", resp.Source)

	d, err := descriptor.Parse(resp.Descriptor, descriptor.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, []string{"sm", "md"}, d.Breakpoints.Keys())

	assert.Equal(t, http.StatusMethodNotAllowed, do(mux, http.MethodPost, "/api/descriptor", "").Code)

	_, empty := newTestServer(t, &fakeSource{})
	assert.Equal(t, http.StatusServiceUnavailable, do(empty, http.MethodGet, "/api/descriptor", "").Code)
}

func TestValidateEndpoint(t *testing.T) {
	_, mux := newTestServer(t, loadedSource(t))

	rec := do(mux, http.MethodGet, "/api/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cur validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cur))
	assert.True(t, cur.OK)
	assert.Empty(t, cur.Errors)

	rec = do(mux, http.MethodPost, "/api/validate", `{"content": [], "darkMode": "class"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var posted validateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &posted))
	assert.True(t, posted.OK)
	require.NotEmpty(t, posted.Warnings)
	assert.Equal(t, "contentPatterns is empty", posted.Warnings[0].Message)

	rec = do(mux, http.MethodPost, "/api/validate?format=yaml", "content: []\ndarkMode: dark\n")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var bad map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	assert.Equal(t, "malformed", bad["kind"])

	rec = do(mux, http.MethodPost, "/api/validate", `{"darkMode": "media", "theme": {"screens": {"sm": "1px", "sm": "2px"}}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bad))
	assert.Equal(t, "duplicate_key", bad["kind"])
	assert.Equal(t, "sm", bad["key"])

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/api/validate?format=xml", "{}").Code)
}

func TestMigrateEndpoint(t *testing.T) {
	_, mux := newTestServer(t, loadedSource(t))

	rec := do(mux, http.MethodPost, "/api/migrate", legacyJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	d, err := descriptor.Parse(rec.Body.Bytes(), descriptor.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, descriptor.SchemaCurrent, d.Schema())
	assert.Equal(t, []string{"./*.html"}, d.ContentPatterns)

	rec = do(mux, http.MethodPost, "/api/migrate?output=js", legacyJSON)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "export default {")

	rec = do(mux, http.MethodPost, "/api/migrate", `{"content": ["./a.html"], "purge": ["./b.html"], "darkMode": "class"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ambiguous migration")

	assert.Equal(t, http.StatusMethodNotAllowed, do(mux, http.MethodGet, "/api/migrate", "").Code)
}

func TestExportEndpoint(t *testing.T) {
	_, mux := newTestServer(t, loadedSource(t))

	rec := do(mux, http.MethodGet, "/api/export/descriptor.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".yaml")
	d, err := descriptor.Parse(rec.Body.Bytes(), descriptor.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, descriptor.ColorModeMedia, d.ColorMode)

	rec = do(mux, http.MethodGet, "/api/export/descriptor.toml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "darkMode = 'media'")

	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/export/descriptor.xml", "").Code)
	assert.Equal(t, http.StatusNotFound, do(mux, http.MethodGet, "/api/export/history.json", "").Code)
}

func TestHistoryEndpoint(t *testing.T) {
	s, mux := newTestServer(t, loadedSource(t))
	require.NoError(t, s.store.SaveSnapshot(&model.Snapshot{Source: "tailwind.config.json", Checksum: "01"}))

	rec := do(mux, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var snaps []model.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, "01", snaps[0].Checksum)

	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodGet, "/api/history?from=yesterday", "").Code)

	past := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)
	rec = do(mux, http.MethodGet, "/api/history?to="+past, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestTokensAndMetrics(t *testing.T) {
	_, mux := newTestServer(t, loadedSource(t))

	rec := do(mux, http.MethodGet, "/api/tokens.css", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "--screen-md: 768px;")
	assert.Contains(t, rec.Body.String(), "color-scheme: light dark;")

	recordSnapshot(&model.Snapshot{LoadError: "bad"})
	rec = do(mux, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tailplane_load_failures_total")
}

func TestWebsocketBroadcast(t *testing.T) {
	s, mux := newTestServer(t, loadedSource(t))
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello map[string]any
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello["type"])
	assert.Equal(t, "current", hello["schema"])

	s.HandleChange(&model.Snapshot{ID: "abc", Source: "tailwind.config.json"}, nil)

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "descriptor_changed", msg["type"])
	assert.Equal(t, true, msg["ok"])
	snap, ok := msg["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", snap["id"])
}
