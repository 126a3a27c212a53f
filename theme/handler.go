package theme

import (
	"net/http"

	"tailplane/descriptor"
)

// Source returns the descriptor currently served and the path it came from.
type Source func() (*descriptor.Descriptor, string)

// Handler serves the token stylesheet.
type Handler struct {
	source Source
}

// NewHandler creates a new theme handler.
func NewHandler(source Source) *Handler {
	return &Handler{
		source: source,
	}
}

// HandleTokens serves the CSS custom properties for the current descriptor.
func (h *Handler) HandleTokens(w http.ResponseWriter, r *http.Request) {
	d, path := h.source()
	if d == nil {
		http.Error(w, "no descriptor loaded", http.StatusServiceUnavailable)
		return
	}

	css := RenderTokens(d, path)
	etag := `"` + ParseSheetMetadata(css).Checksum + `"`

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	_, _ = w.Write([]byte(css))
}
