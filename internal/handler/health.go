package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	if h.health != nil && !h.health.IsLive() {
		writeError(w, http.StatusServiceUnavailable, "API is not healthy", "")
		return
	}
	writeSuccess(w, http.StatusOK, "API is running successfully", func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str("healthy")
		e.ObjEnd()
	})
}
