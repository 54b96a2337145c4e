package api

import (
	"net/http"
	"strings"
)

// RandomTip handles GET /api/tips/random. It always answers with a tip.
func (h *Handler) RandomTip(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category")))
	JSON(w, http.StatusOK, h.tips.RandomTip(r.Context(), category))
}
