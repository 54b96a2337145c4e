package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ashureev/healthchat/internal/domain"
	"github.com/ashureev/healthchat/internal/identity"
	"github.com/google/uuid"
)

const maxFeedbackBodySize = 64 << 10

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	UserID  string `json:"user_id,omitempty"`
}

// SubmitFeedback handles POST /api/feedback.
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFeedbackBodySize)

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		Error(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	fb := &domain.Feedback{
		ID:      uuid.NewString(),
		UserID:  identity.ResolveUserID(r.Context(), req.UserID),
		Rating:  req.Rating,
		Comment: strings.TrimSpace(req.Comment),
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.feedback.InsertFeedback(ctx, fb); err != nil {
		h.logger.Error("Failed to store feedback", "error", err, "user_id", fb.UserID)
		Error(w, http.StatusInternalServerError, "failed to store feedback")
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"id":      fb.ID,
		"message": "Feedback received",
		"status":  "success",
	})
}
