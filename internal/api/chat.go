package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/cfpd-planning/intake-assistant/internal/assistant"
	"github.com/cfpd-planning/intake-assistant/internal/domain"
	"github.com/cfpd-planning/intake-assistant/internal/identity"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// HandleChat handles POST /api/chat requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Rate-limit by userID only (not userID:sessionID) so clients cannot
	// bypass throttling by rotating session IDs.
	if !h.rateLimiter.Allow(userID) {
		Error(w, http.StatusTooManyRequests, "too many requests, please slow down")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		JSON(w, http.StatusOK, chatResponse{Reply: assistant.EmptyMessageReply})
		return
	}

	sess, err := h.repo.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		sess = domain.NewSession(userID, sessionID)
	}

	reply, err := h.ctrl.HandleTurn(r.Context(), sess, message)
	if err != nil {
		slog.Error("Chat turn failed", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusBadGateway, "assistant is unavailable, please try again")
		return
	}

	// Persist only after a successful turn; a failed model call leaves the
	// stored session untouched.
	if err := h.repo.SaveSession(r.Context(), sess); err != nil {
		slog.Error("Failed to save session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	JSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// HandleReset handles POST /api/reset requests.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.repo.DeleteSession(r.Context(), userID, sessionID); err != nil {
		slog.Error("Failed to reset session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to reset session")
		return
	}

	JSON(w, http.StatusOK, chatResponse{Reply: assistant.ResetReply})
}

// HandleSubmit handles POST /api/submit requests. It finalizes the email
// package if the user skipped confirmation, mails the Planning team,
// sends an optional acknowledgment to the requester, and clears the
// session before redirecting to the confirmation page.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := r.ParseForm(); err != nil {
		Error(w, http.StatusBadRequest, "invalid form data")
		return
	}
	requesterEmail := strings.TrimSpace(r.FormValue("email"))

	sess, err := h.repo.GetSession(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "user_id", userID, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if sess == nil {
		sess = domain.NewSession(userID, sessionID)
	}

	if err := h.ctrl.EnsurePackage(r.Context(), sess); err != nil {
		slog.Error("Failed to finalize request for submission", "error", err, "user_id", userID)
		Error(w, http.StatusBadGateway, "failed to finalize request, please try again")
		return
	}

	submissionID := uuid.NewString()

	requester := requesterEmail
	if requester == "" {
		requester = "Unknown"
	}
	planningBody := sess.EmailBody + "\n\nSubmitted by: " + requester

	if err := h.mail.Send(r.Context(), h.cfg.Mail.PlanningRecipient, sess.EmailSubject, planningBody); err != nil {
		slog.Error("Failed to send planning email", "error", err, "submission_id", submissionID, "user_id", userID)
		Error(w, http.StatusBadGateway, "failed to send request email")
		return
	}

	if requesterEmail != "" {
		ackBody := fmt.Sprintf("Thank you! Your request has been submitted to the Planning Division:\n\n%s", sess.FinalRequest)
		if err := h.mail.Send(r.Context(), requesterEmail, "Your Request Was Submitted", ackBody); err != nil {
			// The planning email already went out; a failed acknowledgment
			// does not fail the submission.
			slog.Warn("Failed to send acknowledgment email", "error", err, "submission_id", submissionID)
		}
	}

	slog.Info("Request submitted",
		"submission_id", submissionID,
		"user_id", userID,
		"session_id", sessionID,
		"subject", sess.EmailSubject)

	if err := h.repo.DeleteSession(r.Context(), userID, sessionID); err != nil {
		slog.Warn("Failed to clear session after submission", "error", err, "submission_id", submissionID)
	}

	http.Redirect(w, r, "/confirmation", http.StatusSeeOther)
}
