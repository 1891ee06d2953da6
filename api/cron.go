package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hanna-agency/workshop-registration/reminder"
)

type reminderScanResponse struct {
	Success bool   `json:"success"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Error   string `json:"error,omitempty"`
}

func (a *API) handleProfileReminders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	if a.settings.CronSecret != "" && !hasBearerToken(r, a.settings.CronSecret) {
		logger.Warn("Unauthorized reminder trigger")
		writeError(w, http.StatusUnauthorized, AuthError, "Unauthorized")
		return
	}

	result, err := a.scanner.Scan(ctx)
	if errors.Is(err, reminder.ErrScanInProgress) {
		writeJSON(w, http.StatusConflict, reminderScanResponse{
			Success: false,
			Error:   "A reminder scan is already running",
		})
		return
	}
	if err != nil {
		logger.Error("Profile reminder scan failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, reminderScanResponse{
			Success: false,
			Error:   "Failed to load reminder candidates",
		})
		return
	}

	writeJSON(w, http.StatusOK, reminderScanResponse{
		Success: true,
		Sent:    result.Sent,
		Failed:  result.Failed,
		Total:   result.Total,
	})
}

func hasBearerToken(r *http.Request, want string) bool {
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), []byte(want)) == 1
}
