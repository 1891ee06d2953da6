package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hanna-agency/workshop-registration/notification"
	"github.com/hanna-agency/workshop-registration/ptr"
	"github.com/hanna-agency/workshop-registration/registration"
	"github.com/hanna-agency/workshop-registration/slices"
	"github.com/oapi-codegen/runtime/types"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 50
)

type Registration struct {
	ID                 types.UUID        `json:"id"`
	Email              string            `json:"email"`
	FullName           string            `json:"fullName"`
	Phone              *string           `json:"phone,omitempty"`
	Country            *string           `json:"country,omitempty"`
	PaymentStatus      string            `json:"paymentStatus"`
	PaymentMethod      string            `json:"paymentMethod"`
	PaymentID          string            `json:"paymentId"`
	AmountPaid         float64           `json:"amountPaid"`
	Currency           string            `json:"currency"`
	RegistrationStatus string            `json:"registrationStatus"`
	ProfileCompleted   bool              `json:"profileCompleted"`
	Company            string            `json:"company,omitempty"`
	JobTitle           string            `json:"jobTitle,omitempty"`
	Goals              string            `json:"goals,omitempty"`
	Attribution        map[string]string `json:"attribution,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

type registrationPage struct {
	Data        []Registration `json:"data"`
	Cursor      *string        `json:"cursor,omitempty"`
	HasNextPage bool           `json:"hasNextPage"`
}

func (a *API) handleGetRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	if !a.isAdmin(r) {
		logger.Warn("Unauthorized registration listing")
		writeError(w, http.StatusUnauthorized, AuthError, "Unauthorized")
		return
	}

	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		userLimit, err := strconv.Atoi(raw)
		if err != nil || userLimit < 1 || userLimit > maxPageLimit {
			logger.Warn("Limit out of bounds", slog.String("limit", raw))
			writeError(w, http.StatusBadRequest, LimitOutOfBounds, "Limit must be between 1 and 50")
			return
		}
		limit = userLimit
	}

	var cursor *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor = ptr.String(raw)
	}

	result, err := a.db.GetAllRegistrations(ctx, int32(limit), cursor)
	if err != nil {
		logger.Error("Failed to get registrations", slog.String("error", err.Error()))

		if registration.IsReason(err, registration.REASON_INVALID_CURSOR) {
			writeError(w, http.StatusBadRequest, InvalidCursor, "Cursor is invalid")
			return
		}
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to get registrations")
		return
	}

	writeJSON(w, http.StatusOK, registrationPage{
		Data:        slices.Map(result.Data, registrationToApiRegistration),
		Cursor:      result.Cursor,
		HasNextPage: result.HasNextPage,
	})
}

type EmailLogEntry struct {
	EmailType string    `json:"emailType"`
	SentAt    time.Time `json:"sentAt"`
	MessageID string    `json:"messageId"`
}

type emailLogResponse struct {
	Data []EmailLogEntry `json:"data"`
}

func (a *API) handleGetRegistrationEmails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	if !a.isAdmin(r) {
		logger.Warn("Unauthorized email history request")
		writeError(w, http.StatusUnauthorized, AuthError, "Unauthorized")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, InputValidationError, "Registration id must be a UUID")
		return
	}

	records, err := a.db.GetEmailLog(ctx, id)
	if err != nil {
		logger.Error("Failed to get email log", slog.String("registrationId", id.String()), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to get email history")
		return
	}

	writeJSON(w, http.StatusOK, emailLogResponse{
		Data: slices.Map(records, func(rec notification.ReminderRecord) EmailLogEntry {
			return EmailLogEntry{
				EmailType: string(rec.EmailType),
				SentAt:    rec.SentAt,
				MessageID: rec.MessageID,
			}
		}),
	})
}

// isAdmin is false whenever no admin token is configured.
func (a *API) isAdmin(r *http.Request) bool {
	return a.settings.AdminAPIToken != "" && hasBearerToken(r, a.settings.AdminAPIToken)
}

type profileUpdateRequest struct {
	FullName *string `json:"fullName" validate:"omitempty,min=1,max=200"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
	Country  *string `json:"country" validate:"omitempty,max=64"`
	Company  string  `json:"company" validate:"max=200"`
	JobTitle string  `json:"jobTitle" validate:"max=200"`
	Goals    string  `json:"goals" validate:"max=2000"`
}

func (a *API) handlePostRegistrationProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := a.getLoggerOrBaseLogger(ctx)

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, InputValidationError, "Registration id must be a UUID")
		return
	}
	logger = logger.With(slog.String("registrationId", id.String()))

	var req profileUpdateRequest
	err = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil {
		logger.Warn("Invalid profile body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, InvalidBody, "Invalid body")
		return
	}
	err = a.validate.Struct(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, InputValidationError, err.Error())
		return
	}

	reg, err := registration.CompleteProfile(ctx, id, registration.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Country:  req.Country,
		Company:  req.Company,
		JobTitle: req.JobTitle,
		Goals:    req.Goals,
	}, a.db)
	if err != nil {
		logger.Error("Failed to complete profile", slog.String("error", err.Error()))

		var registrationErr *registration.Error
		if errors.As(err, &registrationErr) {
			switch registrationErr.Reason {
			case registration.REASON_REGISTRATION_DOES_NOT_EXIST:
				writeError(w, http.StatusNotFound, NotFound, "Registration was not found")
				return
			case registration.REASON_REGISTRATION_NOT_PAID:
				writeError(w, http.StatusConflict, NotPaid, "Registration is not paid")
				return
			case registration.REASON_VERSION_CONFLICT:
				writeError(w, http.StatusConflict, VersionConflict, "Registration was updated concurrently, try again")
				return
			}
		}
		writeError(w, http.StatusInternalServerError, InternalError, "Failed to save profile")
		return
	}

	writeJSON(w, http.StatusOK, registrationToApiRegistration(reg))
}

func registrationToApiRegistration(reg registration.Registration) Registration {
	currency := ""
	if reg.AmountPaid != nil {
		currency = reg.AmountPaid.Currency().Code
	}

	return Registration{
		ID:                 reg.ID,
		Email:              reg.Email,
		FullName:           reg.FullName,
		Phone:              reg.Phone,
		Country:            reg.Country,
		PaymentStatus:      string(reg.PaymentStatus),
		PaymentMethod:      string(reg.PaymentMethod),
		PaymentID:          reg.PaymentID,
		AmountPaid:         reg.AmountPaidMajorUnits(),
		Currency:           currency,
		RegistrationStatus: string(reg.RegistrationStatus),
		ProfileCompleted:   reg.ProfileCompleted,
		Company:            reg.Profile.Company,
		JobTitle:           reg.Profile.JobTitle,
		Goals:              reg.Profile.Goals,
		Attribution:        reg.Attribution,
		CreatedAt:          reg.CreatedAt,
	}
}
