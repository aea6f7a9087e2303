package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/assistant"
	"github.com/lumenmfb/backend/internal/auth"
	"github.com/lumenmfb/backend/internal/domain/account"
	"github.com/lumenmfb/backend/internal/domain/admin"
	"github.com/lumenmfb/backend/internal/domain/application"
	"github.com/lumenmfb/backend/internal/domain/document"
	"github.com/lumenmfb/backend/internal/domain/kyc"
	"github.com/lumenmfb/backend/internal/domain/staff"
	"github.com/lumenmfb/backend/internal/jobs"
	"github.com/lumenmfb/backend/internal/report"
)

// statusFor maps domain sentinels to HTTP statuses. The response code is the
// sentinel's own snake_case text.
var statusFor = []struct {
	err    error
	status int
}{
	{application.ErrNotFound, http.StatusNotFound},
	{application.ErrStaleState, http.StatusConflict},
	{application.ErrNotesRequired, http.StatusBadRequest},
	{application.ErrForbidden, http.StatusForbidden},
	{application.ErrDraftsUnsaved, http.StatusUnprocessableEntity},
	{application.ErrInvalidCustomer, http.StatusBadRequest},
	{application.ErrTerminalState, http.StatusConflict},
	{application.ErrNotYourStage, http.StatusForbidden},
	{application.ErrAlreadyFlagged, http.StatusConflict},
	{application.ErrUnknownAction, http.StatusBadRequest},
	{application.ErrInconsistentData, http.StatusConflict},
	{application.ErrUnknownProduct, http.StatusBadRequest},
	{application.ErrInvalidTerm, http.StatusBadRequest},
	{application.ErrAmountOutOfRange, http.StatusBadRequest},

	{account.ErrNotFound, http.StatusNotFound},
	{account.ErrAlreadyExists, http.StatusConflict},
	{account.ErrAlreadyReviewed, http.StatusConflict},
	{account.ErrForbidden, http.StatusForbidden},
	{account.ErrInvalidDecision, http.StatusBadRequest},

	{document.ErrTooLarge, http.StatusRequestEntityTooLarge},
	{document.ErrUnsupportedType, http.StatusUnsupportedMediaType},
	{document.ErrEmpty, http.StatusBadRequest},
	{document.ErrUnknownBucket, http.StatusBadRequest},
	{document.ErrInvalidKind, http.StatusBadRequest},
	{document.ErrInvalidPath, http.StatusBadRequest},
	{document.ErrForbidden, http.StatusForbidden},

	{staff.ErrLocked, http.StatusLocked},
	{staff.ErrInvalidAccessCode, http.StatusUnauthorized},
	{staff.ErrInvalidRole, http.StatusBadRequest},
	{staff.ErrWeakAccessCode, http.StatusBadRequest},
	{staff.ErrNotFound, http.StatusNotFound},
	{staff.ErrUserNotFound, http.StatusNotFound},

	{admin.ErrInvalidSettings, http.StatusBadRequest},
	{jobs.ErrPurgeNotConfirmed, http.StatusBadRequest},

	{assistant.ErrRateLimited, http.StatusTooManyRequests},
	{assistant.ErrPaymentRequired, http.StatusPaymentRequired},
	{assistant.ErrNotConfigured, http.StatusServiceUnavailable},
	{assistant.ErrNoMessages, http.StatusBadRequest},
	{assistant.ErrEmptyCompletion, http.StatusBadGateway},
	{report.ErrRendererUnavailable, http.StatusNotImplemented},

	{auth.ErrInvalidIdentityToken, http.StatusUnauthorized},
	{auth.ErrSessionInvalid, http.StatusUnauthorized},
}

func writeError(c *gin.Context, err error) {
	var fe *kyc.FieldError
	if errors.As(err, &fe) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": fe.Field, "message": fe.Message})
		return
	}
	var ne *application.NotEligibleError
	if errors.As(err, &ne) {
		c.JSON(http.StatusConflict, gin.H{"error": application.ErrNotEligible.Error(), "eligibility": ne.Eligibility})
		return
	}
	var gw *assistant.GatewayError
	if errors.As(err, &gw) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "ai_gateway_error"})
		return
	}
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			c.JSON(m.status, gin.H{"error": m.err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}
