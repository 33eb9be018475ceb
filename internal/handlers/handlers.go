package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/OsGift/safawinet-api/internal/metrics"
	"github.com/OsGift/safawinet-api/internal/middleware"
	"github.com/OsGift/safawinet-api/internal/models"
	"github.com/OsGift/safawinet-api/internal/rbac"
	"github.com/OsGift/safawinet-api/internal/services"
	"github.com/OsGift/safawinet-api/internal/utils"
)

// AuditRecorder stores audit entries
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditLog)
}

// Exporter renders downloadable files
type Exporter interface {
	ExportUsers(format models.ExportFormat, users []models.User) (*services.ExportFile, error)
	ExportAuditLogs(format models.ExportFormat, logs []models.AuditLog) (*services.ExportFile, error)
}

// Deps are shared by every handler
type Deps struct {
	Audit   AuditRecorder
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// base carries the pieces every handler uses to decode, respond and audit
type base struct {
	validator *validator.Validate
	audit     AuditRecorder
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func newBase(deps Deps) base {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{
		validator: utils.NewValidator(),
		audit:     deps.Audit,
		metrics:   deps.Metrics,
		logger:    logger,
	}
}

// decode reads the JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (b *base) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			utils.RespondWithError(w, http.StatusBadRequest, "Request body is empty")
			return false
		}
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	defer r.Body.Close()

	if err := b.validator.Struct(dst); err != nil {
		utils.RespondWithFieldErrors(w, http.StatusBadRequest, "Validation failed", utils.FormatValidationErrors(err))
		return false
	}
	return true
}

// fail maps a service error to a status code; unknown errors become a 500 with fallback as message
func (b *base) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ce *rbac.ConstraintError
	switch {
	case errors.As(err, &ce):
		b.metrics.ObserveConstraintRejection(ce.Code)
		utils.RespondWithJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   true,
			"message": ce.Message,
			"code":    ce.Code,
			"page":    ce.Page,
			"action":  ce.Action,
		})
	case errors.Is(err, services.ErrInvalidID),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrIncorrectPassword),
		errors.Is(err, services.ErrTwoFactorEnabled),
		errors.Is(err, services.ErrTwoFactorNotEnabled),
		errors.Is(err, services.ErrTwoFactorNotPending),
		errors.Is(err, services.ErrTemplateInactive):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidTwoFactor):
		utils.RespondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrAdminRequired),
		errors.Is(err, services.ErrCannotDeleteSelf),
		errors.Is(err, services.ErrCannotDemoteSelf),
		errors.Is(err, services.ErrCannotEditOwnAccess),
		errors.Is(err, services.ErrPermissionExceeded),
		errors.Is(err, services.ErrAccountInactive),
		errors.Is(err, services.ErrDefaultTemplateImmutable):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrTemplateNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrEmailTaken):
		utils.RespondWithFieldErrors(w, http.StatusConflict, err.Error(),
			[]models.FieldError{{Field: "email", Message: err.Error()}})
	case errors.Is(err, services.ErrDuplicateTemplateName):
		utils.RespondWithFieldErrors(w, http.StatusConflict, err.Error(),
			[]models.FieldError{{Field: "name", Message: err.Error()}})
	case errors.Is(err, services.ErrUploadDisabled):
		utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		b.logger.Error(fallback,
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r)),
			zap.Error(err))
		utils.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// record fills the request metadata and the acting user, then stores entry
func (b *base) record(r *http.Request, entry models.AuditLog) {
	if b.audit == nil {
		return
	}
	if entry.UserID == nil {
		if ac, err := middleware.GetAuthContext(r); err == nil {
			id := ac.UserID
			entry.UserID = &id
			entry.UserEmail = ac.Email
		}
	}
	entry.IPAddress = middleware.ClientIP(r)
	entry.UserAgent = r.UserAgent()
	entry.RequestID = middleware.GetRequestID(r)
	b.audit.Record(r.Context(), entry)
}

// authContext is only called behind JWTAuth, so a missing context is a wiring bug
func (b *base) authContext(w http.ResponseWriter, r *http.Request) (*models.AuthContext, bool) {
	ac, err := middleware.GetAuthContext(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return ac, true
}

func pageParams(r *http.Request) (int64, int64) {
	q := r.URL.Query()
	page, _ := strconv.ParseInt(q.Get("page"), 10, 64)
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	return page, limit
}

func queryBool(r *http.Request, key string) (*bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, errors.New("invalid value for " + key)
	}
	return &v, nil
}

func queryObjectID(r *http.Request, key string) (*primitive.ObjectID, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil, errors.New("invalid value for " + key)
	}
	return &id, nil
}

// queryTime accepts RFC3339 or YYYY-MM-DD; a bare date used as an upper bound covers the whole day
func queryTime(r *http.Request, key string, endOfDay bool) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, errors.New("invalid date for " + key + ", use YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func sortOrder(raw string) int {
	switch strings.ToLower(raw) {
	case "asc", "1":
		return 1
	default:
		return -1
	}
}
