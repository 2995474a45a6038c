package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/linemk/farm-market/internal/domain/models"
	"github.com/linemk/farm-market/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/farm-market/internal/lib/logger"
	"github.com/linemk/farm-market/internal/service"
)

var validate = newValidator()

// newValidator называет поля в ошибках так же, как в JSON
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse - тело любого ответа с ошибкой
type ErrorResponse struct {
	Message string `json:"message"`
}

func writeJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", logger.Err(err))
	}
}

func writeError(log *slog.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(log, w, status, ErrorResponse{Message: msg})
}

// respondError переводит ошибку сервиса в код ответа. Внутренние ошибки наружу не отдаются.
func respondError(log *slog.Logger, w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Err(err))
	} else {
		log.Info("request rejected", slog.Int("status", status), logger.Err(err))
	}
	writeError(log, w, status, msg)
}

func statusFor(err error) (int, string) {
	var (
		validationErr *service.ValidationError
		notFoundErr   *service.ProductNotFoundError
		stockErr      *service.InsufficientStockError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusBadRequest, notFoundErr.Error()
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error()
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrRoleNotPermitted),
		errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrEmailTaken):
		return http.StatusBadRequest, rootMessage(err)
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, rootMessage(err)
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, service.ErrNotFound.Error()
	case errors.Is(err, service.ErrUnavailable):
		return http.StatusServiceUnavailable, service.ErrUnavailable.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// rootMessage возвращает текст сервисной ошибки без префиксов op
func rootMessage(err error) string {
	for _, sentinel := range []error{
		service.ErrInvalidStatus,
		service.ErrRoleNotPermitted,
		service.ErrInvalidTransition,
		service.ErrEmailTaken,
		service.ErrUnauthenticated,
		service.ErrInvalidCredentials,
		service.ErrValidation,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

// requesterFrom достаёт пользователя, положенного JWT middleware; без него отвечает 401
func requesterFrom(log *slog.Logger, w http.ResponseWriter, r *http.Request) (models.Requester, bool) {
	requester, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		log.Warn("requester not found in context")
		writeError(log, w, http.StatusUnauthorized, "unauthorized")
	}
	return requester, ok
}

// pathID разбирает числовой параметр маршрута; при ошибке отвечает 400
func pathID(log *slog.Logger, w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(log, w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// decodeAndValidate читает JSON-тело и проверяет теги validate
func decodeAndValidate(log *slog.Logger, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Info("invalid request: decoding error", logger.Err(err))
		writeError(log, w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		log.Info("invalid request: validation error", logger.Err(err))
		writeError(log, w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Param() != "" {
			return fe.Field() + " failed " + fe.Tag() + "=" + fe.Param()
		}
		return fe.Field() + " failed " + fe.Tag()
	}
	return "validation error"
}
