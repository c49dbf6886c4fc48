package httpapi

import (
	"context"
	"errors"
	"net/http"

	"hauntq/internal/store"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

func mapError(err error) (int, string, string) {
	var validation *store.ValidationError
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "validation_error", validation.Error()
	case errors.Is(err, store.ErrReservationNotFound):
		return http.StatusNotFound, "not_found", "reservation not found"
	case errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "conflict", "concurrent update, reload and retry"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout", "storage timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

// fail writes the mapped error. Server-side failures are logged with their
// storage diagnostics; clients only see the generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := mapError(err)
	if status >= http.StatusInternalServerError {
		fields := storageFields(err)
		fields["path"] = r.URL.Path
		fields["request_id"] = requestIDFromRequest(r)
		h.logger.WithFields(fields).Error(err.Error())
	}
	writeError(w, status, code, message)
}

func storageFields(err error) logrus.Fields {
	fields := logrus.Fields{}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields["pg_code"] = pgErr.Code
		fields["pg_message"] = pgErr.Message
		fields["pg_constraint"] = pgErr.ConstraintName
		fields["pg_table"] = pgErr.TableName
	}
	return fields
}
