package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// Validator is the shared struct-tag validator instance, grounded on the
// teacher's cmd/query/main.go use of `httputil.Validator.Struct(&req)`.
var Validator = validator.New(validator.WithRequiredStructEnabled())

// ValidationError formats a validator.ValidationErrors into a 400 response
// listing the offending fields and their failed tags; any other error
// falls back to Fail.
func ValidationError(log *slog.Logger, w http.ResponseWriter, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}
	Fail(log, w, "invalid request", err, http.StatusBadRequest)
}
