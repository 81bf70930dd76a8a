package httputil

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tomerlieber/docflow/internal/apperr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriteErrorMapsKindToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperr.New(apperr.KindValidation, "bad input"), http.StatusBadRequest},
		{apperr.New(apperr.KindPermanent, "corrupt file"), http.StatusBadRequest},
		{apperr.New(apperr.KindAuthorization, "unknown credential"), http.StatusUnauthorized},
		{apperr.New(apperr.KindNotFound, "no such document"), http.StatusNotFound},
		{apperr.New(apperr.KindRateLimited, "too fast"), http.StatusTooManyRequests},
		{apperr.New(apperr.KindTransient, "blob store down"), http.StatusServiceUnavailable},
		{apperr.New(apperr.KindConsistency, "cross-tenant leak"), http.StatusInternalServerError},
		{errors.New("unclassified"), http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		WriteError(discardLogger(), rec, c.err)
		require.Equal(t, c.status, rec.Code, c.err.Error())
	}
}

func TestWriteErrorSetsRetryAfterHeaderForRateLimited(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(discardLogger(), rec, apperr.NewRateLimited("too fast", 2500))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestWriteErrorOmitsRetryAfterHeaderWhenUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(discardLogger(), rec, apperr.New(apperr.KindRateLimited, "too fast"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Empty(t, rec.Header().Get("Retry-After"))
}

func TestFingerprintAPIKeyIsDeterministicAndKeyless(t *testing.T) {
	a := FingerprintAPIKey("tenant-secret-key")
	b := FingerprintAPIKey("tenant-secret-key")
	c := FingerprintAPIKey("different-key")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotContains(t, a, "tenant-secret-key")
}
