package errors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Doc-Search-Index/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestDecodeError(t *testing.T) {
	t.Parallel()

	t.Run("unwraps to sentinel", func(t *testing.T) {
		t.Parallel()

		err := &apperrors.DecodeError{Namespace: "core", Record: 3, Err: apperrors.ErrOutOfRange, Detail: "index 9 >= 4"}
		wrapped := fmt.Errorf("building namespace: %w", err)

		assert.ErrorIs(t, wrapped, apperrors.ErrOutOfRange)
		de, ok := apperrors.AsDecodeError(wrapped)
		assert.True(t, ok)
		assert.Equal(t, "core", de.Namespace)
		assert.Equal(t, `namespace "core", record 3: string reference out of range: index 9 >= 4`, err.Error())
	})

	t.Run("namespace level message omits record", func(t *testing.T) {
		t.Parallel()

		err := apperrors.Decodef(apperrors.ErrMalformedTuple, "items is not an array")
		err.Namespace = "core"

		assert.Equal(t, `namespace "core": malformed record tuple: items is not an array`, err.Error())
	})
}

func TestHTTPStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", apperrors.New(apperrors.ErrInternal, http.StatusTeapot, "x"), http.StatusTeapot},
		{"invalid input", fmt.Errorf("q: %w", apperrors.ErrInvalidInput), http.StatusBadRequest},
		{"not ready", apperrors.ErrCatalogNotReady, http.StatusServiceUnavailable},
		{"decode", &apperrors.DecodeError{Err: apperrors.ErrTooDeep}, http.StatusUnprocessableEntity},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, apperrors.HTTPStatusCode(tt.err))
		})
	}
}
