package apperr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/dalemusser/planhub/internal/app/system/apperr"
	"github.com/dalemusser/planhub/internal/app/system/docstore"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"not found", docstore.ErrNotFound, apperr.KindNotFound},
		{"wrapped not found", fmt.Errorf("get: %w", docstore.ErrNotFound), apperr.KindNotFound},
		{"deadline", context.DeadlineExceeded, apperr.KindStoreUnavailable},
		{"cancelled", context.Canceled, apperr.KindStoreUnavailable},
		{"generic", errors.New("connection reset"), apperr.KindStoreUnavailable},
		{"already typed", apperr.Unauthorized("x", "nope"), apperr.KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := apperr.KindOf(apperr.FromStore("op", tt.err))
			if got != tt.want {
				t.Errorf("KindOf(FromStore(%v)) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestFromStore_Nil(t *testing.T) {
	if err := apperr.FromStore("op", nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestMessageOf(t *testing.T) {
	err := apperr.Validation("chat.Send", "message body is required")
	if got := apperr.MessageOf(err); got != "message body is required" {
		t.Errorf("MessageOf: got %q, want %q", got, "message body is required")
	}
	if got := apperr.MessageOf(errors.New("boom")); got != "an unexpected error occurred" {
		t.Errorf("MessageOf(untyped): got %q", got)
	}
	if got := apperr.MessageOf(nil); got != "" {
		t.Errorf("MessageOf(nil): got %q, want empty", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := apperr.Wrap("membership.Join", apperr.KindStoreUnavailable, "the store is unavailable", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !apperr.Is(err, apperr.KindStoreUnavailable) {
		t.Error("expected Is(StoreUnavailable)")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindUnauthorized, http.StatusForbidden},
		{apperr.KindValidationFailed, http.StatusUnprocessableEntity},
		{apperr.KindStoreUnavailable, http.StatusServiceUnavailable},
		{apperr.KindAlreadyExists, http.StatusConflict},
		{apperr.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := apperr.HTTPStatus(tt.kind); got != tt.want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", tt.kind, got, tt.want)
		}
	}
}
