package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsKeepCause(t *testing.T) {
	cause := errors.New("boom")
	err := Conflict("duplicate submission", cause, WithDetails(Detail{Field: "idempotency_key", Message: "already used"}))

	var base BaseError
	require.ErrorAs(t, err, &base)
	require.Equal(t, StatusConflict, base.Code)
	require.ErrorIs(t, err, cause)
	require.Len(t, base.Details, 1)
	require.Equal(t, http.StatusConflict, base.Code.HTTPStatus())
}

func TestFrom(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", Forbidden("increase not allowed", nil))
	require.Equal(t, StatusForbidden, From(wrapped).Code)

	require.Equal(t, StatusTimeout, From(context.DeadlineExceeded).Code)
	require.Equal(t, StatusInternal, From(errors.New("unexpected")).Code)
	require.Equal(t, "internal error", From(errors.New("db password leaked")).Message)
}

func TestJSONOmitsCause(t *testing.T) {
	err := NotFound("schedule not found", errors.New("record not found")).(BaseError)
	body := err.JSON()["error"].(map[string]any)
	require.Equal(t, "schedule not found", body["message"])
	require.Equal(t, StatusNotFound, body["code"])
}
