package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOfRecoversKindThroughWrap(t *testing.T) {
	base := New(NotFound, "store.GetAgent", errors.New("no rows"))
	wrapped := fmt.Errorf("orchestrator.Route: %w", base)

	require.Equal(t, NotFound, Of(wrapped))
}

func TestOfUnknownErrorIsInternal(t *testing.T) {
	require.Equal(t, Internal, Of(errors.New("boom")))
	require.Equal(t, Kind(""), Of(nil))
}

func TestHTTPStatus(t *testing.T) {
	require.Equal(t, 400, HTTPStatus(BadRequest))
	require.Equal(t, 403, HTTPStatus(MissingCredential))
	require.Equal(t, 404, HTTPStatus(NotFound))
	require.Equal(t, 409, HTTPStatus(ConstraintViolation))
	require.Equal(t, 502, HTTPStatus(UpstreamUnavailable))
	require.Equal(t, 504, HTTPStatus(ToolTimeout))
	require.Equal(t, 500, HTTPStatus(Internal))
}
