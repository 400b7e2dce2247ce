package gateway

import (
	"errors"
	"net/http"

	"zgate/internal/connection"
)

// HTTPStatus maps a gateway error to the status class a routing layer
// should answer with. Facility statuses are passed through.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		authErr      *connection.AuthError
		transportErr *connection.TransportError
		remoteErr    *connection.RemoteError
	)
	switch {
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &transportErr):
		if transportErr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case errors.Is(err, connection.ErrJobTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, connection.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, connection.ErrUnsupportedOrganization),
		errors.Is(err, connection.ErrPartitioned),
		errors.Is(err, connection.ErrInvalidName),
		errors.Is(err, connection.ErrInvalidJobStream):
		return http.StatusBadRequest
	case errors.As(err, &remoteErr):
		if remoteErr.Status >= 400 {
			return remoteErr.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
