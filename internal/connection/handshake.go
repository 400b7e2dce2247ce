package connection

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// AcquireToken performs the anti-forgery handshake against the facility
// root. An empty token with a nil error means the facility answered 200
// without issuing one; callers proceed without it. There is no retry.
func (t *Transport) AcquireToken(ctx context.Context, p Profile) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint(p, ""), nil)
	if err != nil {
		return "", fmt.Errorf("handshake: %w", err)
	}
	req.SetBasicAuth(p.User, p.Password)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", newTransportError("handshake", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", newTransportError("handshake", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Status: resp.StatusCode, Body: string(body)}
	}

	token := resp.Header.Get(TokenHeader)
	zerolog.Ctx(ctx).Debug().Bool("token_present", token != "").Msg("handshake complete")
	return token, nil
}
