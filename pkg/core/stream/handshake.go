package stream

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vango-go/vai-wingman/pkg/core"
)

// HandshakeError converts a failed websocket dial into a typed error. Rejected
// credentials surface as authentication errors so session start can report
// them as configuration problems instead of retrying.
func HandshakeError(provider string, resp *http.Response, err error) error {
	if resp == nil {
		return core.NewProviderError(provider, fmt.Errorf("websocket connect: %w", err))
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e := core.NewAuthenticationError(fmt.Sprintf("%s rejected credentials: %s", provider, msg))
		e.ProviderError = err
		return e
	case http.StatusTooManyRequests:
		e := core.NewRateLimitError(fmt.Sprintf("%s: %s", provider, msg), 0)
		e.ProviderError = err
		return e
	}
	return core.NewProviderError(provider, fmt.Errorf("websocket connect (status %d): %s", resp.StatusCode, msg))
}
