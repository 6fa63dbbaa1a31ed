package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/3-lines-studio/toast/internal/core"
	"github.com/3-lines-studio/toast/internal/protocol"
)

// Transport is the worker end of a session: HTTP over the unix socket.
type Transport struct {
	socket string
	client *http.Client
}

func NewTransport(socketPath string, timeout time.Duration) *Transport {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
	}

	return &Transport{
		socket: socketPath,
		client: &http.Client{Transport: transport, Timeout: timeout},
	}
}

// Ready performs the readiness check. Any body other than "ready" fails
// with core.ErrNotReady.
func (t *Transport) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, protocol.BaseURL+protocol.PathReady, nil)
	if err != nil {
		return err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: readiness check on %s: %v", core.ErrNotReady, t.socket, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("%w: failed to read readiness body: %v", core.ErrNotReady, err)
	}

	if got := strings.TrimSpace(string(body)); got != protocol.ReadyBody {
		return fmt.Errorf("%w: orchestrator answered %q", core.ErrNotReady, got)
	}
	return nil
}

// Post sends payload to a registration endpoint. A 422 becomes a
// RegistrationError of kind core.ErrUnprocessablePayload carrying the
// rejected keys; anything else that is not 2xx is core.ErrTransportFailure.
func (t *Transport) Post(ctx context.Context, endpoint, slug string, payload any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return &core.RegistrationError{Kind: core.ErrUnprocessablePayload, Slug: slug, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, protocol.BaseURL+endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return &core.RegistrationError{Kind: core.ErrTransportFailure, Slug: slug, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &core.RegistrationError{Kind: core.ErrTransportFailure, Slug: slug, Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var unprocessable protocol.Unprocessable
		if err := json.Unmarshal(body, &unprocessable); err != nil {
			unprocessable.Error = strings.TrimSpace(string(body))
		}
		return &core.RegistrationError{
			Kind:    core.ErrUnprocessablePayload,
			Slug:    slug,
			Keys:    unprocessable.Keys,
			Message: unprocessable.Error,
		}
	}

	return &core.RegistrationError{
		Kind:    core.ErrTransportFailure,
		Slug:    slug,
		Message: fmt.Sprintf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body))),
	}
}
