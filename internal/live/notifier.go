// ABOUTME: Best-effort HTTP force-close notification to a running workspace service
// ABOUTME: Used when the upgrade never opened a live connection

package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/2389/coven-migrate/internal/auth"
)

// Notifier asks a running service to force-close a workspace
type Notifier interface {
	ForceClose(ctx context.Context, workspace string) error
}

// HTTPNotifier calls PUT {endpoint}/api/v1/manage
type HTTPNotifier struct {
	endpoint string
	signer   auth.TokenSigner
	client   *http.Client
}

// NewHTTPNotifier creates a notifier. endpoint may use ws:// or wss://; it is
// rewritten to http:// or https://.
func NewHTTPNotifier(endpoint string, signer auth.TokenSigner, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPNotifier{endpoint: httpEndpoint(endpoint), signer: signer, client: client}
}

// ForceClose sends one request and reports any failure to the caller
func (n *HTTPNotifier) ForceClose(ctx context.Context, workspace string) error {
	token, err := n.signer.Generate(auth.SystemAccountEmail, workspace, map[string]string{auth.ExtraAdmin: "true"})
	if err != nil {
		return fmt.Errorf("generating manage token: %w", err)
	}

	q := url.Values{}
	q.Set("token", token)
	q.Set("operation", OperationForceClose)
	q.Set("wsId", workspace)
	target := n.endpoint + ManagePath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, nil)
	if err != nil {
		return fmt.Errorf("building manage request: %w", err)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling manage endpoint: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("manage endpoint returned %s", resp.Status)
	}
	return nil
}
