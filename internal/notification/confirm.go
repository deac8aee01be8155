package notification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Confirmer completes the SNS subscription handshake by fetching the
// SubscribeURL once.
type Confirmer struct {
	client HTTPDoer
}

// NewConfirmer returns a Confirmer using client. If client is nil, an
// http.Client with the given timeout is used.
func NewConfirmer(client HTTPDoer, timeout time.Duration) *Confirmer {
	if client == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Confirmer{client: client}
}

// Confirm issues a single GET to subscribeURL. Any transport error or
// non-2xx status is returned as an error; no retry is attempted.
func (c *Confirmer) Confirm(ctx context.Context, subscribeURL string) error {
	if subscribeURL == "" {
		return errors.New("confirm subscription: empty SubscribeURL")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, subscribeURL, nil)
	if err != nil {
		return fmt.Errorf("confirm subscription: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("confirm subscription: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("confirm subscription: unexpected status %d", resp.StatusCode)
	}
	return nil
}
