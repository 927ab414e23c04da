// Package notify sends filing notifications to the mail service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/filingapi/internal/common"
)

// Confirmation is the body posted to the mail service after a filing is signed.
type Confirmation struct {
	ConfirmationID string `json:"confirmation_id"`
	SignerEmail    string `json:"signer_email"`
	SignerName     string `json:"signer_name"`
	ContactEmail   string `json:"contact_email"`
	Timestamp      int64  `json:"timestamp"`
}

type Client struct {
	httpClient *http.Client
	url        string
}

// New returns a mail client posting to url. A zero timeout means no limit.
func New(url string, timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}, url: url}
}

// SendConfirmation posts c as JSON. Transport failures and non-2xx answers
// are reported as a 503 request error.
func (c *Client) SendConfirmation(ctx context.Context, conf Confirmation) error {
	body, err := json.Marshal(conf)
	if err != nil {
		return fmt.Errorf("encode confirmation: %w", err)
	}

	fail := func(cause error) error {
		return common.NewRequestError(http.StatusServiceUnavailable, "Confirmation Email Send Fail",
			fmt.Sprintf("Failed to send confirmation email for %s.", conf.SignerEmail), cause)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fail(fmt.Errorf("mail service returned %d: %s", resp.StatusCode, msg))
	}
	return nil
}
