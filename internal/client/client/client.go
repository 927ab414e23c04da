package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filingapi/internal/server/models"
)

// Client is the part of the filing API the CLI uses.
type Client interface {
	CreateFiling(ctx context.Context, lei, period string) (*models.Filing, error)
	Upload(ctx context.Context, lei, period, filename string, content io.Reader) (*models.Submission, error)
	Submission(ctx context.Context, lei, period string, counter int64) (*models.Submission, error)
	Accept(ctx context.Context, lei, period string, counter int64) (*models.Submission, error)
	Sign(ctx context.Context, lei, period string) (*models.Filing, error)
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (c *HTTPClient) filingURL(lei, period string, elem ...string) string {
	parts := append([]string{c.baseURL, "v1/filing/institutions", url.PathEscape(lei), "filings", url.PathEscape(period)}, elem...)
	return strings.Join(parts, "/")
}

func (c *HTTPClient) do(ctx context.Context, method, u, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, u, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", u, err)
	}
	return nil
}

func (c *HTTPClient) CreateFiling(ctx context.Context, lei, period string) (*models.Filing, error) {
	var f models.Filing
	if err := c.do(ctx, http.MethodPost, c.filingURL(lei, period), "", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Upload sends content as the multipart "file" field, typed text/csv.
func (c *HTTPClient) Upload(ctx context.Context, lei, period, filename string, content io.Reader) (*models.Submission, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	hdr.Set("Content-Type", "text/csv")
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var sub models.Submission
	if err := c.do(ctx, http.MethodPost, c.filingURL(lei, period, "submissions"), mw.FormDataContentType(), &buf, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) Submission(ctx context.Context, lei, period string, counter int64) (*models.Submission, error) {
	var sub models.Submission
	if err := c.do(ctx, http.MethodGet, c.filingURL(lei, period, "submissions", fmt.Sprint(counter)), "", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) Accept(ctx context.Context, lei, period string, counter int64) (*models.Submission, error) {
	var sub models.Submission
	if err := c.do(ctx, http.MethodPut, c.filingURL(lei, period, "submissions", fmt.Sprint(counter), "accept"), "", nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *HTTPClient) Sign(ctx context.Context, lei, period string) (*models.Filing, error) {
	var f models.Filing
	if err := c.do(ctx, http.MethodPut, c.filingURL(lei, period, "sign"), "", nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// WaitForTerminal polls the submission every interval until its state is
// terminal. It gives up with ErrPollTimeout once timeout has passed.
func WaitForTerminal(ctx context.Context, c Client, lei, period string, counter int64, interval, timeout time.Duration) (*models.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		sub, err := c.Submission(ctx, lei, period, counter)
		switch {
		case err == nil && sub.State.IsTerminal():
			return sub, nil
		case err != nil && !errors.Is(err, ErrUnavailable):
			if ctx.Err() != nil {
				return nil, ErrPollTimeout
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ErrPollTimeout
		case <-t.C:
		}
	}
}
