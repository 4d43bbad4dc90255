package notary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client posts anchor hashes to an external notarization endpoint. The
// endpoint is treated as opaque: any 2xx response whose JSON body
// carries an id field counts as a successful notarization.
type Client struct {
	url     string
	token   string
	timeout time.Duration
	httpDo  func(*http.Request) (*http.Response, error)
}

const maxNotaryResponseBytes = 64 * 1024

func NewClient(url, token string, timeout time.Duration, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("notary url is required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		url:     url,
		token:   token,
		timeout: timeout,
		httpDo:  doer,
	}, nil
}

func (c *Client) URL() string { return c.url }

type notarizeRequest struct {
	AnchorHash string `json:"anchor_hash"`
	AnchorID   string `json:"anchor_id"`
	KID        string `json:"kid,omitempty"`
}

type notarizeResponse struct {
	ID string `json:"id"`
}

// Notarize performs one attempt. It returns the external identifier
// the notary assigned to this anchoring.
func (c *Client) Notarize(ctx context.Context, anchorID, anchorHash, kid string) (string, error) {
	body, err := json.Marshal(notarizeRequest{
		AnchorHash: anchorHash,
		AnchorID:   anchorID,
		KID:        kid,
	})
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return "", fmt.Errorf("notary request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxNotaryResponseBytes))
	if err != nil {
		return "", fmt.Errorf("notary response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("notary status %d", resp.StatusCode)
	}

	var parsed notarizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("notary response body: %w", err)
	}
	if parsed.ID == "" {
		return "", errors.New("notary response missing id")
	}
	return parsed.ID, nil
}
