package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// CommunityClient talks to the community moderation backend: a shared
// blocklist to pull and a report endpoint to push.
type CommunityClient struct {
	client HTTPClient
	base   string
	apiKey string
	log    *zap.Logger
}

// NewCommunityClient creates a client for the given base URL.
func NewCommunityClient(client HTTPClient, base, apiKey string, log *zap.Logger) *CommunityClient {
	return &CommunityClient{client: client, base: base, apiKey: apiKey, log: log}
}

type blocklistResponse struct {
	Users []string `json:"users"`
}

type reportRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// FetchBlocklist retrieves the community-maintained handle list.
func (c *CommunityClient) FetchBlocklist(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/blocklist", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blocklist request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blocklist status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var parsed blocklistResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode blocklist: %w", err)
	}
	return parsed.Users, nil
}

// Report submits a moderation report. Callers treat this as fire-and-forget;
// its failure never affects the outcome of the block action it accompanies.
func (c *CommunityClient) Report(ctx context.Context, userID, reason string) error {
	payload, err := json.Marshal(reportRequest{UserID: userID, Reason: reason})
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/report", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("report request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("report status %d", resp.StatusCode)
	}
	return nil
}

// ReportAsync runs Report in the background, logging failures only. The
// returned channel closes once the attempt has finished, so a caller about to
// exit can wait for the request to go out without caring about its outcome.
func (c *CommunityClient) ReportAsync(ctx context.Context, userID, reason string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Report(ctx, userID, reason); err != nil {
			c.log.Warn("community report failed",
				zap.String("user_id", userID), zap.Error(err))
		} else {
			c.log.Debug("community report submitted", zap.String("user_id", userID))
		}
	}()
	return done
}
