// Copyright 2026 The RoomTalk Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/roomtalk/roomtalk/lib/netutil"
)

// defaultPageSize is the history page size when the caller does not
// choose one.
const defaultPageSize = 30

// historySort is the per-page sort order requested from the REST
// collaborator: newest first, so each page reaches further into the
// past. Pages are reversed before merging into the ascending timeline.
const historySort = "createdAt,desc"

// HistoryClientConfig configures a HistoryClient.
type HistoryClientConfig struct {
	// BaseURL is the REST API base (e.g., "https://api.roomtalk.app").
	BaseURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// HistoryClient fetches backward-paginated message history over REST.
// It is stateless — the page cursor lives with the Room, so the client
// is shared safely across rooms.
type HistoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHistoryClient creates a HistoryClient.
func NewHistoryClient(config HistoryClientConfig) (*HistoryClient, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("chat: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("chat: invalid BaseURL %q: %w", config.BaseURL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// PageOptions controls one history fetch.
type PageOptions struct {
	// Page is the zero-based page index, counting backward from the
	// newest messages.
	Page int
	// Size is the page size. Zero means the 30-message default.
	Size int
}

// HistoryPage is one page of message history. Items arrive in the
// server's per-page order (newest first).
type HistoryPage struct {
	Items      []WireMessage `json:"content"`
	IsLastPage bool          `json:"last"`
}

// RoomMessages fetches one history page for a room. The bearer token is
// the same credential the broker session authenticated with.
func (c *HistoryClient) RoomMessages(ctx context.Context, roomID int64, authToken string, options PageOptions) (*HistoryPage, error) {
	size := options.Size
	if size <= 0 {
		size = defaultPageSize
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(options.Page))
	query.Set("size", strconv.Itoa(size))
	query.Set("sort", historySort)

	requestURL := fmt.Sprintf("%s/api/chat/rooms/%d/messages?%s", c.baseURL, roomID, query.Encode())
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("chat: create history request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+authToken)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("chat: history request for room %d failed: %w", roomID, err)
	}
	defer response.Body.Close()

	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, fmt.Errorf("chat: read history response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr APIError
		if jsonErr := json.Unmarshal(body, &apiErr); jsonErr != nil {
			return nil, fmt.Errorf("chat: unexpected %d response fetching history for room %d: %s",
				response.StatusCode, roomID, string(body))
		}
		apiErr.StatusCode = response.StatusCode
		return nil, &apiErr
	}

	var page HistoryPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("chat: parse history page: %w", err)
	}

	c.logger.Debug("fetched history page",
		"room_id", roomID,
		"page", options.Page,
		"items", len(page.Items),
		"last", page.IsLastPage,
	)
	return &page, nil
}

// AscendingItems returns the page's messages reversed into ascending
// time order, ready to prepend to the timeline.
func (p *HistoryPage) AscendingItems() []WireMessage {
	out := make([]WireMessage, len(p.Items))
	for i := range p.Items {
		out[len(p.Items)-1-i] = p.Items[i]
	}
	return out
}
