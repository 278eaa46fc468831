package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chatsync: server returned %d: %s", e.StatusCode, e.Message)
}

// Client fetches history pages over HTTP. It implements PageFetcher.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type pageEnvelope struct {
	Data []Message `json:"data"`
	Meta struct {
		Page        int  `json:"page"`
		HasNextPage bool `json:"has_next_page"`
	} `json:"meta"`
	Error string `json:"error"`
}

func (c *Client) FetchPage(ctx context.Context, chatID uuid.UUID, page, pageSize int) (*Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	endpoint := fmt.Sprintf("%s/api/chats/%s/messages?%s", c.baseURL, chatID, query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("chatsync: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chatsync: fetch page %d: %w", page, err)
	}
	defer resp.Body.Close()

	var body pageEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, fmt.Errorf("chatsync: decode page %d: %w", page, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: body.Error}
	}

	messages := body.Data
	if messages == nil {
		messages = []Message{}
	}
	return &Page{
		Messages:    messages,
		Page:        body.Meta.Page,
		HasNextPage: body.Meta.HasNextPage,
	}, nil
}
