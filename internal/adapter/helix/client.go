// Package helix implements domain.CandidateSource over a Helix-style
// streaming platform HTTP API.
package helix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/neomorfeo/teamhost/internal/domain"
)

// maxLoginsPerRequest is the provider's limit on repeated login parameters.
const maxLoginsPerRequest = 100

// Compile-time check: Client implements domain.CandidateSource.
var _ domain.CandidateSource = (*Client)(nil)

// Config holds the provider endpoint and credentials.
type Config struct {
	BaseURL           string
	ClientID          string
	Token             string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client queries live streams and user identities. Every request waits on a
// shared rate limiter; failures are returned wrapped in domain.ErrSourceUnavailable.
type Client struct {
	baseURL  string
	clientID string
	token    string
	http     *http.Client
	limiter  *rate.Limiter
}

// New creates a client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clientID: cfg.ClientID,
		token:    cfg.Token,
		http:     httpClient,
		limiter:  rate.NewLimiter(limit, burst),
	}
}

type stream struct {
	UserLogin   string `json:"user_login"`
	UserName    string `json:"user_name"`
	GameName    string `json:"game_name"`
	ViewerCount int    `json:"viewer_count"`
}

type user struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

type page[T any] struct {
	Data []T `json:"data"`
}

// LiveChannels returns the live members of channels in roster order.
func (c *Client) LiveChannels(ctx context.Context, channels []string) ([]domain.Candidate, error) {
	streams, err := c.streams(ctx, channels)
	if err != nil {
		return nil, err
	}

	byLogin := make(map[string]stream, len(streams))
	for _, s := range streams {
		byLogin[strings.ToLower(s.UserLogin)] = s
	}

	var out []domain.Candidate
	for _, ch := range channels {
		s, ok := byLogin[strings.ToLower(ch)]
		if !ok {
			continue
		}
		name := s.UserName
		if name == "" {
			name = s.UserLogin
		}
		out = append(out, domain.Candidate{Name: name, Tag: s.GameName, Viewers: s.ViewerCount})
	}
	return out, nil
}

// OfflineChannels returns the entries of channels that are not live, as given.
func (c *Client) OfflineChannels(ctx context.Context, channels []string) ([]string, error) {
	streams, err := c.streams(ctx, channels)
	if err != nil {
		return nil, err
	}

	live := make(map[string]bool, len(streams))
	for _, s := range streams {
		live[strings.ToLower(s.UserLogin)] = true
	}

	var out []string
	for _, ch := range channels {
		if !live[strings.ToLower(ch)] {
			out = append(out, ch)
		}
	}
	return out, nil
}

// ResolveChannel looks up a login, with or without a leading "@".
func (c *Client) ResolveChannel(ctx context.Context, nameOrHandle string) (domain.Identity, error) {
	login := strings.TrimPrefix(strings.TrimSpace(nameOrHandle), "@")
	if login == "" {
		return domain.Identity{}, nil
	}

	var resp page[user]
	if err := c.get(ctx, "/users", url.Values{"login": {login}}, &resp); err != nil {
		return domain.Identity{}, err
	}
	if len(resp.Data) == 0 {
		return domain.Identity{}, nil
	}

	name := resp.Data[0].DisplayName
	if name == "" {
		name = resp.Data[0].Login
	}
	return domain.Identity{Exists: true, Name: name}, nil
}

func (c *Client) streams(ctx context.Context, channels []string) ([]stream, error) {
	var all []stream
	for start := 0; start < len(channels); start += maxLoginsPerRequest {
		end := min(start+maxLoginsPerRequest, len(channels))

		query := url.Values{"first": {fmt.Sprint(maxLoginsPerRequest)}}
		for _, ch := range channels[start:end] {
			query.Add("user_login", strings.ToLower(ch))
		}

		var resp page[stream]
		if err := c.get(ctx, "/streams", query, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: waiting for rate limiter: %w", domain.ErrSourceUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %w", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.clientID != "" {
		req.Header.Set("Client-Id", c.clientID)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", domain.ErrSourceUnavailable, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s: unexpected status %d", domain.ErrSourceUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", domain.ErrSourceUnavailable, path, err)
	}
	return nil
}
