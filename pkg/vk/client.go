package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/pkg/constants"
	"github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"

	"github.com/sirupsen/logrus"
)

// Client fetches a bounded window of recent posts from one community wall.
type Client interface {
	FetchWall(ctx context.Context) ([]types.WallPost, error)
	ValidateToken(ctx context.Context) error
}

type WallClient struct {
	baseURL     string
	accessToken string
	ownerID     string
	apiVersion  string
	window      int
	client      *http.Client
	logger      *logrus.Logger
}

func NewClient(cfg types.ClientConfig) Client {
	return NewClientWithLogger(cfg, nil)
}

func NewClientWithLogger(cfg types.ClientConfig, logger *logrus.Logger) Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeoutSec * time.Second
	}

	window := cfg.Window
	if window <= 0 {
		window = constants.DefaultFetchWindow
	}

	return &WallClient{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		ownerID:     cfg.OwnerID,
		apiVersion:  cfg.APIVersion,
		window:      window,
		client:      &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// FetchWall performs one wall.get call and returns the window of recent
// posts as VK orders them. Pinned and promoted posts are included; filtering
// is the caller's concern.
func (c *WallClient) FetchWall(ctx context.Context) ([]types.WallPost, error) {
	payload, err := c.wallGet(ctx, c.window)
	if err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// ValidateToken performs a minimal wall.get to verify the token can read the
// configured wall. Used at configuration entry time.
func (c *WallClient) ValidateToken(ctx context.Context) error {
	_, err := c.wallGet(ctx, 1)
	return err
}

func (c *WallClient) wallGet(ctx context.Context, count int) (*types.WallGetPayload, error) {
	params := url.Values{}
	params.Set("owner_id", c.ownerID)
	params.Set("count", strconv.Itoa(count))
	params.Set("filter", "owner")
	params.Set("v", c.apiVersion)
	params.Set("access_token", c.accessToken)

	endpoint := fmt.Sprintf("%s/wall.get", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"owner_id": c.ownerID,
		"count":    count,
	}).Debug("Fetching VK wall")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("VK API error: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var envelope types.WallGetResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// VK reports API-level failures with HTTP 200 and an error envelope
	if envelope.Error != nil {
		return nil, fmt.Errorf("VK API error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if envelope.Response == nil {
		return nil, fmt.Errorf("VK API returned neither response nor error")
	}

	return envelope.Response, nil
}
