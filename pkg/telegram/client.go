package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/pkg/constants"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// Client performs calls against the Telegram Bot API for one bot token.
// Delivery calls (SendMessage, SendPhoto, SendMediaGroup) are single shots
// with no internal retry; failures are reported to the caller.
type Client interface {
	SendMessage(ctx context.Context, chatID, text string) (*types.Message, error)
	SendMessageWithMarkup(ctx context.Context, chatID, text string, markup *types.InlineKeyboardMarkup) (*types.Message, error)
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) (*types.Message, error)
	SendMediaGroup(ctx context.Context, chatID string, media []types.InputMediaPhoto) ([]types.Message, error)
	GetMe(ctx context.Context) (*types.User, error)
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]types.Update, error)
	AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error
	EditMessageText(ctx context.Context, chatID string, messageID int64, text string, markup *types.InlineKeyboardMarkup) error
}

type BotClient struct {
	baseURL  string
	botToken string
	client   *http.Client
	logger   *logrus.Logger
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
		// getUpdates long polls, so the HTTP timeout must exceed the poll timeout
		timeout = constants.DefaultLongPollTimeoutSec * time.Second
	}

	return &BotClient{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		botToken: cfg.BotToken,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

func (c *BotClient) SendMessage(ctx context.Context, chatID, text string) (*types.Message, error) {
	return c.SendMessageWithMarkup(ctx, chatID, text, nil)
}

func (c *BotClient) SendMessageWithMarkup(ctx context.Context, chatID, text string, markup *types.InlineKeyboardMarkup) (*types.Message, error) {
	payload := types.SendMessageRequest{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}

	var message types.Message
	if err := c.call(ctx, "sendMessage", payload, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *BotClient) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (*types.Message, error) {
	payload := types.SendPhotoRequest{
		ChatID:    chatID,
		Photo:     photoURL,
		Caption:   caption,
		ParseMode: "HTML",
	}

	var message types.Message
	if err := c.call(ctx, "sendPhoto", payload, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *BotClient) SendMediaGroup(ctx context.Context, chatID string, media []types.InputMediaPhoto) ([]types.Message, error) {
	payload := types.SendMediaGroupRequest{
		ChatID: chatID,
		Media:  media,
	}

	var messages []types.Message
	if err := c.call(ctx, "sendMediaGroup", payload, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *BotClient) GetMe(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.call(ctx, "getMe", struct{}{}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *BotClient) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]types.Update, error) {
	payload := types.GetUpdatesRequest{
		Offset:         offset,
		Timeout:        timeoutSec,
		AllowedUpdates: []string{"message", "callback_query"},
	}

	var updates []types.Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *BotClient) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	payload := types.AnswerCallbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

func (c *BotClient) EditMessageText(ctx context.Context, chatID string, messageID int64, text string, markup *types.InlineKeyboardMarkup) error {
	payload := types.EditMessageTextRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}
	return c.call(ctx, "editMessageText", payload, nil)
}

// call performs one Bot API method call and decodes the result envelope.
func (c *BotClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.botToken, method)

	c.logger.WithField("method", method).Debug("Calling Telegram Bot API")

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var envelope types.APIResponse
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if !envelope.OK {
		return &types.APICallError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   envelope.ErrorCode,
			Description: envelope.Description,
		}
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("failed to decode result: %w", err)
		}
	}

	return nil
}
