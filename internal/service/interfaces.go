package service

import (
	"context"

	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram"
	"github.com/Memesold/vk-tg-repost-bot/pkg/vk"
)

// ConfigStore is the persistence surface the sync and menu services need.
type ConfigStore interface {
	GetUserRecord(ctx context.Context, userID int64) (*models.UserRecord, error)
	SaveUserRecord(ctx context.Context, userID int64, record *models.UserRecord) error
	UpdateBot(ctx context.Context, userID int64, botIndex int, bot models.BotConfig) error
	DeleteBot(ctx context.Context, userID int64, botIndex int) error
	GetCursor(ctx context.Context, userID int64, botIndex int) (int64, error)
	SetCursor(ctx context.Context, userID int64, botIndex int, cursor int64) error
	SetPendingInput(ctx context.Context, userID int64, pending string) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}

// VKClientFactory builds a wall client for one stored credential pair.
type VKClientFactory func(accessToken, ownerID string) vk.Client

// TelegramClientFactory builds a sender for one stored bot token.
type TelegramClientFactory func(botToken string) telegram.Client

// SyncRunner is what the scheduler drives on every tick.
type SyncRunner interface {
	SyncAllUsers(ctx context.Context) []models.SyncOutcome
}
