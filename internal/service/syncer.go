package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	apperrors "github.com/Memesold/vk-tg-repost-bot/internal/errors"
	"github.com/Memesold/vk-tg-repost-bot/internal/metrics"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/internal/privacy"
	"github.com/Memesold/vk-tg-repost-bot/internal/tracing"
	"github.com/Memesold/vk-tg-repost-bot/pkg/circuitbreaker"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram"
	tgtypes "github.com/Memesold/vk-tg-repost-bot/pkg/telegram/types"
	"github.com/Memesold/vk-tg-repost-bot/pkg/vk"
	vktypes "github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Syncer runs one repost pass per bot slot: fetch the wall, pick the posts
// past the stored cursor, advance the cursor, then deliver oldest first.
// The cursor is committed before any delivery so a crash mid-pass re-sends
// nothing.
type Syncer struct {
	store       ConfigStore
	newVK       VKClientFactory
	newTG       TelegramClientFactory
	postDelay   time.Duration
	concurrency int
	logger      *logrus.Logger

	// One breaker per slot so a revoked VK token stops hammering the API
	// without affecting other slots.
	breakersMu sync.Mutex
	breakers   map[string]*circuitbreaker.CircuitBreaker

	// sleep is swapped out in tests so pacing does not slow them down.
	sleep func(ctx context.Context, d time.Duration)
}

// NewSyncer creates a sync engine over the given store and client factories.
func NewSyncer(store ConfigStore, newVK VKClientFactory, newTG TelegramClientFactory, syncCfg models.SyncConfig, logger *logrus.Logger) *Syncer {
	postDelay := time.Duration(syncCfg.PostDelaySec) * time.Second
	if syncCfg.PostDelaySec <= 0 {
		postDelay = constants.DefaultPostDelaySec * time.Second
	}
	return &Syncer{
		store:       store,
		newVK:       newVK,
		newTG:       newTG,
		postDelay:   postDelay,
		concurrency: constants.DefaultSyncConcurrency,
		logger:      logger,
		breakers:    make(map[string]*circuitbreaker.CircuitBreaker),
		sleep: func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		},
	}
}

// SyncBot runs a single pass for one bot slot of one user.
func (s *Syncer) SyncBot(ctx context.Context, userID int64, botIndex int) models.SyncOutcome {
	start := time.Now()
	outcome := models.SyncOutcome{UserID: userID, BotIndex: botIndex}

	ctx, span := tracing.StartSpan(ctx, "sync.bot",
		attribute.Int64("user.id", userID),
		attribute.Int("bot.index", botIndex),
	)
	defer span.End()

	record, err := s.store.GetUserRecord(ctx, userID)
	if err != nil {
		outcome.Err = apperrors.NewDatabaseError("get user record", err)
		tracing.RecordError(ctx, outcome.Err)
		return outcome
	}

	bot := record.Bot(botIndex)
	outcome.Cursor = bot.LastPostID
	if !bot.IsConfigured() {
		outcome.Err = apperrors.NewNotConfiguredError(botIndex)
		return outcome
	}

	log := LogWithContext(ctx, s.logger).WithFields(logrus.Fields{
		"userID":   privacy.MaskUserID(userID),
		"botIndex": botIndex,
		"group":    privacy.MaskGroupID(bot.VKGroupID),
	})

	var posts []vktypes.WallPost
	err = s.breakerFor(userID, botIndex).Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		posts, fetchErr = s.newVK(bot.VKToken, bot.VKGroupID).FetchWall(ctx)
		return fetchErr
	})
	if err != nil {
		outcome.Err = apperrors.NewVKAPIError("wall.get", err)
		metrics.IncrementCounter("sync_fetch_errors_total", nil, "VK wall fetch failures")
		tracing.RecordError(ctx, outcome.Err)
		log.WithError(err).Warn("Failed to fetch wall")
		return outcome
	}

	newPosts, newCursor := vk.SelectNew(posts, bot.LastPostID)
	outcome.Found = len(newPosts)

	if newCursor > bot.LastPostID {
		if err := s.store.SetCursor(ctx, userID, botIndex, newCursor); err != nil {
			outcome.Err = apperrors.NewDatabaseError("set cursor", err)
			tracing.RecordError(ctx, outcome.Err)
			log.WithError(err).Error("Failed to advance cursor, skipping delivery")
			return outcome
		}
		outcome.Cursor = newCursor
	}

	if len(newPosts) == 0 {
		log.Debug("No new posts")
		return outcome
	}

	log.WithFields(logrus.Fields{
		"found":  len(newPosts),
		"cursor": newCursor,
	}).Info("Found new posts")

	sender := s.newTG(bot.TGBotToken)
	for _, post := range newPosts {
		requests := RenderPost(post)
		if len(requests) == 0 {
			s.sleep(ctx, s.postDelay)
			continue
		}
		if err := s.deliverPost(ctx, sender, bot.TGChannel, requests); err != nil {
			outcome.Failed++
			metrics.IncrementCounter("sync_posts_failed_total", nil, "Posts that failed delivery")
			tracing.RecordError(ctx, err)
			log.WithError(err).WithField("postID", post.ID).Warn("Failed to deliver post")
		} else {
			outcome.Sent++
			metrics.IncrementCounter("sync_posts_sent_total", nil, "Posts delivered to Telegram")
		}
		s.sleep(ctx, s.postDelay)
	}

	metrics.RecordTimer("sync_bot_duration", time.Since(start), map[string]string{
		"botIndex": strconv.Itoa(botIndex),
	})
	return outcome
}

func (s *Syncer) breakerFor(userID int64, botIndex int) *circuitbreaker.CircuitBreaker {
	key := fmt.Sprintf("%d/%d", userID, botIndex)

	s.breakersMu.Lock()
	defer s.breakersMu.Unlock()
	cb, ok := s.breakers[key]
	if !ok {
		cb = circuitbreaker.NewWithLogger("vk:"+key,
			constants.DefaultBreakerMaxFailures,
			constants.DefaultBreakerCooldownSec*time.Second,
			s.logger)
		s.breakers[key] = cb
	}
	return cb
}

// deliverPost sends every request a post rendered to, failing the whole
// post on the first error.
func (s *Syncer) deliverPost(ctx context.Context, sender telegram.Client, channel string, requests []models.DeliveryRequest) error {
	for _, req := range requests {
		var err error
		switch req.Kind {
		case models.DeliveryText:
			_, err = sender.SendMessage(ctx, channel, req.Text)
		case models.DeliveryPhoto:
			_, err = sender.SendPhoto(ctx, channel, req.PhotoURL, req.Text)
		case models.DeliveryMediaGroup:
			media := make([]tgtypes.InputMediaPhoto, len(req.PhotoURLs))
			for i, url := range req.PhotoURLs {
				media[i] = tgtypes.InputMediaPhoto{Type: "photo", Media: url}
			}
			if req.Text != "" {
				media[0].Caption = req.Text
				media[0].ParseMode = "HTML"
			}
			_, err = sender.SendMediaGroup(ctx, channel, media)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SyncUser runs a pass over every configured slot of one user, in slot order.
func (s *Syncer) SyncUser(ctx context.Context, userID int64) []models.SyncOutcome {
	record, err := s.store.GetUserRecord(ctx, userID)
	if err != nil {
		return []models.SyncOutcome{{
			UserID: userID,
			Err:    apperrors.NewDatabaseError("get user record", err),
		}}
	}

	var outcomes []models.SyncOutcome
	for i := 0; i < constants.MaxBotsPerUser; i++ {
		if !record.Bot(i).IsConfigured() {
			continue
		}
		outcomes = append(outcomes, s.SyncBot(ctx, userID, i))
	}
	return outcomes
}

// SyncAllUsers runs a pass for every known user. Users are synced
// concurrently with a bounded worker pool; slots within a user stay
// sequential because they share one record.
func (s *Syncer) SyncAllUsers(ctx context.Context) []models.SyncOutcome {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list users")
		return nil
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []models.SyncOutcome
	)
	sem := make(chan struct{}, s.concurrency)

	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results := s.SyncUser(ctx, userID)
			mu.Lock()
			outcomes = append(outcomes, results...)
			mu.Unlock()
		}(userID)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool {
		if outcomes[i].UserID != outcomes[j].UserID {
			return outcomes[i].UserID < outcomes[j].UserID
		}
		return outcomes[i].BotIndex < outcomes[j].BotIndex
	})

	metrics.SetGauge("sync_last_pass_outcomes", float64(len(outcomes)), nil, "Outcomes produced by the last sync pass")
	return outcomes
}
