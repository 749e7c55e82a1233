package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	"github.com/Memesold/vk-tg-repost-bot/internal/errors"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/internal/privacy"
	"github.com/Memesold/vk-tg-repost-bot/internal/validation"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram"
	tgtypes "github.com/Memesold/vk-tg-repost-bot/pkg/telegram/types"

	"github.com/sirupsen/logrus"
)

// Slot settings a user can edit through the menu. The values double as the
// first half of the pending-input marker "<setting>:<botIndex>".
const (
	settingVKToken    = "vk_token"
	settingVKGroupID  = "vk_group_id"
	settingTGBotToken = "tg_bot_token"
	settingTGChannel  = "tg_channel"
)

// Syncing on demand from the menu reuses the scheduler's engine.
type BotSyncer interface {
	SyncBot(ctx context.Context, userID int64, botIndex int) models.SyncOutcome
	SyncUser(ctx context.Context, userID int64) []models.SyncOutcome
}

// MenuBot is the control surface: a long-polled Telegram bot through which
// users manage their repost slots.
type MenuBot struct {
	client      telegram.Client
	store       ConfigStore
	syncer      BotSyncer
	newVK       VKClientFactory
	newTG       TelegramClientFactory
	pollTimeout int
	logger      *logrus.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewMenuBot creates the control bot service.
func NewMenuBot(client telegram.Client, store ConfigStore, syncer BotSyncer, newVK VKClientFactory, newTG TelegramClientFactory, cfg *models.Config, logger *logrus.Logger) *MenuBot {
	pollTimeout := cfg.Telegram.MenuPollTimeoutSec
	if pollTimeout <= 0 {
		pollTimeout = constants.DefaultMenuPollTimeoutSec
	}
	return &MenuBot{
		client:      client,
		store:       store,
		syncer:      syncer,
		newVK:       newVK,
		newTG:       newTG,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Start verifies the control bot token and begins the update loop.
func (m *MenuBot) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("menu bot is already running")
	}

	me, err := m.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify control bot token: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.running = true

	m.wg.Add(1)
	go m.updateLoop()

	m.logger.WithField("bot", me.Username).Info("Menu bot started")
	return nil
}

// Stop gracefully stops the update loop.
func (m *MenuBot) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.cancel()
	m.wg.Wait()
	m.running = false
	m.logger.Info("Menu bot stopped")
}

// IsRunning returns whether the update loop is active.
func (m *MenuBot) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

func (m *MenuBot) updateLoop() {
	defer m.wg.Done()

	var offset int64
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		updates, err := m.client.GetUpdates(m.ctx, offset, m.pollTimeout)
		if err != nil {
			if m.ctx.Err() != nil {
				return
			}
			m.logger.WithError(err).Warn("Failed to fetch updates, backing off")
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			m.handleUpdate(m.ctx, update)
		}
	}
}

func (m *MenuBot) handleUpdate(ctx context.Context, update tgtypes.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := m.handleCallback(ctx, update.CallbackQuery); err != nil {
			m.logger.WithError(err).Warn("Failed to handle menu callback")
		}
	case update.Message != nil && update.Message.From != nil:
		if err := m.handleMessage(ctx, update.Message); err != nil {
			m.logger.WithError(err).Warn("Failed to handle menu message")
		}
	}
}

func (m *MenuBot) handleMessage(ctx context.Context, msg *tgtypes.Message) error {
	userID := msg.From.ID
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if strings.HasPrefix(msg.Text, "/start") {
		if err := m.store.SetPendingInput(ctx, userID, ""); err != nil {
			return err
		}
		return m.sendMainMenu(ctx, chatID)
	}

	record, err := m.store.GetUserRecord(ctx, userID)
	if err != nil {
		return err
	}
	if record.PendingInput == "" {
		return m.sendMainMenu(ctx, chatID)
	}

	setting, botIndex, ok := parsePendingInput(record.PendingInput)
	if !ok {
		return m.store.SetPendingInput(ctx, userID, "")
	}
	return m.applySetting(ctx, userID, chatID, setting, botIndex, strings.TrimSpace(msg.Text))
}

// applySetting validates one entered value, stores it, and shows the slot
// menu again.
func (m *MenuBot) applySetting(ctx context.Context, userID int64, chatID, setting string, botIndex int, value string) error {
	record, err := m.store.GetUserRecord(ctx, userID)
	if err != nil {
		return err
	}
	bot := record.Bot(botIndex)

	switch setting {
	case settingTGChannel:
		if err := validation.ValidateChannel(value); err != nil {
			return m.sendText(ctx, chatID, fmt.Sprintf("%s. Try again:", errors.GetUserMessage(err)))
		}
		bot.TGChannel = value
	case settingVKGroupID:
		if err := validation.ValidateGroupID(value); err != nil {
			return m.sendText(ctx, chatID, fmt.Sprintf("%s. Try again:", errors.GetUserMessage(err)))
		}
		bot.VKGroupID = validation.NormalizeGroupID(value)
	case settingVKToken:
		if err := validation.ValidateVKTokenFormat(value); err != nil {
			return m.sendText(ctx, chatID, fmt.Sprintf("%s. Try again:", errors.GetUserMessage(err)))
		}
		if bot.VKGroupID != "" {
			if err := m.newVK(value, bot.VKGroupID).ValidateToken(ctx); err != nil {
				m.logger.WithError(err).Debug("VK token validation failed")
				return m.sendText(ctx, chatID, "This VK token was rejected by the VK API. Check it and try again:")
			}
		}
		bot.VKToken = value
	case settingTGBotToken:
		if err := validation.ValidateBotTokenFormat(value); err != nil {
			return m.sendText(ctx, chatID, fmt.Sprintf("%s. Try again:", errors.GetUserMessage(err)))
		}
		if _, err := m.newTG(value).GetMe(ctx); err != nil {
			m.logger.WithError(err).Debug("Bot token validation failed")
			return m.sendText(ctx, chatID, "This bot token was rejected by Telegram. Check it and try again:")
		}
		bot.TGBotToken = value
	default:
		return m.store.SetPendingInput(ctx, userID, "")
	}

	if err := m.store.UpdateBot(ctx, userID, botIndex, bot); err != nil {
		return err
	}
	if err := m.store.SetPendingInput(ctx, userID, ""); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"userID":   privacy.MaskUserID(userID),
		"botIndex": botIndex,
		"setting":  setting,
	}).Info("Slot setting updated")

	if err := m.sendText(ctx, chatID, fmt.Sprintf("Saved for bot #%d.", botIndex+1)); err != nil {
		return err
	}
	return m.sendSlotMenu(ctx, chatID, userID, botIndex)
}

func (m *MenuBot) handleCallback(ctx context.Context, cb *tgtypes.CallbackQuery) error {
	if err := m.client.AnswerCallbackQuery(ctx, cb.ID, ""); err != nil {
		m.logger.WithError(err).Debug("Failed to answer callback query")
	}
	if cb.Message == nil {
		return nil
	}

	userID := cb.From.ID
	chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	messageID := cb.Message.MessageID

	action, botIndex := parseCallbackData(cb.Data)
	switch action {
	case "menu":
		return m.editToMainMenu(ctx, chatID, messageID)
	case "manage_bots":
		return m.editToManageMenu(ctx, chatID, messageID, userID)
	case "edit_bot":
		return m.editToSlotMenu(ctx, chatID, messageID, userID, botIndex)
	case "set":
		setting, index, ok := parsePendingInput(strings.TrimPrefix(cb.Data, "set:"))
		if !ok {
			return nil
		}
		return m.promptSetting(ctx, chatID, messageID, userID, setting, index)
	case "check_now":
		return m.checkNow(ctx, chatID, messageID, userID, botIndex)
	case "check_all":
		return m.checkAll(ctx, chatID, messageID, userID)
	case "delete_bot":
		return m.confirmDelete(ctx, chatID, messageID, botIndex)
	case "confirm_delete":
		if err := m.store.DeleteBot(ctx, userID, botIndex); err != nil {
			return err
		}
		markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
			{{Text: "Back to bots", CallbackData: "manage_bots"}},
		}}
		return m.client.EditMessageText(ctx, chatID, messageID,
			fmt.Sprintf("Bot #%d deleted. Its settings and position were cleared.", botIndex+1), markup)
	case "help":
		return m.showHelp(ctx, chatID, messageID)
	default:
		return nil
	}
}

func (m *MenuBot) sendMainMenu(ctx context.Context, chatID string) error {
	_, err := m.client.SendMessageWithMarkup(ctx, chatID, mainMenuText, mainMenuMarkup())
	return err
}

func (m *MenuBot) editToMainMenu(ctx context.Context, chatID string, messageID int64) error {
	return m.client.EditMessageText(ctx, chatID, messageID, mainMenuText, mainMenuMarkup())
}

const mainMenuText = "<b>VK to Telegram repost bot</b>\n\n" +
	"Connect up to 3 VK communities to Telegram channels. New wall posts are " +
	"reposted automatically; use the menu below to configure and test them."

func mainMenuMarkup() *tgtypes.InlineKeyboardMarkup {
	return &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Manage bots", CallbackData: "manage_bots"}},
		{{Text: "Check all bots", CallbackData: "check_all"}},
		{{Text: "Help", CallbackData: "help"}},
	}}
}

func (m *MenuBot) editToManageMenu(ctx context.Context, chatID string, messageID int64, userID int64) error {
	record, err := m.store.GetUserRecord(ctx, userID)
	if err != nil {
		return err
	}

	var rows [][]tgtypes.InlineKeyboardButton
	for i := 0; i < constants.MaxBotsPerUser; i++ {
		bot := record.Bot(i)
		label := fmt.Sprintf("Bot #%d (%s)", i+1, slotStatus(bot))
		if bot.IsEmpty() {
			label = fmt.Sprintf("Bot #%d (add)", i+1)
		}
		rows = append(rows, []tgtypes.InlineKeyboardButton{
			{Text: label, CallbackData: fmt.Sprintf("edit_bot:%d", i)},
		})
	}
	rows = append(rows, []tgtypes.InlineKeyboardButton{{Text: "Back to menu", CallbackData: "menu"}})

	return m.client.EditMessageText(ctx, chatID, messageID,
		"<b>Your bots</b>\n\nPick a slot to configure:",
		&tgtypes.InlineKeyboardMarkup{InlineKeyboard: rows})
}

func slotStatus(bot models.BotConfig) string {
	if bot.IsConfigured() {
		return "ready"
	}
	if bot.IsEmpty() {
		return "empty"
	}
	return "incomplete"
}

func (m *MenuBot) editToSlotMenu(ctx context.Context, chatID string, messageID int64, userID int64, botIndex int) error {
	text, markup, err := m.slotMenu(ctx, userID, botIndex)
	if err != nil {
		return err
	}
	return m.client.EditMessageText(ctx, chatID, messageID, text, markup)
}

func (m *MenuBot) sendSlotMenu(ctx context.Context, chatID string, userID int64, botIndex int) error {
	text, markup, err := m.slotMenu(ctx, userID, botIndex)
	if err != nil {
		return err
	}
	_, err = m.client.SendMessageWithMarkup(ctx, chatID, text, markup)
	return err
}

func (m *MenuBot) slotMenu(ctx context.Context, userID int64, botIndex int) (string, *tgtypes.InlineKeyboardMarkup, error) {
	record, err := m.store.GetUserRecord(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	bot := record.Bot(botIndex)

	text := fmt.Sprintf(
		"<b>Bot #%d</b> (%s)\n\n"+
			"VK token: %s\n"+
			"VK group: %s\n"+
			"Bot token: %s\n"+
			"Channel: %s\n"+
			"Last post ID: %d",
		botIndex+1, slotStatus(bot),
		orUnset(privacy.MaskToken(bot.VKToken)),
		orUnset(privacy.MaskGroupID(bot.VKGroupID)),
		orUnset(privacy.MaskToken(bot.TGBotToken)),
		orUnset(privacy.MaskChannel(bot.TGChannel)),
		bot.LastPostID,
	)

	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{
			{Text: "VK token", CallbackData: fmt.Sprintf("set:%s:%d", settingVKToken, botIndex)},
			{Text: "VK group ID", CallbackData: fmt.Sprintf("set:%s:%d", settingVKGroupID, botIndex)},
		},
		{
			{Text: "Bot token", CallbackData: fmt.Sprintf("set:%s:%d", settingTGBotToken, botIndex)},
			{Text: "Channel", CallbackData: fmt.Sprintf("set:%s:%d", settingTGChannel, botIndex)},
		},
		{
			{Text: "Check now", CallbackData: fmt.Sprintf("check_now:%d", botIndex)},
			{Text: "Delete bot", CallbackData: fmt.Sprintf("delete_bot:%d", botIndex)},
		},
		{{Text: "Back", CallbackData: "manage_bots"}},
	}}
	return text, markup, nil
}

var settingPrompts = map[string]string{
	settingVKToken: "<b>VK access token</b>\n\n" +
		"Create a Standalone app at vk.com/apps?act=manage and copy its " +
		"service access key.\n\nSend the token as a message:",
	settingVKGroupID: "<b>VK group ID</b>\n\n" +
		"For vk.com/club123456 or vk.com/public123456 the ID is -123456.\n\n" +
		"Send the group ID as a message:",
	settingTGBotToken: "<b>Telegram bot token</b>\n\n" +
		"Create a bot with @BotFather (/newbot) and copy its token.\n\n" +
		"Send the token as a message:",
	settingTGChannel: "<b>Telegram channel</b>\n\n" +
		"Add your bot to the channel as an administrator, then send the " +
		"channel @username or its -100... ID:",
}

func (m *MenuBot) promptSetting(ctx context.Context, chatID string, messageID int64, userID int64, setting string, botIndex int) error {
	prompt, ok := settingPrompts[setting]
	if !ok {
		return nil
	}
	if err := m.store.SetPendingInput(ctx, userID, fmt.Sprintf("%s:%d", setting, botIndex)); err != nil {
		return err
	}
	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Back", CallbackData: fmt.Sprintf("edit_bot:%d", botIndex)}},
	}}
	return m.client.EditMessageText(ctx, chatID, messageID, prompt, markup)
}

func (m *MenuBot) confirmDelete(ctx context.Context, chatID string, messageID int64, botIndex int) error {
	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Yes, delete", CallbackData: fmt.Sprintf("confirm_delete:%d", botIndex)}},
		{{Text: "Cancel", CallbackData: fmt.Sprintf("edit_bot:%d", botIndex)}},
	}}
	return m.client.EditMessageText(ctx, chatID, messageID,
		fmt.Sprintf("Delete bot #%d? Its settings and repost position will be lost.", botIndex+1), markup)
}

func (m *MenuBot) checkNow(ctx context.Context, chatID string, messageID int64, userID int64, botIndex int) error {
	outcome := m.syncer.SyncBot(ctx, userID, botIndex)
	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Check again", CallbackData: fmt.Sprintf("check_now:%d", botIndex)}},
		{{Text: "Back", CallbackData: fmt.Sprintf("edit_bot:%d", botIndex)}},
	}}
	return m.client.EditMessageText(ctx, chatID, messageID, formatOutcome(botIndex, outcome), markup)
}

func (m *MenuBot) checkAll(ctx context.Context, chatID string, messageID int64, userID int64) error {
	outcomes := m.syncer.SyncUser(ctx, userID)

	var sb strings.Builder
	sb.WriteString("<b>Check results</b>\n")
	if len(outcomes) == 0 {
		sb.WriteString("\nNo configured bots yet. Open Manage bots to add one.")
	}
	for _, outcome := range outcomes {
		sb.WriteString("\n")
		sb.WriteString(formatOutcome(outcome.BotIndex, outcome))
	}

	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Check again", CallbackData: "check_all"}},
		{{Text: "Back to menu", CallbackData: "menu"}},
	}}
	return m.client.EditMessageText(ctx, chatID, messageID, sb.String(), markup)
}

func formatOutcome(botIndex int, outcome models.SyncOutcome) string {
	switch {
	case outcome.Err != nil:
		return fmt.Sprintf("Bot #%d: check failed (%s)", botIndex+1, outcome.Err)
	case outcome.Found == 0:
		return fmt.Sprintf("Bot #%d: no new posts", botIndex+1)
	default:
		return fmt.Sprintf("Bot #%d: found %d, sent %d, failed %d",
			botIndex+1, outcome.Found, outcome.Sent, outcome.Failed)
	}
}

func (m *MenuBot) showHelp(ctx context.Context, chatID string, messageID int64) error {
	text := "<b>How it works</b>\n\n" +
		"1. Add a bot slot and fill in all four settings.\n" +
		"2. The service checks each configured slot every " +
		strconv.Itoa(constants.DefaultSyncIntervalSec) + " seconds.\n" +
		"3. New wall posts are reposted to your channel, oldest first.\n\n" +
		"Pinned posts and ads are skipped. Use Check now to test a slot."
	markup := &tgtypes.InlineKeyboardMarkup{InlineKeyboard: [][]tgtypes.InlineKeyboardButton{
		{{Text: "Back to menu", CallbackData: "menu"}},
	}}
	return m.client.EditMessageText(ctx, chatID, messageID, text, markup)
}

func (m *MenuBot) sendText(ctx context.Context, chatID, text string) error {
	_, err := m.client.SendMessage(ctx, chatID, text)
	return err
}

// parsePendingInput splits a "<setting>:<botIndex>" marker.
func parsePendingInput(marker string) (setting string, botIndex int, ok bool) {
	idx := strings.LastIndex(marker, ":")
	if idx <= 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(marker[idx+1:])
	if err != nil || index < 0 || index >= constants.MaxBotsPerUser {
		return "", 0, false
	}
	return marker[:idx], index, true
}

// parseCallbackData splits "action" or "action:<botIndex>" callback data.
// Nested data like "set:vk_token:0" returns the first segment as the action.
func parseCallbackData(data string) (action string, botIndex int) {
	parts := strings.Split(data, ":")
	action = parts[0]
	if len(parts) > 1 {
		if index, err := strconv.Atoi(parts[len(parts)-1]); err == nil && index >= 0 && index < constants.MaxBotsPerUser {
			botIndex = index
		}
	}
	return action, botIndex
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}
