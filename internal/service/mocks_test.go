package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	"github.com/Memesold/vk-tg-repost-bot/pkg/telegram"
	tgtypes "github.com/Memesold/vk-tg-repost-bot/pkg/telegram/types"
	"github.com/Memesold/vk-tg-repost-bot/pkg/vk"
	vktypes "github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"
)

// eventLog records cross-component calls in order, so tests can assert that
// the cursor is committed before anything is delivered.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

// fakeStore is an in-memory ConfigStore.
type fakeStore struct {
	mu           sync.Mutex
	records      map[int64]*models.UserRecord
	log          *eventLog
	getErr       error
	setCursorErr error
	listErr      error
}

func newFakeStore(log *eventLog) *fakeStore {
	return &fakeStore{
		records: make(map[int64]*models.UserRecord),
		log:     log,
	}
}

func (s *fakeStore) put(userID int64, record *models.UserRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = record
}

func (s *fakeStore) GetUserRecord(ctx context.Context, userID int64) (*models.UserRecord, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[userID]; ok {
		return record, nil
	}
	record := models.NewUserRecord()
	s.records[userID] = record
	return record, nil
}

func (s *fakeStore) SaveUserRecord(ctx context.Context, userID int64, record *models.UserRecord) error {
	s.put(userID, record)
	return nil
}

func (s *fakeStore) UpdateBot(ctx context.Context, userID int64, botIndex int, bot models.BotConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		record = models.NewUserRecord()
		s.records[userID] = record
	}
	record.SetBot(botIndex, bot)
	return nil
}

func (s *fakeStore) DeleteBot(ctx context.Context, userID int64, botIndex int) error {
	return s.UpdateBot(ctx, userID, botIndex, models.BotConfig{})
}

func (s *fakeStore) GetCursor(ctx context.Context, userID int64, botIndex int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[userID]; ok {
		return record.Bot(botIndex).LastPostID, nil
	}
	return 0, nil
}

func (s *fakeStore) SetCursor(ctx context.Context, userID int64, botIndex int, cursor int64) error {
	if s.setCursorErr != nil {
		return s.setCursorErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		return fmt.Errorf("no record for user %d", userID)
	}
	bot := record.Bot(botIndex)
	if cursor > bot.LastPostID {
		bot.LastPostID = cursor
		record.SetBot(botIndex, bot)
	}
	if s.log != nil {
		s.log.add("cursor:%d", cursor)
	}
	return nil
}

func (s *fakeStore) SetPendingInput(ctx context.Context, userID int64, pending string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[userID]
	if !ok {
		record = models.NewUserRecord()
		s.records[userID] = record
	}
	record.PendingInput = pending
	return nil
}

func (s *fakeStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

// fakeVKClient serves a canned wall.
type fakeVKClient struct {
	mu          sync.Mutex
	posts       []vktypes.WallPost
	fetchErr    error
	validateErr error
	fetchCalls  int
}

func (c *fakeVKClient) FetchWall(ctx context.Context) ([]vktypes.WallPost, error) {
	c.mu.Lock()
	c.fetchCalls++
	c.mu.Unlock()
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.posts, nil
}

func (c *fakeVKClient) ValidateToken(ctx context.Context) error {
	return c.validateErr
}

func (c *fakeVKClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchCalls
}

func fixedVKFactory(client *fakeVKClient) VKClientFactory {
	return func(accessToken, ownerID string) vk.Client {
		return client
	}
}

// fakeTGClient records every delivery in order.
type fakeTGClient struct {
	mu       sync.Mutex
	log      *eventLog
	sendErrs map[string]error
	getMeErr error
	updates  []tgtypes.Update
	sent     []string
	edits    []string
}

func newFakeTGClient(log *eventLog) *fakeTGClient {
	return &fakeTGClient{
		log:      log,
		sendErrs: make(map[string]error),
	}
}

func (c *fakeTGClient) record(kind, payload string) {
	c.mu.Lock()
	c.sent = append(c.sent, kind+":"+payload)
	c.mu.Unlock()
	if c.log != nil {
		c.log.add("%s:%s", kind, payload)
	}
}

func (c *fakeTGClient) SendMessage(ctx context.Context, chatID, text string) (*tgtypes.Message, error) {
	if err := c.sendErrs[text]; err != nil {
		return nil, err
	}
	c.record("text", text)
	return &tgtypes.Message{MessageID: 1}, nil
}

func (c *fakeTGClient) SendMessageWithMarkup(ctx context.Context, chatID, text string, markup *tgtypes.InlineKeyboardMarkup) (*tgtypes.Message, error) {
	c.record("markup", text)
	return &tgtypes.Message{MessageID: 1}, nil
}

func (c *fakeTGClient) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (*tgtypes.Message, error) {
	if err := c.sendErrs[caption]; err != nil {
		return nil, err
	}
	c.record("photo", photoURL)
	return &tgtypes.Message{MessageID: 1}, nil
}

func (c *fakeTGClient) SendMediaGroup(ctx context.Context, chatID string, media []tgtypes.InputMediaPhoto) ([]tgtypes.Message, error) {
	caption := ""
	if len(media) > 0 {
		caption = media[0].Caption
	}
	if err := c.sendErrs[caption]; err != nil {
		return nil, err
	}
	c.record("group", fmt.Sprintf("%d", len(media)))
	return []tgtypes.Message{{MessageID: 1}}, nil
}

func (c *fakeTGClient) GetMe(ctx context.Context) (*tgtypes.User, error) {
	if c.getMeErr != nil {
		return nil, c.getMeErr
	}
	return &tgtypes.User{ID: 42, IsBot: true, Username: "control_bot"}, nil
}

func (c *fakeTGClient) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]tgtypes.Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	updates := c.updates
	c.updates = nil
	return updates, nil
}

func (c *fakeTGClient) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return nil
}

func (c *fakeTGClient) EditMessageText(ctx context.Context, chatID string, messageID int64, text string, markup *tgtypes.InlineKeyboardMarkup) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, text)
	return nil
}

func (c *fakeTGClient) sentMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeTGClient) editedMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.edits))
	copy(out, c.edits)
	return out
}

func fixedTGFactory(client *fakeTGClient) TelegramClientFactory {
	return func(botToken string) telegram.Client {
		return client
	}
}
