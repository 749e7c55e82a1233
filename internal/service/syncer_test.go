package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Memesold/vk-tg-repost-bot/internal/errors"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	vktypes "github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestSyncer(store *fakeStore, vkc *fakeVKClient, tgc *fakeTGClient) (*Syncer, *[]time.Duration) {
	syncer := NewSyncer(store, fixedVKFactory(vkc), fixedTGFactory(tgc), models.SyncConfig{PostDelaySec: 1}, testLogger())
	var (
		mu    sync.Mutex
		slept []time.Duration
	)
	syncer.sleep = func(ctx context.Context, d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		slept = append(slept, d)
	}
	return syncer, &slept
}

func configuredBot(cursor int64) models.BotConfig {
	return models.BotConfig{
		VKToken:    "vk-token",
		VKGroupID:  "-123",
		TGBotToken: "12345:secret",
		TGChannel:  "@channel",
		LastPostID: cursor,
	}
}

func recordWithBot(botIndex int, bot models.BotConfig) *models.UserRecord {
	record := models.NewUserRecord()
	record.SetBot(botIndex, bot)
	return record
}

func textPost(id int64, text string) vktypes.WallPost {
	return vktypes.WallPost{ID: id, Text: text}
}

func TestSyncBotNotConfigured(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, models.NewUserRecord())
	syncer, _ := newTestSyncer(store, &fakeVKClient{}, newFakeTGClient(log))

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.Error(t, outcome.Err)
	assert.Equal(t, apperrors.ErrCodeNotConfigured, apperrors.GetCode(outcome.Err))
	assert.Zero(t, outcome.Found)
	assert.Empty(t, log.all())
}

func TestSyncBotFetchErrorMakesNoProgress(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	vkc := &fakeVKClient{fetchErr: fmt.Errorf("connection refused")}
	syncer, _ := newTestSyncer(store, vkc, newFakeTGClient(log))

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.Error(t, outcome.Err)
	assert.True(t, apperrors.IsRetryable(outcome.Err))
	assert.Equal(t, int64(100), outcome.Cursor)
	assert.Empty(t, log.all())
}

func TestSyncBotCommitsCursorBeforeDelivery(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{textPost(101, "a"), textPost(102, "b")}}
	syncer, _ := newTestSyncer(store, vkc, newFakeTGClient(log))

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	assert.Equal(t, []string{"cursor:102", "text:a", "text:b"}, log.all())
	assert.Equal(t, int64(102), outcome.Cursor)
}

func TestSyncBotDeliversOldestFirst(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	// VK returns newest first.
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		textPost(104, "newest"),
		textPost(103, "middle"),
		textPost(101, "oldest"),
	}}
	tgc := newFakeTGClient(log)
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Found)
	assert.Equal(t, 3, outcome.Sent)
	assert.Equal(t, []string{"text:oldest", "text:middle", "text:newest"}, tgc.sentMessages())
}

func TestSyncBotAdvancesCursorPastPinnedAndAds(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		{ID: 105, Text: "pinned", Pinned: 1},
		{ID: 103, Text: "promoted", MarkedAsAds: 1},
	}}
	tgc := newFakeTGClient(log)
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	assert.Zero(t, outcome.Found)
	assert.Zero(t, outcome.Sent)
	assert.Empty(t, tgc.sentMessages())
	// The cursor still moves so the skipped posts never resurface.
	assert.Equal(t, int64(105), outcome.Cursor)
	cursor, err := store.GetCursor(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(105), cursor)
}

func TestSyncBotDeliveryFailureIsolation(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		textPost(101, "first"),
		textPost(102, "broken"),
		textPost(103, "last"),
	}}
	tgc := newFakeTGClient(log)
	tgc.sendErrs["broken"] = fmt.Errorf("bad request: chat not found")
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Found)
	assert.Equal(t, 2, outcome.Sent)
	assert.Equal(t, 1, outcome.Failed)
	assert.Equal(t, []string{"text:first", "text:last"}, tgc.sentMessages())
}

func TestSyncBotEmptyPostProducesNoDelivery(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		textPost(101, "real"),
		textPost(102, "   "),
		textPost(103, "another"),
	}}
	tgc := newFakeTGClient(log)
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Found)
	assert.Equal(t, 2, outcome.Sent)
	assert.Zero(t, outcome.Failed)
	assert.Equal(t, []string{"text:real", "text:another"}, tgc.sentMessages())
}

func TestSyncBotPacesDeliveries(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(0)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		textPost(1, "a"), textPost(2, "b"), textPost(3, "c"),
	}}
	syncer, slept := newTestSyncer(store, vkc, newFakeTGClient(log))

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.NoError(t, outcome.Err)
	require.Len(t, *slept, 3)
	for _, d := range *slept {
		assert.Equal(t, time.Second, d)
	}
}

func TestSyncBotCursorWriteFailureSkipsDelivery(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(100)))
	store.setCursorErr = fmt.Errorf("disk I/O error")
	vkc := &fakeVKClient{posts: []vktypes.WallPost{textPost(101, "a")}}
	tgc := newFakeTGClient(log)
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 0)

	require.Error(t, outcome.Err)
	assert.Empty(t, tgc.sentMessages())
}

func TestSyncBotMixedScenario(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(1, configuredBot(100)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{
		{ID: 95, Text: "old pinned", Pinned: 1},
		textPost(104, "c"),
		textPost(103, "b"),
		textPost(101, "a"),
	}}
	tgc := newFakeTGClient(log)
	syncer, _ := newTestSyncer(store, vkc, tgc)

	outcome := syncer.SyncBot(context.Background(), 7, 1)

	require.NoError(t, outcome.Err)
	assert.Equal(t, 3, outcome.Found)
	assert.Equal(t, 3, outcome.Sent)
	assert.Equal(t, int64(104), outcome.Cursor)
	assert.Equal(t, []string{"text:a", "text:b", "text:c"}, tgc.sentMessages())
}

func TestSyncBotCircuitBreakerOpensAfterRepeatedFailures(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(7, recordWithBot(0, configuredBot(0)))
	vkc := &fakeVKClient{fetchErr: fmt.Errorf("invalid token")}
	syncer, _ := newTestSyncer(store, vkc, newFakeTGClient(log))

	for i := 0; i < 5; i++ {
		outcome := syncer.SyncBot(context.Background(), 7, 0)
		require.Error(t, outcome.Err)
	}

	// After the threshold the breaker rejects calls without touching VK.
	assert.Equal(t, 3, vkc.calls())
}

func TestSyncUserSkipsUnconfiguredSlots(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	record := models.NewUserRecord()
	record.SetBot(0, configuredBot(0))
	record.SetBot(2, configuredBot(10))
	store.put(7, record)
	vkc := &fakeVKClient{}
	syncer, _ := newTestSyncer(store, vkc, newFakeTGClient(log))

	outcomes := syncer.SyncUser(context.Background(), 7)

	require.Len(t, outcomes, 2)
	assert.Equal(t, 0, outcomes[0].BotIndex)
	assert.Equal(t, 2, outcomes[1].BotIndex)
}

func TestSyncAllUsersAggregatesSortedOutcomes(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	store.put(2, recordWithBot(0, configuredBot(0)))
	store.put(1, recordWithBot(1, configuredBot(0)))
	vkc := &fakeVKClient{posts: []vktypes.WallPost{textPost(5, "hi")}}
	syncer, _ := newTestSyncer(store, vkc, newFakeTGClient(log))

	outcomes := syncer.SyncAllUsers(context.Background())

	require.Len(t, outcomes, 2)
	assert.Equal(t, int64(1), outcomes[0].UserID)
	assert.Equal(t, int64(2), outcomes[1].UserID)
	for _, outcome := range outcomes {
		assert.Equal(t, 1, outcome.Sent)
	}
}

func TestSyncAllUsersListError(t *testing.T) {
	store := newFakeStore(nil)
	store.listErr = fmt.Errorf("database is locked")
	syncer, _ := newTestSyncer(store, &fakeVKClient{}, newFakeTGClient(nil))

	assert.Nil(t, syncer.SyncAllUsers(context.Background()))
}
