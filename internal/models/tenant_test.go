package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotConfigIsConfigured(t *testing.T) {
	full := BotConfig{
		VKToken:    "vk",
		VKGroupID:  "-1",
		TGBotToken: "1:a",
		TGChannel:  "@c",
	}
	assert.True(t, full.IsConfigured())

	partial := full
	partial.TGChannel = ""
	assert.False(t, partial.IsConfigured())

	assert.False(t, BotConfig{}.IsConfigured())
}

func TestBotConfigIsEmpty(t *testing.T) {
	assert.True(t, BotConfig{}.IsEmpty())
	assert.False(t, BotConfig{LastPostID: 5}.IsEmpty())
	assert.False(t, BotConfig{VKToken: "x"}.IsEmpty())
}

func TestNewUserRecordAllocatesAllSlots(t *testing.T) {
	record := NewUserRecord()
	require.Len(t, record.Bots, 3)
	assert.True(t, record.Bot(0).IsEmpty())
	assert.True(t, record.Bot(2).IsEmpty())
}

func TestBotOutOfRange(t *testing.T) {
	record := NewUserRecord()
	assert.True(t, record.Bot(-1).IsEmpty())
	assert.True(t, record.Bot(3).IsEmpty())

	record.SetBot(3, BotConfig{VKToken: "x"})
	record.SetBot(-1, BotConfig{VKToken: "x"})
	for i := range record.Bots {
		assert.True(t, record.Bot(i).IsEmpty())
	}
}

func TestRecordRoundTrip(t *testing.T) {
	record := NewUserRecord()
	record.SetBot(1, BotConfig{VKToken: "vk", LastPostID: 9})
	record.PendingInput = "vk_token:1"

	data, err := json.Marshal(record)
	require.NoError(t, err)

	decoded := NewUserRecord()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, record.Bot(1), decoded.Bot(1))
	assert.Equal(t, "vk_token:1", decoded.PendingInput)
}

func TestUnknownFieldsPassThrough(t *testing.T) {
	blob := `{"bots":[{"vk_token":"vk"}],"theme":"dark","stats":{"runs":12}}`

	record := NewUserRecord()
	require.NoError(t, json.Unmarshal([]byte(blob), record))
	assert.Equal(t, "vk", record.Bot(0).VKToken)
	require.Len(t, record.Bots, 3)

	out, err := json.Marshal(record)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.JSONEq(t, `"dark"`, string(decoded["theme"]))
	assert.JSONEq(t, `{"runs":12}`, string(decoded["stats"]))
}

func TestUnmarshalTruncatesExcessSlots(t *testing.T) {
	blob := `{"bots":[{},{},{},{"vk_token":"extra"},{}]}`

	record := NewUserRecord()
	require.NoError(t, json.Unmarshal([]byte(blob), record))
	assert.Len(t, record.Bots, 3)
}

func TestMigrateLegacyPromotesToSlotZero(t *testing.T) {
	blob := `{"vk_token":"old","vk_group_id":"-7","tg_bot_token":"1:a","tg_channel":"@old","last_post_id":44}`

	record := NewUserRecord()
	require.NoError(t, json.Unmarshal([]byte(blob), record))

	assert.True(t, record.MigrateLegacy())
	assert.Equal(t, BotConfig{
		VKToken:    "old",
		VKGroupID:  "-7",
		TGBotToken: "1:a",
		TGChannel:  "@old",
		LastPostID: 44,
	}, record.Bot(0))

	// second call is a no-op
	assert.False(t, record.MigrateLegacy())

	// legacy keys no longer appear at the top level
	out, err := json.Marshal(record)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.NotContains(t, decoded, "vk_token")
	assert.NotContains(t, decoded, "last_post_id")
}

func TestMigrateLegacyKeepsOccupiedSlotZero(t *testing.T) {
	blob := `{"bots":[{"vk_token":"current"}],"vk_token":"old","last_post_id":44}`

	record := NewUserRecord()
	require.NoError(t, json.Unmarshal([]byte(blob), record))

	// legacy keys are consumed, but the configured slot wins
	assert.True(t, record.MigrateLegacy())
	assert.Equal(t, "current", record.Bot(0).VKToken)
	assert.Zero(t, record.Bot(0).LastPostID)
}

func TestMigrateLegacyNoLegacyFields(t *testing.T) {
	record := NewUserRecord()
	assert.False(t, record.MigrateLegacy())

	blob := `{"bots":[{}],"other":"x"}`
	require.NoError(t, json.Unmarshal([]byte(blob), record))
	assert.False(t, record.MigrateLegacy())
}
