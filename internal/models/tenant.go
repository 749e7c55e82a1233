package models

import (
	"encoding/json"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
)

// BotConfig is one relay slot: a VK community wall paired with a Telegram
// channel. A slot participates in syncing only once all four credential
// fields are set.
type BotConfig struct {
	VKToken    string `json:"vk_token,omitempty"`
	VKGroupID  string `json:"vk_group_id,omitempty"`
	TGBotToken string `json:"tg_bot_token,omitempty"`
	TGChannel  string `json:"tg_channel,omitempty"`
	LastPostID int64  `json:"last_post_id,omitempty"`
}

// IsConfigured reports whether the slot has every required field.
func (b BotConfig) IsConfigured() bool {
	return b.VKToken != "" && b.VKGroupID != "" && b.TGBotToken != "" && b.TGChannel != ""
}

// IsEmpty reports whether the slot has no fields set at all.
func (b BotConfig) IsEmpty() bool {
	return b.VKToken == "" && b.VKGroupID == "" && b.TGBotToken == "" &&
		b.TGChannel == "" && b.LastPostID == 0
}

// UserRecord is the per-tenant configuration blob stored in the database.
// Unknown top-level fields are preserved across read-modify-write cycles so
// the record can carry data this engine does not own.
type UserRecord struct {
	Bots         []BotConfig
	PendingInput string

	extra map[string]json.RawMessage
}

// NewUserRecord returns an empty record with all bot slots allocated.
func NewUserRecord() *UserRecord {
	return &UserRecord{Bots: make([]BotConfig, constants.MaxBotsPerUser)}
}

// Bot returns the slot at index, or an empty slot when out of range.
func (r *UserRecord) Bot(index int) BotConfig {
	if index < 0 || index >= len(r.Bots) {
		return BotConfig{}
	}
	return r.Bots[index]
}

// SetBot replaces the slot at index. Out-of-range indexes are ignored.
func (r *UserRecord) SetBot(index int, bot BotConfig) {
	if index < 0 || index >= len(r.Bots) {
		return
	}
	r.Bots[index] = bot
}

func (r *UserRecord) normalize() {
	if len(r.Bots) > constants.MaxBotsPerUser {
		r.Bots = r.Bots[:constants.MaxBotsPerUser]
	}
	for len(r.Bots) < constants.MaxBotsPerUser {
		r.Bots = append(r.Bots, BotConfig{})
	}
}

// legacy single-bot fields promoted into slot 0 on load
var legacyBotKeys = []string{"vk_token", "vk_group_id", "tg_bot_token", "tg_channel", "last_post_id"}

// MigrateLegacy promotes legacy top-level single-bot fields into slot 0 and
// removes them from the pass-through set. It reports whether the record
// changed and needs to be rewritten. Slot 0 is only populated when empty so
// a repeated call is a no-op.
func (r *UserRecord) MigrateLegacy() bool {
	if r.extra == nil {
		return false
	}

	var legacy BotConfig
	found := false
	for _, key := range legacyBotKeys {
		raw, ok := r.extra[key]
		if !ok {
			continue
		}
		found = true
		switch key {
		case "vk_token":
			_ = json.Unmarshal(raw, &legacy.VKToken)
		case "vk_group_id":
			_ = json.Unmarshal(raw, &legacy.VKGroupID)
		case "tg_bot_token":
			_ = json.Unmarshal(raw, &legacy.TGBotToken)
		case "tg_channel":
			_ = json.Unmarshal(raw, &legacy.TGChannel)
		case "last_post_id":
			_ = json.Unmarshal(raw, &legacy.LastPostID)
		}
	}
	if !found {
		return false
	}

	for _, key := range legacyBotKeys {
		delete(r.extra, key)
	}

	if r.Bot(0).IsEmpty() && !legacy.IsEmpty() {
		r.SetBot(0, legacy)
	}
	return true
}

func (r *UserRecord) UnmarshalJSON(data []byte) error {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if botsRaw, ok := raw["bots"]; ok {
		if err := json.Unmarshal(botsRaw, &r.Bots); err != nil {
			return err
		}
		delete(raw, "bots")
	}
	if pendingRaw, ok := raw["pending_input"]; ok {
		if err := json.Unmarshal(pendingRaw, &r.PendingInput); err != nil {
			return err
		}
		delete(raw, "pending_input")
	}

	r.extra = raw
	r.normalize()
	return nil
}

func (r *UserRecord) MarshalJSON() ([]byte, error) {
	r.normalize()

	out := make(map[string]json.RawMessage, len(r.extra)+2)
	for k, v := range r.extra {
		out[k] = v
	}

	botsRaw, err := json.Marshal(r.Bots)
	if err != nil {
		return nil, err
	}
	out["bots"] = botsRaw

	if r.PendingInput != "" {
		pendingRaw, err := json.Marshal(r.PendingInput)
		if err != nil {
			return nil, err
		}
		out["pending_input"] = pendingRaw
	}

	return json.Marshal(out)
}
