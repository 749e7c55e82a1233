package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/Memesold/vk-tg-repost-bot/internal/errors"
)

// ValidateGroupID validates a VK wall owner ID. Community walls use
// negative IDs, so a bare number is accepted and normalized by the caller.
func ValidateGroupID(groupID string) error {
	if groupID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group ID cannot be empty")
	}

	digits := strings.TrimPrefix(groupID, "-")
	if digits == "" {
		return errors.New(errors.ErrCodeInvalidInput, "group ID must contain digits")
	}

	if _, err := strconv.ParseInt(digits, 10, 64); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "group ID must be a number")
	}

	return nil
}

// NormalizeGroupID prefixes a bare community ID with the minus sign VK
// expects for wall owners.
func NormalizeGroupID(groupID string) string {
	if groupID == "" || strings.HasPrefix(groupID, "-") {
		return groupID
	}
	return "-" + strings.TrimPrefix(groupID, "-")
}

// ValidateChannel validates a Telegram channel reference: either a public
// @username or a numeric chat ID like -100123456789.
func ValidateChannel(channel string) error {
	if channel == "" {
		return errors.New(errors.ErrCodeInvalidInput, "channel cannot be empty")
	}

	if strings.HasPrefix(channel, "@") {
		name := channel[1:]
		if len(name) < 5 {
			return errors.New(errors.ErrCodeInvalidInput, "channel username too short (min 5 characters)")
		}
		for _, char := range name {
			if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '_' {
				return errors.New(errors.ErrCodeInvalidInput,
					"channel username must contain only letters, numbers, and underscores")
			}
		}
		return nil
	}

	if strings.HasPrefix(channel, "-") {
		if _, err := strconv.ParseInt(channel, 10, 64); err != nil {
			return errors.New(errors.ErrCodeInvalidInput, "channel ID must be a number")
		}
		return nil
	}

	return errors.New(errors.ErrCodeInvalidInput, "channel must start with @ or - (a channel ID)")
}

// ValidateBotTokenFormat checks the "<bot id>:<secret>" shape of a Telegram
// bot token. Whether the token actually works is for getMe to decide.
func ValidateBotTokenFormat(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "bot token cannot be empty")
	}

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return errors.New(errors.ErrCodeInvalidInput, "bot token must look like <bot id>:<secret>")
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return errors.New(errors.ErrCodeInvalidInput, "bot token must start with the numeric bot ID")
	}

	return nil
}

// ValidateVKTokenFormat performs a cheap sanity check on a VK access token.
func ValidateVKTokenFormat(token string) error {
	if token == "" {
		return errors.New(errors.ErrCodeInvalidInput, "VK token cannot be empty")
	}
	if len(token) < 16 {
		return errors.New(errors.ErrCodeInvalidInput, "VK token too short")
	}
	for _, char := range token {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' || char == ' ' {
			return errors.New(errors.ErrCodeInvalidInput, "VK token contains invalid characters")
		}
	}
	return nil
}

// ValidateBotIndex bounds-checks a slot index.
func ValidateBotIndex(index, maxBots int) error {
	if index < 0 || index >= maxBots {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("bot index must be between 0 and %d", maxBots-1))
	}
	return nil
}
