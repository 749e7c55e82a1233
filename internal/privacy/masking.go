package privacy

import (
	"strconv"
	"strings"
)

// MaskToken masks an API token showing only the last 4 characters.
// Telegram bot tokens ("12345678:AA...") keep the numeric bot id visible
// since it is not a secret on its own.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}

	if idx := strings.Index(token, ":"); idx > 0 && isNumeric(token[:idx]) {
		return token[:idx] + ":" + maskString(token[idx+1:], 4)
	}

	return maskString(token, 4)
}

// MaskChannel masks a destination channel identifier.
// Example: "@mychannel" -> "@my******", "-1001234567890" -> "**********7890"
func MaskChannel(channel string) string {
	if channel == "" {
		return ""
	}

	if strings.HasPrefix(channel, "@") {
		name := channel[1:]
		if len(name) <= 2 {
			return "@" + strings.Repeat("*", len(name))
		}
		return "@" + name[:2] + strings.Repeat("*", len(name)-2)
	}

	return maskString(channel, 4)
}

// MaskUserID masks a numeric tenant identifier keeping the last 3 digits.
func MaskUserID(userID int64) string {
	return maskString(strconv.FormatInt(userID, 10), 3)
}

// MaskGroupID masks a VK wall owner id, preserving the leading sign that
// distinguishes group walls from user walls.
func MaskGroupID(groupID string) string {
	if groupID == "" {
		return ""
	}
	if strings.HasPrefix(groupID, "-") {
		return "-" + maskString(groupID[1:], 3)
	}
	return maskString(groupID, 3)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// isNumeric checks if a string contains only digits
func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
