package models

// SyncOutcome aggregates the result of one sync cycle for one relay slot.
type SyncOutcome struct {
	UserID   int64 `json:"user_id"`
	BotIndex int   `json:"bot_index"`
	Found    int   `json:"found"`
	Sent     int   `json:"sent"`
	Failed   int   `json:"failed"`
	Cursor   int64 `json:"cursor"`
	Err      error `json:"-"`
}
