package models

// DeliveryKind selects which Telegram call shape a request maps to.
type DeliveryKind string

const (
	DeliveryText       DeliveryKind = "text"
	DeliveryPhoto      DeliveryKind = "photo"
	DeliveryMediaGroup DeliveryKind = "media_group"
)

// DeliveryRequest is one outbound Telegram call derived from a VK post.
// Requests are ephemeral and never persisted.
type DeliveryRequest struct {
	Kind      DeliveryKind
	Text      string
	PhotoURL  string
	PhotoURLs []string
}
