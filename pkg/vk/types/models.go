package types

import "time"

// ClientConfig holds the settings for one VK wall client.
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	// OwnerID is the wall owner: negative for communities, positive for users.
	OwnerID    string
	APIVersion string
	// Window is the number of recent posts fetched per poll.
	Window  int
	Timeout time.Duration
}

// WallPost is one post from a community wall. VK encodes the pinned and ad
// flags as 0/1 integers.
type WallPost struct {
	ID          int64        `json:"id"`
	OwnerID     int64        `json:"owner_id"`
	Date        int64        `json:"date"`
	Pinned      int          `json:"is_pinned"`
	MarkedAsAds int          `json:"marked_as_ads"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// IsPinned reports whether the post is pinned to the top of the wall.
func (p WallPost) IsPinned() bool {
	return p.Pinned != 0
}

// IsAd reports whether the post is a promoted placement.
func (p WallPost) IsAd() bool {
	return p.MarkedAsAds != 0
}

// Attachment is one media attachment on a wall post.
type Attachment struct {
	Type  string `json:"type"`
	Photo *Photo `json:"photo,omitempty"`
}

// Photo carries the resolution variants of one photo attachment.
type Photo struct {
	ID    int64       `json:"id"`
	Sizes []PhotoSize `json:"sizes"`
}

// PhotoSize is one resolution variant of a photo.
type PhotoSize struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// BestSize returns the variant with the largest pixel area, or nil when the
// photo has no sizes.
func (p *Photo) BestSize() *PhotoSize {
	if p == nil || len(p.Sizes) == 0 {
		return nil
	}

	best := &p.Sizes[0]
	for i := 1; i < len(p.Sizes); i++ {
		size := &p.Sizes[i]
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best
}

// WallGetResponse is the envelope of a wall.get call.
type WallGetResponse struct {
	Response *WallGetPayload `json:"response,omitempty"`
	Error    *APIError       `json:"error,omitempty"`
}

// WallGetPayload is the successful wall.get body.
type WallGetPayload struct {
	Count int        `json:"count"`
	Items []WallPost `json:"items"`
}

// APIError is VK's error envelope, delivered with HTTP 200.
type APIError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

func (e *APIError) Error() string {
	return e.Message
}
