package service

import (
	"strings"

	"github.com/Memesold/vk-tg-repost-bot/internal/constants"
	"github.com/Memesold/vk-tg-repost-bot/internal/models"
	vktypes "github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"
)

// RenderPost maps a wall post onto the Telegram requests needed to repost it.
// A post with photos always produces exactly one request; a text-only post
// with nothing to say produces none.
func RenderPost(post vktypes.WallPost) []models.DeliveryRequest {
	photos := photoURLs(post)

	switch {
	case len(photos) == 0:
		if strings.TrimSpace(post.Text) == "" {
			return nil
		}
		return []models.DeliveryRequest{{
			Kind: models.DeliveryText,
			Text: truncateText(post.Text, constants.MaxMessageLength),
		}}
	case len(photos) == 1:
		return []models.DeliveryRequest{{
			Kind:     models.DeliveryPhoto,
			Text:     truncateText(post.Text, constants.MaxCaptionLength),
			PhotoURL: photos[0],
		}}
	default:
		if len(photos) > constants.MaxMediaGroupSize {
			photos = photos[:constants.MaxMediaGroupSize]
		}
		return []models.DeliveryRequest{{
			Kind:      models.DeliveryMediaGroup,
			Text:      truncateText(post.Text, constants.MaxCaptionLength),
			PhotoURLs: photos,
		}}
	}
}

// photoURLs extracts the largest rendition of every photo attachment,
// preserving attachment order.
func photoURLs(post vktypes.WallPost) []string {
	var urls []string
	for _, att := range post.Attachments {
		if att.Type != "photo" || att.Photo == nil {
			continue
		}
		if best := att.Photo.BestSize(); best != nil && best.URL != "" {
			urls = append(urls, best.URL)
		}
	}
	return urls
}

// truncateText shortens text to at most limit runes, marking the cut.
// The marker counts against the limit so the result never exceeds it.
func truncateText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	marker := []rune(constants.TruncationMarker)
	return string(runes[:limit-len(marker)]) + constants.TruncationMarker
}
