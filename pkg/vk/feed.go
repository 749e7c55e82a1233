package vk

import (
	"sort"

	"github.com/Memesold/vk-tg-repost-bot/pkg/vk/types"
)

// SelectNew filters one fetched wall window against a cursor. It returns the
// deliverable posts sorted ascending by id (oldest first, preserving source
// chronology downstream) and the advanced cursor.
//
// Pinned and promoted posts are never returned, but the cursor still
// advances past them so they are not reconsidered on every poll: newCursor
// is the maximum of the cursor and the highest id among all fetched posts.
//
// Posts that fell out of the fetch window while the cursor lagged behind are
// silently skipped; bounded history loss is accepted in exchange for a
// single cheap fetch per cycle.
func SelectNew(posts []types.WallPost, cursor int64) (newPosts []types.WallPost, newCursor int64) {
	newCursor = cursor

	for _, post := range posts {
		if post.ID > newCursor {
			newCursor = post.ID
		}
		if post.IsPinned() || post.IsAd() {
			continue
		}
		if post.ID > cursor {
			newPosts = append(newPosts, post)
		}
	}

	sort.Slice(newPosts, func(i, j int) bool {
		return newPosts[i].ID < newPosts[j].ID
	})

	return newPosts, newCursor
}
