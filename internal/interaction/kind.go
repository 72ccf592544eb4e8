// Package interaction keeps one post's interaction state consistent across
// optimistic local mutation, authoritative recounts, and realtime pushes.
package interaction

import (
	"github.com/trailtalk/trailtalk/internal/gateway"
)

// Kind is one interaction relation on a post.
type Kind string

const (
	KindLike     Kind = "like"
	KindComment  Kind = "comment"
	KindRepost   Kind = "repost"
	KindBookmark Kind = "bookmark"
)

// Kinds lists every interaction kind in display order.
var Kinds = []Kind{KindLike, KindComment, KindRepost, KindBookmark}

// Table returns the relation whose rows carry this interaction.
func (k Kind) Table() string {
	switch k {
	case KindLike:
		return gateway.TablePostLikes
	case KindComment:
		return gateway.TableComments
	case KindRepost:
		return gateway.TableReposts
	case KindBookmark:
		return gateway.TableBookmarks
	}
	return ""
}

// CountField returns the denormalized counter column on posts for this kind.
func (k Kind) CountField() string {
	switch k {
	case KindLike:
		return "likes_count"
	case KindComment:
		return "comments_count"
	case KindRepost:
		return "reposts_count"
	case KindBookmark:
		return "bookmarks_count"
	}
	return ""
}
