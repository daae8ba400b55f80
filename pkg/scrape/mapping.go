package scrape

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olash/SignalReach-sub000/pkg/apify"
	"github.com/olash/SignalReach-sub000/pkg/domain"
)

var (
	titleFields  = []string{"title"}
	bodyFields   = []string{"body", "text", "selftext"}
	authorFields = []string{"username", "author", "authorName"}
	urlFields    = []string{"url", "link", "permalink"}
	metaFields   = map[string][]string{
		"community": {"communityName", "parsedCommunityName", "subreddit"},
		"kind":      {"dataType"},
		"sourceId":  {"id", "parsedId"},
		"upVotes":   {"upVotes", "score"},
		"comments":  {"numberOfComments", "numComments"},
		"postedAt":  {"createdAt"},
	}
)

// MapItems turns raw dataset items into new signals for workspaceID.
// Items with neither title nor body are dropped. With dedup set, each signal
// carries a content-addressed key and in-batch repeats are dropped.
func MapItems(workspaceID string, platform domain.Platform, items []apify.Item, dedup bool) []domain.Signal {
	out := make([]domain.Signal, 0, len(items))
	seen := make(map[string]struct{})
	for _, item := range items {
		title := htmlToText(firstString(item, titleFields))
		body := htmlToText(firstString(item, bodyFields))
		if title == "" && body == "" {
			continue
		}
		content := title
		if body != "" {
			if content != "" {
				content += "\n\n"
			}
			content += body
		}
		author := strings.TrimSpace(firstString(item, authorFields))
		if author == "" {
			author = domain.UnknownAuthor
		}
		sig := domain.Signal{
			WorkspaceID: workspaceID,
			Platform:    platform,
			Author:      author,
			Content:     domain.TruncateRunes(content, domain.MaxSignalContentRunes),
			URL:         strings.TrimSpace(firstString(item, urlFields)),
			Status:      domain.StatusNew,
			Metadata:    itemMetadata(item),
		}
		if dedup {
			sig.DedupKey = domain.SignalDedupKey(sig)
			if _, dup := seen[sig.DedupKey]; dup {
				continue
			}
			seen[sig.DedupKey] = struct{}{}
		}
		out = append(out, sig)
	}
	return out
}

func firstString(item apify.Item, keys []string) string {
	for _, k := range keys {
		if s := stringify(item[k]); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func itemMetadata(item apify.Item) map[string]string {
	meta := make(map[string]string)
	for name, keys := range metaFields {
		if v := strings.TrimSpace(firstString(item, keys)); v != "" {
			meta[name] = v
		}
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
