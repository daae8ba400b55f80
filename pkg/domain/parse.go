package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrTooManyKeywords  = fmt.Errorf("at most %d keywords allowed", MaxKeywords)
	ErrInvalidFrequency = errors.New("frequency must be one of 6h, daily, weekly")
	ErrInvalidStatus    = errors.New("unknown signal status")
	ErrInvalidPlatform  = errors.New("platform must be one of reddit, twitter, linkedin")
)

func trimSpace(s string) string { return strings.TrimSpace(s) }

// ParsePlatform normalizes a platform label. "x" is an alias of twitter.
func ParsePlatform(raw string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "reddit":
		return PlatformReddit, nil
	case "twitter", "x":
		return PlatformTwitter, nil
	case "linkedin":
		return PlatformLinkedIn, nil
	}
	return "", ErrInvalidPlatform
}

// IsShortForm reports whether replies on p are bound by ShortFormCharLimit.
func (p Platform) IsShortForm() bool { return p == PlatformTwitter }

// DisplayName is the human label used in prompts.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformTwitter:
		return "X (Twitter)"
	case PlatformLinkedIn:
		return "LinkedIn"
	case PlatformReddit:
		return "Reddit"
	}
	if p == "" {
		return "social media"
	}
	return string(p)
}

// ParseSignalStatus accepts canonical statuses and the legacy labels
// drafted, dismissed and replied.
func ParseSignalStatus(raw string) (SignalStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "new":
		return StatusNew, nil
	case "action_required", "drafted":
		return StatusActionRequired, nil
	case "engaged", "replied":
		return StatusEngaged, nil
	case "won":
		return StatusWon, nil
	case "lost":
		return StatusLost, nil
	case "discarded", "dismissed":
		return StatusDiscarded, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, raw)
}

// IsTerminal reports whether s is an archived status eligible for deletion.
func (s SignalStatus) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusDiscarded
}

// ParseScrapeFrequency accepts 6h, daily (24h) and weekly (7d).
// Empty input selects daily.
func ParseScrapeFrequency(raw string) (ScrapeFrequency, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "6h":
		return Frequency6h, nil
	case "", "daily", "24h":
		return FrequencyDaily, nil
	case "weekly", "7d":
		return FrequencyWeekly, nil
	}
	return "", ErrInvalidFrequency
}

func (f ScrapeFrequency) Interval() time.Duration {
	switch f {
	case Frequency6h:
		return 6 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// ParseKeywords splits a comma-delimited list, trimming entries and
// dropping empties and case-insensitive duplicates while keeping the first
// spelling.
func ParseKeywords(raw string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		kw := strings.TrimSpace(part)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	if len(out) > MaxKeywords {
		return nil, ErrTooManyKeywords
	}
	return out, nil
}

// JoinKeywords renders keywords in their stored form.
func JoinKeywords(keywords []string) string {
	return strings.Join(keywords, ", ")
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// SignalDedupKey derives the content-addressed key used to suppress repeat
// inserts of the same upstream item. The URL identifies a post when present;
// content is used otherwise.
func SignalDedupKey(s Signal) string {
	h := sha256.New()
	h.Write([]byte(s.WorkspaceID))
	h.Write([]byte{0})
	h.Write([]byte(s.Platform))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(s.Author))))
	h.Write([]byte{0})
	if u := strings.TrimSpace(s.URL); u != "" {
		h.Write([]byte(u))
	} else {
		h.Write([]byte(s.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}
