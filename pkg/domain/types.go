package domain

import "time"

type Platform string

const (
	PlatformReddit   Platform = "reddit"
	PlatformTwitter  Platform = "twitter"
	PlatformLinkedIn Platform = "linkedin"
)

// ShortFormCharLimit is the soft reply limit on short-form platforms.
const ShortFormCharLimit = 280

type SignalStatus string

const (
	StatusNew            SignalStatus = "new"
	StatusActionRequired SignalStatus = "action_required"
	StatusEngaged        SignalStatus = "engaged"
	StatusWon            SignalStatus = "won"
	StatusLost           SignalStatus = "lost"
	StatusDiscarded      SignalStatus = "discarded"
)

type ScrapeFrequency string

const (
	Frequency6h     ScrapeFrequency = "6h"
	FrequencyDaily  ScrapeFrequency = "daily"
	FrequencyWeekly ScrapeFrequency = "weekly"
)

const (
	MaxKeywords           = 20
	MaxSignalContentRunes = 5000
	UnknownAuthor         = "unknown"
)

// Identity is the authenticated user as asserted by verified token claims.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         Identity  `json:"user"`
}

type Workspace struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"ownerId"`
	Name          string          `json:"name"`
	Keywords      *string         `json:"keywords"`
	Frequency     ScrapeFrequency `json:"frequency"`
	LastScrapedAt *time.Time      `json:"lastScrapedAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// KeywordString returns the trimmed keyword text, or "" when unset.
func (w Workspace) KeywordString() string {
	if w.Keywords == nil {
		return ""
	}
	return trimSpace(*w.Keywords)
}

// ScrapeDue reports whether the frequency interval has elapsed since the
// last scrape. Workspaces never scraped are always due.
func (w Workspace) ScrapeDue(now time.Time) bool {
	if w.LastScrapedAt == nil {
		return true
	}
	return !now.Before(w.LastScrapedAt.Add(w.Frequency.Interval()))
}

type Signal struct {
	ID          string            `json:"id"`
	WorkspaceID string            `json:"workspaceId"`
	Platform    Platform          `json:"platform"`
	Author      string            `json:"author"`
	Content     string            `json:"content"`
	URL         string            `json:"url,omitempty"`
	Status      SignalStatus      `json:"status"`
	ReplyText   string            `json:"replyText,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	DedupKey    string            `json:"-"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// SignalFilter narrows a workspace signal listing. Zero values mean no filter.
type SignalFilter struct {
	Status SignalStatus
	Search string
	Limit  int
}

// SignalUpdate is a partial write. Nil fields are left untouched.
type SignalUpdate struct {
	Status    *SignalStatus
	ReplyText *string
}
