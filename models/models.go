package models

import "time"

type PostStatus string

const (
	StatusDraft     PostStatus = "draft"
	StatusScheduled PostStatus = "scheduled"
	StatusPosted    PostStatus = "posted"
	StatusCancelled PostStatus = "cancelled"
	StatusFailed    PostStatus = "failed"
)

type CampaignStatus string

const (
	CampaignActive   CampaignStatus = "active"
	CampaignPaused   CampaignStatus = "paused"
	CampaignArchived CampaignStatus = "archived"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// MaxPostLength is the X character limit enforced on post bodies.
const MaxPostLength = 280

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Media struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	Type      MediaType `json:"type"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a unit of schedulable content. RemoteID is the X-side identifier
// and is set exactly when Status is StatusPosted.
type Post struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CampaignID      *string    `json:"campaign_id,omitempty"`
	AffiliateLinkID *string    `json:"affiliate_link_id,omitempty"`
	Content         string     `json:"content"`
	MediaIDs        []string   `json:"media_ids,omitempty"`
	Media           []*Media   `json:"media,omitempty"`
	Status          PostStatus `json:"status"`
	ScheduledFor    *time.Time `json:"scheduled_for,omitempty"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	RemoteID        string     `json:"remote_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ScheduledJob is a durable trigger: when FireAt elapses the dispatcher
// attempts to publish the referenced post. JobID is derived from the post id,
// so a post has at most one live trigger.
type ScheduledJob struct {
	JobID     string    `json:"job_id"`
	PostID    string    `json:"post_id"`
	FireAt    time.Time `json:"fire_at"`
	CreatedAt time.Time `json:"created_at"`
}

// PostMetrics is a raw engagement reading from the X API.
type PostMetrics struct {
	Impressions int `json:"impressions"`
	Likes       int `json:"likes"`
	Shares      int `json:"shares"`
	Replies     int `json:"replies"`
}

// PostPerformance is the single current performance snapshot kept per posted
// item. EngagementRate is a percentage, recomputed on every refresh.
type PostPerformance struct {
	PostID         string    `json:"post_id"`
	Impressions    int       `json:"impressions"`
	Likes          int       `json:"likes"`
	Shares         int       `json:"shares"`
	Replies        int       `json:"replies"`
	EngagementRate float64   `json:"engagement_rate"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// ScheduleConfig describes how a campaign spreads posts over the week,
// e.g. {Frequency: "daily", Times: ["09:00", "17:30"]}.
type ScheduleConfig struct {
	Frequency string   `json:"frequency"`
	Times     []string `json:"times"`
}

type Campaign struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Name      string         `json:"name"`
	Niche     string         `json:"niche"`
	Schedule  ScheduleConfig `json:"schedule"`
	Status    CampaignStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type AffiliateLink struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	OriginalURL string    `json:"original_url"`
	UTMSource   string    `json:"utm_source"`
	UTMMedium   string    `json:"utm_medium"`
	UTMCampaign string    `json:"utm_campaign"`
	TrackedURL  string    `json:"tracked_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type SchedulePostRequest struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

type CreateAffiliateLinkRequest struct {
	OriginalURL string `json:"original_url"`
	UTMSource   string `json:"utm_source"`
	UTMMedium   string `json:"utm_medium"`
	UTMCampaign string `json:"utm_campaign"`
}

type UploadResponse struct {
	Media *Media `json:"media"`
}
