package services

import (
	"fmt"
	"net/url"
	"time"

	"XMarketingAPI/database"
	"XMarketingAPI/models"

	"github.com/google/uuid"
)

const (
	defaultUTMSource = "x_ads"
	defaultUTMMedium = "social"
)

type AffiliateService struct {
	db *database.Database
}

func NewAffiliateService(db *database.Database) *AffiliateService {
	return &AffiliateService{db: db}
}

// CreateLink validates the original URL, builds the UTM-tracked variant, and
// persists the link.
func (s *AffiliateService) CreateLink(userID string, req models.CreateAffiliateLinkRequest) (*models.AffiliateLink, error) {
	source := req.UTMSource
	if source == "" {
		source = defaultUTMSource
	}
	medium := req.UTMMedium
	if medium == "" {
		medium = defaultUTMMedium
	}

	tracked, err := BuildTrackedURL(req.OriginalURL, source, medium, req.UTMCampaign)
	if err != nil {
		return nil, err
	}

	link := &models.AffiliateLink{
		ID:          uuid.New().String(),
		UserID:      userID,
		OriginalURL: req.OriginalURL,
		UTMSource:   source,
		UTMMedium:   medium,
		UTMCampaign: req.UTMCampaign,
		TrackedURL:  tracked,
		CreatedAt:   time.Now(),
	}

	if err := s.db.CreateAffiliateLink(link); err != nil {
		return nil, err
	}
	return link, nil
}

// BuildTrackedURL appends utm_source, utm_medium, and utm_campaign query
// parameters to the original URL, preserving any existing query string.
func BuildTrackedURL(original, source, medium, campaign string) (string, error) {
	parsed, err := url.Parse(original)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("URL must be absolute with scheme and host")
	}

	query := parsed.Query()
	query.Set("utm_source", source)
	query.Set("utm_medium", medium)
	if campaign != "" {
		query.Set("utm_campaign", campaign)
	}
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}
