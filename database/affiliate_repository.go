package database

import "XMarketingAPI/models"

func (d *Database) CreateAffiliateLink(link *models.AffiliateLink) error {
	query := `INSERT INTO affiliate_links (id, user_id, original_url, utm_source, utm_medium, utm_campaign, tracked_url, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := d.DB.Exec(query, link.ID, link.UserID, link.OriginalURL, link.UTMSource,
		link.UTMMedium, link.UTMCampaign, link.TrackedURL, link.CreatedAt)
	return err
}

func (d *Database) GetAffiliateLink(id string) (*models.AffiliateLink, error) {
	link := &models.AffiliateLink{}
	query := `SELECT id, user_id, original_url, utm_source, utm_medium, utm_campaign, tracked_url, created_at
			  FROM affiliate_links WHERE id = $1`

	err := d.DB.QueryRow(query, id).Scan(&link.ID, &link.UserID, &link.OriginalURL,
		&link.UTMSource, &link.UTMMedium, &link.UTMCampaign, &link.TrackedURL, &link.CreatedAt)
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (d *Database) GetUserAffiliateLinks(userID string) ([]*models.AffiliateLink, error) {
	query := `SELECT id, user_id, original_url, utm_source, utm_medium, utm_campaign, tracked_url, created_at
			  FROM affiliate_links WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := d.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []*models.AffiliateLink{}
	for rows.Next() {
		link := &models.AffiliateLink{}
		err := rows.Scan(&link.ID, &link.UserID, &link.OriginalURL, &link.UTMSource,
			&link.UTMMedium, &link.UTMCampaign, &link.TrackedURL, &link.CreatedAt)
		if err != nil {
			continue
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func (d *Database) DeleteAffiliateLink(id string) error {
	_, err := d.DB.Exec(`DELETE FROM affiliate_links WHERE id = $1`, id)
	return err
}
