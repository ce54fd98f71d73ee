package database

import (
	"encoding/json"
	"time"

	"XMarketingAPI/models"
)

func (d *Database) CreateCampaign(c *models.Campaign) error {
	scheduleJSON, err := json.Marshal(c.Schedule)
	if err != nil {
		return err
	}

	query := `INSERT INTO campaigns (id, user_id, name, niche, schedule_config, status, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = d.DB.Exec(query, c.ID, c.UserID, c.Name, c.Niche, string(scheduleJSON),
		c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (d *Database) UpdateCampaign(c *models.Campaign) error {
	scheduleJSON, err := json.Marshal(c.Schedule)
	if err != nil {
		return err
	}

	query := `UPDATE campaigns SET name = $1, niche = $2, schedule_config = $3, status = $4, updated_at = $5
			  WHERE id = $6`
	_, err = d.DB.Exec(query, c.Name, c.Niche, string(scheduleJSON), c.Status, time.Now(), c.ID)
	return err
}

func (d *Database) DeleteCampaign(id string) error {
	_, err := d.DB.Exec(`DELETE FROM campaigns WHERE id = $1`, id)
	return err
}

func scanCampaign(scanner interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	c := &models.Campaign{}
	var scheduleJSON string

	err := scanner.Scan(&c.ID, &c.UserID, &c.Name, &c.Niche, &scheduleJSON,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	// A malformed schedule blob degrades to an empty schedule rather than
	// making the campaign unreadable.
	_ = json.Unmarshal([]byte(scheduleJSON), &c.Schedule)
	return c, nil
}

func (d *Database) GetCampaign(id string) (*models.Campaign, error) {
	query := `SELECT id, user_id, name, niche, schedule_config, status, created_at, updated_at
			  FROM campaigns WHERE id = $1`
	return scanCampaign(d.DB.QueryRow(query, id))
}

func (d *Database) GetUserCampaigns(userID string) ([]*models.Campaign, error) {
	query := `SELECT id, user_id, name, niche, schedule_config, status, created_at, updated_at
			  FROM campaigns WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := d.DB.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			continue
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}
