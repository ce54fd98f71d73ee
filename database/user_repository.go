package database

import (
	"time"

	"XMarketingAPI/models"
)

func (d *Database) CreateUser(user *models.User) error {
	query := `INSERT INTO users (id, email, password, name, created_at)
			  VALUES ($1, $2, $3, $4, $5)`
	_, err := d.DB.Exec(query, user.ID, user.Email, user.Password, user.Name, user.CreatedAt)
	return err
}

func (d *Database) GetUserByEmail(email string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password, name, created_at FROM users WHERE email = $1`
	err := d.DB.QueryRow(query, email).Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (d *Database) GetUserByID(id string) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, email, password, name, created_at FROM users WHERE id = $1`
	err := d.DB.QueryRow(query, id).Scan(&user.ID, &user.Email, &user.Password, &user.Name, &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeToken records a logged-out token until its natural expiry, so
// revocation survives process restart.
func (d *Database) RevokeToken(jti string, expiresAt time.Time) error {
	query := `INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
			  ON CONFLICT (jti) DO NOTHING`
	_, err := d.DB.Exec(query, jti, expiresAt)
	return err
}

func (d *Database) IsTokenRevoked(jti string) (bool, error) {
	var count int
	err := d.DB.QueryRow(`SELECT COUNT(1) FROM revoked_tokens WHERE jti = $1`, jti).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// PurgeExpiredRevocations drops revocation rows for tokens that have expired
// anyway, keeping the table bounded.
func (d *Database) PurgeExpiredRevocations(now time.Time) (int64, error) {
	res, err := d.DB.Exec(`DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
