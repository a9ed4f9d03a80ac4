package admin

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/quizclash/backend/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// GetAccount retrieves an admin account by username
func GetAccount(db *sqlx.DB, username string) (*models.AdminAccount, error) {
	var acc models.AdminAccount
	err := db.Get(&acc, `SELECT username, display_name, password_hash, created_at, updated_at FROM admin_accounts WHERE username=$1`, username)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// VerifyPassword checks if the provided password matches the stored hash
func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

// CreateAccount creates or updates an admin account (used for seeding)
func CreateAccount(db *sqlx.DB, username, displayName, plainPassword string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plainPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO admin_accounts (username, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (username) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			password_hash = EXCLUDED.password_hash,
			updated_at = NOW()
	`, username, displayName, string(hashed))

	return err
}

// ValidateCredentials validates username + password combination
func ValidateCredentials(db *sqlx.DB, username, password string) (*models.AdminAccount, error) {
	acc, err := GetAccount(db, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin account not found")
		}
		log.Printf("[ADMIN] Database error: %v", err)
		return nil, fmt.Errorf("database error: %w", err)
	}

	if !VerifyPassword(acc.PasswordHash, password) {
		log.Printf("[ADMIN] Password verification failed for username: %s", username)
		return nil, fmt.Errorf("invalid credentials")
	}

	return acc, nil
}
