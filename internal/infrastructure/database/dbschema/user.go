package dbschema

import (
	"database/sql/driver"
	"encoding/json"

	"chat-server/services/chat-api/internal/domain/user"
	"chat-server/services/chat-api/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(User{})
}

// User represents the persisted user schema tied to an external identity provider.
type User struct {
	BaseModel
	PublicID    string          `gorm:"type:varchar(50);uniqueIndex;not null"`
	Issuer      string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_issuer_subject"`
	Subject     string          `gorm:"type:varchar(255);not null;uniqueIndex:ux_users_issuer_subject"`
	Email       *string         `gorm:"type:varchar(320)"`
	Name        *string         `gorm:"type:varchar(255)"`
	Preferences JSONPreferences `gorm:"type:jsonb"`
}

// JSONPreferences stores user preferences as a JSON column.
type JSONPreferences user.Preferences

func (j JSONPreferences) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONPreferences) Scan(value any) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// NewSchemaUser converts a domain user into a schema instance.
func NewSchemaUser(u *user.User) *User {
	if u == nil {
		return nil
	}

	return &User{
		BaseModel: BaseModel{
			ID:        u.ID,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
		PublicID:    u.PublicID,
		Issuer:      u.Issuer,
		Subject:     u.Subject,
		Email:       u.Email,
		Name:        u.Name,
		Preferences: JSONPreferences(u.Preferences),
	}
}

// EtoD converts a schema user back to the domain representation.
func (u *User) EtoD() *user.User {
	if u == nil {
		return nil
	}

	return &user.User{
		ID:          u.ID,
		PublicID:    u.PublicID,
		Issuer:      u.Issuer,
		Subject:     u.Subject,
		Email:       u.Email,
		Name:        u.Name,
		Preferences: user.Preferences(u.Preferences),
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
