package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER       = "user"
	ROLE_ADMIN      = "admin"
	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

// Sync status values for the CreatorUp integration. "registered" means the
// user stored CreatorUp credentials but has not completed a profile sync yet.
const (
	SYNC_STATUS_PENDING    = "pending"
	SYNC_STATUS_REGISTERED = "registered"
	SYNC_STATUS_SYNCED     = "synced"
	SYNC_STATUS_ERROR      = "error"
)

type User struct {
	ID                  uint           `gorm:"primaryKey" json:"id"`
	Name                string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email               string         `gorm:"uniqueIndex;type:varchar(200) CHARACTER SET utf8 COLLATE utf8_bin" json:"email" validate:"required,email,min=5,max=200"`
	Password            string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role                string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`
	Status              string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	SyncStatus          string         `gorm:"type:varchar(50);default:'pending';index" json:"sync_status" validate:"oneof=pending registered synced error"`
	CreatorUpUserID     *string        `gorm:"type:varchar(191);default:null;index" json:"creatorup_user_id"`
	CreatorUpSyncedAt   *time.Time     `gorm:"type:timestamp;default:null" json:"creatorup_synced_at"`
	LastCreatorUpAccess *time.Time     `gorm:"type:timestamp;default:null" json:"last_creatorup_access"`
	CreatorUpMetadata   string         `gorm:"type:longtext" json:"creatorup_metadata"`
	LastLoginAt         *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt           time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:       username,
		Email:      email,
		Password:   pw,
		Role:       ROLE_USER,
		Status:     STATUS_ACTIVE,
		SyncStatus: SYNC_STATUS_PENDING,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// MarkSynced records a successful CreatorUp sync. This is the only place that
// sets sync_status to synced, which keeps the synced-implies-timestamp
// invariant in one spot.
func (u *User) MarkSynced(metadataJSON string) {
	now := time.Now()
	u.SyncStatus = SYNC_STATUS_SYNCED
	u.CreatorUpSyncedAt = &now
	if metadataJSON != "" {
		u.CreatorUpMetadata = metadataJSON
	}
}

// IsSynced reports whether the user completed a CreatorUp profile sync
func (u *User) IsSynced() bool {
	return u.SyncStatus == SYNC_STATUS_SYNCED
}
