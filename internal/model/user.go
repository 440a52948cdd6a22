package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment experience and risk tolerance given to new accounts.
const (
	DefaultInvestmentExperience = "beginner"
	DefaultRiskTolerance        = "moderate"
)

// Profile holds the investor questionnaire attached to a user.
type Profile struct {
	InvestmentExperience string          `json:"investmentExperience" gorm:"size:50;not null"`
	RiskTolerance        string          `json:"riskTolerance" gorm:"size:50;not null"`
	PortfolioValue       decimal.Decimal `json:"portfolioValue" gorm:"type:decimal(20,2);not null;default:0"`
}

// DefaultProfile returns the profile assigned at signup.
func DefaultProfile() Profile {
	return Profile{
		InvestmentExperience: DefaultInvestmentExperience,
		RiskTolerance:        DefaultRiskTolerance,
		PortfolioValue:       decimal.Zero,
	}
}

// DemoProfile returns the profile given to the seeded demo accounts.
func DemoProfile() Profile {
	return Profile{
		InvestmentExperience: "intermediate",
		RiskTolerance:        DefaultRiskTolerance,
		PortfolioValue:       decimal.NewFromInt(50000),
	}
}

// User is a registered account, keyed by its email address.
type User struct {
	ID           uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Email        string     `json:"email" gorm:"type:varchar(255) COLLATE utf8mb4_bin;uniqueIndex;not null"` // case-sensitive
	Name         string     `json:"name" gorm:"size:255;not null"`
	PasswordHash string     `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	IsActive     bool       `json:"isActive" gorm:"not null;default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	LastLogoutAt *time.Time `json:"lastLogoutAt,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty" gorm:"autoUpdateTime:false"`
	Profile      Profile    `json:"profile" gorm:"embedded;embeddedPrefix:profile_"`
}

// TableName returns the database table name for the User model.
func (User) TableName() string {
	return "users"
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// PublicUser is the view of a User returned to clients.
type PublicUser struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLogin,omitempty"`
	LastLogoutAt *time.Time `json:"lastLogout,omitempty"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
	Profile      Profile    `json:"profile"`
}

// Public strips credentials and internal flags from u.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:           u.ID.String(),
		Name:         u.Name,
		Email:        u.Email,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
		LastLogoutAt: u.LastLogoutAt,
		UpdatedAt:    u.UpdatedAt,
		Profile:      u.Profile,
	}
}

// Clone returns a deep copy of u so callers can mutate it without touching
// a stored record.
func (u *User) Clone() *User {
	c := *u
	c.LastLoginAt = cloneTime(u.LastLoginAt)
	c.LastLogoutAt = cloneTime(u.LastLogoutAt)
	c.UpdatedAt = cloneTime(u.UpdatedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
