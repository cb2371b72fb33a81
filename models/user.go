package models

import (
	"gorm.io/gorm"
)

const (
	SubscriptionNone     = "none"
	SubscriptionActive   = "active"
	SubscriptionCanceled = "canceled"
	SubscriptionExpired  = "expired"
)

// User represents a user account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Timezone  string  `gorm:"default:'UTC'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Premium subscription state. Projects owned by this user flip to
	// read-only when the subscription lapses while the project exceeds
	// the free member limit.
	PlanName             string  `gorm:"default:'free'" json:"plan_name"`           // free, premium
	SubscriptionStatus   string  `gorm:"default:'none'" json:"subscription_status"` // none, active, canceled, expired
	StripeCustomerID     *string `gorm:"index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string `json:"stripe_subscription_id,omitempty"`

	// Relations
	OwnedProjects []Project       `gorm:"foreignKey:OwnerID" json:"owned_projects,omitempty"`
	Memberships   []ProjectMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// PremiumLapsed reports whether the user once held a premium subscription
// that is now cancelled or expired. A user who never subscribed is not lapsed.
func (u *User) PremiumLapsed() bool {
	return u.SubscriptionStatus == SubscriptionCanceled || u.SubscriptionStatus == SubscriptionExpired
}
