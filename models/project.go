package models

import (
	"time"

	"gorm.io/gorm"
)

// ProjectRole is the effective permission level of a user within a project.
type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleAdmin  ProjectRole = "admin"
	RoleMember ProjectRole = "member"
	RoleNone   ProjectRole = "none"
)

// FreeMemberLimit is the number of people (owner included) a project may
// hold before a lapsed owner subscription locks it read-only.
const FreeMemberLimit = 5

// Project represents a collaborative project owned by a single user.
type Project struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	OwnerID     uint   `gorm:"not null;index" json:"owner_id"`
	Status      string `gorm:"default:'active'" json:"status"` // active, archived

	// Derived on read, never stored
	Progress    float64 `gorm:"-" json:"progress"`
	MemberCount int     `gorm:"-" json:"member_count"`
	ReadOnly    bool    `gorm:"-" json:"read_only"`

	// Relations
	Owner   User            `json:"-"`
	Members []ProjectMember `gorm:"foreignKey:ProjectID" json:"members,omitempty"`
	Invites []ProjectInvite `gorm:"foreignKey:ProjectID" json:"invites,omitempty"`
	Tasks   []Task          `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
}

// ProjectMember is an accepted, registered collaborator on a project.
// The owner is not stored as a member row.
type ProjectMember struct {
	gorm.Model
	ProjectID uint        `gorm:"not null;uniqueIndex:idx_project_member" json:"project_id"`
	UserID    uint        `gorm:"not null;uniqueIndex:idx_project_member" json:"user_id"`
	Role      ProjectRole `gorm:"default:'member'" json:"role"` // admin, member
	JoinedAt  time.Time   `json:"joined_at"`

	// Relations
	Project Project `json:"-"`
	User    User    `json:"-"`
}

// ProjectInvite is a pending collaborator identified only by email.
// The address may not belong to a registered account yet.
type ProjectInvite struct {
	gorm.Model
	ProjectID uint        `gorm:"not null;index" json:"project_id"`
	Email     string      `gorm:"not null" json:"email"`
	Role      ProjectRole `gorm:"default:'member'" json:"role"`
	InviterID uint        `json:"inviter_id"`

	// Relations
	Project Project `json:"-"`
}
