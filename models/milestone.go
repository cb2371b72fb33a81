package models

import (
	"gorm.io/gorm"
)

// Milestone groups top-level tasks of a project. The counts are derived
// from the current task rows on every relevant change; the stored values
// are a read convenience, never the source of truth.
type Milestone struct {
	gorm.Model
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Color     string `gorm:"default:'#3498db'" json:"color"`

	CompletedTasksCount int `gorm:"default:0" json:"completed_tasks_count"`
	AllTasksCount       int `gorm:"default:0" json:"all_tasks_count"`

	// Relations
	Project Project `json:"-"`
	Tasks   []Task  `gorm:"foreignKey:MilestoneID" json:"tasks,omitempty"`
}
