package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskStatus represents the status of a task
type TaskStatus string

const (
	StatusNotStarted TaskStatus = "not-started"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusBlocked    TaskStatus = "blocked"
)

// ValidStatus reports whether s is one of the known task statuses.
func ValidStatus(s TaskStatus) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	default:
		return false
	}
}

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// ValidPriority reports whether p is one of the known task priorities.
func ValidPriority(p TaskPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// Task is a unit of work inside a project. A task with a non-nil
// ParentTaskID is a subtask; nesting never goes deeper than one level.
type Task struct {
	gorm.Model
	ProjectID   uint         `gorm:"not null;index" json:"project_id"`
	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `gorm:"default:'not-started'" json:"status"`
	Priority    TaskPriority `gorm:"default:'medium'" json:"priority"`
	DueDate     *time.Time   `json:"due_date,omitempty"`

	// PrevStatus remembers the status a checkbox toggle replaced with
	// "completed", so untoggling can restore it.
	PrevStatus TaskStatus `json:"-"`

	MilestoneID  *uint `gorm:"index" json:"milestone_id,omitempty"`
	ParentTaskID *uint `gorm:"index" json:"parent_task_id,omitempty"`

	// MilestoneName is denormalized for display only; the milestone row
	// remains the source of truth.
	MilestoneName string `gorm:"-" json:"milestone_name,omitempty"`

	// Subtask completion ratio, derived on read for top-level tasks.
	CompletedSubtasks int `gorm:"-" json:"completed_subtasks"`
	TotalSubtasks     int `gorm:"-" json:"total_subtasks"`

	AttachmentsCount int `gorm:"-" json:"attachments_count"`

	// Relations
	Subtasks    []Task           `gorm:"foreignKey:ParentTaskID" json:"subtasks,omitempty"`
	Labels      []Label          `gorm:"many2many:task_labels;" json:"labels,omitempty"`
	Assignments []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
	Comments    []Comment        `gorm:"foreignKey:TaskID" json:"comments,omitempty"`
	Attachments []Attachment     `gorm:"foreignKey:TaskID" json:"attachments,omitempty"`
}

// IsSubtask reports whether the task sits one level under a parent task.
func (t *Task) IsSubtask() bool {
	return t.ParentTaskID != nil
}

// TaskAssignment maps a task to an assignee. A user appears at most once
// per task.
type TaskAssignment struct {
	gorm.Model
	TaskID uint `gorm:"not null;uniqueIndex:idx_task_assignee" json:"task_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_task_assignee" json:"user_id"`

	// Relations
	Task Task `json:"-"`
	User User `json:"-"`
}

// Label is a project-scoped tag that can be attached to tasks.
type Label struct {
	gorm.Model
	ProjectID uint   `gorm:"not null;index" json:"project_id"`
	Name      string `gorm:"not null" json:"name"`
	Color     string `gorm:"default:'#808080'" json:"color"`
}

// Comment is a user-authored note on a task.
type Comment struct {
	gorm.Model
	TaskID   uint   `gorm:"not null;index" json:"task_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Body     string `gorm:"type:text;not null" json:"body"`

	// Relations
	Task   Task `json:"-"`
	Author User `json:"author,omitempty"`
}

// Attachment holds file metadata only; the blob itself lives in external
// storage referenced by StorageKey.
type Attachment struct {
	gorm.Model
	TaskID      uint   `gorm:"not null;index" json:"task_id"`
	UploaderID  uint   `gorm:"not null" json:"uploader_id"`
	FileName    string `gorm:"not null" json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StorageKey  string `gorm:"not null" json:"-"`

	// Relations
	Task Task `json:"-"`
}
