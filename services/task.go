package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tasknest/models"

	"gorm.io/gorm"
)

// MinTitleLength mirrors the backend schema; it is enforced here before any
// write is attempted.
const MinTitleLength = 2

// TaskService maintains the parent/subtask hierarchy and the aggregates
// derived from it. Nesting is exactly one level deep: a subtask can never
// have subtasks of its own.
type TaskService struct {
	DB     *gorm.DB
	Logger *log.Logger
	access *AccessService
}

func NewTaskService(db *gorm.DB, logger *log.Logger) *TaskService {
	return &TaskService{DB: db, Logger: logger, access: NewAccessService(db)}
}

// CreateTaskInput is the payload for CreateTask. AssigneeIDs may contain
// assignments staged in the client before the task existed; duplicates are
// collapsed by user id.
type CreateTaskInput struct {
	Title        string
	Description  string
	Status       models.TaskStatus
	Priority     models.TaskPriority
	DueDate      *time.Time
	ParentTaskID *uint
	MilestoneID  *uint
	AssigneeIDs  []uint
}

func (s *TaskService) CreateTask(projectID, actorID uint, input CreateTaskInput) (*models.Task, error) {
	if _, err := s.access.RequireWritable(projectID, actorID, false); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if len(title) < MinTitleLength {
		return nil, fmt.Errorf("title must be at least %d characters: %w", MinTitleLength, ErrValidation)
	}

	status := input.Status
	if status == "" {
		status = models.StatusNotStarted
	}
	if !models.ValidStatus(status) {
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrValidation)
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !models.ValidPriority(priority) {
		return nil, fmt.Errorf("unknown priority %q: %w", priority, ErrValidation)
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: input.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     input.DueDate,
		MilestoneID: input.MilestoneID,
	}

	if input.ParentTaskID != nil {
		var parent models.Task
		if err := s.DB.First(&parent, *input.ParentTaskID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("parent task %d: %w", *input.ParentTaskID, ErrNotFound)
			}
			return nil, fmt.Errorf("fetching parent task: %w", err)
		}
		if parent.ProjectID != projectID {
			return nil, fmt.Errorf("parent task belongs to another project: %w", ErrValidation)
		}
		if parent.IsSubtask() {
			return nil, fmt.Errorf("subtasks cannot have subtasks: %w", ErrValidation)
		}
		task.ParentTaskID = input.ParentTaskID
		// A subtask rides along with its parent's milestone; it is never an
		// independent milestone member.
		task.MilestoneID = parent.MilestoneID
	}

	// A subtask's milestone comes from its already-validated parent; a
	// top-level task's must belong to the project the actor is writing to.
	if task.MilestoneID != nil && task.ParentTaskID == nil {
		var milestone models.Milestone
		if err := s.DB.First(&milestone, *task.MilestoneID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("milestone %d: %w", *task.MilestoneID, ErrNotFound)
			}
			return nil, fmt.Errorf("fetching milestone: %w", err)
		}
		if milestone.ProjectID != projectID {
			return nil, fmt.Errorf("milestone %d belongs to another project: %w", *task.MilestoneID, ErrValidation)
		}
	}

	// Staged assignments go through the same merge as every persisted set;
	// the task is new, so there is nothing existing to merge against.
	staged := MergeAssignees(nil, stagedAssignees(input.AssigneeIDs))
	for _, a := range staged {
		ok, err := s.isProjectParticipant(projectID, a.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("user %d is not a project member: %w", a.UserID, ErrValidation)
		}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		for _, a := range staged {
			if err := tx.Create(&models.TaskAssignment{TaskID: task.ID, UserID: a.UserID}).Error; err != nil {
				return fmt.Errorf("assigning user %d: %w", a.UserID, err)
			}
		}
		if task.MilestoneID != nil && !task.IsSubtask() {
			if err := recomputeMilestoneCounts(tx, *task.MilestoneID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.decorate(&task); err != nil {
		return nil, err
	}
	s.Logger.Printf("project %d: task %d created by %d (subtask=%t)", projectID, task.ID, actorID, task.IsSubtask())
	return &task, nil
}

// ListTasks returns the project's top-level tasks, subtasks preloaded,
// newest update first. Ties keep storage order; no secondary sort key.
func (s *TaskService) ListTasks(projectID, actorID uint) ([]models.Task, error) {
	access, err := s.access.Evaluate(projectID, actorID)
	if err != nil {
		return nil, err
	}
	if access.Role == models.RoleNone {
		return nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}

	tasks := []models.Task{}
	if err := s.DB.Preload("Subtasks").Preload("Labels").
		Where("project_id = ? AND parent_task_id IS NULL", projectID).
		Order("updated_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	for i := range tasks {
		if err := s.decorate(&tasks[i]); err != nil {
			return nil, err
		}
	}
	return tasks, nil
}

// GetTask fetches one task with its subtasks and derived fields.
func (s *TaskService) GetTask(taskID, actorID uint) (*models.Task, error) {
	task, err := s.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Where("parent_task_id = ?", taskID).Find(&task.Subtasks).Error; err != nil {
		return nil, fmt.Errorf("fetching subtasks: %w", err)
	}
	access, err := s.access.Evaluate(task.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if access.Role == models.RoleNone {
		return nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}
	if err := s.decorate(task); err != nil {
		return nil, err
	}
	return task, nil
}

// TaskUpdate carries the edit-form fields; nil pointers leave the column
// untouched.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     *time.Time
	ClearDue    bool
}

// UpdateTask applies an edit-form update. Arbitrary status values are
// allowed here, unlike the checkbox toggle.
func (s *TaskService) UpdateTask(taskID, actorID uint, update TaskUpdate) (*models.Task, error) {
	task, err := s.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, false); err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if len(title) < MinTitleLength {
			return nil, fmt.Errorf("title must be at least %d characters: %w", MinTitleLength, ErrValidation)
		}
		task.Title = title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.DueDate != nil {
		task.DueDate = update.DueDate
	} else if update.ClearDue {
		task.DueDate = nil
	}
	if update.Priority != nil {
		if !models.ValidPriority(*update.Priority) {
			return nil, fmt.Errorf("unknown priority %q: %w", *update.Priority, ErrValidation)
		}
		task.Priority = *update.Priority
	}

	statusChanged := false
	if update.Status != nil && *update.Status != task.Status {
		if !models.ValidStatus(*update.Status) {
			return nil, fmt.Errorf("unknown status %q: %w", *update.Status, ErrValidation)
		}
		if *update.Status == models.StatusCompleted {
			task.PrevStatus = task.Status
		}
		task.Status = *update.Status
		statusChanged = true
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("saving task: %w", err)
		}
		if statusChanged {
			return s.afterStatusChange(tx, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.decorate(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleStatus implements the checkbox: a non-completed task becomes
// completed, a completed task reverts to the status it had before. The
// parent's subtask ratio is recomputed but the parent's own status is
// never touched.
func (s *TaskService) ToggleStatus(taskID, actorID uint) (*models.Task, error) {
	task, err := s.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, false); err != nil {
		return nil, err
	}

	if task.Status == models.StatusCompleted {
		prev := task.PrevStatus
		if prev == "" || prev == models.StatusCompleted {
			prev = models.StatusNotStarted
		}
		task.Status = prev
		task.PrevStatus = ""
	} else {
		task.PrevStatus = task.Status
		task.Status = models.StatusCompleted
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(task).Error; err != nil {
			return fmt.Errorf("saving task: %w", err)
		}
		return s.afterStatusChange(tx, task)
	})
	if err != nil {
		return nil, err
	}

	if err := s.decorate(task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task. A subtask simply leaves its parent's sequence.
// A top-level milestone member is detached from the milestone (counts
// recomputed). Deleting a parent does NOT cascade to its subtasks: their
// rows keep the dangling parent reference. That mirrors the shipped
// behavior and is pinned by a test rather than fixed silently.
func (s *TaskService) DeleteTask(taskID, actorID uint) error {
	task, err := s.loadTask(taskID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, false); err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("task_id = ?", taskID).Delete(&models.TaskAssignment{}).Error; err != nil {
			return fmt.Errorf("removing assignments: %w", err)
		}
		if err := tx.Unscoped().Where("task_id = ?", taskID).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("removing comments: %w", err)
		}
		if err := tx.Unscoped().Where("task_id = ?", taskID).Delete(&models.Attachment{}).Error; err != nil {
			return fmt.Errorf("removing attachments: %w", err)
		}
		if err := tx.Unscoped().Delete(&models.Task{}, taskID).Error; err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		if task.MilestoneID != nil && !task.IsSubtask() {
			if err := recomputeMilestoneCounts(tx, *task.MilestoneID); err != nil {
				return err
			}
		}
		s.Logger.Printf("project %d: task %d deleted by %d", task.ProjectID, taskID, actorID)
		return nil
	})
}

// SubtaskRatio returns the completed/total counts of a task's direct
// subtasks, derived from current rows.
func (s *TaskService) SubtaskRatio(taskID uint) (completed, total int, err error) {
	var t, c int64
	if err := s.DB.Model(&models.Task{}).Where("parent_task_id = ?", taskID).Count(&t).Error; err != nil {
		return 0, 0, fmt.Errorf("counting subtasks: %w", err)
	}
	if err := s.DB.Model(&models.Task{}).
		Where("parent_task_id = ? AND status = ?", taskID, models.StatusCompleted).
		Count(&c).Error; err != nil {
		return 0, 0, fmt.Errorf("counting completed subtasks: %w", err)
	}
	return int(c), int(t), nil
}

// afterStatusChange refreshes the aggregates a status change can touch:
// the owning milestone's counts for top-level tasks. Subtask changes only
// affect the parent's display ratio, which is derived on read.
func (s *TaskService) afterStatusChange(tx *gorm.DB, task *models.Task) error {
	if task.IsSubtask() {
		return nil
	}
	if task.MilestoneID != nil {
		return recomputeMilestoneCounts(tx, *task.MilestoneID)
	}
	return nil
}

func (s *TaskService) loadTask(taskID uint) (*models.Task, error) {
	var task models.Task
	if err := s.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching task: %w", err)
	}
	return &task, nil
}

// decorate fills the derived display fields of a task.
func (s *TaskService) decorate(task *models.Task) error {
	if !task.IsSubtask() {
		completed, total, err := s.SubtaskRatio(task.ID)
		if err != nil {
			return err
		}
		task.CompletedSubtasks = completed
		task.TotalSubtasks = total
	}
	if task.MilestoneID != nil {
		var milestone models.Milestone
		if err := s.DB.First(&milestone, *task.MilestoneID).Error; err == nil {
			task.MilestoneName = milestone.Name
		}
	}
	var attachments int64
	if err := s.DB.Model(&models.Attachment{}).Where("task_id = ?", task.ID).Count(&attachments).Error; err != nil {
		return fmt.Errorf("counting attachments: %w", err)
	}
	task.AttachmentsCount = int(attachments)
	return nil
}

func (s *TaskService) isProjectParticipant(projectID, userID uint) (bool, error) {
	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		return false, fmt.Errorf("fetching project: %w", err)
	}
	if project.OwnerID == userID {
		return true, nil
	}
	var count int64
	if err := s.DB.Model(&models.ProjectMember{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	return count > 0, nil
}

func DedupIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
