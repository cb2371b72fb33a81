package services

import (
	"errors"
	"fmt"
	"log"

	"tasknest/models"

	"gorm.io/gorm"
)

// Assignee is one entry of a task's merged assignment view.
type Assignee struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

// MergeAssignees reconciles persisted assignments with client-staged ones
// into a single set deduplicated by user id. Existing entries win their
// position; pending entries are appended in order. Every call site that
// displays or submits assignments goes through this one function so the
// two ownership domains can never silently diverge.
func MergeAssignees(existing, pending []Assignee) []Assignee {
	merged := make([]Assignee, 0, len(existing)+len(pending))
	seen := make(map[uint]bool, len(existing)+len(pending))
	for _, a := range existing {
		if a.UserID == 0 || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		merged = append(merged, a)
	}
	for _, a := range pending {
		if a.UserID == 0 || seen[a.UserID] {
			continue
		}
		seen[a.UserID] = true
		merged = append(merged, a)
	}
	return merged
}

// stagedAssignees lifts raw user ids into assignee entries so client-staged
// input can flow through MergeAssignees like any persisted set.
func stagedAssignees(ids []uint) []Assignee {
	out := make([]Assignee, 0, len(ids))
	for _, id := range ids {
		out = append(out, Assignee{UserID: id})
	}
	return out
}

// AssignmentService maps tasks to assignees. Self-assignment is a
// privileged shortcut open to every project role; assigning or unassigning
// others requires manage rights.
type AssignmentService struct {
	DB     *gorm.DB
	Logger *log.Logger
	access *AccessService
	tasks  *TaskService
}

func NewAssignmentService(db *gorm.DB, logger *log.Logger) *AssignmentService {
	return &AssignmentService{
		DB:     db,
		Logger: logger,
		access: NewAccessService(db),
		tasks:  NewTaskService(db, logger),
	}
}

// ListAssignees returns the persisted assignees of a task.
func (s *AssignmentService) ListAssignees(taskID, actorID uint) ([]Assignee, error) {
	task, err := s.tasks.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	access, err := s.access.Evaluate(task.ProjectID, actorID)
	if err != nil {
		return nil, err
	}
	if access.Role == models.RoleNone {
		return nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}
	return s.existingAssignees(taskID)
}

// AssignSelf adds the acting user to the task. Assigning an already
// assigned self is a no-op, not an error.
func (s *AssignmentService) AssignSelf(taskID, actorID uint) error {
	task, err := s.tasks.loadTask(taskID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, false); err != nil {
		return err
	}

	var count int64
	if err := s.DB.Model(&models.TaskAssignment{}).
		Where("task_id = ? AND user_id = ?", taskID, actorID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("checking assignment: %w", err)
	}
	if count > 0 {
		return nil
	}

	if err := s.DB.Create(&models.TaskAssignment{TaskID: taskID, UserID: actorID}).Error; err != nil {
		return fmt.Errorf("assigning self: %w", err)
	}
	s.Logger.Printf("task %d: user %d self-assigned", taskID, actorID)
	return nil
}

// UnassignSelf removes the acting user from the task; absent assignments
// are a no-op.
func (s *AssignmentService) UnassignSelf(taskID, actorID uint) error {
	task, err := s.tasks.loadTask(taskID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, false); err != nil {
		return err
	}

	if err := s.DB.Unscoped().
		Where("task_id = ? AND user_id = ?", taskID, actorID).
		Delete(&models.TaskAssignment{}).Error; err != nil {
		return fmt.Errorf("unassigning self: %w", err)
	}
	return nil
}

// AssignOthers adds the given users to the task (manage-only). The input
// is merged with the persisted set by user id, so duplicates within the
// batch or against existing rows collapse instead of erroring.
func (s *AssignmentService) AssignOthers(taskID, actorID uint, userIDs []uint) ([]Assignee, error) {
	task, err := s.tasks.loadTask(taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, true); err != nil {
		return nil, err
	}

	existing, err := s.existingAssignees(taskID)
	if err != nil {
		return nil, err
	}
	assigned := make(map[uint]bool, len(existing))
	for _, a := range existing {
		assigned[a.UserID] = true
	}

	for _, a := range MergeAssignees(existing, stagedAssignees(userIDs)) {
		if assigned[a.UserID] {
			continue
		}
		ok, err := s.tasks.isProjectParticipant(task.ProjectID, a.UserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("user %d is not a project member: %w", a.UserID, ErrValidation)
		}
		if err := s.DB.Create(&models.TaskAssignment{TaskID: taskID, UserID: a.UserID}).Error; err != nil {
			return nil, fmt.Errorf("assigning user %d: %w", a.UserID, err)
		}
		assigned[a.UserID] = true
	}

	return s.existingAssignees(taskID)
}

// UnassignOther removes a persisted assignment (manage-only). If the user
// was never persisted, e.g. they only ever lived in a client-side pending
// set, there is nothing to do server-side and the call succeeds.
func (s *AssignmentService) UnassignOther(taskID, actorID, userID uint) error {
	task, err := s.tasks.loadTask(taskID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireWritable(task.ProjectID, actorID, true); err != nil {
		return err
	}

	if err := s.DB.Unscoped().
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.TaskAssignment{}).Error; err != nil {
		return fmt.Errorf("unassigning user %d: %w", userID, err)
	}
	return nil
}

func (s *AssignmentService) existingAssignees(taskID uint) ([]Assignee, error) {
	var rows []models.TaskAssignment
	if err := s.DB.Preload("User").Where("task_id = ?", taskID).Order("created_at ASC").Find(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []Assignee{}, nil
		}
		return nil, fmt.Errorf("fetching assignments: %w", err)
	}
	assignees := make([]Assignee, 0, len(rows))
	for _, row := range rows {
		assignees = append(assignees, Assignee{
			UserID: row.UserID,
			Name:   row.User.Name,
			Email:  row.User.Email,
		})
	}
	return assignees, nil
}
