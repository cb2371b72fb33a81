package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"tasknest/models"

	"gorm.io/gorm"
)

// MilestoneService tracks which top-level tasks belong to a milestone and
// keeps the completion counts in step with them.
type MilestoneService struct {
	DB     *gorm.DB
	Logger *log.Logger
	access *AccessService
}

func NewMilestoneService(db *gorm.DB, logger *log.Logger) *MilestoneService {
	return &MilestoneService{DB: db, Logger: logger, access: NewAccessService(db)}
}

// CreateMilestone creates an empty milestone in the project.
func (s *MilestoneService) CreateMilestone(projectID, actorID uint, name, color string) (*models.Milestone, error) {
	if _, err := s.access.RequireWritable(projectID, actorID, false); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("milestone name is required: %w", ErrValidation)
	}

	milestone := models.Milestone{ProjectID: projectID, Name: name}
	if color != "" {
		milestone.Color = color
	}
	if err := s.DB.Create(&milestone).Error; err != nil {
		return nil, fmt.Errorf("creating milestone: %w", err)
	}
	s.Logger.Printf("project %d: milestone %d created by %d", projectID, milestone.ID, actorID)
	return &milestone, nil
}

// ListMilestones returns the project's milestones with freshly derived
// counts.
func (s *MilestoneService) ListMilestones(projectID, actorID uint) ([]models.Milestone, error) {
	access, err := s.access.Evaluate(projectID, actorID)
	if err != nil {
		return nil, err
	}
	if access.Role == models.RoleNone {
		return nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}

	milestones := []models.Milestone{}
	if err := s.DB.Where("project_id = ?", projectID).Order("created_at ASC").Find(&milestones).Error; err != nil {
		return nil, fmt.Errorf("fetching milestones: %w", err)
	}
	for i := range milestones {
		completed, all, err := deriveMilestoneCounts(s.DB, milestones[i].ID)
		if err != nil {
			return nil, err
		}
		milestones[i].CompletedTasksCount = completed
		milestones[i].AllTasksCount = all
	}
	return milestones, nil
}

// AddTasks attaches top-level tasks to the milestone. Subtasks ride along
// with their parent and cannot be added directly.
func (s *MilestoneService) AddTasks(milestoneID, actorID uint, taskIDs []uint) (*models.Milestone, error) {
	milestone, err := s.loadMilestone(milestoneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireWritable(milestone.ProjectID, actorID, false); err != nil {
		return nil, err
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for _, taskID := range DedupIDs(taskIDs) {
			var task models.Task
			if err := tx.First(&task, taskID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
				}
				return fmt.Errorf("fetching task: %w", err)
			}
			if task.ProjectID != milestone.ProjectID {
				return fmt.Errorf("task %d belongs to another project: %w", taskID, ErrValidation)
			}
			if task.IsSubtask() {
				return fmt.Errorf("task %d is a subtask and follows its parent: %w", taskID, ErrConflict)
			}
			// The task and its subtasks move together.
			if err := tx.Model(&models.Task{}).
				Where("id = ? OR parent_task_id = ?", taskID, taskID).
				Update("milestone_id", milestoneID).Error; err != nil {
				return fmt.Errorf("attaching task %d: %w", taskID, err)
			}
		}
		return recomputeMilestoneCounts(tx, milestoneID)
	})
	if err != nil {
		return nil, err
	}

	return s.loadMilestone(milestoneID)
}

// RemoveTask detaches a top-level task from the milestone. Subtasks are
// rejected with a conflict: they are only removable through their parent.
// Detaching a parent clears its subtasks' association implicitly, since
// those were never independent milestone members.
func (s *MilestoneService) RemoveTask(milestoneID, actorID, taskID uint) (*models.Milestone, error) {
	milestone, err := s.loadMilestone(milestoneID)
	if err != nil {
		return nil, err
	}
	if _, err := s.access.RequireWritable(milestone.ProjectID, actorID, false); err != nil {
		return nil, err
	}

	var task models.Task
	if err := s.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching task: %w", err)
	}
	if task.IsSubtask() {
		return nil, fmt.Errorf("subtasks are managed through their parent task: %w", ErrConflict)
	}
	if task.MilestoneID == nil || *task.MilestoneID != milestoneID {
		return nil, fmt.Errorf("task %d is not in this milestone: %w", taskID, ErrNotFound)
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("id = ? OR parent_task_id = ?", taskID, taskID).
			Update("milestone_id", nil).Error; err != nil {
			return fmt.Errorf("detaching task %d: %w", taskID, err)
		}
		return recomputeMilestoneCounts(tx, milestoneID)
	})
	if err != nil {
		return nil, err
	}

	return s.loadMilestone(milestoneID)
}

// DeleteMilestone removes the milestone and clears the association from
// its tasks.
func (s *MilestoneService) DeleteMilestone(milestoneID, actorID uint) error {
	milestone, err := s.loadMilestone(milestoneID)
	if err != nil {
		return err
	}
	if _, err := s.access.RequireWritable(milestone.ProjectID, actorID, true); err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("milestone_id = ?", milestoneID).
			Update("milestone_id", nil).Error; err != nil {
			return fmt.Errorf("detaching tasks: %w", err)
		}
		if err := tx.Unscoped().Delete(&models.Milestone{}, milestoneID).Error; err != nil {
			return fmt.Errorf("deleting milestone: %w", err)
		}
		s.Logger.Printf("project %d: milestone %d deleted by %d", milestone.ProjectID, milestoneID, actorID)
		return nil
	})
}

// RecomputeCounts re-derives the milestone's counts from current task rows
// and returns the refreshed milestone.
func (s *MilestoneService) RecomputeCounts(milestoneID uint) (*models.Milestone, error) {
	if err := recomputeMilestoneCounts(s.DB, milestoneID); err != nil {
		return nil, err
	}
	return s.loadMilestone(milestoneID)
}

func (s *MilestoneService) loadMilestone(milestoneID uint) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := s.DB.First(&milestone, milestoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("milestone %d: %w", milestoneID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching milestone: %w", err)
	}
	return &milestone, nil
}

// deriveMilestoneCounts counts the milestone's top-level member tasks and
// the completed subset. Only top-level tasks contribute; subtask status
// bubbles into the parent's display ratio instead.
func deriveMilestoneCounts(db *gorm.DB, milestoneID uint) (completed, all int, err error) {
	var total, done int64
	if err := db.Model(&models.Task{}).
		Where("milestone_id = ? AND parent_task_id IS NULL", milestoneID).
		Count(&total).Error; err != nil {
		return 0, 0, fmt.Errorf("counting milestone tasks: %w", err)
	}
	if err := db.Model(&models.Task{}).
		Where("milestone_id = ? AND parent_task_id IS NULL AND status = ?", milestoneID, models.StatusCompleted).
		Count(&done).Error; err != nil {
		return 0, 0, fmt.Errorf("counting completed milestone tasks: %w", err)
	}
	return int(done), int(total), nil
}

// recomputeMilestoneCounts refreshes the stored counts from a full
// re-derivation. The stored values are display convenience only; they are
// overwritten, never incremented.
func recomputeMilestoneCounts(db *gorm.DB, milestoneID uint) error {
	completed, all, err := deriveMilestoneCounts(db, milestoneID)
	if err != nil {
		return err
	}
	if err := db.Model(&models.Milestone{}).
		Where("id = ?", milestoneID).
		Updates(map[string]interface{}{
			"completed_tasks_count": completed,
			"all_tasks_count":       all,
		}).Error; err != nil {
		return fmt.Errorf("storing milestone counts: %w", err)
	}
	return nil
}
