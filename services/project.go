package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"tasknest/models"

	"gorm.io/gorm"
)

// ProjectService handles project lifecycle. Projects are the only entity
// with a cascading hard delete: members, invites, tasks, assignments,
// comments, attachments, labels and milestones all go with the project.
type ProjectService struct {
	DB     *gorm.DB
	Logger *log.Logger
	access *AccessService
}

func NewProjectService(db *gorm.DB, logger *log.Logger) *ProjectService {
	return &ProjectService{DB: db, Logger: logger, access: NewAccessService(db)}
}

func (s *ProjectService) CreateProject(ownerID uint, name, description string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if len(name) < MinTitleLength {
		return nil, fmt.Errorf("project name must be at least %d characters: %w", MinTitleLength, ErrValidation)
	}

	project := models.Project{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Status:      "active",
	}
	if err := s.DB.Create(&project).Error; err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	if err := s.access.Annotate(&project); err != nil {
		return nil, err
	}
	s.Logger.Printf("project %d created by %d", project.ID, ownerID)
	return &project, nil
}

// GetProject returns the project with its derived fields filled in,
// provided the caller belongs to it.
func (s *ProjectService) GetProject(projectID, actorID uint) (*models.Project, error) {
	access, err := s.access.Evaluate(projectID, actorID)
	if err != nil {
		return nil, err
	}
	if access.Role == models.RoleNone {
		return nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}

	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetching project: %w", err)
	}
	if err := s.access.Annotate(&project); err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns every project the user owns or belongs to.
func (s *ProjectService) ListProjects(userID uint) ([]models.Project, error) {
	projects := []models.Project{}
	if err := s.DB.
		Joins("LEFT JOIN project_members pm ON pm.project_id = projects.id AND pm.user_id = ? AND pm.deleted_at IS NULL", userID).
		Where("projects.owner_id = ? OR pm.user_id = ?", userID, userID).
		Group("projects.id").
		Order("projects.updated_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("fetching projects: %w", err)
	}
	for i := range projects {
		if err := s.access.Annotate(&projects[i]); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

// UpdateProject changes name/description/status. Manage rights required;
// the read-only lock applies here like everywhere else.
func (s *ProjectService) UpdateProject(projectID, actorID uint, name, description, status *string) (*models.Project, error) {
	if _, err := s.access.RequireWritable(projectID, actorID, true); err != nil {
		return nil, err
	}

	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if len(trimmed) < MinTitleLength {
			return nil, fmt.Errorf("project name must be at least %d characters: %w", MinTitleLength, ErrValidation)
		}
		project.Name = trimmed
	}
	if description != nil {
		project.Description = *description
	}
	if status != nil {
		if *status != "active" && *status != "archived" {
			return nil, fmt.Errorf("unknown project status %q: %w", *status, ErrValidation)
		}
		project.Status = *status
	}

	if err := s.DB.Save(&project).Error; err != nil {
		return nil, fmt.Errorf("saving project: %w", err)
	}
	if err := s.access.Annotate(&project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject hard-deletes the project and everything under it. Owner
// only; this is the one escape hatch that still works on a read-only
// project, since the lock exists to push an upgrade, not to hold data
// hostage.
func (s *ProjectService) DeleteProject(projectID, actorID uint) error {
	access, err := s.access.Evaluate(projectID, actorID)
	if err != nil {
		return err
	}
	if access.Role != models.RoleOwner {
		return fmt.Errorf("only the owner can delete a project: %w", ErrForbidden)
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		var taskIDs []uint
		if err := tx.Model(&models.Task{}).Where("project_id = ?", projectID).Pluck("id", &taskIDs).Error; err != nil {
			return fmt.Errorf("collecting tasks: %w", err)
		}
		if len(taskIDs) > 0 {
			if err := tx.Unscoped().Where("task_id IN ?", taskIDs).Delete(&models.TaskAssignment{}).Error; err != nil {
				return fmt.Errorf("deleting assignments: %w", err)
			}
			if err := tx.Unscoped().Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
				return fmt.Errorf("deleting comments: %w", err)
			}
			if err := tx.Unscoped().Where("task_id IN ?", taskIDs).Delete(&models.Attachment{}).Error; err != nil {
				return fmt.Errorf("deleting attachments: %w", err)
			}
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&models.Task{}).Error; err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&models.Milestone{}).Error; err != nil {
			return fmt.Errorf("deleting milestones: %w", err)
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&models.Label{}).Error; err != nil {
			return fmt.Errorf("deleting labels: %w", err)
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&models.ProjectInvite{}).Error; err != nil {
			return fmt.Errorf("deleting invites: %w", err)
		}
		if err := tx.Unscoped().Where("project_id = ?", projectID).Delete(&models.ProjectMember{}).Error; err != nil {
			return fmt.Errorf("deleting members: %w", err)
		}
		if err := tx.Unscoped().Delete(&models.Project{}, projectID).Error; err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		s.Logger.Printf("project %d deleted by owner %d", projectID, actorID)
		return nil
	})
}
