package services

import (
	"errors"
	"fmt"
	"tasknest/models"

	"gorm.io/gorm"
)

// Access is the effective permission of a user on a project at the moment
// of evaluation.
type Access struct {
	Role      models.ProjectRole `json:"role"`
	CanManage bool               `json:"can_manage"`
	ReadOnly  bool               `json:"read_only"`
}

// AccessService computes effective project permissions. Evaluation is a
// pure read over current rows: the read-only flag depends on the owner's
// subscription and the member count, both of which change externally, so
// results are never cached.
type AccessService struct {
	DB *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{DB: db}
}

// Evaluate returns the acting user's role on the project, whether they can
// manage it, and whether the project is currently locked read-only.
//
// The owner is exempt from role lookups but still subject to the read-only
// lock. The lock holds iff the owner's premium subscription is cancelled or
// expired while the project (owner included) exceeds the free member limit.
func (s *AccessService) Evaluate(projectID, userID uint) (Access, error) {
	var project models.Project
	if err := s.DB.Preload("Owner").First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Access{Role: models.RoleNone}, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		return Access{Role: models.RoleNone}, fmt.Errorf("fetching project: %w", err)
	}

	var memberRows int64
	if err := s.DB.Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Count(&memberRows).Error; err != nil {
		return Access{Role: models.RoleNone}, fmt.Errorf("counting members: %w", err)
	}

	memberCount := int(memberRows) + 1 // owner is not stored as a member row
	readOnly := project.Owner.PremiumLapsed() && memberCount > models.FreeMemberLimit

	role := models.RoleNone
	if project.OwnerID == userID {
		role = models.RoleOwner
	} else {
		var member models.ProjectMember
		err := s.DB.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
		switch {
		case err == nil:
			role = member.Role
		case errors.Is(err, gorm.ErrRecordNotFound):
			role = models.RoleNone
		default:
			return Access{Role: models.RoleNone}, fmt.Errorf("looking up membership: %w", err)
		}
	}

	return Access{
		Role:      role,
		CanManage: role == models.RoleOwner || role == models.RoleAdmin,
		ReadOnly:  readOnly,
	}, nil
}

// Annotate fills a project's derived fields (member count, read-only flag,
// completion progress) from current rows.
func (s *AccessService) Annotate(project *models.Project) error {
	var memberRows int64
	if err := s.DB.Model(&models.ProjectMember{}).
		Where("project_id = ?", project.ID).
		Count(&memberRows).Error; err != nil {
		return fmt.Errorf("counting members: %w", err)
	}
	project.MemberCount = int(memberRows) + 1

	if project.Owner.ID == 0 {
		if err := s.DB.First(&project.Owner, project.OwnerID).Error; err != nil {
			return fmt.Errorf("fetching owner: %w", err)
		}
	}
	project.ReadOnly = project.Owner.PremiumLapsed() && project.MemberCount > models.FreeMemberLimit

	var total, completed int64
	if err := s.DB.Model(&models.Task{}).
		Where("project_id = ? AND parent_task_id IS NULL", project.ID).
		Count(&total).Error; err != nil {
		return fmt.Errorf("counting tasks: %w", err)
	}
	if total > 0 {
		if err := s.DB.Model(&models.Task{}).
			Where("project_id = ? AND parent_task_id IS NULL AND status = ?", project.ID, models.StatusCompleted).
			Count(&completed).Error; err != nil {
			return fmt.Errorf("counting completed tasks: %w", err)
		}
		project.Progress = float64(completed) / float64(total)
	}
	return nil
}

// RequireWritable loads the access for the actor and enforces the two
// gates shared by every mutating operation: membership (at least the given
// role) and the read-only lock. Each manager calls this itself rather than
// trusting its caller, since managers can be invoked directly.
func (s *AccessService) RequireWritable(projectID, userID uint, manage bool) (Access, error) {
	access, err := s.Evaluate(projectID, userID)
	if err != nil {
		return access, err
	}
	if access.Role == models.RoleNone {
		return access, fmt.Errorf("not a project member: %w", ErrForbidden)
	}
	if access.ReadOnly {
		return access, fmt.Errorf("project is read-only: %w", ErrForbidden)
	}
	if manage && !access.CanManage {
		return access, fmt.Errorf("requires owner or admin role: %w", ErrForbidden)
	}
	return access, nil
}
