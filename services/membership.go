package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tasknest/models"

	"github.com/badoux/checkmail"
	"gorm.io/gorm"
)

// MemberCandidate is one entry of a batch member addition. A candidate with
// a non-zero UserID refers to a registered account; otherwise only the
// email is known and the candidate becomes a pending invite.
type MemberCandidate struct {
	UserID uint               `json:"id,omitempty"`
	Email  string             `json:"email"`
	Name   string             `json:"name,omitempty"`
	Role   models.ProjectRole `json:"role,omitempty"`
}

// ActiveMember is a registered collaborator as returned by ListMembers.
type ActiveMember struct {
	UserID   uint               `json:"user_id"`
	Name     string             `json:"name"`
	Email    string             `json:"email"`
	Role     models.ProjectRole `json:"role"`
	JoinedAt time.Time          `json:"joined_at"`
}

// PendingMember is an outstanding email invite as returned by ListMembers.
type PendingMember struct {
	Email     string             `json:"email"`
	Role      models.ProjectRole `json:"role"`
	InvitedAt time.Time          `json:"invited_at"`
}

// MembershipService tracks active and pending members per project. A given
// person (keyed by user id or lowercased email) appears in at most one of
// the two sets.
type MembershipService struct {
	DB     *gorm.DB
	Logger *log.Logger
	access *AccessService
}

func NewMembershipService(db *gorm.DB, logger *log.Logger) *MembershipService {
	return &MembershipService{DB: db, Logger: logger, access: NewAccessService(db)}
}

// ListMembers returns active and pending members of the project, both
// excluding the caller. The slices are never nil.
func (s *MembershipService) ListMembers(projectID, callerID uint) ([]ActiveMember, []PendingMember, error) {
	access, err := s.access.Evaluate(projectID, callerID)
	if err != nil {
		return nil, nil, err
	}
	if access.Role == models.RoleNone {
		return nil, nil, fmt.Errorf("not a project member: %w", ErrForbidden)
	}

	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		return nil, nil, fmt.Errorf("fetching project: %w", err)
	}

	var rows []models.ProjectMember
	if err := s.DB.Preload("User").
		Where("project_id = ?", projectID).
		Order("joined_at ASC").
		Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("fetching members: %w", err)
	}

	active := make([]ActiveMember, 0, len(rows))
	for _, row := range rows {
		if row.UserID == callerID {
			continue
		}
		active = append(active, ActiveMember{
			UserID:   row.UserID,
			Name:     row.User.Name,
			Email:    row.User.Email,
			Role:     row.Role,
			JoinedAt: row.JoinedAt,
		})
	}

	// The owner shows up in the active list for everyone but themselves.
	if project.OwnerID != callerID {
		var owner models.User
		if err := s.DB.First(&owner, project.OwnerID).Error; err != nil {
			return nil, nil, fmt.Errorf("fetching owner: %w", err)
		}
		active = append([]ActiveMember{{
			UserID:   owner.ID,
			Name:     owner.Name,
			Email:    owner.Email,
			Role:     models.RoleOwner,
			JoinedAt: project.CreatedAt,
		}}, active...)
	}

	var invites []models.ProjectInvite
	if err := s.DB.Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&invites).Error; err != nil {
		return nil, nil, fmt.Errorf("fetching invites: %w", err)
	}

	pending := make([]PendingMember, 0, len(invites))
	for _, inv := range invites {
		pending = append(pending, PendingMember{
			Email:     inv.Email,
			Role:      inv.Role,
			InvitedAt: inv.CreatedAt,
		})
	}

	return active, pending, nil
}

// AddMembers adds a batch of candidates to the project: registered ones
// become active members, bare emails become pending invites. The batch is
// all-or-nothing: if any candidate is already in the project (by user id,
// or case-insensitively by email against both active members and pending
// invites) the whole call fails with a MemberConflictError naming the
// offending entries. Created invites are returned so the caller can send
// invitation mail.
func (s *MembershipService) AddMembers(projectID, actorID uint, candidates []MemberCandidate) ([]models.ProjectInvite, error) {
	if _, err := s.access.RequireWritable(projectID, actorID, true); err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidates given: %w", ErrValidation)
	}

	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}

	// Snapshot the current occupancy, keyed by user id and lowercased email.
	var rows []models.ProjectMember
	if err := s.DB.Preload("User").Where("project_id = ?", projectID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetching members: %w", err)
	}
	var invites []models.ProjectInvite
	if err := s.DB.Where("project_id = ?", projectID).Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("fetching invites: %w", err)
	}

	takenIDs := map[uint]bool{project.OwnerID: true}
	takenEmails := map[string]bool{}
	var owner models.User
	if err := s.DB.First(&owner, project.OwnerID).Error; err == nil {
		takenEmails[strings.ToLower(owner.Email)] = true
	}
	for _, row := range rows {
		takenIDs[row.UserID] = true
		takenEmails[strings.ToLower(row.User.Email)] = true
	}
	for _, inv := range invites {
		takenEmails[strings.ToLower(inv.Email)] = true
	}

	var conflicts []string
	var newMembers []models.ProjectMember
	var newInvites []models.ProjectInvite
	seen := map[string]bool{} // dedup within the batch itself

	for _, cand := range candidates {
		role := cand.Role
		if role == "" {
			role = models.RoleMember
		}
		if role != models.RoleAdmin && role != models.RoleMember {
			return nil, fmt.Errorf("role %q is not assignable: %w", role, ErrValidation)
		}

		if cand.UserID != 0 {
			key := fmt.Sprintf("id:%d", cand.UserID)
			if seen[key] {
				continue
			}
			seen[key] = true
			if takenIDs[cand.UserID] || (cand.Email != "" && takenEmails[strings.ToLower(cand.Email)]) {
				conflicts = append(conflicts, cand.Email)
				continue
			}
			newMembers = append(newMembers, models.ProjectMember{
				ProjectID: projectID,
				UserID:    cand.UserID,
				Role:      role,
				JoinedAt:  time.Now(),
			})
			continue
		}

		email := strings.ToLower(strings.TrimSpace(cand.Email))
		if err := checkmail.ValidateFormat(email); err != nil {
			return nil, fmt.Errorf("invalid email %q: %w", cand.Email, ErrValidation)
		}
		if seen["email:"+email] {
			continue
		}
		seen["email:"+email] = true
		if takenEmails[email] {
			conflicts = append(conflicts, cand.Email)
			continue
		}
		newInvites = append(newInvites, models.ProjectInvite{
			ProjectID: projectID,
			Email:     email,
			Role:      role,
			InviterID: actorID,
		})
	}

	if len(conflicts) > 0 {
		return nil, &MemberConflictError{Conflicts: conflicts}
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range newMembers {
			if err := tx.Create(&newMembers[i]).Error; err != nil {
				return fmt.Errorf("adding member %d: %w", newMembers[i].UserID, err)
			}
		}
		for i := range newInvites {
			if err := tx.Create(&newInvites[i]).Error; err != nil {
				return fmt.Errorf("creating invite for %s: %w", newInvites[i].Email, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Printf("project %d: added %d members, %d invites", projectID, len(newMembers), len(newInvites))
	return newInvites, nil
}

// RemoveMember removes an active member by user id. Allowed when the actor
// is the owner, an admin removing a plain member, or a member removing
// themselves (leaving the project).
func (s *MembershipService) RemoveMember(projectID, actorID, memberID uint) error {
	access, err := s.access.RequireWritable(projectID, actorID, false)
	if err != nil {
		return err
	}

	var row models.ProjectMember
	if err := s.DB.Where("project_id = ? AND user_id = ?", projectID, memberID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
		}
		return fmt.Errorf("fetching member: %w", err)
	}

	switch {
	case access.Role == models.RoleOwner:
		// owner removes anyone
	case actorID == memberID:
		// leaving the project
	case access.Role == models.RoleAdmin && row.Role == models.RoleMember:
		// admin removes a plain member, never another admin
	default:
		return fmt.Errorf("cannot remove this member: %w", ErrForbidden)
	}

	if err := s.DB.Unscoped().Delete(&row).Error; err != nil {
		return fmt.Errorf("removing member: %w", err)
	}
	s.Logger.Printf("project %d: member %d removed by %d", projectID, memberID, actorID)
	return nil
}

// RemovePendingInvite withdraws an email invite. Pending members have no
// session, so there is no self-removal path; manage rights are required.
func (s *MembershipService) RemovePendingInvite(projectID, actorID uint, email string) error {
	if _, err := s.access.RequireWritable(projectID, actorID, true); err != nil {
		return err
	}

	email = strings.ToLower(strings.TrimSpace(email))
	var invite models.ProjectInvite
	if err := s.DB.Where("project_id = ? AND LOWER(email) = ?", projectID, email).First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("invite for %s: %w", email, ErrNotFound)
		}
		return fmt.Errorf("fetching invite: %w", err)
	}

	if err := s.DB.Unscoped().Delete(&invite).Error; err != nil {
		return fmt.Errorf("removing invite: %w", err)
	}
	s.Logger.Printf("project %d: invite for %s withdrawn by %d", projectID, email, actorID)
	return nil
}
