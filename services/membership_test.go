package services

import (
	"errors"
	"strings"
	"testing"

	"tasknest/models"
)

func TestListMembersExcludesCaller(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	member := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, member.ID, models.RoleMember)

	active, pending, err := svc.ListMembers(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if pending == nil || active == nil {
		t.Fatalf("slices must never be nil")
	}
	if len(active) != 1 || active[0].UserID != member.ID {
		t.Fatalf("owner's view should contain only the other member, got %+v", active)
	}

	// The member's view contains the owner but not the member themselves.
	active, _, err = svc.ListMembers(project.ID, member.ID)
	if err != nil {
		t.Fatalf("ListMembers failed: %v", err)
	}
	if len(active) != 1 || active[0].UserID != owner.ID || active[0].Role != models.RoleOwner {
		t.Fatalf("member's view should contain only the owner, got %+v", active)
	}
}

func TestAddMembersCreatesMembersAndInvites(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	registered := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)

	invites, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{UserID: registered.ID, Email: registered.Email},
		{Email: "newcomer@example.com"},
	})
	if err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}
	if len(invites) != 1 || invites[0].Email != "newcomer@example.com" {
		t.Fatalf("expected one invite for the unregistered email, got %+v", invites)
	}

	var memberCount, inviteCount int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&memberCount)
	db.Model(&models.ProjectInvite{}).Where("project_id = ?", project.ID).Count(&inviteCount)
	if memberCount != 1 || inviteCount != 1 {
		t.Fatalf("got %d members and %d invites, want 1 and 1", memberCount, inviteCount)
	}
}

func TestAddMembersIsAllOrNothing(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	existing := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, existing.ID, models.RoleMember)

	_, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: "fresh@example.com"},
		{UserID: existing.ID, Email: existing.Email},
	})
	if err == nil {
		t.Fatalf("batch with a duplicate must fail")
	}

	var conflict *MemberConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want MemberConflictError, got %v", err)
	}
	if len(conflict.Conflicts) != 1 {
		t.Fatalf("conflict must name the duplicate entry, got %+v", conflict.Conflicts)
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("conflict error must unwrap to ErrConflict")
	}

	// Nothing from the batch may have been written.
	var memberCount, inviteCount int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&memberCount)
	db.Model(&models.ProjectInvite{}).Where("project_id = ?", project.ID).Count(&inviteCount)
	if memberCount != 1 || inviteCount != 0 {
		t.Fatalf("failed batch must not write anything: %d members, %d invites", memberCount, inviteCount)
	}
}

func TestAddMembersEmailDedupIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)

	if _, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: "Pending@Example.com"},
	}); err != nil {
		t.Fatalf("first invite failed: %v", err)
	}

	_, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: "pending@example.com"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("re-inviting the same address in different case must conflict, got %v", err)
	}

	var inviteCount int64
	db.Model(&models.ProjectInvite{}).Where("project_id = ?", project.ID).Count(&inviteCount)
	if inviteCount != 1 {
		t.Fatalf("pending set must still hold exactly one entry, got %d", inviteCount)
	}
}

func TestAddMembersRejectsOwnerAndBadEmail(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)

	if _, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: strings.ToUpper(owner.Email)},
	}); !errors.Is(err, ErrConflict) {
		t.Fatalf("inviting the owner's address must conflict, got %v", err)
	}

	if _, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: "not-an-email"},
	}); !errors.Is(err, ErrValidation) {
		t.Fatalf("malformed email must fail validation, got %v", err)
	}
}

func TestRemoveMemberRoleRules(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	admin := createUser(t, db, models.SubscriptionNone)
	admin2 := createUser(t, db, models.SubscriptionNone)
	member := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, admin.ID, models.RoleAdmin)
	addMember(t, db, project.ID, admin2.ID, models.RoleAdmin)
	addMember(t, db, project.ID, member.ID, models.RoleMember)

	// Admin cannot remove another admin.
	if err := svc.RemoveMember(project.ID, admin.ID, admin2.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin removing admin must be forbidden, got %v", err)
	}

	// Admin removes a plain member.
	if err := svc.RemoveMember(project.ID, admin.ID, member.ID); err != nil {
		t.Fatalf("admin removing member failed: %v", err)
	}

	// Self-removal (leaving).
	if err := svc.RemoveMember(project.ID, admin2.ID, admin2.ID); err != nil {
		t.Fatalf("leaving the project failed: %v", err)
	}

	// Owner removes the remaining admin.
	if err := svc.RemoveMember(project.ID, owner.ID, admin.ID); err != nil {
		t.Fatalf("owner removing admin failed: %v", err)
	}

	var count int64
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&count)
	if count != 0 {
		t.Fatalf("expected no members left, got %d", count)
	}
}

func TestRemovePendingInviteIsManageOnly(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMembershipService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	member := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, member.ID, models.RoleMember)

	if _, err := svc.AddMembers(project.ID, owner.ID, []MemberCandidate{
		{Email: "pending@example.com"},
	}); err != nil {
		t.Fatalf("AddMembers failed: %v", err)
	}

	if err := svc.RemovePendingInvite(project.ID, member.ID, "pending@example.com"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain member must not withdraw invites, got %v", err)
	}
	if err := svc.RemovePendingInvite(project.ID, owner.ID, "PENDING@example.com"); err != nil {
		t.Fatalf("owner withdrawing invite failed: %v", err)
	}
	if err := svc.RemovePendingInvite(project.ID, owner.ID, "pending@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("withdrawn invite must be gone, got %v", err)
	}
}
