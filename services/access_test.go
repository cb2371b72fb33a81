package services

import (
	"testing"

	"tasknest/models"
)

func TestEvaluateRoles(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)

	owner := createUser(t, db, models.SubscriptionNone)
	admin := createUser(t, db, models.SubscriptionNone)
	member := createUser(t, db, models.SubscriptionNone)
	stranger := createUser(t, db, models.SubscriptionNone)

	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, admin.ID, models.RoleAdmin)
	addMember(t, db, project.ID, member.ID, models.RoleMember)

	cases := []struct {
		name      string
		userID    uint
		role      models.ProjectRole
		canManage bool
	}{
		{"owner", owner.ID, models.RoleOwner, true},
		{"admin", admin.ID, models.RoleAdmin, true},
		{"member", member.ID, models.RoleMember, false},
		{"stranger", stranger.ID, models.RoleNone, false},
	}

	for _, tc := range cases {
		access, err := svc.Evaluate(project.ID, tc.userID)
		if err != nil {
			t.Fatalf("%s: Evaluate failed: %v", tc.name, err)
		}
		if access.Role != tc.role {
			t.Fatalf("%s: got role %q, want %q", tc.name, access.Role, tc.role)
		}
		if access.CanManage != tc.canManage {
			t.Fatalf("%s: got canManage %t, want %t", tc.name, access.CanManage, tc.canManage)
		}
		if access.ReadOnly {
			t.Fatalf("%s: project should not be read-only", tc.name)
		}
	}
}

func TestReadOnlyRequiresLapseAndSize(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)

	owner := createUser(t, db, models.SubscriptionCanceled)
	project := createProject(t, db, owner.ID)

	// Owner plus four member rows: exactly at the free limit.
	for i := 0; i < 4; i++ {
		u := createUser(t, db, models.SubscriptionNone)
		addMember(t, db, project.ID, u.ID, models.RoleMember)
	}

	access, err := svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if access.ReadOnly {
		t.Fatalf("project at the member limit should not be read-only")
	}

	// One more member pushes the count to six.
	extra := createUser(t, db, models.SubscriptionNone)
	addMember(t, db, project.ID, extra.ID, models.RoleMember)

	access, err = svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !access.ReadOnly {
		t.Fatalf("lapsed owner with %d people should be read-only", models.FreeMemberLimit+1)
	}
	if access.Role != models.RoleOwner {
		t.Fatalf("read-only lock must not change the owner's role, got %q", access.Role)
	}
}

func TestReadOnlyIgnoresNeverSubscribed(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	for i := 0; i < 6; i++ {
		u := createUser(t, db, models.SubscriptionNone)
		addMember(t, db, project.ID, u.ID, models.RoleMember)
	}

	access, err := svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if access.ReadOnly {
		t.Fatalf("a free account that never subscribed must not trigger the lock")
	}
}

func TestReadOnlyIsRecomputedEachCall(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)

	owner := createUser(t, db, models.SubscriptionActive)
	project := createProject(t, db, owner.ID)
	for i := 0; i < 6; i++ {
		u := createUser(t, db, models.SubscriptionNone)
		addMember(t, db, project.ID, u.ID, models.RoleMember)
	}

	access, err := svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if access.ReadOnly {
		t.Fatalf("active subscription must keep the project writable")
	}

	// Subscription lapses out of band; the next evaluation must see it.
	if err := db.Model(&models.User{}).Where("id = ?", owner.ID).
		Update("subscription_status", models.SubscriptionExpired).Error; err != nil {
		t.Fatalf("updating subscription: %v", err)
	}

	access, err = svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !access.ReadOnly {
		t.Fatalf("evaluation must pick up the lapsed subscription without caching")
	}

	// And it unlocks again when the subscription reactivates.
	if err := db.Model(&models.User{}).Where("id = ?", owner.ID).
		Update("subscription_status", models.SubscriptionActive).Error; err != nil {
		t.Fatalf("updating subscription: %v", err)
	}
	access, err = svc.Evaluate(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if access.ReadOnly {
		t.Fatalf("reactivated subscription must unlock the project")
	}
}

func TestRequireWritableGates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAccessService(db)

	owner := createUser(t, db, models.SubscriptionCanceled)
	member := createUser(t, db, models.SubscriptionNone)
	stranger := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, member.ID, models.RoleMember)

	if _, err := svc.RequireWritable(project.ID, stranger.ID, false); err == nil {
		t.Fatalf("stranger must be rejected")
	}
	if _, err := svc.RequireWritable(project.ID, member.ID, true); err == nil {
		t.Fatalf("plain member must not pass the manage gate")
	}
	if _, err := svc.RequireWritable(project.ID, member.ID, false); err != nil {
		t.Fatalf("member should write to a small project: %v", err)
	}

	// Push the project over the limit; even the owner is now locked out.
	for i := 0; i < 5; i++ {
		u := createUser(t, db, models.SubscriptionNone)
		addMember(t, db, project.ID, u.ID, models.RoleMember)
	}
	if _, err := svc.RequireWritable(project.ID, owner.ID, true); err == nil {
		t.Fatalf("read-only project must reject the owner too")
	}
}
