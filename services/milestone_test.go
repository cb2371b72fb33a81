package services

import (
	"errors"
	"testing"

	"tasknest/models"

	"gorm.io/gorm"
)

func createMilestone(t *testing.T, db *gorm.DB, projectID uint, name string) *models.Milestone {
	t.Helper()
	milestone := models.Milestone{ProjectID: projectID, Name: name}
	if err := db.Create(&milestone).Error; err != nil {
		t.Fatalf("creating milestone: %v", err)
	}
	return &milestone
}

func TestAddTasksRejectsSubtasks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	milestone := createMilestone(t, db, project.ID, "v1")
	parent := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	sub := createTask(t, db, project.ID, &parent.ID, models.StatusNotStarted)

	if _, err := svc.AddTasks(milestone.ID, owner.ID, []uint{sub.ID}); !errors.Is(err, ErrConflict) {
		t.Fatalf("adding a subtask directly must conflict, got %v", err)
	}
}

func TestAttachMovesSubtasksWithParent(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	milestone := createMilestone(t, db, project.ID, "v1")
	parent := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	sub := createTask(t, db, project.ID, &parent.ID, models.StatusNotStarted)

	refreshed, err := svc.AddTasks(milestone.ID, owner.ID, []uint{parent.ID})
	if err != nil {
		t.Fatalf("AddTasks failed: %v", err)
	}
	if refreshed.AllTasksCount != 1 {
		t.Fatalf("only the top-level task counts, got %d", refreshed.AllTasksCount)
	}

	var child models.Task
	if err := db.First(&child, sub.ID).Error; err != nil {
		t.Fatalf("reloading subtask: %v", err)
	}
	if child.MilestoneID == nil || *child.MilestoneID != milestone.ID {
		t.Fatalf("subtask must follow its parent into the milestone, got %v", child.MilestoneID)
	}
}

func TestRemoveTaskRules(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	milestone := createMilestone(t, db, project.ID, "v1")
	parent := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	sub := createTask(t, db, project.ID, &parent.ID, models.StatusNotStarted)
	outsider := createTask(t, db, project.ID, nil, models.StatusNotStarted)

	if _, err := svc.AddTasks(milestone.ID, owner.ID, []uint{parent.ID}); err != nil {
		t.Fatalf("AddTasks failed: %v", err)
	}

	if _, err := svc.RemoveTask(milestone.ID, owner.ID, sub.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("removing a subtask directly must conflict, got %v", err)
	}
	if _, err := svc.RemoveTask(milestone.ID, owner.ID, outsider.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("removing a task outside the milestone must be not-found, got %v", err)
	}

	refreshed, err := svc.RemoveTask(milestone.ID, owner.ID, parent.ID)
	if err != nil {
		t.Fatalf("RemoveTask failed: %v", err)
	}
	if refreshed.AllTasksCount != 0 {
		t.Fatalf("count must drop to zero, got %d", refreshed.AllTasksCount)
	}

	// The subtask's association goes away with the parent's.
	var child models.Task
	if err := db.First(&child, sub.ID).Error; err != nil {
		t.Fatalf("reloading subtask: %v", err)
	}
	if child.MilestoneID != nil {
		t.Fatalf("detaching the parent must clear the subtask too, got %v", *child.MilestoneID)
	}
}

func TestCountsDeriveFromTopLevelTasks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())
	tasks := NewTaskService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	milestone := createMilestone(t, db, project.ID, "v1")
	t1 := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	t2 := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	sub := createTask(t, db, project.ID, &t1.ID, models.StatusNotStarted)

	if _, err := svc.AddTasks(milestone.ID, owner.ID, []uint{t1.ID, t2.ID}); err != nil {
		t.Fatalf("AddTasks failed: %v", err)
	}

	// Completing the subtask moves the parent's ratio, not the milestone.
	if _, err := tasks.ToggleStatus(sub.ID, owner.ID); err != nil {
		t.Fatalf("toggling subtask failed: %v", err)
	}
	listed, err := svc.ListMilestones(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("ListMilestones failed: %v", err)
	}
	if listed[0].CompletedTasksCount != 0 || listed[0].AllTasksCount != 2 {
		t.Fatalf("subtask completion must not count, got %d/%d",
			listed[0].CompletedTasksCount, listed[0].AllTasksCount)
	}

	// Completing both top-level tasks brings the counts to equality.
	if _, err := tasks.ToggleStatus(t1.ID, owner.ID); err != nil {
		t.Fatalf("toggling task failed: %v", err)
	}
	if _, err := tasks.ToggleStatus(t2.ID, owner.ID); err != nil {
		t.Fatalf("toggling task failed: %v", err)
	}
	listed, err = svc.ListMilestones(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("ListMilestones failed: %v", err)
	}
	if listed[0].CompletedTasksCount != 2 || listed[0].AllTasksCount != 2 {
		t.Fatalf("got %d/%d, want 2/2", listed[0].CompletedTasksCount, listed[0].AllTasksCount)
	}
}

func TestListMilestonesRederivesCounts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	milestone := createMilestone(t, db, project.ID, "v1")
	task := createTask(t, db, project.ID, nil, models.StatusNotStarted)

	if _, err := svc.AddTasks(milestone.ID, owner.ID, []uint{task.ID}); err != nil {
		t.Fatalf("AddTasks failed: %v", err)
	}

	// A raw status change bypasses every recompute hook. Listing must still
	// report reality because the counts are derived, not trusted.
	if err := db.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("status", models.StatusCompleted).Error; err != nil {
		t.Fatalf("updating status: %v", err)
	}

	listed, err := svc.ListMilestones(project.ID, owner.ID)
	if err != nil {
		t.Fatalf("ListMilestones failed: %v", err)
	}
	if listed[0].CompletedTasksCount != 1 || listed[0].AllTasksCount != 1 {
		t.Fatalf("stale stored counts must not leak, got %d/%d",
			listed[0].CompletedTasksCount, listed[0].AllTasksCount)
	}
}

func TestDeleteMilestoneDetachesTasks(t *testing.T) {
	db := setupTestDB(t)
	svc := NewMilestoneService(db, testLogger())

	owner := createUser(t, db, models.SubscriptionNone)
	member := createUser(t, db, models.SubscriptionNone)
	project := createProject(t, db, owner.ID)
	addMember(t, db, project.ID, member.ID, models.RoleMember)
	milestone := createMilestone(t, db, project.ID, "v1")
	parent := createTask(t, db, project.ID, nil, models.StatusNotStarted)
	sub := createTask(t, db, project.ID, &parent.ID, models.StatusNotStarted)

	if _, err := svc.AddTasks(milestone.ID, owner.ID, []uint{parent.ID}); err != nil {
		t.Fatalf("AddTasks failed: %v", err)
	}

	if err := svc.DeleteMilestone(milestone.ID, member.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("plain member must not delete milestones, got %v", err)
	}
	if err := svc.DeleteMilestone(milestone.ID, owner.ID); err != nil {
		t.Fatalf("DeleteMilestone failed: %v", err)
	}

	var count int64
	db.Model(&models.Milestone{}).Where("id = ?", milestone.ID).Count(&count)
	if count != 0 {
		t.Fatalf("milestone row must be gone")
	}
	for _, id := range []uint{parent.ID, sub.ID} {
		var task models.Task
		if err := db.First(&task, id).Error; err != nil {
			t.Fatalf("reloading task %d: %v", id, err)
		}
		if task.MilestoneID != nil {
			t.Fatalf("task %d must be detached after milestone deletion", id)
		}
	}
}
