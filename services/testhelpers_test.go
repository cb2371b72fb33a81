package services

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"tasknest/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens an in-memory database shared by a single connection so
// every query within a test sees the same data.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.ProjectInvite{},
		&models.Milestone{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.Label{},
		&models.Comment{},
		&models.Attachment{},
	); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, subscriptionStatus string) *models.User {
	t.Helper()
	userSeq++
	user := models.User{
		Email:              fmt.Sprintf("user%d@example.com", userSeq),
		PasswordHash:       "x",
		Name:               fmt.Sprintf("User %d", userSeq),
		IsActive:           true,
		PlanName:           "free",
		SubscriptionStatus: subscriptionStatus,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("creating user: %v", err)
	}
	return &user
}

func createProject(t *testing.T, db *gorm.DB, ownerID uint) *models.Project {
	t.Helper()
	project := models.Project{
		Name:    "Test Project",
		OwnerID: ownerID,
		Status:  "active",
	}
	if err := db.Create(&project).Error; err != nil {
		t.Fatalf("creating project: %v", err)
	}
	return &project
}

func addMember(t *testing.T, db *gorm.DB, projectID, userID uint, role models.ProjectRole) {
	t.Helper()
	member := models.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("adding member: %v", err)
	}
}

func createTask(t *testing.T, db *gorm.DB, projectID uint, parentID *uint, status models.TaskStatus) *models.Task {
	t.Helper()
	task := models.Task{
		ProjectID:    projectID,
		Title:        "Test Task",
		Status:       status,
		Priority:     models.PriorityMedium,
		ParentTaskID: parentID,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("creating task: %v", err)
	}
	return &task
}
