package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type TaskController struct {
	DB      *gorm.DB
	logger  *log.Logger
	service *services.TaskService
}

func NewTaskController(db *gorm.DB, logger *log.Logger) *TaskController {
	return &TaskController{
		DB:      db,
		logger:  logger,
		service: services.NewTaskService(db, logger),
	}
}

// parseDueDate accepts RFC3339 timestamps or bare dates.
func parseDueDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (tc *TaskController) CreateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Title        string `json:"title" validate:"required,min=2,max=200"`
		Description  string `json:"description" validate:"omitempty,max=5000"`
		Status       string `json:"status"`
		Priority     string `json:"priority"`
		DueDate      string `json:"due_date"`
		ParentTaskID *uint  `json:"parent_task_id"`
		MilestoneID  *uint  `json:"milestone_id"`
		AssigneeIDs  []uint `json:"assignee_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid due date format",
		})
	}

	task, err := tc.service.CreateTask(projectID, user.ID, services.CreateTaskInput{
		Title:        input.Title,
		Description:  input.Description,
		Status:       models.TaskStatus(input.Status),
		Priority:     models.TaskPriority(input.Priority),
		DueDate:      dueDate,
		ParentTaskID: input.ParentTaskID,
		MilestoneID:  input.MilestoneID,
		AssigneeIDs:  input.AssigneeIDs,
	})
	if err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(task)
}

func (tc *TaskController) GetTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	tasks, err := tc.service.ListTasks(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.JSON(fiber.Map{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (tc *TaskController) GetTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	task, err := tc.service.GetTask(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.JSON(task)
}

func (tc *TaskController) UpdateTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		Priority    *string `json:"priority"`
		DueDate     *string `json:"due_date"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	update := services.TaskUpdate{
		Title:       input.Title,
		Description: input.Description,
	}
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		update.Status = &status
	}
	if input.Priority != nil {
		priority := models.TaskPriority(*input.Priority)
		update.Priority = &priority
	}
	if input.DueDate != nil {
		if *input.DueDate == "" {
			update.ClearDue = true
		} else {
			dueDate, err := parseDueDate(*input.DueDate)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid due date format",
				})
			}
			update.DueDate = dueDate
		}
	}

	task, err := tc.service.UpdateTask(taskID, user.ID, update)
	if err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.JSON(task)
}

// ToggleTask flips the completion checkbox. Completing remembers the prior
// status; un-completing restores it.
func (tc *TaskController) ToggleTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	task, err := tc.service.ToggleStatus(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.JSON(task)
}

func (tc *TaskController) DeleteTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	if err := tc.service.DeleteTask(taskID, user.ID); err != nil {
		return respondServiceError(c, tc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Task deleted successfully",
	})
}
