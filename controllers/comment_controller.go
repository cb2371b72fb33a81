package controller

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type CommentController struct {
	DB     *gorm.DB
	logger *log.Logger
	access *services.AccessService
}

func NewCommentController(db *gorm.DB, logger *log.Logger) *CommentController {
	return &CommentController{
		DB:     db,
		logger: logger,
		access: services.NewAccessService(db),
	}
}

func (cc *CommentController) taskProject(taskID uint) (*models.Task, error) {
	var task models.Task
	if err := cc.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (cc *CommentController) GetComments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	task, err := cc.taskProject(taskID)
	if err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	access, err := cc.access.Evaluate(task.ProjectID, user.ID)
	if err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	if access.Role == models.RoleNone {
		return respondServiceError(c, cc.logger, services.ErrForbidden)
	}

	comments := []models.Comment{}
	if err := cc.DB.Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return respondServiceError(c, cc.logger, err)
	}

	return c.JSON(fiber.Map{
		"comments": comments,
		"count":    len(comments),
	})
}

func (cc *CommentController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var input struct {
		Body string `json:"body" validate:"required,min=1,max=5000"`
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

	task, err := cc.taskProject(taskID)
	if err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	if _, err := cc.access.RequireWritable(task.ProjectID, user.ID, false); err != nil {
		return respondServiceError(c, cc.logger, err)
	}

	comment := models.Comment{
		TaskID:   taskID,
		AuthorID: user.ID,
		Body:     strings.TrimSpace(input.Body),
	}
	if err := cc.DB.Create(&comment).Error; err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	comment.Author = *user

	return c.Status(fiber.StatusCreated).JSON(comment)
}

// DeleteComment allows the author to remove their own comment; project
// managers can remove anyone's.
func (cc *CommentController) DeleteComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	commentID := utils.ParseUint(c.Params("commentId"))

	var comment models.Comment
	if err := cc.DB.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, cc.logger, services.ErrNotFound)
		}
		return respondServiceError(c, cc.logger, err)
	}

	task, err := cc.taskProject(comment.TaskID)
	if err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	access, err := cc.access.RequireWritable(task.ProjectID, user.ID, false)
	if err != nil {
		return respondServiceError(c, cc.logger, err)
	}
	if comment.AuthorID != user.ID && !access.CanManage {
		return respondServiceError(c, cc.logger, services.ErrForbidden)
	}

	if err := cc.DB.Unscoped().Delete(&comment).Error; err != nil {
		return respondServiceError(c, cc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Comment deleted successfully",
	})
}
