package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type AssignmentController struct {
	DB      *gorm.DB
	logger  *log.Logger
	service *services.AssignmentService
}

func NewAssignmentController(db *gorm.DB, logger *log.Logger) *AssignmentController {
	return &AssignmentController{
		DB:      db,
		logger:  logger,
		service: services.NewAssignmentService(db, logger),
	}
}

func (ac *AssignmentController) GetAssignees(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	assignees, err := ac.service.ListAssignees(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"assignees": assignees,
	})
}

func (ac *AssignmentController) AssignSelf(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	if err := ac.service.AssignSelf(taskID, user.ID); err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	assignees, err := ac.service.ListAssignees(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"assignees": assignees,
	})
}

func (ac *AssignmentController) UnassignSelf(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	if err := ac.service.UnassignSelf(taskID, user.ID); err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	assignees, err := ac.service.ListAssignees(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"assignees": assignees,
	})
}

func (ac *AssignmentController) AssignUsers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var input struct {
		UserIDs []uint `json:"user_ids" validate:"required,min=1"`
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

	assignees, err := ac.service.AssignOthers(taskID, user.ID, input.UserIDs)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"assignees": assignees,
	})
}

func (ac *AssignmentController) UnassignUser(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))
	userID := utils.ParseUint(c.Params("userId"))

	if err := ac.service.UnassignOther(taskID, user.ID, userID); err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	assignees, err := ac.service.ListAssignees(taskID, user.ID)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"assignees": assignees,
	})
}
