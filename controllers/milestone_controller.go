package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type MilestoneController struct {
	DB      *gorm.DB
	logger  *log.Logger
	service *services.MilestoneService
}

func NewMilestoneController(db *gorm.DB, logger *log.Logger) *MilestoneController {
	return &MilestoneController{
		DB:      db,
		logger:  logger,
		service: services.NewMilestoneService(db, logger),
	}
}

func (mc *MilestoneController) CreateMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name  string `json:"name" validate:"required,min=1,max=100"`
		Color string `json:"color" validate:"omitempty,max=20"`
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

	milestone, err := mc.service.CreateMilestone(projectID, user.ID, input.Name, input.Color)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(milestone)
}

func (mc *MilestoneController) GetMilestones(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	milestones, err := mc.service.ListMilestones(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"milestones": milestones,
		"count":      len(milestones),
	})
}

func (mc *MilestoneController) AddTasks(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("milestoneId"))

	var input struct {
		TaskIDs []uint `json:"task_ids" validate:"required,min=1"`
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

	milestone, err := mc.service.AddTasks(milestoneID, user.ID, input.TaskIDs)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(milestone)
}

func (mc *MilestoneController) RemoveTask(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("milestoneId"))
	taskID := utils.ParseUint(c.Params("taskId"))

	milestone, err := mc.service.RemoveTask(milestoneID, user.ID, taskID)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(milestone)
}

func (mc *MilestoneController) DeleteMilestone(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	milestoneID := utils.ParseUint(c.Params("milestoneId"))

	if err := mc.service.DeleteMilestone(milestoneID, user.ID); err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Milestone deleted successfully",
	})
}
