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

type LabelController struct {
	DB     *gorm.DB
	logger *log.Logger
	access *services.AccessService
}

func NewLabelController(db *gorm.DB, logger *log.Logger) *LabelController {
	return &LabelController{
		DB:     db,
		logger: logger,
		access: services.NewAccessService(db),
	}
}

func (lc *LabelController) GetLabels(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	access, err := lc.access.Evaluate(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, lc.logger, err)
	}
	if access.Role == models.RoleNone {
		return respondServiceError(c, lc.logger, services.ErrForbidden)
	}

	labels := []models.Label{}
	if err := lc.DB.Where("project_id = ?", projectID).Order("name ASC").Find(&labels).Error; err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	return c.JSON(fiber.Map{
		"labels": labels,
	})
}

func (lc *LabelController) CreateLabel(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name  string `json:"name" validate:"required,min=1,max=50"`
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

	if _, err := lc.access.RequireWritable(projectID, user.ID, false); err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	label := models.Label{
		ProjectID: projectID,
		Name:      strings.TrimSpace(input.Name),
	}
	if input.Color != "" {
		label.Color = input.Color
	}
	if err := lc.DB.Create(&label).Error; err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(label)
}

func (lc *LabelController) DeleteLabel(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	labelID := utils.ParseUint(c.Params("labelId"))

	var label models.Label
	if err := lc.DB.First(&label, labelID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, lc.logger, services.ErrNotFound)
		}
		return respondServiceError(c, lc.logger, err)
	}

	if _, err := lc.access.RequireWritable(label.ProjectID, user.ID, true); err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	if err := lc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM task_labels WHERE label_id = ?", labelID).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&label).Error
	}); err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Label deleted successfully",
	})
}

// SetTaskLabels replaces a task's label set with the given project labels.
func (lc *LabelController) SetTaskLabels(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var input struct {
		LabelIDs []uint `json:"label_ids"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var task models.Task
	if err := lc.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, lc.logger, services.ErrNotFound)
		}
		return respondServiceError(c, lc.logger, err)
	}

	if _, err := lc.access.RequireWritable(task.ProjectID, user.ID, false); err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	labels := []models.Label{}
	if len(input.LabelIDs) > 0 {
		if err := lc.DB.Where("project_id = ? AND id IN ?", task.ProjectID, input.LabelIDs).
			Find(&labels).Error; err != nil {
			return respondServiceError(c, lc.logger, err)
		}
		if len(labels) != len(services.DedupIDs(input.LabelIDs)) {
			return respondServiceError(c, lc.logger, services.ErrValidation)
		}
	}

	if err := lc.DB.Model(&task).Association("Labels").Replace(labels); err != nil {
		return respondServiceError(c, lc.logger, err)
	}

	return c.JSON(fiber.Map{
		"labels": labels,
	})
}
