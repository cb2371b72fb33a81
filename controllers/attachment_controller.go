package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

// AttachmentController manages attachment metadata. The file bytes live in
// external storage; this API only tracks what was uploaded and by whom.
type AttachmentController struct {
	DB     *gorm.DB
	logger *log.Logger
	access *services.AccessService
}

func NewAttachmentController(db *gorm.DB, logger *log.Logger) *AttachmentController {
	return &AttachmentController{
		DB:     db,
		logger: logger,
		access: services.NewAccessService(db),
	}
}

func (ac *AttachmentController) GetAttachments(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var task models.Task
	if err := ac.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, ac.logger, services.ErrNotFound)
		}
		return respondServiceError(c, ac.logger, err)
	}
	access, err := ac.access.Evaluate(task.ProjectID, user.ID)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}
	if access.Role == models.RoleNone {
		return respondServiceError(c, ac.logger, services.ErrForbidden)
	}

	attachments := []models.Attachment{}
	if err := ac.DB.Where("task_id = ?", taskID).Order("created_at ASC").Find(&attachments).Error; err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"attachments": attachments,
		"count":       len(attachments),
	})
}

func (ac *AttachmentController) CreateAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	taskID := utils.ParseUint(c.Params("taskId"))

	var input struct {
		FileName    string `json:"file_name" validate:"required,min=1,max=255"`
		ContentType string `json:"content_type" validate:"omitempty,max=100"`
		Size        int64  `json:"size" validate:"omitempty,min=0"`
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

	var task models.Task
	if err := ac.DB.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, ac.logger, services.ErrNotFound)
		}
		return respondServiceError(c, ac.logger, err)
	}
	if _, err := ac.access.RequireWritable(task.ProjectID, user.ID, false); err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	storageKey, err := utils.GenerateSecureToken()
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	attachment := models.Attachment{
		TaskID:      taskID,
		UploaderID:  user.ID,
		FileName:    input.FileName,
		ContentType: input.ContentType,
		Size:        input.Size,
		StorageKey:  storageKey,
	}
	if err := ac.DB.Create(&attachment).Error; err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"attachment":  attachment,
		"storage_key": storageKey,
	})
}

// DeleteAttachment allows the uploader or a project manager to remove the
// metadata row.
func (ac *AttachmentController) DeleteAttachment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	attachmentID := utils.ParseUint(c.Params("attachmentId"))

	var attachment models.Attachment
	if err := ac.DB.First(&attachment, attachmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondServiceError(c, ac.logger, services.ErrNotFound)
		}
		return respondServiceError(c, ac.logger, err)
	}

	var task models.Task
	if err := ac.DB.First(&task, attachment.TaskID).Error; err != nil {
		return respondServiceError(c, ac.logger, err)
	}
	access, err := ac.access.RequireWritable(task.ProjectID, user.ID, false)
	if err != nil {
		return respondServiceError(c, ac.logger, err)
	}
	if attachment.UploaderID != user.ID && !access.CanManage {
		return respondServiceError(c, ac.logger, services.ErrForbidden)
	}

	if err := ac.DB.Unscoped().Delete(&attachment).Error; err != nil {
		return respondServiceError(c, ac.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Attachment deleted successfully",
	})
}
