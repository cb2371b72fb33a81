package controller

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/config"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type MemberController struct {
	DB      *gorm.DB
	logger  *log.Logger
	service *services.MembershipService
}

func NewMemberController(db *gorm.DB, logger *log.Logger) *MemberController {
	return &MemberController{
		DB:      db,
		logger:  logger,
		service: services.NewMembershipService(db, logger),
	}
}

func (mc *MemberController) GetMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	active, pending, err := mc.service.ListMembers(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"members": active,
		"pending": pending,
	})
}

func (mc *MemberController) AddMembers(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Members []services.MemberCandidate `json:"members" validate:"required,min=1"`
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

	invites, err := mc.service.AddMembers(projectID, user.ID, input.Members)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	// Invitation mail is best effort; the invite rows are already committed.
	var project models.Project
	if err := mc.DB.First(&project, projectID).Error; err == nil {
		joinLink := fmt.Sprintf("%s/join?project=%d", config.AppConfig.FrontendURL, projectID)
		for _, invite := range invites {
			if err := utils.SendInviteEmail(invite.Email, user.Name, project.Name, joinLink); err != nil {
				utils.LogError("failed to send invite email", err, map[string]interface{}{
					"project_id": projectID,
					"email":      invite.Email,
				})
			}
		}
	}

	active, pending, err := mc.service.ListMembers(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"members": active,
		"pending": pending,
	})
}

func (mc *MemberController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))
	memberID := utils.ParseUint(c.Params("userId"))

	if err := mc.service.RemoveMember(projectID, user.ID, memberID); err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Member removed successfully",
	})
}

func (mc *MemberController) RemovePendingInvite(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Email string `json:"email" validate:"required,email"`
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

	if err := mc.service.RemovePendingInvite(projectID, user.ID, input.Email); err != nil {
		return respondServiceError(c, mc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Invite withdrawn successfully",
	})
}
