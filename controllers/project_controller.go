package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

type ProjectController struct {
	DB      *gorm.DB
	logger  *log.Logger
	service *services.ProjectService
}

func NewProjectController(db *gorm.DB, logger *log.Logger) *ProjectController {
	return &ProjectController{
		DB:      db,
		logger:  logger,
		service: services.NewProjectService(db, logger),
	}
}

func (pc *ProjectController) CreateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name        string `json:"name" validate:"required,min=2,max=100"`
		Description string `json:"description" validate:"omitempty,max=1000"`
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

	project, err := pc.service.CreateProject(user.ID, input.Name, input.Description)
	if err != nil {
		return respondServiceError(c, pc.logger, err)
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

func (pc *ProjectController) GetProjects(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	projects, err := pc.service.ListProjects(user.ID)
	if err != nil {
		return respondServiceError(c, pc.logger, err)
	}

	return c.JSON(fiber.Map{
		"projects": projects,
		"count":    len(projects),
	})
}

func (pc *ProjectController) GetProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	project, err := pc.service.GetProject(projectID, user.ID)
	if err != nil {
		return respondServiceError(c, pc.logger, err)
	}

	return c.JSON(project)
}

func (pc *ProjectController) UpdateProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	var input struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	project, err := pc.service.UpdateProject(projectID, user.ID, input.Name, input.Description, input.Status)
	if err != nil {
		return respondServiceError(c, pc.logger, err)
	}

	return c.JSON(project)
}

func (pc *ProjectController) DeleteProject(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	projectID := utils.ParseUint(c.Params("id"))

	if err := pc.service.DeleteProject(projectID, user.ID); err != nil {
		return respondServiceError(c, pc.logger, err)
	}

	return c.JSON(fiber.Map{
		"message": "Project deleted successfully",
	})
}
