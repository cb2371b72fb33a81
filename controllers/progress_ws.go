package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"tasknest/config"
	"tasknest/models"
	"tasknest/services"
	"tasknest/utils"
)

// HandleProjectProgressWS streams a project's progress snapshot to the
// client. The socket is read-only for the client beyond the initial watch
// request; all mutations go through the REST API.
func HandleProjectProgressWS(c *websocket.Conn) {
	defer c.Close()

	var input struct {
		Token     string `json:"token"`
		ProjectID uint   `json:"project_id"`
		Action    string `json:"action"`
	}

	if err := c.ReadJSON(&input); err != nil {
		log.Printf("Error reading JSON: %v", err)
		return
	}
	if input.Action != "watch" || input.ProjectID == 0 {
		c.WriteJSON(map[string]string{"error": "expected a watch request"})
		return
	}

	claims, err := utils.ParseJWTToken(input.Token)
	if err != nil {
		c.WriteJSON(map[string]string{"error": "invalid token"})
		return
	}

	access := services.NewAccessService(config.DB)
	a, err := access.Evaluate(input.ProjectID, claims.UserID)
	if err != nil || a.Role == models.RoleNone {
		c.WriteJSON(map[string]string{"error": "not a project member"})
		return
	}

	for {
		var project models.Project
		if err := config.DB.First(&project, input.ProjectID).Error; err != nil {
			c.WriteJSON(map[string]string{"error": "project not found"})
			return
		}
		if err := access.Annotate(&project); err != nil {
			log.Printf("Error annotating project: %v", err)
			return
		}

		snapshot := struct {
			Progress    float64 `json:"progress"`
			MemberCount int     `json:"member_count"`
			ReadOnly    bool    `json:"read_only"`
			Status      string  `json:"status"`
		}{
			Progress:    project.Progress,
			MemberCount: project.MemberCount,
			ReadOnly:    project.ReadOnly,
			Status:      project.Status,
		}

		if err := c.WriteJSON(snapshot); err != nil {
			break
		}
		time.Sleep(5 * time.Second)
	}
}
