package client

import (
	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/models"
)

func patchRequest(p models.TaskPatch) api.UpdateTaskRequest {
	req := api.UpdateTaskRequest{
		Title:            p.Title,
		Description:      p.Description,
		Status:           p.Status,
		Priority:         p.Priority,
		Tags:             p.Tags,
		Position:         p.Position,
		EstimatedMinutes: p.EstimatedMinutes,
	}
	if p.DueDate != nil {
		due := p.DueDate.Format("2006-01-02")
		req.DueDate = &due
	}
	return req
}
