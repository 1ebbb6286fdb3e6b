package handlers

import (
	"net/http"

	"github.com/benvon/kanban-assistant/internal/api"
	"github.com/benvon/kanban-assistant/internal/board"
	"github.com/benvon/kanban-assistant/internal/database"
	"github.com/benvon/kanban-assistant/internal/models"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// BoardHandler serves the column view of the caller's tasks
type BoardHandler struct {
	tasks  database.TaskStore
	logger *zap.Logger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(tasks database.TaskStore, logger *zap.Logger) *BoardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BoardHandler{tasks: tasks, logger: logger}
}

// RegisterRoutes registers board routes
func (h *BoardHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/board", h.GetBoard).Methods("GET")
}

// GetBoard returns the three columns and their counts
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	tasks, err := h.tasks.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("get_board_failed",
			zap.String("user_id", user.ID.String()),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load board")
		return
	}

	respondJSON(w, http.StatusOK, newBoardResponse(tasks))
}

func newBoardResponse(tasks []models.Task) api.BoardResponse {
	cols := board.Partition(tasks)
	// empty columns render as [] rather than null
	for _, col := range []*[]models.Task{&cols.Todo, &cols.InProgress, &cols.Done} {
		if *col == nil {
			*col = []models.Task{}
		}
	}
	return api.BoardResponse{Columns: cols, Summary: board.Summarize(tasks)}
}
