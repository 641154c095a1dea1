package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codepadhq/codepad-server/internal/core"
	"github.com/codepadhq/codepad-server/internal/store"
)

// AdminHandlers expose a non-authoritative snapshot of relay state for
// operational visibility. Read-only; nothing here touches the relay path.
type AdminHandlers struct {
	router  *core.Router
	rooms   *core.RoomDirectory
	history store.Store
	log     *zerolog.Logger
}

// NewAdminHandlers creates the admin API handlers.
func NewAdminHandlers(router *core.Router, rooms *core.RoomDirectory, history store.Store, logger *zerolog.Logger) *AdminHandlers {
	return &AdminHandlers{router: router, rooms: rooms, history: history, log: logger}
}

// RoomSummary is one room in the listing.
type RoomSummary struct {
	Room    string `json:"room"`
	Members int    `json:"members"`
}

// MemberResponse is one participant in a member listing.
type MemberResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ExecutionResponse is one persisted execution result.
type ExecutionResponse struct {
	ID        int64  `json:"id"`
	Author    string `json:"author"`
	Language  string `json:"language"`
	Output    string `json:"output"`
	CreatedAt string `json:"created_at"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListRooms handles GET /api/rooms.
func (h *AdminHandlers) ListRooms(c *gin.Context) {
	snapshot := h.rooms.Snapshot()
	out := make([]RoomSummary, 0, len(snapshot))
	for room, members := range snapshot {
		out = append(out, RoomSummary{Room: room, Members: members})
	}
	c.JSON(http.StatusOK, out)
}

// RoomMembers handles GET /api/rooms/:room/members.
func (h *AdminHandlers) RoomMembers(c *gin.Context) {
	room := c.Param("room")
	members := h.router.MembersOf(room)
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MemberResponse{ID: m.ID, Username: m.Username})
	}
	c.JSON(http.StatusOK, out)
}

// RoomExecutions handles GET /api/rooms/:room/executions.
func (h *AdminHandlers) RoomExecutions(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "execution history is not enabled"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	room := c.Param("room")
	executions, err := h.history.ListExecutions(c.Request.Context(), room, limit)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("failed to list executions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	out := make([]ExecutionResponse, 0, len(executions))
	for _, ex := range executions {
		out = append(out, ExecutionResponse{
			ID:        ex.ID,
			Author:    ex.Author,
			Language:  ex.Language,
			Output:    ex.Output,
			CreatedAt: ex.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, out)
}
