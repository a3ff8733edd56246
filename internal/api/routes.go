package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wicaksana/roleplay/adapters/llm"
	"github.com/wicaksana/roleplay/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, characters *llm.PersonaDirectory, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "ok",
			Service: "roleplay-server",
			Clients: hub.ClientCount(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.GET("/characters", func(c echo.Context) error {
		return listCharacters(c, characters)
	})

	// WebSocket endpoint; character selection rides the character_id query
	// parameter.
	e.GET("/ws", func(c echo.Context) error {
		return websocket.Serve(hub, c, logger)
	})
}

// listCharacters returns the characters the client can open a conversation
// with
func listCharacters(c echo.Context, characters *llm.PersonaDirectory) error {
	personas := characters.Personas()
	out := make([]CharacterResponse, 0, len(personas))
	for _, p := range personas {
		out = append(out, CharacterResponse{
			ID:           p.ID,
			Name:         p.Name,
			Description:  p.Description,
			VoiceProfile: p.VoiceProfile,
		})
	}
	return c.JSON(http.StatusOK, out)
}
