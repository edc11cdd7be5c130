package server

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const writeDeadline = 5 * time.Second

// registerWebsocket mounts the player connection endpoint. Each connection
// is one player: inbound text frames are command lines, outbound frames are
// the reply plus whatever the event bus delivers for that player.
func (s *Server) registerWebsocket(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/:playerID", websocket.New(s.handlePlayerSocket))
}

func (s *Server) handlePlayerSocket(conn *websocket.Conn) {
	playerID := conn.Params("playerID")
	if playerID == "" {
		_ = conn.Close()
		return
	}
	ctx := context.Background()
	log := s.log.With().Str("player", playerID).Logger()

	sub, err := s.orch.Connect(ctx, playerID)
	if err != nil {
		log.Error().Err(err).Msg("failed to attach player to event bus")
		_ = conn.Close()
		return
	}
	defer func() {
		sub.Close()
		s.orch.Disconnect(ctx, playerID)
	}()
	log.Info().Msg("player connected")

	// The websocket connection allows a single writer, so command replies
	// and bus notifications funnel through one goroutine.
	replies := make(chan string, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			var line string
			select {
			case <-sub.Done():
				return
			case line = <-sub.C:
			case line = <-replies:
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			log.Info().Msg("player disconnected")
			return
		}
		reply := s.orch.HandleCommand(ctx, playerID, string(msg))
		select {
		case replies <- reply:
		case <-writerDone:
			log.Info().Msg("player write path closed; dropping connection")
			return
		}
	}
}
