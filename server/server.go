// Package server exposes this instance over HTTP: the peer-to-peer
// matchmaking RPC consumed by other instances, a health probe, and the
// websocket surface that carries player commands and notifications.
package server

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/cardforge/arena/bus"
	"github.com/cardforge/arena/peers"
	"github.com/cardforge/arena/player"
)

// Orchestrator is the slice of the root component the transport needs.
type Orchestrator interface {
	HandleCommand(ctx context.Context, playerID, line string) string
	LockLocalPartner() (*player.Player, bool)
	Connect(ctx context.Context, playerID string) (*bus.Subscription, error)
	Disconnect(ctx context.Context, playerID string)
}

// Server is the fiber app for one instance.
type Server struct {
	app  *fiber.App
	orch Orchestrator
	log  zerolog.Logger
}

func New(orch Orchestrator, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
	s := &Server{
		app:  app,
		orch: orch,
		log:  log.With().Str("component", "server").Logger(),
	}

	app.Get("/health", s.handleHealth)
	app.Post(peers.LockPartnerPath, s.handleLockPartner)
	s.registerWebsocket(app)
	return s
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}

// handleLockPartner is the server side of the remote matchmaking RPC: hand
// one queued player to the calling instance, or 204 when nobody is waiting.
func (s *Server) handleLockPartner(c *fiber.Ctx) error {
	p, ok := s.orch.LockLocalPartner()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(p)
}

// Listen blocks serving the app.
func (s *Server) Listen(addr string) error {
	s.log.Info().Str("addr", addr).Msg("listening")
	if err := s.app.Listen(addr); err != nil {
		return eris.Wrap(err, "server stopped")
	}
	return nil
}

// Shutdown drains and stops the app.
func (s *Server) Shutdown() error {
	return eris.Wrap(s.app.Shutdown(), "server shutdown failed")
}
