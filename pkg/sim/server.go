package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-g1/pkg/channel"
	"github.com/teslashibe/go-g1/pkg/hub"
)

// Server exposes a Robot over HTTP and websocket.
//
// Routes:
//
//	POST /rt/api/:service/request  one RPC per request
//	GET  /ws                       RPC stream of channel.Envelope frames
//	GET  /ws/state                 State pushed on every change
//	GET  /api/state                current State
//	GET  /health
type Server struct {
	app    *fiber.App
	robot  *Robot
	states *hub.Hub
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewServer builds the HTTP app for robot.
func NewServer(robot *Robot, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		robot:  robot,
		logger: logger.With("component", "sim-server"),
		states: hub.New("state", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "G1 Loco Simulator",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	app.Get("/health", s.handleHealth)
	app.Post("/rt/api/:service/request", s.handleRequest)

	api := app.Group("/api")
	api.Get("/state", s.handleState)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleRPCWS))
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	robot.Subscribe(func(st State) {
		if err := s.states.BroadcastJSON("state", st); err != nil {
			s.logger.Warn("broadcast state", "error", err)
		}
	})

	s.app = app
	return s
}

// App returns the fiber app, for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("sim: listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	go s.states.Run(ctx)

	s.logger.Info("serving", "addr", ln.Addr().String(), "service", s.robot.Service())
	return s.app.Listener(ln)
}

// Shutdown stops the state hub and the HTTP server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "service": s.robot.Service()})
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.robot.Snapshot())
}

func (s *Server) handleRequest(c *fiber.Ctx) error {
	service := c.Params("service")
	if service != s.robot.Service() {
		return c.Status(fiber.StatusNotFound).SendString("no such service: " + service)
	}

	var req channel.Request
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("bad request: " + err.Error())
	}

	resp := s.robot.Handle(c.UserContext(), service, req)
	if req.Header.Policy.NoReply {
		return c.SendStatus(fiber.StatusOK)
	}
	return c.JSON(resp)
}

// handleRPCWS answers envelopes in arrival order on one connection.
func (s *Server) handleRPCWS(c *websocket.Conn) {
	defer c.Close()
	for {
		var env channel.Envelope
		if err := c.ReadJSON(&env); err != nil {
			s.logger.Debug("rpc websocket closed", "error", err)
			return
		}
		resp := s.robot.Handle(context.Background(), env.Service, env.Request)
		if env.Request.Header.Policy.NoReply {
			continue
		}
		if err := c.WriteJSON(resp); err != nil {
			s.logger.Debug("rpc websocket write", "error", err)
			return
		}
	}
}

// handleStateWS sends the current state, then every change.
func (s *Server) handleStateWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.robot.Snapshot()); err != nil {
		c.Close()
		return
	}
	s.states.Serve(c)
}
