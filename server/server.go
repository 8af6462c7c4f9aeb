// Package server exposes the HTTP surface: platform webhooks, the test chat
// API, generated media, health, and metrics.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aura-chat/aura/ai/pipeline"
	"github.com/aura-chat/aura/internal/profile"
	chat_apps "github.com/aura-chat/aura/plugin/chat_apps"
	"github.com/aura-chat/aura/plugin/chat_apps/channels"
	"github.com/aura-chat/aura/plugin/chat_apps/channels/whatsapp"
	"github.com/aura-chat/aura/plugin/chat_apps/metrics"
)

const (
	// webhookTurnTimeout bounds the background turn spawned by the
	// Telegram webhook after returning 200.
	webhookTurnTimeout = 90 * time.Second

	shutdownTimeout = 10 * time.Second
)

// Server is the HTTP server hosting all routes.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	pipeline   *pipeline.Pipeline
	router     *channels.ChannelRouter
	exporter   *metrics.Exporter
}

// NewServer creates the HTTP server and registers all routes. mediaDir may be
// empty when no media synthesis is configured.
func NewServer(instanceProfile *profile.Profile, pl *pipeline.Pipeline, router *channels.ChannelRouter, exporter *metrics.Exporter, mediaDir string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("server: request", "uri", v.URI, "status", v.Status)
			return nil
		},
	}))

	s := &Server{
		Profile:    instanceProfile,
		echoServer: e,
		pipeline:   pl,
		router:     router,
		exporter:   exporter,
	}

	e.GET("/healthz", s.handleHealthz)
	if exporter != nil {
		e.GET("/metrics", echo.WrapHandler(exporter.Handler()))
	}
	if mediaDir != "" {
		e.Static("/media", mediaDir)
	}

	e.POST("/webhooks/telegram", s.handleTelegramWebhook)
	e.POST("/webhooks/whatsapp", s.handleWhatsAppWebhook)
	e.POST("/api/v1/chat", s.handleChat)

	return s
}

// Echo exposes the underlying echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echoServer
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	return s.echoServer.Start(addr)
}

// Shutdown gracefully stops the server and closes the registered channels.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("server: failed to shut down gracefully", "error", err)
	}
	if s.router != nil {
		if err := s.router.Close(); err != nil {
			slog.Error("server: failed to close channels", "error", err)
		}
	}
	slog.Info("server: stopped")
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.Profile.Version,
	})
}

// handleTelegramWebhook acknowledges the update immediately and processes the
// turn in the background; Telegram retries deliveries that do not return 200
// quickly.
func (s *Server) handleTelegramWebhook(c echo.Context) error {
	channel := s.router.GetChannel(chat_apps.PlatformTelegram)
	if channel == nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	msg, err := channel.ParseMessage(c.Request().Context(), payload)
	if err != nil {
		// Non-message updates (edits, joins) are dropped, not retried.
		slog.Debug("server: ignoring telegram update", "error", err)
		return c.NoContent(http.StatusOK)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTurnTimeout)
		defer cancel()
		if err := s.pipeline.HandleIncoming(ctx, msg); err != nil {
			slog.Error("server: telegram turn failed", "chat", msg.PlatformChatID, "error", err)
		}
	}()

	return c.NoContent(http.StatusOK)
}

// handleWhatsAppWebhook replies synchronously with TwiML; Twilio delivers the
// rendered message to the sender.
func (s *Server) handleWhatsAppWebhook(c echo.Context) error {
	channel := s.router.GetChannel(chat_apps.PlatformWhatsApp)
	if channel == nil {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}

	msg, err := channel.ParseMessage(c.Request().Context(), payload)
	if err != nil {
		slog.Debug("server: ignoring whatsapp callback", "error", err)
		return c.NoContent(http.StatusBadRequest)
	}

	reply, err := s.pipeline.Respond(c.Request().Context(), pipeline.ConversationID(msg.Platform, msg.PlatformChatID), msg.Content)
	if err != nil {
		return err
	}

	mediaURL := reply.VoiceURL
	if mediaURL == "" {
		mediaURL = reply.ImageURL
	}
	body, err := whatsapp.TwiML(reply.Text, mediaURL)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "application/xml", body)
}

// ChatRequest is the test chat API request body.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ChatResponse is the test chat API response body.
type ChatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
	Modality       string `json:"modality"`
	VoiceURL       string `json:"voice_url,omitempty"`
	ImageURL       string `json:"image_url,omitempty"`
}

// handleChat runs one turn for the web test surface. Conversations without an
// ID get a fresh one, returned so the client can continue it.
func (s *Server) handleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	reply, err := s.pipeline.Respond(c.Request().Context(), pipeline.ConversationID(chat_apps.PlatformWeb, req.ConversationID), req.Message)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Reply:          reply.Text,
		ConversationID: req.ConversationID,
		Modality:       reply.Modality,
		VoiceURL:       reply.VoiceURL,
		ImageURL:       reply.ImageURL,
	})
}
