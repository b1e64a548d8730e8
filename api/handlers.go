package api

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/encoder"
	"github.com/prefopt/maskrank/pkg/loop"
	"github.com/prefopt/maskrank/pkg/model"
	"github.com/prefopt/maskrank/pkg/session"
)

// ErrorResponse is the error response body returned by all handlers.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MaskPayload is a binary mask uploaded as a flat row-major pixel array.
type MaskPayload struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Pixels []uint8 `json:"pixels"`
}

// CreateSessionRequest starts a new learning session, either over a
// pre-encoded candidate feature matrix or over raw masks encoded
// server-side with the handcrafted encoder. Exactly one of the two
// fields must be set.
type CreateSessionRequest struct {
	Features [][]float64   `json:"features,omitempty"`
	Masks    []MaskPayload `json:"masks,omitempty"`
}

// CreateSessionResponse is returned after a session has been created.
type CreateSessionResponse struct {
	SessionID  string `json:"session_id"`
	Candidates int    `json:"candidates"`
}

// BatchResponse carries the pairs selected for annotation.
type BatchResponse struct {
	Pairs []acquisition.Pair `json:"pairs"`
}

// AddPreferencesRequest submits annotated comparisons. Labels use 1 for
// "first candidate preferred", 0 for "second candidate preferred" and -1
// for a tie.
type AddPreferencesRequest struct {
	Pairs  []acquisition.Pair `json:"pairs"`
	Labels []int              `json:"labels"`
}

// RankingResponse carries the full Copeland ranking.
type RankingResponse struct {
	Ranking []int     `json:"ranking"`
	Scores  []float64 `json:"scores"`
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req CreateSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}

	if len(req.Features) > 0 && len(req.Masks) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "provide either features or masks, not both",
		})
	}

	var l *loop.Loop
	var err error
	if len(req.Masks) > 0 {
		masks := make([]encoder.Mask, len(req.Masks))
		for i, m := range req.Masks {
			if len(m.Pixels) != m.Width*m.Height {
				return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
					Error: fmt.Sprintf("mask %d: pixel count %d does not match %dx%d", i, len(m.Pixels), m.Width, m.Height),
				})
			}
			masks[i] = encoder.Mask{Width: m.Width, Height: m.Height, Pixels: m.Pixels}
		}
		l, err = loop.New(masks, encoder.NewHandcrafted(), s.loopCfg, loop.WithStore(s.store))
	} else {
		l, err = loop.NewFromFeatures(req.Features, s.loopCfg, loop.WithStore(s.store))
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	id, err := l.SaveSession(c.Context(), "")
	if err != nil {
		s.logger.Error("failed to save session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	candidates := len(l.Features())

	s.loop = l
	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.Int("candidates", candidates),
	)

	return c.JSON(CreateSessionResponse{
		SessionID:  id,
		Candidates: candidates,
	})
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	ids, err := s.store.List(c.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(fiber.Map{"sessions": ids})
}

func (s *Server) handleSessionInfo(c *fiber.Ctx) error {
	id := c.Params("id")
	info, err := session.Describe(c.Context(), s.store, id)
	if err != nil {
		var notFound session.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		s.logger.Error("failed to load session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(info)
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.store.Delete(c.Context(), id); err != nil {
		var notFound session.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		s.logger.Error("failed to delete session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleGetBatch(c *fiber.Ctx) error {
	if s.loop == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "no active session",
		})
	}

	n := c.QueryInt("n", 0)
	pairs, err := s.loop.GetNextBatch(n)
	if err != nil {
		s.logger.Error("failed to select batch", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(BatchResponse{Pairs: pairs})
}

func (s *Server) handleAddPreferences(c *fiber.Ctx) error {
	if s.loop == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "no active session",
		})
	}

	var req AddPreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid request body: " + err.Error(),
		})
	}

	if err := s.loop.AddPreferences(c.Context(), req.Pairs, req.Labels); err != nil {
		var invalid model.InvalidInputError
		if errors.As(err, &invalid) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		s.logger.Error("failed to add preferences", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}

	if id := s.loop.SessionID(); id != "" {
		if _, err := s.loop.SaveSession(c.Context(), id); err != nil {
			s.logger.Warn("failed to persist session after update",
				zap.String("session_id", id),
				zap.Error(err),
			)
		}
	}

	return c.JSON(s.loop.GetProgress())
}

func (s *Server) handleGetRanking(c *fiber.Ctx) error {
	if s.loop == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "no active session",
		})
	}

	ranking, scores, err := s.loop.GetRanking()
	if err != nil {
		if errors.Is(err, model.ErrNotTrained) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		s.logger.Error("failed to compute ranking", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(RankingResponse{Ranking: ranking, Scores: scores})
}

func (s *Server) handleGetProgress(c *fiber.Ctx) error {
	if s.loop == nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "no active session",
		})
	}
	return c.JSON(s.loop.GetProgress())
}
