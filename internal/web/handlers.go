package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lucasnoah/coordcard/internal/card"
	"github.com/lucasnoah/coordcard/internal/db"
	"github.com/lucasnoah/coordcard/internal/engine"
	"github.com/lucasnoah/coordcard/internal/score"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errMissingCard  = errors.New("card is required")
	errMissingScore = errors.New("one of score or text is required")
)

type scoreRequest struct {
	Text   string        `json:"text"`
	Manual *score.Manual `json:"manual,omitempty"`
}

type nextRequest struct {
	Card         json.RawMessage    `json:"card"`
	State        *engine.CoordState `json:"state,omitempty"`
	Score        *score.Result      `json:"score,omitempty"`
	Text         *string            `json:"text,omitempty"`
	Manual       *score.Manual      `json:"manual,omitempty"`
	Conversation string             `json:"conversation,omitempty"`
}

type nextResponse struct {
	engine.Result
	DecisionID string `json:"decisionId,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}
	return body, nil
}

// handleValidate checks the request body as a card document. Validation
// failures are a normal 200 response with ok=false.
func (s *Server) handleValidate(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	respondOK(c, card.Validate(body))
}

func (s *Server) handleScore(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	respondOK(c, score.ScoreObservation(req.Text, score.Options{Manual: req.Manual}))
}

func (s *Server) handleNext(c *gin.Context) {
	var req nextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Card) == 0 || string(req.Card) == "null" {
		respondError(c, http.StatusBadRequest, "bad_request", errMissingCard)
		return
	}

	cd, err := card.Decode(req.Card)
	if err != nil {
		var inv *card.InvalidError
		if errors.As(err, &inv) {
			c.JSON(http.StatusUnprocessableEntity, ErrorEnvelope{Error: APIError{
				Message: "card failed validation",
				Code:    "invalid_card",
				Details: inv.Result.Errors,
			}})
			return
		}
		respondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	var sc score.Result
	switch {
	case req.Score != nil:
		sc = req.Score.Clamped()
	case req.Text != nil:
		sc = score.ScoreObservation(*req.Text, score.Options{Manual: req.Manual})
	default:
		respondError(c, http.StatusBadRequest, "bad_request", errMissingScore)
		return
	}

	st := engine.InitState()
	if req.State != nil {
		st = *req.State
	}

	res := engine.NextStep(cd, st, sc)
	resp := nextResponse{Result: res}

	if s.db != nil && req.Conversation != "" {
		id, err := s.db.LogDecision(db.Decision{
			Conversation: req.Conversation,
			CardID:       cd.ID,
			R:            sc.R,
			H:            sc.H,
			O:            sc.O,
			RhoSum:       res.Why.RhoSum,
			Action:       string(res.Action),
			Trigger:      string(res.Why.TriggerFired),
			Level:        res.Why.EscalationLevel,
			Summary:      res.Why.Summary,
		})
		if err != nil {
			s.logger.Warn("failed to log decision", zap.String("conversation", req.Conversation), zap.Error(err))
		} else {
			resp.DecisionID = id
		}
	}

	s.logger.Debug("next step",
		zap.String("action", string(res.Action)),
		zap.String("trigger", string(res.Why.TriggerFired)),
		zap.Int("level", res.Why.EscalationLevel),
	)
	respondOK(c, resp)
}
