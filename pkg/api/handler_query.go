package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/conclave-ai/conclave/pkg/events"
	"github.com/conclave-ai/conclave/pkg/models"
	"github.com/conclave-ai/conclave/pkg/session"
	"github.com/conclave-ai/conclave/pkg/workflow"
)

// createQueryRequest is the submission body.
type createQueryRequest struct {
	Question     string `json:"question" binding:"required"`
	ProviderHint string `json:"provider_hint,omitempty"`
	ModelHint    string `json:"model_hint,omitempty"`
}

// createQueryResponse acknowledges an accepted submission.
type createQueryResponse struct {
	QueryID string `json:"query_id"`
	Channel string `json:"channel"`
	Status  string `json:"status"`
}

// createQuery validates the submission, registers a session, and starts the
// pipeline in the background. The caller subscribes to the returned channel
// for progress events.
func (s *Server) createQuery(c *gin.Context) {
	var req createQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := workflow.ValidateQuery(req.Question); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := s.sessions.Create(req.Question)
	go s.process(sess, req.ProviderHint, req.ModelHint)

	c.JSON(http.StatusAccepted, createQueryResponse{
		QueryID: sess.ID,
		Channel: events.RequestChannel(sess.ID),
		Status:  string(session.StatusPending),
	})
}

// process owns one request's scope: the transport ceiling, the event bus, and
// the session's terminal status.
func (s *Server) process(sess *session.Session, providerHint, modelHint string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.RequestCeiling)
	defer cancel()
	sess.SetCancelFunc(cancel)
	sess.SetStatus(session.StatusProcessing)

	bus := events.NewBus(sess.ID, s.cfg.Defaults.HeartbeatInterval)
	relayed := make(chan struct{})
	go s.relay(bus, sess.ID, relayed)

	query := models.Query{
		ID:           sess.ID,
		Text:         sess.Question,
		ProviderHint: providerHint,
		ModelHint:    modelHint,
		CreatedAt:    sess.CreatedAt,
	}

	state, err := s.pipeline.Run(ctx, query, bus)
	<-relayed

	switch {
	case err == nil:
		sess.SetState(state)
	case errors.Is(err, workflow.ErrCancelled):
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			sess.SetTimedOut("request exceeded the transport ceiling")
		}
		// A user-initiated cancel already set the terminal status.
	default:
		sess.SetError(err.Error())
	}
}

// relay drains the request's bus and broadcasts each envelope to the
// request's WebSocket channel.
func (s *Server) relay(bus *events.Bus, requestID string, done chan<- struct{}) {
	defer close(done)
	channel := events.RequestChannel(requestID)
	for env := range bus.Events() {
		data, err := json.Marshal(env)
		if err != nil {
			slog.Warn("Failed to marshal event envelope",
				"request_id", requestID, "stage", env.Stage, "error", err)
			continue
		}
		s.connManager.Broadcast(channel, data)
	}
}

// getQuery returns the session snapshot for a query id.
func (s *Server) getQuery(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess.Clone())
}

// listQueries returns snapshots of all sessions.
func (s *Server) listQueries(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queries": s.sessions.List()})
}

// cancelQuery cancels a running query. Cancelling a finished or not-yet-started
// query is a conflict.
func (s *Server) cancelQuery(c *gin.Context) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if !sess.Cancel() {
		c.JSON(http.StatusConflict, gin.H{"error": "query is not cancellable"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"query_id": sess.ID,
		"status":   string(session.StatusCancelled),
	})
}
