package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"taedam/internal/envelope"
	"taedam/internal/shared/timeutil"
	"taedam/internal/store"
)

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Text      string `json:"text" binding:"required"`
	Context   string `json:"context"`
	Date      string `json:"date"`
	Week      int    `json:"week"`
	Source    string `json:"source"`
}

// handleChat runs one turn: ensure profiles exist, log the user message, run
// the engine, log the assistant reply, return the output envelope.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and text are required"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text must not be blank"})
		return
	}

	ctx := c.Request.Context()
	s.ensureProfiles(c, req.SessionID)

	if err := s.store.SaveMessage(ctx, store.Message{
		SessionID: req.SessionID,
		Role:      "user",
		Text:      req.Text,
	}); err != nil {
		s.logger.Error("save user message (session=%s): %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record message"})
		return
	}

	out := s.runner.RunTurn(ctx, envelope.Input{
		SessionID: req.SessionID,
		Payload: envelope.InputPayload{
			Text:    req.Text,
			Context: req.Context,
			Metadata: envelope.InputMetadata{
				Source: req.Source,
				Date:   req.Date,
				Week:   req.Week,
			},
		},
	})

	if out.OK && out.Result != nil {
		if err := s.store.SaveMessage(ctx, store.Message{
			SessionID: req.SessionID,
			Role:      "assistant",
			Text:      out.Result.Text,
			MetaJSON:  `{"type":"` + string(out.Type()) + `"}`,
		}); err != nil {
			// Reply already computed; losing the log line is not worth a 500.
			s.logger.Error("save assistant message (session=%s): %v", req.SessionID, err)
		}
	}

	status := http.StatusOK
	if !out.OK {
		status = http.StatusInternalServerError
	}
	c.JSON(status, out)
}

// ensureProfiles creates blank profile rows on first contact so downstream
// reads never special-case a brand-new session. Failures only log: the turn
// tolerates missing profiles.
func (s *Server) ensureProfiles(c *gin.Context, sessionID string) {
	ctx := c.Request.Context()
	baby, err := s.store.GetBaby(ctx, sessionID)
	if err == nil && baby == nil {
		err = s.store.UpsertBaby(ctx, store.BabyProfile{SessionID: sessionID})
	}
	if err != nil {
		s.logger.Warn("ensure baby profile (session=%s): %v", sessionID, err)
	}

	mother, err := s.store.GetMother(ctx, sessionID)
	if err == nil && mother == nil {
		err = s.store.UpsertMother(ctx, store.MotherProfile{SessionID: sessionID})
	}
	if err != nil {
		s.logger.Warn("ensure mother profile (session=%s): %v", sessionID, err)
	}
}

// sessionParam extracts the required session_id query parameter, replying
// 400 when it is absent.
func sessionParam(c *gin.Context) (string, bool) {
	id := c.Query("session_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return "", false
	}
	return id, true
}

// handleChatsByDate returns one logical day's conversation, oldest first.
// Without an explicit date it serves today in KST.
func (s *Server) handleChatsByDate(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	date := c.Query("date")
	if date == "" {
		date = timeutil.Today()
	}
	msgs, err := s.store.MessagesByDate(c.Request.Context(), sessionID, date)
	if err != nil {
		s.logger.Error("chats by date (session=%s, date=%s): %v", sessionID, date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "messages": msgs})
}

// handleResetSession wipes a session's conversation. Profiles, personas, and
// diaries survive the reset.
func (s *Server) handleResetSession(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	if err := s.store.DeleteSessionMessages(c.Request.Context(), sessionID); err != nil {
		s.logger.Error("reset session (session=%s): %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// handleDeleteLastMessage removes the newest message of a session, undoing a
// mis-send.
func (s *Server) handleDeleteLastMessage(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	deleted, err := s.store.DeleteLastMessage(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("delete last message (session=%s): %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete message"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "no messages to delete"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) handleListDiaries(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	entries, err := s.store.ListDiaries(c.Request.Context(), sessionID)
	if err != nil {
		s.logger.Error("list diaries (session=%s): %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list diaries"})
		return
	}
	if entries == nil {
		entries = []store.DiaryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"diaries": entries})
}

// handleDiaryByDate returns the single diary for (session, date).
func (s *Server) handleDiaryByDate(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	date := c.Param("date")
	entry, err := s.store.DiaryByDate(c.Request.Context(), sessionID, date)
	if err != nil {
		s.logger.Error("diary by date (session=%s, date=%s): %v", sessionID, date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load diary"})
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "diary not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"diary": entry})
}

// handleDeleteDiary removes the diary for (session, date).
func (s *Server) handleDeleteDiary(c *gin.Context) {
	sessionID, ok := sessionParam(c)
	if !ok {
		return
	}
	date := c.Param("date")
	deleted, err := s.store.DeleteDiary(c.Request.Context(), sessionID, date)
	if err != nil {
		s.logger.Error("delete diary (session=%s, date=%s): %v", sessionID, date, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete diary"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "diary not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type personaRefreshRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Date      string `json:"date"`
}

// handlePersonaRefresh schedules a persona rebuild from the current history
// snapshot. The work itself runs in the background pool; 202 means queued,
// not done.
func (s *Server) handlePersonaRefresh(c *gin.Context) {
	if s.personas == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "persona refresh is disabled"})
		return
	}
	var req personaRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	date := req.Date
	if date == "" {
		date = timeutil.Today()
	}

	block, err := s.historian.GetOrBuild(c.Request.Context(), req.SessionID, date)
	if err != nil {
		s.logger.Error("persona refresh snapshot (session=%s): %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build history snapshot"})
		return
	}
	s.personas.SchedulePersonaRefresh(req.SessionID, block)
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
