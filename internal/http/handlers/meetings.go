package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/minutes-backend/internal/domain/meetings"
	"github.com/yungbote/minutes-backend/internal/export"
	"github.com/yungbote/minutes-backend/internal/http/response"
	"github.com/yungbote/minutes-backend/internal/interchange"
	"github.com/yungbote/minutes-backend/internal/modules/minutes"
	"github.com/yungbote/minutes-backend/internal/platform/logger"
	"github.com/yungbote/minutes-backend/internal/services"
)

type MeetingProcessor interface {
	ProcessMeeting(ctx context.Context, in minutes.ProcessInput) (*meetings.Meeting, error)
	ImportMeeting(ctx context.Context, m *meetings.Meeting) (string, error)
}

type MeetingHandler struct {
	log   *logger.Logger
	proc  MeetingProcessor
	store services.MeetingStore
}

func NewMeetingHandler(log *logger.Logger, proc MeetingProcessor, store services.MeetingStore) *MeetingHandler {
	return &MeetingHandler{log: log.With("handler", "MeetingHandler"), proc: proc, store: store}
}

type processRequest struct {
	ID           string                     `json:"id"`
	Title        string                     `json:"title"`
	Date         string                     `json:"date"`
	Participants []string                   `json:"participants"`
	Agenda       string                     `json:"agenda"`
	AudioURI     string                     `json:"audio_uri"`
	ASR          []meetings.ASRSegment      `json:"asr"`
	Turns        []meetings.DiarizationTurn `json:"turns"`
}

// POST /api/meetings/process
func (h *MeetingHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	date, err := interchange.ParseDate(req.Date)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	m, err := h.proc.ProcessMeeting(c.Request.Context(), minutes.ProcessInput{
		ID:           req.ID,
		Title:        req.Title,
		Date:         date,
		Participants: req.Participants,
		Agenda:       req.Agenda,
		AudioURI:     req.AudioURI,
		ASR:          req.ASR,
		Turns:        req.Turns,
	})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"meeting": m})
}

// POST /api/meetings
func (h *MeetingHandler) Import(c *gin.Context) {
	var doc interchange.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	m, err := doc.ToMeeting()
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	id, err := h.proc.ImportMeeting(c.Request.Context(), m)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"id": id, "meeting": m})
}

type meetingSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Date         time.Time `json:"date"`
	Participants []string  `json:"participants"`
	NeedsReview  bool      `json:"needs_review"`
	Segments     int       `json:"segments"`
	ActionItems  int       `json:"action_items"`
}

func summarize(m *meetings.Meeting) meetingSummary {
	s := meetingSummary{
		ID:           m.ID,
		Title:        m.Title,
		Date:         m.Date,
		Participants: m.Participants,
		NeedsReview:  m.NeedsReview,
		Segments:     len(m.Transcript),
	}
	if m.Minutes != nil {
		s.ActionItems = len(m.Minutes.ActionItems)
	}
	return s
}

// GET /api/meetings?q=&limit=&offset=
func (h *MeetingHandler) List(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_offset", err)
		return
	}
	found, err := h.store.List(c.Request.Context(), services.SearchOptions{Query: c.Query("q"), Limit: limit, Offset: offset})
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	out := make([]meetingSummary, 0, len(found))
	for _, m := range found {
		out = append(out, summarize(m))
	}
	response.RespondOK(c, gin.H{"meetings": out})
}

// GET /api/meetings/stats
func (h *MeetingHandler) Stats(c *gin.Context) {
	st, err := h.store.Stats(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, st)
}

// GET /api/meetings/:id
func (h *MeetingHandler) Get(c *gin.Context) {
	m, err := h.store.GetMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"meeting": m})
}

// GET /api/meetings/:id/export?format=json|markdown
func (h *MeetingHandler) Export(c *gin.Context) {
	m, err := h.store.GetMeeting(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	switch strings.ToLower(c.DefaultQuery("format", "json")) {
	case "json":
		c.Header("Content-Disposition", attachment(m, "json"))
		response.RespondOK(c, interchange.FromMeeting(m))
	case "markdown", "md":
		c.Header("Content-Disposition", attachment(m, "md"))
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(export.RenderMarkdown(m, export.DefaultOptions())))
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_format", fmt.Errorf("format must be json or markdown"))
	}
}

type renameSpeakerRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PATCH /api/meetings/:id/speakers
func (h *MeetingHandler) RenameSpeaker(c *gin.Context) {
	var req renameSpeakerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	m, err := h.store.RenameSpeaker(c.Request.Context(), c.Param("id"), req.From, req.To)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"meeting": m})
}

// DELETE /api/meetings/:id
func (h *MeetingHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteMeeting(c.Request.Context(), c.Param("id")); err != nil {
		response.RespondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func attachment(m *meetings.Meeting, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, m.Title)
	if name == "" {
		name = "meeting"
	}
	return fmt.Sprintf(`attachment; filename="%s_%s.%s"`, name, m.Date.UTC().Format("20060102"), ext)
}
