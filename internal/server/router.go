package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roundtable-labs/backend/internal/analytics"
	"github.com/roundtable-labs/backend/internal/keywords"
	"github.com/roundtable-labs/backend/internal/meetings"
	"github.com/roundtable-labs/backend/internal/minutes"
	"github.com/roundtable-labs/backend/internal/stt"
	"github.com/roundtable-labs/backend/internal/users"
)

const editorIDContextKey = "roundtable_editor_id"

var (
	errMissingMeetingsService = errors.New("meetings service dependency required")
	errMissingUsersService    = errors.New("users service dependency required")
)

// TokenValidator issues and validates the backend's bearer tokens. When nil
// or disabled the API runs open and writes are attributed to the default
// editor account.
type TokenValidator interface {
	Enabled() bool
	IssueToken(ctx context.Context, subject string) (string, int64, error)
	ValidateToken(token string) (string, error)
}

// Dependencies wires the HTTP surface. Meetings, STT, and Users are
// mandatory; the rest degrade gracefully when absent.
type Dependencies struct {
	Meetings  *meetings.Service
	STT       *stt.Service
	Minutes   *minutes.Service
	Keywords  *keywords.Service
	Analytics *analytics.Service
	Users     *users.Service
	Tokens    TokenValidator
	Realtime  *RealtimeDispatcher
	Logger    *zap.Logger

	IncrementalMinutes bool
}

// NewHTTPHandler assembles the gin router over the domain services.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Meetings == nil {
		return nil, errMissingMeetingsService
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dispatcher := deps.Realtime
	if dispatcher == nil {
		dispatcher = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		meetings:    deps.Meetings,
		stt:         deps.STT,
		minutes:     deps.Minutes,
		keywords:    deps.Keywords,
		analytics:   deps.Analytics,
		users:       deps.Users,
		tokens:      deps.Tokens,
		realtime:    dispatcher,
		logger:      logger,
		incremental: deps.IncrementalMinutes,
	}

	router.POST("/auth/token", handler.handleIssueToken)
	router.GET("/ws/meetings/:meeting_id", handler.handleMeetingSocket)

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)

	api.GET("/meetings", handler.handleListMeetings)
	api.POST("/meetings", handler.handleCreateMeeting)
	api.GET("/meetings/:meeting_id", handler.handleGetMeeting)
	api.POST("/meetings/:meeting_id/end", handler.handleEndMeeting)

	api.GET("/meetings/:meeting_id/blocks", handler.handleListBlocks)
	api.POST("/meetings/:meeting_id/blocks", handler.handleCreateBlock)
	api.GET("/meetings/:meeting_id/blocks/:block_id", handler.handleGetBlock)
	api.PATCH("/meetings/:meeting_id/blocks/:block_id", handler.handleUpdateBlock)
	api.DELETE("/meetings/:meeting_id/blocks/:block_id", handler.handleDeleteBlock)
	api.POST("/meetings/:meeting_id/blocks/:block_id/reorder", handler.handleReorderBlock)
	api.GET("/meetings/:meeting_id/blocks/:block_id/revisions", handler.handleListRevisions)
	api.POST("/meetings/:meeting_id/blocks/:block_id/restore", handler.handleRestoreBlock)
	for _, operation := range tableOperations {
		operation := operation
		api.POST("/meetings/:meeting_id/blocks/:block_id/"+operation, func(c *gin.Context) {
			handler.handleTableOp(c, operation)
		})
	}

	api.GET("/meetings/:meeting_id/attachments", handler.handleListAttachments)
	api.POST("/meetings/:meeting_id/attachments", handler.handleCreateAttachment)

	if handler.stt != nil {
		api.POST("/meetings/:meeting_id/stt-chunk", handler.handleSTTChunk)
		api.GET("/meetings/:meeting_id/segments", handler.handleListSegments)
	}
	if handler.minutes != nil {
		api.GET("/meetings/:meeting_id/minutes/live", handler.handleLiveMinutes)
		api.GET("/meetings/:meeting_id/minutes/final", handler.handleFinalMinutes)
		if handler.stt != nil {
			api.POST("/meetings/:meeting_id/finalize", handler.handleFinalize)
		}
	}
	if handler.keywords != nil {
		api.POST("/meetings/:meeting_id/keywords/extract", handler.handleExtractKeywords)
		api.GET("/meetings/:meeting_id/keywords", handler.handleListKeywordLogs)
	}
	if handler.analytics != nil {
		api.GET("/analytics/areas", handler.handleFindAreas)
		api.GET("/analytics/region/center", handler.handleRegionCenter)
		api.GET("/analytics/store-counts", handler.handleStoreCounts)
		api.GET("/analytics/change-index", handler.handleChangeIndex)
		api.GET("/analytics/closures", handler.handleClosures)
		api.GET("/analytics/industry-metrics", handler.handleIndustryMetrics)
	}

	return router, nil
}

type httpHandler struct {
	meetings    *meetings.Service
	stt         *stt.Service
	minutes     *minutes.Service
	keywords    *keywords.Service
	analytics   *analytics.Service
	users       *users.Service
	tokens      TokenValidator
	realtime    *RealtimeDispatcher
	logger      *zap.Logger
	incremental bool
}

type tokenRequestPayload struct {
	Username string `json:"username"`
}

type tokenResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleIssueToken(c *gin.Context) {
	if h.tokens == nil || !h.tokens.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"detail": "auth_disabled"})
		return
	}
	var request tokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username_required"})
		return
	}

	accountID, err := h.users.EnsureAccount(request.Username)
	if err != nil {
		h.logger.Error("account resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "account_failed"})
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), strconv.FormatInt(accountID, 10))
	if err != nil {
		h.logger.Error("token issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

// authorizeRequest resolves the editor account. With auth disabled every
// request acts as the default account; with auth enabled a valid bearer
// token is mandatory.
func (h *httpHandler) authorizeRequest(c *gin.Context) {
	if h.tokens == nil || !h.tokens.Enabled() {
		c.Set(editorIDContextKey, users.DefaultAccountID)
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		return
	}
	subject, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		return
	}
	accountID, err := h.users.ResolveSubject(subject)
	if err != nil {
		h.logger.Warn("unknown token subject", zap.String("subject", subject), zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "unauthorized"})
		return
	}
	c.Set(editorIDContextKey, accountID)
	c.Next()
}

func (h *httpHandler) editorID(c *gin.Context) int64 {
	if value, ok := c.Get(editorIDContextKey); ok {
		if id, ok := value.(int64); ok {
			return id
		}
	}
	return users.DefaultAccountID
}

func (h *httpHandler) meetingID(c *gin.Context) (int64, bool) {
	return h.pathID(c, "meeting_id")
}

func (h *httpHandler) blockID(c *gin.Context) (int64, bool) {
	return h.pathID(c, "block_id")
}

func (h *httpHandler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_" + name})
		return 0, false
	}
	return id, true
}

// writeDomainError maps service failures to the wire: domain sentinels keep
// their code as the detail string, version conflicts carry the current
// server state, everything else is a 500.
func (h *httpHandler) writeDomainError(c *gin.Context, operation string, err error) {
	var conflict *meetings.VersionConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"detail":  "version_conflict",
			"current": gin.H{"id": conflict.BlockID, "version": conflict.Current},
		})
		return
	}

	if errors.Is(err, meetings.ErrInvalidBlockType) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_type"})
		return
	}

	switch {
	case errors.Is(err, meetings.ErrMeetingNotFound),
		errors.Is(err, meetings.ErrBlockNotFound),
		errors.Is(err, meetings.ErrRevisionNotFound),
		errors.Is(err, analytics.ErrTradingAreaNotFound),
		errors.Is(err, analytics.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"detail": domainCode(err)})
	case errors.Is(err, meetings.ErrMissingMeetingTitle),
		errors.Is(err, meetings.ErrMissingFileURL),
		errors.Is(err, meetings.ErrParentNotInMeeting),
		errors.Is(err, meetings.ErrNewParentNotInMeet),
		errors.Is(err, meetings.ErrBlockNotInMeeting),
		errors.Is(err, meetings.ErrNotATable),
		errors.Is(err, meetings.ErrInvalidTableShape),
		errors.Is(err, meetings.ErrInvalidTableRows),
		errors.Is(err, meetings.ErrRowOutOfRange),
		errors.Is(err, meetings.ErrColOutOfRange),
		errors.Is(err, meetings.ErrIndexOutOfRange),
		errors.Is(err, meetings.ErrRowNotList),
		errors.Is(err, meetings.ErrNameNotString),
		errors.Is(err, meetings.ErrWidthNotInt),
		errors.Is(err, stt.ErrMissingText),
		errors.Is(err, keywords.ErrMissingText),
		errors.Is(err, keywords.ErrInvalidSource),
		errors.Is(err, analytics.ErrMissingRegionFilter),
		errors.Is(err, analytics.ErrInvalidRadius),
		errors.Is(err, analytics.ErrInvalidGroupBy):
		c.JSON(http.StatusBadRequest, gin.H{"detail": domainCode(err)})
	case errors.Is(err, minutes.ErrSummarizerUnavailable),
		errors.Is(err, analytics.ErrClientUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": domainCode(err)})
	case errors.Is(err, analytics.ErrSeoulUpstream):
		c.JSON(http.StatusBadGateway, gin.H{"detail": "open_api_error"})
	default:
		h.logger.Error("request failed", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal_error"})
	}
}

// domainCode unwraps to the innermost sentinel message so wrapped errors
// still surface the bare code.
func domainCode(err error) string {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err.Error()
		}
		err = unwrapped
	}
}

type meetingPayload struct {
	ID            int64      `json:"id"`
	Title         string     `json:"title"`
	Project       string     `json:"project"`
	MarketArea    string     `json:"market_area"`
	ScheduledTime *time.Time `json:"scheduled_time"`
	Description   string     `json:"description"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	EndedAt       *time.Time `json:"ended_at"`
}

func toMeetingPayload(meeting *meetings.Meeting) meetingPayload {
	return meetingPayload{
		ID:            meeting.ID,
		Title:         meeting.Title,
		Project:       meeting.Project,
		MarketArea:    meeting.MarketArea,
		ScheduledTime: meeting.ScheduledTime,
		Description:   meeting.Description,
		CreatedAt:     meeting.CreatedAt,
		UpdatedAt:     meeting.UpdatedAt,
		EndedAt:       meeting.EndedAt,
	}
}

type createMeetingPayload struct {
	Title         string     `json:"title"`
	Project       string     `json:"project"`
	MarketArea    string     `json:"market_area"`
	ScheduledTime *time.Time `json:"scheduled_time"`
	Description   string     `json:"description"`
}

func (h *httpHandler) handleCreateMeeting(c *gin.Context) {
	var request createMeetingPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
		return
	}
	meeting, err := h.meetings.CreateMeeting(c.Request.Context(), meetings.CreateMeetingInput{
		Title:         request.Title,
		Project:       request.Project,
		MarketArea:    request.MarketArea,
		ScheduledTime: request.ScheduledTime,
		Description:   request.Description,
		OwnerID:       h.editorID(c),
	})
	if err != nil {
		h.writeDomainError(c, "meetings.create", err)
		return
	}
	c.JSON(http.StatusCreated, toMeetingPayload(meeting))
}

func (h *httpHandler) handleListMeetings(c *gin.Context) {
	list, err := h.meetings.ListMeetings(c.Request.Context())
	if err != nil {
		h.writeDomainError(c, "meetings.list", err)
		return
	}
	payload := make([]meetingPayload, 0, len(list))
	for i := range list {
		payload = append(payload, toMeetingPayload(&list[i]))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetMeeting(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	meeting, err := h.meetings.GetMeeting(c.Request.Context(), meetingID)
	if err != nil {
		h.writeDomainError(c, "meetings.get", err)
		return
	}
	c.JSON(http.StatusOK, toMeetingPayload(meeting))
}

func (h *httpHandler) handleEndMeeting(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	if err := h.meetings.EndMeeting(c.Request.Context(), meetingID); err != nil {
		h.writeDomainError(c, "meetings.end", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type attachmentPayload struct {
	ID        int64     `json:"id"`
	PublicID  string    `json:"public_id"`
	MeetingID int64     `json:"meeting_id"`
	BlockID   *int64    `json:"block_id"`
	FileURL   string    `json:"file_url"`
	MimeType  string    `json:"mime_type"`
	Size      *int64    `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func toAttachmentPayload(attachment *meetings.Attachment) attachmentPayload {
	return attachmentPayload{
		ID:        attachment.ID,
		PublicID:  attachment.PublicID,
		MeetingID: attachment.MeetingID,
		BlockID:   attachment.BlockID,
		FileURL:   attachment.FileURL,
		MimeType:  attachment.MimeType,
		Size:      attachment.Size,
		CreatedAt: attachment.CreatedAt,
	}
}

type createAttachmentPayload struct {
	BlockID  *int64 `json:"block_id"`
	FileURL  string `json:"file_url"`
	MimeType string `json:"mime_type"`
	Size     *int64 `json:"size"`
}

func (h *httpHandler) handleCreateAttachment(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	var request createAttachmentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
		return
	}
	attachment, err := h.meetings.CreateAttachment(c.Request.Context(), meetings.CreateAttachmentInput{
		MeetingID: meetingID,
		BlockID:   request.BlockID,
		FileURL:   request.FileURL,
		MimeType:  request.MimeType,
		Size:      request.Size,
	})
	if err != nil {
		h.writeDomainError(c, "attachments.create", err)
		return
	}
	c.JSON(http.StatusCreated, toAttachmentPayload(attachment))
}

func (h *httpHandler) handleListAttachments(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	list, err := h.meetings.ListAttachments(c.Request.Context(), meetingID)
	if err != nil {
		h.writeDomainError(c, "attachments.list", err)
		return
	}
	payload := make([]attachmentPayload, 0, len(list))
	for i := range list {
		payload = append(payload, toAttachmentPayload(&list[i]))
	}
	c.JSON(http.StatusOK, payload)
}

// queryInt parses an optional integer query parameter; ok is false when the
// value is present but malformed.
func queryInt(c *gin.Context, name string) (value int, present, ok bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, false, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, true, false
	}
	return parsed, true, true
}

// rawPayload preserves request JSON exactly as sent.
func rawPayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
