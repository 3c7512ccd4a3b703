package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/roundtable-labs/backend/internal/keywords"
	"github.com/roundtable-labs/backend/internal/minutes"
	"github.com/roundtable-labs/backend/internal/stt"
)

type segmentPayload struct {
	ID        int64     `json:"id"`
	MeetingID int64     `json:"meeting_id"`
	StartMS   int       `json:"start_ms"`
	EndMS     int       `json:"end_ms"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toSegmentPayload(segment *stt.TranscriptSegment) segmentPayload {
	return segmentPayload{
		ID:        segment.ID,
		MeetingID: segment.MeetingID,
		StartMS:   segment.StartMS,
		EndMS:     segment.EndMS,
		Speaker:   segment.Speaker,
		Text:      segment.Text,
		CreatedAt: segment.CreatedAt,
	}
}

type sttChunkPayload struct {
	Text    string `json:"text"`
	StartMS int    `json:"start_ms"`
	EndMS   int    `json:"end_ms"`
	Speaker string `json:"speaker"`
}

type keywordCard struct {
	Slug string `json:"slug"`
}

type sttChunkResponse struct {
	OK         bool             `json:"ok"`
	SegmentID  int64            `json:"segment_id"`
	Minutes    *minutes.Minutes `json:"minutes"`
	Summarized bool             `json:"summarized"`
	Keywords   []string         `json:"keywords"`
	Cards      []keywordCard    `json:"cards"`
	Reason     string           `json:"reason,omitempty"`
}

// handleSTTChunk ingests one transcript segment and fans out the derived
// work: optional incremental minutes, keyword extraction, and the realtime
// broadcasts. The segment is stored even when the derived steps fail.
func (h *httpHandler) handleSTTChunk(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	var request sttChunkPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	meeting, err := h.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		h.writeDomainError(c, "stt.chunk", err)
		return
	}
	segment, err := h.stt.AppendSegment(ctx, stt.AppendSegmentInput{
		MeetingID: meetingID,
		Text:      request.Text,
		StartMS:   request.StartMS,
		EndMS:     request.EndMS,
		Speaker:   request.Speaker,
	})
	if err != nil {
		h.writeDomainError(c, "stt.chunk", err)
		return
	}

	response := sttChunkResponse{
		OK:        true,
		SegmentID: segment.ID,
		Keywords:  []string{},
		Cards:     []keywordCard{},
	}

	if h.incremental && h.minutes != nil && h.minutes.SummarizerEnabled() {
		updated, err := h.minutes.SummarizeChunk(ctx, meeting, segment.Text)
		if err != nil {
			response.Reason = "summarize_error: " + err.Error()
		} else {
			response.Minutes = &updated
			response.Summarized = true
			h.realtime.Publish(RealtimeMessage{
				MeetingID: meetingID,
				EventType: RealtimeEventMinutesUpdate,
				Payload:   updated,
			})
		}
	} else {
		response.Reason = "incremental_disabled"
	}

	if h.keywords != nil {
		extracted, err := h.keywords.Extract(ctx, keywords.ExtractInput{
			MeetingID: meetingID,
			Text:      segment.Text,
			Source:    keywords.SourceRealtime,
		})
		if err != nil {
			h.logger.Warn("keyword extraction failed",
				zap.Int64("meeting_id", meetingID), zap.Error(err))
		} else {
			response.Keywords = mergeKeywordLists(extracted.Keywords.Entities, extracted.Keywords.Metrics)
			for _, hint := range extracted.Keywords.APIHints {
				response.Cards = append(response.Cards, keywordCard{Slug: hint})
			}
			h.realtime.Publish(RealtimeMessage{
				MeetingID: meetingID,
				EventType: RealtimeEventKeywordsUpdate,
				Payload:   extracted,
			})
		}
	}

	c.JSON(http.StatusCreated, response)
}

// mergeKeywordLists concatenates the lists preserving first-seen order.
func mergeKeywordLists(lists ...[]string) []string {
	merged := []string{}
	seen := map[string]struct{}{}
	for _, list := range lists {
		for _, item := range list {
			if _, duplicate := seen[item]; duplicate {
				continue
			}
			seen[item] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

func (h *httpHandler) handleListSegments(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	list, err := h.stt.ListSegments(c.Request.Context(), meetingID)
	if err != nil {
		h.writeDomainError(c, "stt.segments", err)
		return
	}
	payload := make([]segmentPayload, 0, len(list))
	for i := range list {
		payload = append(payload, toSegmentPayload(&list[i]))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleLiveMinutes(c *gin.Context) {
	h.handleMinutesSnapshot(c, false)
}

func (h *httpHandler) handleFinalMinutes(c *gin.Context) {
	h.handleMinutesSnapshot(c, true)
}

func (h *httpHandler) handleMinutesSnapshot(c *gin.Context, isFinal bool) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := h.meetings.GetMeeting(ctx, meetingID); err != nil {
		h.writeDomainError(c, "minutes.get", err)
		return
	}
	var (
		doc   minutes.Minutes
		found bool
		err   error
	)
	if isFinal {
		doc, found, err = h.minutes.Final(ctx, meetingID)
	} else {
		doc, found, err = h.minutes.Live(ctx, meetingID)
	}
	if err != nil {
		h.writeDomainError(c, "minutes.get", err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"ok": true, "minutes": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "minutes": doc})
}

type finalizePayload struct {
	Project    string `json:"project"`
	MarketArea string `json:"market_area"`
}

func (h *httpHandler) handleFinalize(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	var request finalizePayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
			return
		}
	}

	ctx := c.Request.Context()
	meeting, err := h.meetings.GetMeeting(ctx, meetingID)
	if err != nil {
		h.writeDomainError(c, "minutes.finalize", err)
		return
	}
	transcript, err := h.stt.FullTranscript(ctx, meetingID)
	if err != nil {
		h.writeDomainError(c, "minutes.finalize", err)
		return
	}
	doc, err := h.minutes.Finalize(ctx, meeting, transcript, request.Project, request.MarketArea)
	if err != nil {
		if errors.Is(err, minutes.ErrSummarizerUnavailable) {
			h.writeDomainError(c, "minutes.finalize", err)
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": "summarize_error: " + err.Error()})
		return
	}
	h.realtime.Publish(RealtimeMessage{
		MeetingID: meetingID,
		EventType: RealtimeEventMinutesUpdate,
		Payload:   doc,
	})

	finalKeywords := []string{}
	cards := []keywordCard{}
	if h.keywords != nil && strings.TrimSpace(transcript) != "" {
		extracted, err := h.keywords.Extract(ctx, keywords.ExtractInput{
			MeetingID: meetingID,
			Text:      transcript,
			Source:    keywords.SourceFinal,
		})
		if err != nil {
			h.logger.Warn("final keyword extraction failed",
				zap.Int64("meeting_id", meetingID), zap.Error(err))
		} else {
			finalKeywords = mergeKeywordLists(extracted.Keywords.Entities, extracted.Keywords.Metrics)
			for _, hint := range extracted.Keywords.APIHints {
				cards = append(cards, keywordCard{Slug: hint})
			}
			h.realtime.Publish(RealtimeMessage{
				MeetingID: meetingID,
				EventType: RealtimeEventKeywordsUpdate,
				Payload:   extracted,
			})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"minutes":  doc,
		"keywords": finalKeywords,
		"cards":    cards,
	})
}

type extractKeywordsPayload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

func (h *httpHandler) handleExtractKeywords(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	var request extractKeywordsPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
		return
	}
	result, err := h.keywords.Extract(c.Request.Context(), keywords.ExtractInput{
		MeetingID: meetingID,
		Text:      request.Text,
		Source:    request.Source,
	})
	if err != nil {
		h.writeDomainError(c, "keywords.extract", err)
		return
	}
	h.realtime.Publish(RealtimeMessage{
		MeetingID: meetingID,
		EventType: RealtimeEventKeywordsUpdate,
		Payload:   result,
	})
	c.JSON(http.StatusCreated, gin.H{
		"ok":              true,
		"log_id":          result.LogID,
		"keywords":        result.Keywords,
		"api_suggestions": result.Suggestions,
	})
}

type keywordLogPayload struct {
	ID        int64           `json:"id"`
	MeetingID int64           `json:"meeting_id"`
	Source    string          `json:"source"`
	RawText   string          `json:"raw_text"`
	Keywords  json.RawMessage `json:"keywords"`
	CreatedAt time.Time       `json:"created_at"`
}

func (h *httpHandler) handleListKeywordLogs(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	list, err := h.keywords.ListLogs(c.Request.Context(), meetingID)
	if err != nil {
		h.writeDomainError(c, "keywords.list", err)
		return
	}
	payload := make([]keywordLogPayload, 0, len(list))
	for _, log := range list {
		payload = append(payload, keywordLogPayload{
			ID:        log.ID,
			MeetingID: log.MeetingID,
			Source:    log.Source,
			RawText:   log.RawText,
			Keywords:  json.RawMessage(log.Keywords),
			CreatedAt: log.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, payload)
}
