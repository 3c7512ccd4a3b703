package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roundtable-labs/backend/internal/analytics"
	"github.com/roundtable-labs/backend/internal/auth"
	"github.com/roundtable-labs/backend/internal/keywords"
	"github.com/roundtable-labs/backend/internal/meetings"
	"github.com/roundtable-labs/backend/internal/minutes"
	"github.com/roundtable-labs/backend/internal/stt"
	"github.com/roundtable-labs/backend/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testBackend struct {
	handler  http.Handler
	db       *gorm.DB
	meetings *meetings.Service
}

type stubSummarizer struct {
	document minutes.Minutes
	err      error
}

func (s *stubSummarizer) SummarizeIncremental(context.Context, minutes.Minutes, string) (minutes.Minutes, error) {
	return s.document, s.err
}

func (s *stubSummarizer) SummarizeFinal(context.Context, string, string, string) (minutes.Minutes, error) {
	return s.document, s.err
}

func newTestBackend(t *testing.T, tokens TokenValidator) *testBackend {
	t.Helper()
	return newTestBackendWithSummarizer(t, tokens, nil, false)
}

func newTestBackendWithSummarizer(t *testing.T, tokens TokenValidator, summarizer minutes.Summarizer, incremental bool) *testBackend {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&users.Account{},
		&meetings.Meeting{}, &meetings.Block{}, &meetings.BlockRevision{}, &meetings.Attachment{},
		&stt.TranscriptSegment{},
		&minutes.MinutesSnapshot{},
		&keywords.KeywordLog{},
		&analytics.TradingArea{}, &analytics.ChangeIndex{}, &analytics.ClosureStat{}, &analytics.IndustryMetric{},
	); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	meetingService, err := meetings.NewService(meetings.ServiceConfig{Database: db, IDProvider: meetings.NewUUIDProvider()})
	if err != nil {
		t.Fatalf("construct meetings service: %v", err)
	}
	sttService, err := stt.NewService(stt.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("construct stt service: %v", err)
	}
	minutesService, err := minutes.NewService(minutes.ServiceConfig{Database: db, Summarizer: summarizer})
	if err != nil {
		t.Fatalf("construct minutes service: %v", err)
	}
	analyticsService, err := analytics.NewService(analytics.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("construct analytics service: %v", err)
	}
	keywordService, err := keywords.NewService(keywords.ServiceConfig{
		Database: db,
		Linker:   keywords.NewLinker(analyticsService),
	})
	if err != nil {
		t.Fatalf("construct keywords service: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("construct users service: %v", err)
	}
	if err := userService.EnsureDefaultAccount(); err != nil {
		t.Fatalf("seed default account: %v", err)
	}

	handler, err := NewHTTPHandler(Dependencies{
		Meetings:           meetingService,
		STT:                sttService,
		Minutes:            minutesService,
		Keywords:           keywordService,
		Analytics:          analyticsService,
		Users:              userService,
		Tokens:             tokens,
		IncrementalMinutes: incremental,
	})
	if err != nil {
		t.Fatalf("construct handler: %v", err)
	}
	return &testBackend{handler: handler, db: db, meetings: meetingService}
}

func (b *testBackend) request(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	b.handler.ServeHTTP(recorder, request)

	decoded := map[string]any{}
	if recorder.Body.Len() > 0 {
		raw := recorder.Body.Bytes()
		if len(raw) > 0 && raw[0] == '{' {
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatalf("decode response body %q: %v", raw, err)
			}
		}
	}
	return recorder, decoded
}

func (b *testBackend) createMeeting(t *testing.T) int64 {
	t.Helper()
	recorder, body := b.request(t, http.MethodPost, "/api/meetings", map[string]any{"title": "주간 점검"}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create meeting status = %d body %s", recorder.Code, recorder.Body.String())
	}
	return int64(body["id"].(float64))
}

func (b *testBackend) createTableBlock(t *testing.T, meetingID int64) (int64, int64) {
	t.Helper()
	recorder, body := b.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/blocks", meetingID), map[string]any{
		"order_no": 0,
		"type":     "table",
		"rich_payload": map[string]any{
			"cols": []any{"항목", "수치"},
			"rows": []any{[]any{"매출", 100}},
		},
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create table block status = %d body %s", recorder.Code, recorder.Body.String())
	}
	return int64(body["id"].(float64)), int64(body["version"].(float64))
}

func TestCreateMeetingValidation(t *testing.T) {
	backend := newTestBackend(t, nil)

	recorder, body := backend.request(t, http.MethodPost, "/api/meetings", map[string]any{"title": "  "}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "title_required" {
		t.Fatalf("blank title: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, _ = backend.request(t, http.MethodGet, "/api/meetings/999", nil, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("missing meeting status = %d", recorder.Code)
	}
}

func TestBlockUpdateVersionConflict(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)

	recorder, created := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/blocks", meetingID), map[string]any{
		"order_no": 0,
		"type":     "paragraph",
		"text":     "첫 문단",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create block status = %d body %s", recorder.Code, recorder.Body.String())
	}
	blockID := int64(created["id"].(float64))

	path := fmt.Sprintf("/api/meetings/%d/blocks/%d", meetingID, blockID)
	recorder, _ = backend.request(t, http.MethodPatch, path, map[string]any{"text": "수정", "version": 1}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("first update status = %d body %s", recorder.Code, recorder.Body.String())
	}

	recorder, body := backend.request(t, http.MethodPatch, path, map[string]any{"text": "다시 수정", "version": 1}, nil)
	if recorder.Code != http.StatusConflict || body["detail"] != "version_conflict" {
		t.Fatalf("stale update: status = %d detail = %v", recorder.Code, body["detail"])
	}
	current, ok := body["current"].(map[string]any)
	if !ok || int64(current["id"].(float64)) != blockID || current["version"].(float64) != 2 {
		t.Fatalf("conflict payload current = %v", body["current"])
	}

	recorder, body = backend.request(t, http.MethodPatch, path, map[string]any{"text": "버전 없음"}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "version_required" {
		t.Fatalf("missing version: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestTableOpParameterCodes(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)
	blockID, version := backend.createTableBlock(t, meetingID)
	base := fmt.Sprintf("/api/meetings/%d/blocks/%d/", meetingID, blockID)

	cases := []struct {
		name      string
		operation string
		payload   map[string]any
		status    int
		detail    string
	}{
		{"update cell missing row and col", "update_cell", map[string]any{"version": version}, http.StatusBadRequest, "row_col_version_required"},
		{"update cell missing version", "update_cell", map[string]any{"row": 0, "col": 0}, http.StatusBadRequest, "row_col_version_required"},
		{"insert row missing index", "insert_row", map[string]any{"version": version}, http.StatusBadRequest, "index_version_required"},
		{"insert row non list", "insert_row", map[string]any{"index": 0, "row": "값", "version": version}, http.StatusBadRequest, "row_should_be_list"},
		{"insert col missing index", "insert_col", map[string]any{"name": "비고", "version": version}, http.StatusBadRequest, "index_version_required"},
		{"insert col non string name", "insert_col", map[string]any{"index": 0, "name": 5, "version": version}, http.StatusBadRequest, "name_should_be_string"},
		{"rename col non string", "rename_col", map[string]any{"index": 0, "name": 5, "version": version}, http.StatusBadRequest, "name_should_be_string"},
		{"set width non int", "set_col_width", map[string]any{"index": 0, "width": "넓게", "version": version}, http.StatusBadRequest, "width_should_be_int_or_null"},
		{"delete row out of range", "delete_row", map[string]any{"index": 9, "version": version}, http.StatusBadRequest, "index_out_of_range"},
	}
	for _, testCase := range cases {
		recorder, body := backend.request(t, http.MethodPost, base+testCase.operation, testCase.payload, nil)
		if recorder.Code != testCase.status || body["detail"] != testCase.detail {
			t.Fatalf("%s: status = %d detail = %v", testCase.name, recorder.Code, body["detail"])
		}
	}
}

func TestTableOpRoundTrip(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)
	blockID, version := backend.createTableBlock(t, meetingID)
	base := fmt.Sprintf("/api/meetings/%d/blocks/%d/", meetingID, blockID)

	recorder, body := backend.request(t, http.MethodPost, base+"update_cell", map[string]any{
		"row": 0, "col": 1, "value": 250, "version": version,
	}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("update cell status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if body["version"].(float64) != float64(version+1) {
		t.Fatalf("version after update = %v", body["version"])
	}
	updatedRow := body["rich_payload"].(map[string]any)["rows"].([]any)[0].([]any)
	if updatedRow[1].(float64) != 250 {
		t.Fatalf("cell after update = %v", updatedRow[1])
	}

	recorder, body = backend.request(t, http.MethodPost, base+"insert_col", map[string]any{
		"index": 2, "name": "비고", "default": "-", "version": version + 1,
	}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("insert col status = %d body %s", recorder.Code, recorder.Body.String())
	}

	rich := body["rich_payload"].(map[string]any)
	cols := rich["cols"].([]any)
	if len(cols) != 3 || cols[2] != "비고" {
		t.Fatalf("cols after insert = %v", cols)
	}
	row := rich["rows"].([]any)[0].([]any)
	if len(row) != 3 || row[2] != "-" {
		t.Fatalf("row after insert = %v", row)
	}

	recorder, body = backend.request(t, http.MethodPost, base+"update_cell", map[string]any{
		"row": 0, "col": 0, "value": "비용", "version": version,
	}, nil)
	if recorder.Code != http.StatusConflict || body["detail"] != "version_conflict" {
		t.Fatalf("stale table op: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestTableOpOnParagraphBlock(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)

	recorder, created := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/blocks", meetingID), map[string]any{
		"order_no": 0,
		"type":     "paragraph",
		"text":     "표 아님",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create block status = %d", recorder.Code)
	}
	blockID := int64(created["id"].(float64))

	path := fmt.Sprintf("/api/meetings/%d/blocks/%d/update_cell", meetingID, blockID)
	recorder, body := backend.request(t, http.MethodPost, path, map[string]any{"row": 0, "col": 0, "value": 1, "version": 1}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "not_a_table" {
		t.Fatalf("paragraph table op: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestInsertColWithoutName(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)
	blockID, version := backend.createTableBlock(t, meetingID)

	path := fmt.Sprintf("/api/meetings/%d/blocks/%d/insert_col", meetingID, blockID)
	recorder, body := backend.request(t, http.MethodPost, path, map[string]any{
		"index": 1, "version": version,
	}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("nameless insert col status = %d body %s", recorder.Code, recorder.Body.String())
	}
	cols := body["rich_payload"].(map[string]any)["cols"].([]any)
	if len(cols) != 3 || cols[1] != "" {
		t.Fatalf("cols after nameless insert = %v", cols)
	}
}

func TestReorderBlockReparents(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)
	base := fmt.Sprintf("/api/meetings/%d/blocks", meetingID)

	recorder, parent := backend.request(t, http.MethodPost, base, map[string]any{
		"order_no": 0, "type": "paragraph", "text": "상위 항목",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create parent status = %d", recorder.Code)
	}
	parentID := int64(parent["id"].(float64))

	recorder, child := backend.request(t, http.MethodPost, base, map[string]any{
		"order_no": 1, "type": "paragraph", "text": "하위 항목",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create child status = %d", recorder.Code)
	}
	childID := int64(child["id"].(float64))

	recorder, moved := backend.request(t, http.MethodPost, fmt.Sprintf("%s/%d/reorder", base, childID), map[string]any{
		"new_order_no": 0, "new_parent_block_id": parentID, "version": 1,
	}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("reorder status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if moved["parent_block_id"] == nil || int64(moved["parent_block_id"].(float64)) != parentID {
		t.Fatalf("parent after reorder = %v", moved["parent_block_id"])
	}

	recorder, _ = backend.request(t, http.MethodGet, base+"?parent=null", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("parent=null status = %d", recorder.Code)
	}
	var roots []map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &roots); err != nil {
		t.Fatalf("decode root listing: %v", err)
	}
	if len(roots) != 1 || int64(roots[0]["id"].(float64)) != parentID {
		t.Fatalf("roots = %v", roots)
	}

	recorder, body := backend.request(t, http.MethodGet, base+"?parent=abc", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "invalid_parent" {
		t.Fatalf("malformed parent: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestRestoreBlockByRevisionNumber(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)
	base := fmt.Sprintf("/api/meetings/%d/blocks", meetingID)

	recorder, created := backend.request(t, http.MethodPost, base, map[string]any{
		"order_no": 0, "type": "paragraph", "text": "원래 내용",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("create block status = %d", recorder.Code)
	}
	blockID := int64(created["id"].(float64))

	recorder, _ = backend.request(t, http.MethodPatch, fmt.Sprintf("%s/%d", base, blockID), map[string]any{
		"text": "수정 내용", "version": 1,
	}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("update block status = %d body %s", recorder.Code, recorder.Body.String())
	}

	restorePath := fmt.Sprintf("%s/%d/restore", base, blockID)
	recorder, body := backend.request(t, http.MethodPost, restorePath, map[string]any{}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "version_required" {
		t.Fatalf("missing version: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodPost, restorePath, map[string]any{"version": 1}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("restore status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if body["text"] != "원래 내용" {
		t.Fatalf("text after restore = %v", body["text"])
	}
	if body["version"].(float64) != 3 {
		t.Fatalf("version after restore = %v", body["version"])
	}

	recorder, body = backend.request(t, http.MethodPost, restorePath, map[string]any{"version": 99}, nil)
	if recorder.Code != http.StatusNotFound || body["detail"] != "revision_not_found" {
		t.Fatalf("unknown revision: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestSTTChunkComposite(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)

	path := fmt.Sprintf("/api/meetings/%d/stt-chunk", meetingID)
	recorder, body := backend.request(t, http.MethodPost, path, map[string]any{
		"text":     "강남 유동인구 먼저 봅시다",
		"start_ms": 0,
		"end_ms":   4200,
		"speaker":  "진행자",
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("stt chunk status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if body["ok"] != true || body["segment_id"].(float64) <= 0 {
		t.Fatalf("composite header = %v", body)
	}
	if body["summarized"] != false || body["reason"] != "incremental_disabled" {
		t.Fatalf("summarizer fields = %v / %v", body["summarized"], body["reason"])
	}
	extracted := body["keywords"].([]any)
	found := map[string]bool{}
	for _, keyword := range extracted {
		found[keyword.(string)] = true
	}
	if !found["강남"] || !found["유동인구"] {
		t.Fatalf("keywords = %v", extracted)
	}

	recorder, body = backend.request(t, http.MethodPost, path, map[string]any{"text": "   "}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "text_required" {
		t.Fatalf("blank chunk: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, _ = backend.request(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d/segments", meetingID), nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("segments status = %d", recorder.Code)
	}
}

func TestMinutesEndpointsWithoutSummarizer(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)

	recorder, body := backend.request(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d/minutes/live", meetingID), nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("live minutes status = %d", recorder.Code)
	}
	if empty, ok := body["minutes"].(map[string]any); !ok || len(empty) != 0 {
		t.Fatalf("live minutes payload = %v", body["minutes"])
	}

	recorder, body = backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/finalize", meetingID), map[string]any{}, nil)
	if recorder.Code != http.StatusServiceUnavailable || body["detail"] != "summarizer_unavailable" {
		t.Fatalf("finalize without summarizer: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestFinalizeWithSummarizer(t *testing.T) {
	summarizer := &stubSummarizer{document: minutes.Minutes{OverallSummary: "신촌 상권 검토 회의 정리"}}
	backend := newTestBackendWithSummarizer(t, nil, summarizer, false)
	meetingID := backend.createMeeting(t)

	recorder, _ := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/stt-chunk", meetingID), map[string]any{
		"text": "신촌 카페 상권부터 검토합니다", "start_ms": 0, "end_ms": 3000,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("seed chunk status = %d", recorder.Code)
	}

	recorder, body := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/finalize", meetingID), map[string]any{}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("finalize status = %d body %s", recorder.Code, recorder.Body.String())
	}
	doc := body["minutes"].(map[string]any)
	if doc["overall_summary"] != "신촌 상권 검토 회의 정리" {
		t.Fatalf("final minutes = %v", doc)
	}
	found := map[string]bool{}
	for _, keyword := range body["keywords"].([]any) {
		found[keyword.(string)] = true
	}
	if !found["신촌"] || !found["카페"] {
		t.Fatalf("final keywords = %v", body["keywords"])
	}

	recorder, body = backend.request(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d/minutes/final", meetingID), nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("final minutes status = %d", recorder.Code)
	}
	stored := body["minutes"].(map[string]any)
	if stored["overall_summary"] != "신촌 상권 검토 회의 정리" {
		t.Fatalf("stored final minutes = %v", stored)
	}
}

func TestFinalizeSummarizerFailure(t *testing.T) {
	summarizer := &stubSummarizer{err: minutes.ErrEmptyCompletion}
	backend := newTestBackendWithSummarizer(t, nil, summarizer, false)
	meetingID := backend.createMeeting(t)

	recorder, body := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/finalize", meetingID), map[string]any{}, nil)
	if recorder.Code != http.StatusBadGateway {
		t.Fatalf("failed finalize status = %d", recorder.Code)
	}
	if detail, _ := body["detail"].(string); !strings.HasPrefix(detail, "summarize_error:") {
		t.Fatalf("failed finalize detail = %v", body["detail"])
	}
}

func TestSTTChunkIncrementalMinutes(t *testing.T) {
	summarizer := &stubSummarizer{document: minutes.Minutes{OverallSummary: "진행 중 요약"}}
	backend := newTestBackendWithSummarizer(t, nil, summarizer, true)
	meetingID := backend.createMeeting(t)

	recorder, body := backend.request(t, http.MethodPost, fmt.Sprintf("/api/meetings/%d/stt-chunk", meetingID), map[string]any{
		"text": "오늘 안건 공유합니다", "start_ms": 0, "end_ms": 2000,
	}, nil)
	if recorder.Code != http.StatusCreated {
		t.Fatalf("chunk status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if body["summarized"] != true {
		t.Fatalf("summarized = %v reason = %v", body["summarized"], body["reason"])
	}
	if _, hasReason := body["reason"]; hasReason {
		t.Fatalf("unexpected reason %v", body["reason"])
	}
	doc := body["minutes"].(map[string]any)
	if doc["overall_summary"] != "진행 중 요약" {
		t.Fatalf("incremental minutes = %v", doc)
	}

	recorder, body = backend.request(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d/minutes/live", meetingID), nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("live minutes status = %d", recorder.Code)
	}
	live := body["minutes"].(map[string]any)
	if live["overall_summary"] != "진행 중 요약" {
		t.Fatalf("live snapshot = %v", live)
	}
}

func TestKeywordExtractEndpoint(t *testing.T) {
	backend := newTestBackend(t, nil)
	meetingID := backend.createMeeting(t)

	path := fmt.Sprintf("/api/meetings/%d/keywords/extract", meetingID)
	recorder, body := backend.request(t, http.MethodPost, path, map[string]any{"text": " "}, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "text_required" {
		t.Fatalf("blank extract: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodPost, path, map[string]any{"text": "신촌 평균 임대료 알아봐요", "source": "final"}, nil)
	if recorder.Code != http.StatusCreated || body["ok"] != true {
		t.Fatalf("extract status = %d body %s", recorder.Code, recorder.Body.String())
	}
	if body["log_id"].(float64) <= 0 {
		t.Fatalf("log id = %v", body["log_id"])
	}

	recorder, _ = backend.request(t, http.MethodGet, fmt.Sprintf("/api/meetings/%d/keywords", meetingID), nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("keyword log status = %d", recorder.Code)
	}
}

func TestAnalyticsParameterValidation(t *testing.T) {
	backend := newTestBackend(t, nil)

	recorder, body := backend.request(t, http.MethodGet, "/api/analytics/change-index", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "region_filter_required" {
		t.Fatalf("change index without filter: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodGet, "/api/analytics/closures", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "region_filter_required" {
		t.Fatalf("closures without filter: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodGet, "/api/analytics/store-counts?radius=-5", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "radius_must_be_positive" {
		t.Fatalf("negative radius: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodGet, "/api/analytics/store-counts?radius=wide", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "invalid_radius" {
		t.Fatalf("malformed radius: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodGet, "/api/analytics/areas", nil, nil)
	if recorder.Code != http.StatusBadRequest || body["detail"] != "q_required" {
		t.Fatalf("areas without q: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodGet, "/api/analytics/region/center?trdar=0000000", nil, nil)
	if recorder.Code != http.StatusNotFound || body["detail"] != "trading_area_not_found" {
		t.Fatalf("unknown area center: status = %d detail = %v", recorder.Code, body["detail"])
	}
}

func TestBearerAuthFlow(t *testing.T) {
	issuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("server-test-secret")})
	backend := newTestBackend(t, issuer)

	recorder, body := backend.request(t, http.MethodGet, "/api/meetings", nil, nil)
	if recorder.Code != http.StatusUnauthorized || body["detail"] != "unauthorized" {
		t.Fatalf("missing token: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, body = backend.request(t, http.MethodPost, "/auth/token", map[string]any{"username": "기획자"}, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("issue token status = %d body %s", recorder.Code, recorder.Body.String())
	}
	token := body["access_token"].(string)
	if token == "" || body["token_type"] != "Bearer" {
		t.Fatalf("token payload = %v", body)
	}

	headers := map[string]string{"Authorization": "Bearer " + token}
	recorder, _ = backend.request(t, http.MethodGet, "/api/meetings", nil, headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("authorized list status = %d body %s", recorder.Code, recorder.Body.String())
	}

	headers["Authorization"] = "Bearer not-a-token"
	recorder, _ = backend.request(t, http.MethodGet, "/api/meetings", nil, headers)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d", recorder.Code)
	}
}

func TestOpenModeTokenEndpointDisabled(t *testing.T) {
	backend := newTestBackend(t, nil)

	recorder, body := backend.request(t, http.MethodPost, "/auth/token", map[string]any{"username": "아무나"}, nil)
	if recorder.Code != http.StatusNotFound || body["detail"] != "auth_disabled" {
		t.Fatalf("open mode token: status = %d detail = %v", recorder.Code, body["detail"])
	}

	recorder, _ = backend.request(t, http.MethodGet, "/api/meetings", nil, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("open mode list status = %d", recorder.Code)
	}
}
