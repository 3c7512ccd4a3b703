package server

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roundtable-labs/backend/internal/meetings"
)

type blockPayload struct {
	ID            int64           `json:"id"`
	MeetingID     int64           `json:"meeting_id"`
	ParentBlockID *int64          `json:"parent_block_id"`
	OrderNo       int             `json:"order_no"`
	Type          string          `json:"type"`
	Level         *int            `json:"level"`
	Text          string          `json:"text"`
	RichPayload   json.RawMessage `json:"rich_payload"`
	UpdatedBy     *int64          `json:"updated_by"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int64           `json:"version"`
}

func toBlockPayload(block *meetings.Block) blockPayload {
	var rich json.RawMessage
	if block.RichPayload != "" {
		rich = json.RawMessage(block.RichPayload)
	}
	return blockPayload{
		ID:            block.ID,
		MeetingID:     block.MeetingID,
		ParentBlockID: block.ParentBlockID,
		OrderNo:       block.OrderNo,
		Type:          string(block.Type),
		Level:         block.Level,
		Text:          block.Text,
		RichPayload:   rich,
		UpdatedBy:     block.UpdatedBy,
		UpdatedAt:     block.UpdatedAt,
		Version:       block.Version,
	}
}

type createBlockPayload struct {
	ParentBlockID *int64          `json:"parent_block_id"`
	OrderNo       int             `json:"order_no"`
	Type          string          `json:"type"`
	Level         *int            `json:"level"`
	Text          string          `json:"text"`
	RichPayload   json.RawMessage `json:"rich_payload"`
}

func (h *httpHandler) handleCreateBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	var request createBlockPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
		return
	}
	blockType, err := meetings.ParseBlockType(request.Type)
	if err != nil {
		h.writeDomainError(c, "blocks.create", err)
		return
	}
	block, err := h.meetings.CreateBlock(c.Request.Context(), meetings.CreateBlockInput{
		MeetingID:     meetingID,
		ParentBlockID: request.ParentBlockID,
		OrderNo:       request.OrderNo,
		Type:          blockType,
		Level:         request.Level,
		Text:          request.Text,
		RichPayload:   rawPayload(request.RichPayload),
		EditorID:      h.editorID(c),
	})
	if err != nil {
		h.writeDomainError(c, "blocks.create", err)
		return
	}
	c.JSON(http.StatusCreated, toBlockPayload(block))
}

func (h *httpHandler) handleListBlocks(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	filter := meetings.BlockFilter{MeetingID: meetingID}
	switch strings.ToLower(c.Query("root_only")) {
	case "1", "true", "yes":
		filter.RootOnly = true
	}
	if raw := strings.TrimSpace(c.Query("parent")); raw != "" {
		if strings.EqualFold(raw, "null") {
			filter.RootOnly = true
		} else {
			parentID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_parent"})
				return
			}
			filter.ParentID = &parentID
		}
	}
	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		blockType, err := meetings.ParseBlockType(raw)
		if err != nil {
			h.writeDomainError(c, "blocks.list", err)
			return
		}
		filter.Type = blockType
	}
	list, err := h.meetings.ListBlocks(c.Request.Context(), filter)
	if err != nil {
		h.writeDomainError(c, "blocks.list", err)
		return
	}
	payload := make([]blockPayload, 0, len(list))
	for i := range list {
		payload = append(payload, toBlockPayload(&list[i]))
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	block, err := h.meetings.GetBlock(c.Request.Context(), meetingID, blockID)
	if err != nil {
		h.writeDomainError(c, "blocks.get", err)
		return
	}
	c.JSON(http.StatusOK, toBlockPayload(block))
}

func (h *httpHandler) handleUpdateBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	version, ok := bodyInt(body, "version")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "version_required"})
		return
	}

	input := meetings.UpdateBlockInput{
		MeetingID:       meetingID,
		BlockID:         blockID,
		ExpectedVersion: int64(version),
		EditorID:        h.editorID(c),
	}
	if value, present := body["text"]; present {
		text, isString := value.(string)
		if !isString {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "text_should_be_string"})
			return
		}
		input.Text = &text
	}
	if level, ok := bodyInt(body, "level"); ok {
		input.Level = &level
	}
	if value, present := body["rich_payload"]; present && value != nil {
		encoded, err := json.Marshal(value)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
			return
		}
		input.RichPayload = encoded
	}

	block, err := h.meetings.UpdateBlock(c.Request.Context(), input)
	if err != nil {
		h.writeDomainError(c, "blocks.update", err)
		return
	}
	c.JSON(http.StatusOK, toBlockPayload(block))
}

func (h *httpHandler) handleDeleteBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	if err := h.meetings.DeleteBlock(c.Request.Context(), meetingID, blockID); err != nil {
		h.writeDomainError(c, "blocks.delete", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleReorderBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	newOrderNo, ok := bodyInt(body, "new_order_no")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "new_order_no_required"})
		return
	}
	version, ok := bodyInt(body, "version")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "version_required"})
		return
	}

	input := meetings.ReorderBlockInput{
		MeetingID:       meetingID,
		BlockID:         blockID,
		ExpectedVersion: int64(version),
		NewOrderNo:      newOrderNo,
		EditorID:        h.editorID(c),
	}
	if parent, ok := bodyInt(body, "new_parent_block_id"); ok {
		parentID := int64(parent)
		input.NewParentID = &parentID
	}

	block, err := h.meetings.ReorderBlock(c.Request.Context(), input)
	if err != nil {
		h.writeDomainError(c, "blocks.reorder", err)
		return
	}
	c.JSON(http.StatusOK, toBlockPayload(block))
}

type revisionPayload struct {
	ID         int64           `json:"id"`
	BlockID    int64           `json:"block_id"`
	RevisionNo int64           `json:"revision_no"`
	Snapshot   json.RawMessage `json:"snapshot"`
	EditedBy   *int64          `json:"edited_by"`
	EditedAt   time.Time       `json:"edited_at"`
}

func (h *httpHandler) handleListRevisions(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	list, err := h.meetings.ListRevisions(c.Request.Context(), meetingID, blockID)
	if err != nil {
		h.writeDomainError(c, "revisions.list", err)
		return
	}
	payload := make([]revisionPayload, 0, len(list))
	for _, revision := range list {
		payload = append(payload, revisionPayload{
			ID:         revision.ID,
			BlockID:    revision.BlockID,
			RevisionNo: revision.RevisionNo,
			Snapshot:   json.RawMessage(revision.Snapshot),
			EditedBy:   revision.EditedBy,
			EditedAt:   revision.EditedAt,
		})
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleRestoreBlock(c *gin.Context) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}
	revisionNo, ok := bodyInt(body, "version")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "version_required"})
		return
	}
	block, err := h.meetings.RestoreBlock(c.Request.Context(), meetings.RestoreBlockInput{
		MeetingID:  meetingID,
		BlockID:    blockID,
		RevisionNo: int64(revisionNo),
		EditorID:   h.editorID(c),
	})
	if err != nil {
		h.writeDomainError(c, "blocks.restore", err)
		return
	}
	c.JSON(http.StatusOK, toBlockPayload(block))
}

// tableOperations lists the structural table endpoints registered under a
// block.
var tableOperations = []string{
	"update_cell", "insert_row", "delete_row",
	"insert_col", "delete_col", "rename_col", "set_col_width",
}

// handleTableOp dispatches the structural table operations. Each operation
// validates its own parameter set before touching the block so the missing
// parameter codes fire without burning a version.
func (h *httpHandler) handleTableOp(c *gin.Context, operation string) {
	meetingID, ok := h.meetingID(c)
	if !ok {
		return
	}
	blockID, ok := h.blockID(c)
	if !ok {
		return
	}
	body, ok := bindBody(c)
	if !ok {
		return
	}

	mutate, code := tableMutation(operation, body)
	if code != "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": code})
		return
	}
	version, ok := bodyInt(body, "version")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": tableVersionCode(operation)})
		return
	}

	block, err := h.meetings.ApplyTableOp(c.Request.Context(), meetings.TableOpInput{
		MeetingID:       meetingID,
		BlockID:         blockID,
		ExpectedVersion: int64(version),
		EditorID:        h.editorID(c),
	}, mutate)
	if err != nil {
		h.writeDomainError(c, "table."+operation, err)
		return
	}
	c.JSON(http.StatusOK, toBlockPayload(block))
}

// tableMutation builds the payload mutation for one operation. A non-empty
// code reports a parameter validation failure; a nil mutation with no code
// means the operation name is unknown.
func tableMutation(operation string, body map[string]any) (func(*meetings.TablePayload) error, string) {
	switch operation {
	case "update_cell":
		row, rowOK := bodyInt(body, "row")
		col, colOK := bodyInt(body, "col")
		if !rowOK || !colOK {
			return nil, "row_col_version_required"
		}
		value := body["value"]
		return func(p *meetings.TablePayload) error {
			return p.UpdateCell(row, col, value)
		}, ""
	case "insert_row":
		index, ok := bodyInt(body, "index")
		if !ok {
			return nil, "index_version_required"
		}
		var row []any
		if value, present := body["row"]; present && value != nil {
			list, isList := value.([]any)
			if !isList {
				return nil, "row_should_be_list"
			}
			row = list
		}
		return func(p *meetings.TablePayload) error {
			return p.InsertRow(index, row)
		}, ""
	case "delete_row":
		index, ok := bodyInt(body, "index")
		if !ok {
			return nil, "index_version_required"
		}
		return func(p *meetings.TablePayload) error {
			return p.DeleteRow(index)
		}, ""
	case "insert_col":
		index, ok := bodyInt(body, "index")
		if !ok {
			return nil, "index_version_required"
		}
		name := ""
		if raw, present := body["name"]; present && raw != nil {
			value, isString := raw.(string)
			if !isString {
				return nil, "name_should_be_string"
			}
			name = value
		}
		width, widthOK := bodyWidth(body)
		if !widthOK {
			return nil, "width_should_be_int_or_null"
		}
		defaultValue := body["default"]
		return func(p *meetings.TablePayload) error {
			return p.InsertCol(index, name, defaultValue, width)
		}, ""
	case "delete_col":
		index, ok := bodyInt(body, "index")
		if !ok {
			return nil, "index_version_required"
		}
		return func(p *meetings.TablePayload) error {
			return p.DeleteCol(index)
		}, ""
	case "rename_col":
		index, indexOK := bodyInt(body, "index")
		if !indexOK {
			return nil, "index_name_version_required"
		}
		if value, present := body["name"]; !present || value == nil {
			return nil, "index_name_version_required"
		} else if _, isString := value.(string); !isString {
			return nil, "name_should_be_string"
		}
		name := body["name"].(string)
		return func(p *meetings.TablePayload) error {
			return p.RenameCol(index, name)
		}, ""
	case "set_col_width":
		index, ok := bodyInt(body, "index")
		if !ok {
			return nil, "index_version_required"
		}
		width, widthOK := bodyWidth(body)
		if !widthOK {
			return nil, "width_should_be_int_or_null"
		}
		return func(p *meetings.TablePayload) error {
			return p.SetColWidth(index, width)
		}, ""
	}
	return nil, "unknown_table_op"
}

// tableVersionCode picks the missing-version detail matching the
// operation's combined parameter code.
func tableVersionCode(operation string) string {
	switch operation {
	case "update_cell":
		return "row_col_version_required"
	case "rename_col":
		return "index_name_version_required"
	default:
		return "index_version_required"
	}
}

func bindBody(c *gin.Context) (map[string]any, bool) {
	body := map[string]any{}
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_request"})
			return nil, false
		}
	}
	return body, true
}

// bodyInt reads an integral JSON number. Floats with a fraction, strings,
// and null all fail.
func bodyInt(body map[string]any, key string) (int, bool) {
	value, present := body[key]
	if !present || value == nil {
		return 0, false
	}
	number, isNumber := value.(float64)
	if !isNumber || number != math.Trunc(number) {
		return 0, false
	}
	return int(number), true
}

// bodyWidth reads the optional width parameter: absent or null yields nil,
// an integral number yields a pointer, anything else is a type error.
func bodyWidth(body map[string]any) (*int, bool) {
	value, present := body["width"]
	if !present || value == nil {
		return nil, true
	}
	number, isNumber := value.(float64)
	if !isNumber || number != math.Trunc(number) {
		return nil, false
	}
	width := int(number)
	return &width, true
}
