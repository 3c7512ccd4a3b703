package meetings

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// BlockType enumerates the supported content block kinds.
type BlockType string

const (
	BlockTypeHeading   BlockType = "heading"
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeList      BlockType = "list"
	BlockTypeImage     BlockType = "image"
	BlockTypeTable     BlockType = "table"
	BlockTypeQuote     BlockType = "quote"
	BlockTypeCode      BlockType = "code"
)

// ErrInvalidBlockType indicates an unknown block type string.
var ErrInvalidBlockType = errors.New("meetings: invalid block type")

// ParseBlockType validates raw input and returns a BlockType.
func ParseBlockType(rawInput string) (BlockType, error) {
	switch BlockType(strings.TrimSpace(rawInput)) {
	case BlockTypeHeading, BlockTypeParagraph, BlockTypeList, BlockTypeImage,
		BlockTypeTable, BlockTypeQuote, BlockTypeCode:
		return BlockType(strings.TrimSpace(rawInput)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBlockType, rawInput)
	}
}

// Meeting is the root aggregate owning blocks, segments and attachments.
type Meeting struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Title         string     `gorm:"column:title;size:200;not null"`
	Project       string     `gorm:"column:project;size:200"`
	MarketArea    string     `gorm:"column:market_area;size:200"`
	ScheduledTime *time.Time `gorm:"column:scheduled_time"`
	Description   string     `gorm:"column:description;type:text"`
	OwnerID       int64      `gorm:"column:owner_id;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	EndedAt       *time.Time `gorm:"column:ended_at"`
}

// TableName provides the explicit table binding for GORM.
func (Meeting) TableName() string {
	return "meetings"
}

// Block is one node of a meeting's content forest. RichPayload holds the
// block's structured payload as a JSON document; for table blocks its shape
// is enforced by the normalizer.
type Block struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MeetingID     int64     `gorm:"column:meeting_id;not null;index"`
	ParentBlockID *int64    `gorm:"column:parent_block_id;index"`
	OrderNo       int       `gorm:"column:order_no;not null"`
	Type          BlockType `gorm:"column:type;size:20;not null"`
	Level         *int      `gorm:"column:level"`
	Text          string    `gorm:"column:text;type:text"`
	RichPayload   string    `gorm:"column:rich_payload;type:text"`
	UpdatedBy     *int64    `gorm:"column:updated_by"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
	Version       int64     `gorm:"column:version;not null;default:1"`
}

// TableName provides the explicit table binding for GORM.
func (Block) TableName() string {
	return "meeting_blocks"
}

// BlockRevision is one append-only snapshot of a block's mutable fields,
// captured immediately before the mutation that produced it. RevisionNo is
// an independent per-block counter, decoupled from the block's version.
type BlockRevision struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	BlockID    int64     `gorm:"column:block_id;not null;index"`
	RevisionNo int64     `gorm:"column:revision_no;not null"`
	Snapshot   string    `gorm:"column:snapshot;type:text;not null"`
	EditedBy   *int64    `gorm:"column:edited_by"`
	EditedAt   time.Time `gorm:"column:edited_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (BlockRevision) TableName() string {
	return "meeting_block_revisions"
}

// Attachment references an uploaded file. The block reference is weak:
// deleting a block orphans the attachment instead of deleting it.
type Attachment struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	PublicID  string    `gorm:"column:public_id;size:190;not null;uniqueIndex"`
	MeetingID int64     `gorm:"column:meeting_id;not null;index"`
	BlockID   *int64    `gorm:"column:block_id"`
	FileURL   string    `gorm:"column:file_url;type:text;not null"`
	MimeType  string    `gorm:"column:mime_type;size:200"`
	Size      *int64    `gorm:"column:size"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Attachment) TableName() string {
	return "meeting_attachments"
}

// BlockSnapshot is the JSON body stored in a revision row.
type BlockSnapshot struct {
	Type        BlockType       `json:"type"`
	Level       *int            `json:"level"`
	Text        string          `json:"text"`
	RichPayload json.RawMessage `json:"rich_payload"`
	OrderNo     int             `json:"order_no"`
	ParentBlock *int64          `json:"parent_block"`
}

func snapshotBlock(block *Block) BlockSnapshot {
	snapshot := BlockSnapshot{
		Type:        block.Type,
		Level:       block.Level,
		Text:        block.Text,
		OrderNo:     block.OrderNo,
		ParentBlock: block.ParentBlockID,
	}
	if block.RichPayload != "" {
		snapshot.RichPayload = json.RawMessage(block.RichPayload)
	}
	return snapshot
}
