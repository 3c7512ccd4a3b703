package meetings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew       = "meetings.service.new"
	opCreateMeeting    = "meetings.create_meeting"
	opListMeetings     = "meetings.list_meetings"
	opGetMeeting       = "meetings.get_meeting"
	opCreateBlock      = "meetings.create_block"
	opUpdateBlock      = "meetings.update_block"
	opReorderBlock     = "meetings.reorder_block"
	opDeleteBlock      = "meetings.delete_block"
	opListBlocks       = "meetings.list_blocks"
	opListRevisions    = "meetings.list_revisions"
	opRestoreBlock     = "meetings.restore_block"
	opTableOp          = "meetings.table_op"
	opCreateAttachment = "meetings.create_attachment"
	opListAttachments  = "meetings.list_attachments"
)

// revisionPageSize bounds the revision listing to the most recent entries.
const revisionPageSize = 100

// IDProvider issues opaque identifiers for attachment rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig wires the block store's dependencies.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service implements the meeting/block store: CRUD over the block forest,
// the append-only revision log, and the table structural operations. Every
// mutating operation runs in one transaction and is guarded by an optimistic
// compare-and-swap on the block's version column.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
}

// NewService constructs the meetings service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, clock: clock, idProvider: cfg.IDProvider, logger: logger}, nil
}

// CreateMeetingInput carries the fields accepted on meeting creation.
type CreateMeetingInput struct {
	Title         string
	Project       string
	MarketArea    string
	ScheduledTime *time.Time
	Description   string
	OwnerID       int64
}

// CreateMeeting persists a new meeting owned by the caller.
func (s *Service) CreateMeeting(ctx context.Context, input CreateMeetingInput) (*Meeting, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrMissingMeetingTitle
	}
	meeting := Meeting{
		Title:         strings.TrimSpace(input.Title),
		Project:       strings.TrimSpace(input.Project),
		MarketArea:    strings.TrimSpace(input.MarketArea),
		ScheduledTime: input.ScheduledTime,
		Description:   input.Description,
		OwnerID:       input.OwnerID,
	}
	if err := s.db.WithContext(ctx).Create(&meeting).Error; err != nil {
		s.logError(opCreateMeeting, "insert_failed", err)
		return nil, newServiceError(opCreateMeeting, "insert_failed", err)
	}
	return &meeting, nil
}

// ListMeetings returns all meetings, most recently updated first.
func (s *Service) ListMeetings(ctx context.Context) ([]Meeting, error) {
	var result []Meeting
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&result).Error; err != nil {
		s.logError(opListMeetings, "query_failed", err)
		return nil, newServiceError(opListMeetings, "query_failed", err)
	}
	return result, nil
}

// GetMeeting loads a single meeting by id.
func (s *Service) GetMeeting(ctx context.Context, meetingID int64) (*Meeting, error) {
	var meeting Meeting
	err := s.db.WithContext(ctx).Where("id = ?", meetingID).Take(&meeting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		s.logError(opGetMeeting, "query_failed", err, zap.Int64("meeting_id", meetingID))
		return nil, newServiceError(opGetMeeting, "query_failed", err)
	}
	return &meeting, nil
}

// TouchMeeting bumps a meeting's updated timestamp; used by services that
// append meeting-owned rows outside this package.
func (s *Service) TouchMeeting(ctx context.Context, meetingID int64) error {
	return s.db.WithContext(ctx).Model(&Meeting{}).
		Where("id = ?", meetingID).
		Update("updated_at", s.clock().UTC()).Error
}

// EndMeeting stamps the meeting's ended_at.
func (s *Service) EndMeeting(ctx context.Context, meetingID int64) error {
	endedAt := s.clock().UTC()
	return s.db.WithContext(ctx).Model(&Meeting{}).
		Where("id = ?", meetingID).
		Update("ended_at", endedAt).Error
}

// CreateBlockInput carries the fields accepted on block creation.
type CreateBlockInput struct {
	MeetingID     int64
	ParentBlockID *int64
	OrderNo       int
	Type          BlockType
	Level         *int
	Text          string
	RichPayload   json.RawMessage
	EditorID      int64
}

// CreateBlock validates and persists a new block at version 1. Table blocks
// are normalized immediately after creation; when normalization fails the
// freshly created row is deleted again (a compensating delete, not a
// rollback) and the shape error is returned.
func (s *Service) CreateBlock(ctx context.Context, input CreateBlockInput) (*Block, error) {
	if _, err := s.GetMeeting(ctx, input.MeetingID); err != nil {
		return nil, err
	}
	if input.ParentBlockID != nil {
		var parent Block
		err := s.db.WithContext(ctx).
			Where("id = ? AND meeting_id = ?", *input.ParentBlockID, input.MeetingID).
			Take(&parent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrParentNotInMeeting
		}
		if err != nil {
			s.logError(opCreateBlock, "parent_lookup_failed", err)
			return nil, newServiceError(opCreateBlock, "parent_lookup_failed", err)
		}
	}
	if input.Type == BlockTypeTable {
		if err := preValidateTablePayload(input.RichPayload); err != nil {
			return nil, err
		}
	}

	editorID := input.EditorID
	block := Block{
		MeetingID:     input.MeetingID,
		ParentBlockID: input.ParentBlockID,
		OrderNo:       input.OrderNo,
		Type:          input.Type,
		Level:         input.Level,
		Text:          input.Text,
		RichPayload:   string(input.RichPayload),
		UpdatedBy:     &editorID,
		Version:       1,
	}
	if err := s.db.WithContext(ctx).Create(&block).Error; err != nil {
		s.logError(opCreateBlock, "insert_failed", err, zap.Int64("meeting_id", input.MeetingID))
		return nil, newServiceError(opCreateBlock, "insert_failed", err)
	}

	if block.Type == BlockTypeTable {
		if err := NormalizeBlockPayload(&block); err != nil {
			if deleteErr := s.db.WithContext(ctx).Delete(&Block{}, block.ID).Error; deleteErr != nil {
				s.logError(opCreateBlock, "compensating_delete_failed", deleteErr,
					zap.Int64("block_id", block.ID))
			}
			return nil, err
		}
		if err := s.db.WithContext(ctx).Model(&Block{}).
			Where("id = ?", block.ID).
			Update("rich_payload", block.RichPayload).Error; err != nil {
			s.logError(opCreateBlock, "normalize_save_failed", err, zap.Int64("block_id", block.ID))
			return nil, newServiceError(opCreateBlock, "normalize_save_failed", err)
		}
	}
	return &block, nil
}

// preValidateTablePayload enforces the pre-persistence contract for table
// blocks: the payload must be a JSON object whose cols and rows are lists.
// Deeper row validation happens during normalization.
func preValidateTablePayload(raw json.RawMessage) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return ErrNotATable
	}
	for _, key := range []string{"cols", "rows"} {
		var list []json.RawMessage
		rawList, ok := doc[key]
		if !ok || json.Unmarshal(rawList, &list) != nil || list == nil && string(rawList) != "[]" {
			return ErrInvalidTableShape
		}
	}
	return nil
}

// UpdateBlockInput carries a partial update plus the caller's expected
// version. Nil field pointers mean "leave unchanged".
type UpdateBlockInput struct {
	MeetingID       int64
	BlockID         int64
	ExpectedVersion int64
	Text            *string
	Level           *int
	RichPayload     json.RawMessage
	EditorID        int64
}

// UpdateBlock applies a partial update under optimistic locking: the
// pre-update state is snapshotted, the supplied fields are applied, table
// payloads are re-normalized, and the version advances by one, all in a
// single transaction.
func (s *Service) UpdateBlock(ctx context.Context, input UpdateBlockInput) (*Block, error) {
	var updated *Block
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := s.lockBlock(tx, input.MeetingID, input.BlockID)
		if err != nil {
			return err
		}
		if block.Version != input.ExpectedVersion {
			return &VersionConflictError{BlockID: block.ID, Current: block.Version}
		}
		if err := s.recordRevision(tx, block, input.EditorID); err != nil {
			return err
		}

		if input.Text != nil {
			block.Text = *input.Text
		}
		if input.Level != nil {
			block.Level = input.Level
		}
		if input.RichPayload != nil {
			block.RichPayload = string(input.RichPayload)
		}
		if block.Type == BlockTypeTable {
			if err := NormalizeBlockPayload(block); err != nil {
				return err
			}
		}

		editorID := input.EditorID
		updates := map[string]interface{}{
			"text":         block.Text,
			"level":        block.Level,
			"rich_payload": block.RichPayload,
			"version":      input.ExpectedVersion + 1,
			"updated_by":   editorID,
			"updated_at":   s.clock().UTC(),
		}
		if err := s.applyVersioned(tx, block.ID, input.ExpectedVersion, updates); err != nil {
			return err
		}
		block.Version = input.ExpectedVersion + 1
		block.UpdatedBy = &editorID
		updated = block
		return nil
	})
	if txErr != nil {
		return nil, s.classify(opUpdateBlock, txErr)
	}
	return updated, nil
}

// ReorderBlockInput moves a block to a new order slot and optionally a new
// parent within the same meeting.
type ReorderBlockInput struct {
	MeetingID       int64
	BlockID         int64
	ExpectedVersion int64
	NewOrderNo      int
	NewParentID     *int64
	EditorID        int64
}

// ReorderBlock changes a block's sibling order and, when requested, its
// parent. The new parent must belong to the same meeting.
func (s *Service) ReorderBlock(ctx context.Context, input ReorderBlockInput) (*Block, error) {
	var updated *Block
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := s.lockBlock(tx, input.MeetingID, input.BlockID)
		if err != nil {
			return err
		}
		if block.Version != input.ExpectedVersion {
			return &VersionConflictError{BlockID: block.ID, Current: block.Version}
		}

		parentID := block.ParentBlockID
		if input.NewParentID != nil {
			var parent Block
			err := tx.Where("id = ? AND meeting_id = ?", *input.NewParentID, input.MeetingID).
				Take(&parent).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNewParentNotInMeet
			}
			if err != nil {
				return err
			}
			parentID = input.NewParentID
		}

		if err := s.recordRevision(tx, block, input.EditorID); err != nil {
			return err
		}

		editorID := input.EditorID
		updates := map[string]interface{}{
			"order_no":        input.NewOrderNo,
			"parent_block_id": parentID,
			"version":         input.ExpectedVersion + 1,
			"updated_by":      editorID,
			"updated_at":      s.clock().UTC(),
		}
		if err := s.applyVersioned(tx, block.ID, input.ExpectedVersion, updates); err != nil {
			return err
		}
		block.OrderNo = input.NewOrderNo
		block.ParentBlockID = parentID
		block.Version = input.ExpectedVersion + 1
		block.UpdatedBy = &editorID
		updated = block
		return nil
	})
	if txErr != nil {
		return nil, s.classify(opReorderBlock, txErr)
	}
	return updated, nil
}

// DeleteBlock removes a block and its entire subtree: child blocks and all
// their revisions cascade, attachment references are nulled.
func (s *Service) DeleteBlock(ctx context.Context, meetingID, blockID int64) error {
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockBlock(tx, meetingID, blockID); err != nil {
			return err
		}

		ids := []int64{blockID}
		frontier := []int64{blockID}
		for len(frontier) > 0 {
			var children []int64
			if err := tx.Model(&Block{}).
				Where("parent_block_id IN ?", frontier).
				Pluck("id", &children).Error; err != nil {
				return err
			}
			frontier = children
			ids = append(ids, children...)
		}

		if err := tx.Where("block_id IN ?", ids).Delete(&BlockRevision{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Attachment{}).
			Where("block_id IN ?", ids).
			Update("block_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&Block{}).Error
	})
	if txErr != nil {
		return s.classify(opDeleteBlock, txErr)
	}
	return nil
}

// BlockFilter narrows a block listing.
type BlockFilter struct {
	MeetingID int64
	RootOnly  bool
	ParentID  *int64
	Type      BlockType
}

// ListBlocks returns the meeting's blocks in sibling order.
func (s *Service) ListBlocks(ctx context.Context, filter BlockFilter) ([]Block, error) {
	query := s.db.WithContext(ctx).Where("meeting_id = ?", filter.MeetingID)
	if filter.RootOnly {
		query = query.Where("parent_block_id IS NULL")
	} else if filter.ParentID != nil {
		query = query.Where("parent_block_id = ?", *filter.ParentID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	var blocks []Block
	if err := query.Order("order_no ASC, id ASC").Find(&blocks).Error; err != nil {
		s.logError(opListBlocks, "query_failed", err, zap.Int64("meeting_id", filter.MeetingID))
		return nil, newServiceError(opListBlocks, "query_failed", err)
	}
	return blocks, nil
}

// GetBlock loads one block scoped to its meeting.
func (s *Service) GetBlock(ctx context.Context, meetingID, blockID int64) (*Block, error) {
	var block Block
	err := s.db.WithContext(ctx).
		Where("id = ? AND meeting_id = ?", blockID, meetingID).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, newServiceError(opListBlocks, "query_failed", err)
	}
	return &block, nil
}

// ListRevisions returns the most recent revisions of a block, newest first,
// bounded to the latest 100.
func (s *Service) ListRevisions(ctx context.Context, meetingID, blockID int64) ([]BlockRevision, error) {
	if _, err := s.GetBlock(ctx, meetingID, blockID); err != nil {
		return nil, err
	}
	var revisions []BlockRevision
	if err := s.db.WithContext(ctx).
		Where("block_id = ?", blockID).
		Order("revision_no DESC").
		Limit(revisionPageSize).
		Find(&revisions).Error; err != nil {
		s.logError(opListRevisions, "query_failed", err, zap.Int64("block_id", blockID))
		return nil, newServiceError(opListRevisions, "query_failed", err)
	}
	return revisions, nil
}

// RestoreBlockInput names the revision to restore a block to.
type RestoreBlockInput struct {
	MeetingID  int64
	BlockID    int64
	RevisionNo int64
	EditorID   int64
}

// RestoreBlock rewinds a block to a prior snapshot. The pre-restore state is
// itself snapshotted first, so a restore can be undone by another restore.
// Table payload normalization during restore is best effort: the snapshot
// was valid when recorded, so a failure here is swallowed.
func (s *Service) RestoreBlock(ctx context.Context, input RestoreBlockInput) (*Block, error) {
	var updated *Block
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := s.lockBlock(tx, input.MeetingID, input.BlockID)
		if err != nil {
			return err
		}

		var revision BlockRevision
		err = tx.Where("block_id = ? AND revision_no = ?", block.ID, input.RevisionNo).
			Take(&revision).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRevisionNotFound
		}
		if err != nil {
			return err
		}

		if err := s.recordRevision(tx, block, input.EditorID); err != nil {
			return err
		}

		var snapshot BlockSnapshot
		if err := json.Unmarshal([]byte(revision.Snapshot), &snapshot); err != nil {
			return err
		}

		if snapshot.Type != "" {
			block.Type = snapshot.Type
		}
		block.Level = snapshot.Level
		block.Text = snapshot.Text
		block.RichPayload = string(snapshot.RichPayload)
		block.OrderNo = snapshot.OrderNo
		block.ParentBlockID = snapshot.ParentBlock
		if block.Type == BlockTypeTable {
			if err := NormalizeBlockPayload(block); err != nil {
				s.logger.Warn("table normalization skipped during restore",
					zap.Int64("block_id", block.ID), zap.Error(err))
			}
		}

		editorID := input.EditorID
		currentVersion := block.Version
		updates := map[string]interface{}{
			"type":            block.Type,
			"level":           block.Level,
			"text":            block.Text,
			"rich_payload":    block.RichPayload,
			"order_no":        block.OrderNo,
			"parent_block_id": block.ParentBlockID,
			"version":         currentVersion + 1,
			"updated_by":      editorID,
			"updated_at":      s.clock().UTC(),
		}
		if err := s.applyVersioned(tx, block.ID, currentVersion, updates); err != nil {
			return err
		}
		block.Version = currentVersion + 1
		block.UpdatedBy = &editorID
		updated = block
		return nil
	})
	if txErr != nil {
		return nil, s.classify(opRestoreBlock, txErr)
	}
	return updated, nil
}

// TableOpInput addresses one table block under optimistic locking.
type TableOpInput struct {
	MeetingID       int64
	BlockID         int64
	ExpectedVersion int64
	EditorID        int64
}

// ApplyTableOp runs one structural table operation as a single transaction:
// normalize first, snapshot the normalized pre-mutation state, apply the
// mutation, bump the version. Any payload parse failure surfaces as
// not_a_table, matching the table endpoints' contract.
func (s *Service) ApplyTableOp(ctx context.Context, input TableOpInput, op func(*TablePayload) error) (*Block, error) {
	var updated *Block
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block, err := s.lockBlock(tx, input.MeetingID, input.BlockID)
		if err != nil {
			return err
		}
		if block.Version != input.ExpectedVersion {
			return &VersionConflictError{BlockID: block.ID, Current: block.Version}
		}

		payload, err := ParseTablePayload(block.Type, block.RichPayload)
		if err != nil {
			return ErrNotATable
		}
		payload.Normalize()
		normalized, err := payload.Encode()
		if err != nil {
			return err
		}
		block.RichPayload = normalized

		if err := s.recordRevision(tx, block, input.EditorID); err != nil {
			return err
		}
		if err := op(payload); err != nil {
			return err
		}
		encoded, err := payload.Encode()
		if err != nil {
			return err
		}

		editorID := input.EditorID
		updates := map[string]interface{}{
			"rich_payload": encoded,
			"version":      input.ExpectedVersion + 1,
			"updated_by":   editorID,
			"updated_at":   s.clock().UTC(),
		}
		if err := s.applyVersioned(tx, block.ID, input.ExpectedVersion, updates); err != nil {
			return err
		}
		block.RichPayload = encoded
		block.Version = input.ExpectedVersion + 1
		block.UpdatedBy = &editorID
		updated = block
		return nil
	})
	if txErr != nil {
		return nil, s.classify(opTableOp, txErr)
	}
	return updated, nil
}

// CreateAttachmentInput registers an uploaded file against a meeting.
type CreateAttachmentInput struct {
	MeetingID int64
	BlockID   *int64
	FileURL   string
	MimeType  string
	Size      *int64
}

// CreateAttachment persists an attachment row referencing an already
// uploaded file.
func (s *Service) CreateAttachment(ctx context.Context, input CreateAttachmentInput) (*Attachment, error) {
	if strings.TrimSpace(input.FileURL) == "" {
		return nil, ErrMissingFileURL
	}
	if _, err := s.GetMeeting(ctx, input.MeetingID); err != nil {
		return nil, err
	}
	if input.BlockID != nil {
		if _, err := s.GetBlock(ctx, input.MeetingID, *input.BlockID); err != nil {
			if errors.Is(err, ErrBlockNotFound) {
				return nil, ErrBlockNotInMeeting
			}
			return nil, err
		}
	}
	publicID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreateAttachment, "id_generation_failed", err)
		return nil, newServiceError(opCreateAttachment, "id_generation_failed", err)
	}
	attachment := Attachment{
		PublicID:  publicID,
		MeetingID: input.MeetingID,
		BlockID:   input.BlockID,
		FileURL:   strings.TrimSpace(input.FileURL),
		MimeType:  input.MimeType,
		Size:      input.Size,
	}
	if err := s.db.WithContext(ctx).Create(&attachment).Error; err != nil {
		s.logError(opCreateAttachment, "insert_failed", err, zap.Int64("meeting_id", input.MeetingID))
		return nil, newServiceError(opCreateAttachment, "insert_failed", err)
	}
	return &attachment, nil
}

// ListAttachments returns all attachments of a meeting, newest first.
func (s *Service) ListAttachments(ctx context.Context, meetingID int64) ([]Attachment, error) {
	var attachments []Attachment
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("id DESC").
		Find(&attachments).Error; err != nil {
		s.logError(opListAttachments, "query_failed", err, zap.Int64("meeting_id", meetingID))
		return nil, newServiceError(opListAttachments, "query_failed", err)
	}
	return attachments, nil
}

// lockBlock loads a block under SELECT ... FOR UPDATE, scoped to its meeting.
func (s *Service) lockBlock(tx *gorm.DB, meetingID, blockID int64) (*Block, error) {
	var block Block
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND meeting_id = ?", blockID, meetingID).
		Take(&block).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// recordRevision appends a snapshot of the block's current state. The
// revision number is an independent per-block counter computed inside the
// surrounding transaction.
func (s *Service) recordRevision(tx *gorm.DB, block *Block, editorID int64) error {
	var lastNo int64
	if err := tx.Model(&BlockRevision{}).
		Where("block_id = ?", block.ID).
		Select("COALESCE(MAX(revision_no), 0)").
		Scan(&lastNo).Error; err != nil {
		return err
	}
	encoded, err := json.Marshal(snapshotBlock(block))
	if err != nil {
		return err
	}
	revision := BlockRevision{
		BlockID:    block.ID,
		RevisionNo: lastNo + 1,
		Snapshot:   string(encoded),
		EditedBy:   &editorID,
		EditedAt:   s.clock().UTC(),
	}
	return tx.Create(&revision).Error
}

// applyVersioned performs the compare-and-swap write: the update only lands
// when the stored version still matches the expected one.
func (s *Service) applyVersioned(tx *gorm.DB, blockID, expectedVersion int64, updates map[string]interface{}) error {
	result := tx.Model(&Block{}).
		Where("id = ? AND version = ?", blockID, expectedVersion).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &VersionConflictError{BlockID: blockID, Current: expectedVersion}
	}
	return nil
}

// classify passes domain failures through untouched and wraps everything
// else as an infrastructure error.
func (s *Service) classify(operation string, err error) error {
	var conflict *VersionConflictError
	var svcErr *ServiceError
	switch {
	case errors.As(err, &conflict),
		errors.As(err, &svcErr),
		errors.Is(err, ErrMeetingNotFound),
		errors.Is(err, ErrBlockNotFound),
		errors.Is(err, ErrRevisionNotFound),
		errors.Is(err, ErrParentNotInMeeting),
		errors.Is(err, ErrNewParentNotInMeet),
		errors.Is(err, ErrBlockNotInMeeting),
		errors.Is(err, ErrNotATable),
		errors.Is(err, ErrInvalidTableShape),
		errors.Is(err, ErrInvalidTableRows),
		errors.Is(err, ErrRowOutOfRange),
		errors.Is(err, ErrColOutOfRange),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrRowNotList),
		errors.Is(err, ErrNameNotString),
		errors.Is(err, ErrWidthNotInt):
		return err
	default:
		s.logError(operation, "transaction_failed", err)
		return newServiceError(operation, "transaction_failed", err)
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("meetings service error", attrs...)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}
