package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/meetings"
)

var (
	// ErrMissingText is returned when a chunk carries no transcript text.
	ErrMissingText = errors.New("text_required")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig wires the transcript store's dependencies.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service persists recognized speech segments and assembles full meeting
// transcripts for summarization.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewService constructs the transcript service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("stt.service.new: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, logger: logger}, nil
}

// AppendSegmentInput carries one confirmed segment of recognized speech.
type AppendSegmentInput struct {
	MeetingID int64
	Text      string
	StartMS   int
	EndMS     int
	Speaker   string
}

// AppendSegment stores one transcript segment against its meeting.
func (s *Service) AppendSegment(ctx context.Context, input AppendSegmentInput) (*TranscriptSegment, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ErrMissingText
	}
	if err := s.checkMeeting(ctx, input.MeetingID); err != nil {
		return nil, err
	}
	segment := TranscriptSegment{
		MeetingID: input.MeetingID,
		StartMS:   input.StartMS,
		EndMS:     input.EndMS,
		Speaker:   input.Speaker,
		Text:      input.Text,
	}
	if err := s.db.WithContext(ctx).Create(&segment).Error; err != nil {
		s.logger.Error("transcript segment insert failed",
			zap.Int64("meeting_id", input.MeetingID), zap.Error(err))
		return nil, fmt.Errorf("stt.append_segment: %w", err)
	}
	return &segment, nil
}

// ListSegments returns a meeting's segments in insertion order.
func (s *Service) ListSegments(ctx context.Context, meetingID int64) ([]TranscriptSegment, error) {
	if err := s.checkMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	var segments []TranscriptSegment
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("id ASC").
		Find(&segments).Error; err != nil {
		return nil, fmt.Errorf("stt.list_segments: %w", err)
	}
	return segments, nil
}

// FullTranscript joins all of a meeting's segment text in playback order,
// one segment per line.
func (s *Service) FullTranscript(ctx context.Context, meetingID int64) (string, error) {
	if err := s.checkMeeting(ctx, meetingID); err != nil {
		return "", err
	}
	var segments []TranscriptSegment
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("start_ms ASC, id ASC").
		Find(&segments).Error; err != nil {
		return "", fmt.Errorf("stt.full_transcript: %w", err)
	}
	lines := make([]string, 0, len(segments))
	for _, segment := range segments {
		lines = append(lines, segment.Text)
	}
	return strings.Join(lines, "\n"), nil
}

func (s *Service) checkMeeting(ctx context.Context, meetingID int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&meetings.Meeting{}).
		Where("id = ?", meetingID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("stt.check_meeting: %w", err)
	}
	if count == 0 {
		return meetings.ErrMeetingNotFound
	}
	return nil
}
