package keywords

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/meetings"
)

var (
	// ErrMissingText is returned when an extraction request carries no text.
	ErrMissingText = errors.New("text_required")
	// ErrInvalidSource is returned for sources other than realtime/final.
	ErrInvalidSource = errors.New("invalid_source")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig wires the keyword store. Detector and Linker may be nil;
// extraction then degrades to the rule dictionaries without suggestions.
type ServiceConfig struct {
	Database *gorm.DB
	Detector EntityDetector
	Linker   *Linker
	Logger   *zap.Logger
}

// Service extracts keywords from meeting text, links them to analytics
// request suggestions, and keeps the per-meeting extraction log.
type Service struct {
	db       *gorm.DB
	detector EntityDetector
	linker   *Linker
	logger   *zap.Logger
}

// NewService constructs the keyword service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("keywords.service.new: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:       cfg.Database,
		detector: cfg.Detector,
		linker:   cfg.Linker,
		logger:   logger,
	}, nil
}

// ExtractInput is one extraction request against a meeting.
type ExtractInput struct {
	MeetingID int64
	Text      string
	Source    string
}

// ExtractResult is the stored extraction with its analytics suggestions.
type ExtractResult struct {
	LogID       int64        `json:"log_id"`
	Keywords    Extraction   `json:"keywords"`
	Suggestions []Suggestion `json:"api_suggestions"`
}

// Extract runs keyword extraction over the text, builds analytics
// suggestions, and appends the result to the meeting's keyword log.
func (s *Service) Extract(ctx context.Context, input ExtractInput) (*ExtractResult, error) {
	if strings.TrimSpace(input.Text) == "" {
		return nil, ErrMissingText
	}
	source := input.Source
	switch source {
	case "":
		source = SourceRealtime
	case SourceRealtime, SourceFinal:
	default:
		return nil, ErrInvalidSource
	}
	if err := s.checkMeeting(ctx, input.MeetingID); err != nil {
		return nil, err
	}

	extraction := extract(ctx, s.detector, s.logger, input.Text)
	suggestions := s.linker.BuildSuggestions(ctx, extraction.Entities, extraction.APIHints)

	encoded, err := json.Marshal(extraction)
	if err != nil {
		return nil, fmt.Errorf("keywords.extract: encode keywords: %w", err)
	}
	log := KeywordLog{
		MeetingID: input.MeetingID,
		Source:    source,
		RawText:   input.Text,
		Keywords:  string(encoded),
	}
	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		s.logger.Error("keyword log insert failed",
			zap.Int64("meeting_id", input.MeetingID), zap.Error(err))
		return nil, fmt.Errorf("keywords.extract: %w", err)
	}
	return &ExtractResult{
		LogID:       log.ID,
		Keywords:    extraction,
		Suggestions: suggestions,
	}, nil
}

// ListLogs returns a meeting's newest extraction logs, at most 100.
func (s *Service) ListLogs(ctx context.Context, meetingID int64) ([]KeywordLog, error) {
	if err := s.checkMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	var logs []KeywordLog
	if err := s.db.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("id DESC").
		Limit(100).
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("keywords.list_logs: %w", err)
	}
	return logs, nil
}

func (s *Service) checkMeeting(ctx context.Context, meetingID int64) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&meetings.Meeting{}).
		Where("id = ?", meetingID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("keywords.check_meeting: %w", err)
	}
	if count == 0 {
		return meetings.ErrMeetingNotFound
	}
	return nil
}
