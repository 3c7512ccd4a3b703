package minutes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/roundtable-labs/backend/internal/meetings"
)

var (
	// ErrSummarizerUnavailable is returned when no summarizer is
	// configured, typically because the API key is missing.
	ErrSummarizerUnavailable = errors.New("summarizer_unavailable")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig wires the minutes store's dependencies. Summarizer may be
// nil; summarization endpoints then report ErrSummarizerUnavailable while
// snapshot reads keep working.
type ServiceConfig struct {
	Database   *gorm.DB
	Summarizer Summarizer
	Logger     *zap.Logger
}

// Service stores and merges minutes snapshots for meetings.
type Service struct {
	db         *gorm.DB
	summarizer Summarizer
	logger     *zap.Logger
}

// NewService constructs the minutes service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("minutes.service.new: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, summarizer: cfg.Summarizer, logger: logger}, nil
}

// SummarizerEnabled reports whether LLM summarization is configured.
func (s *Service) SummarizerEnabled() bool {
	return s.summarizer != nil
}

// Live returns the latest provisional minutes of a meeting; ok is false
// when none exist yet.
func (s *Service) Live(ctx context.Context, meetingID int64) (Minutes, bool, error) {
	return s.latest(ctx, meetingID, false)
}

// Final returns the finalized minutes of a meeting; ok is false when the
// meeting has not been finalized.
func (s *Service) Final(ctx context.Context, meetingID int64) (Minutes, bool, error) {
	return s.latest(ctx, meetingID, true)
}

func (s *Service) latest(ctx context.Context, meetingID int64, isFinal bool) (Minutes, bool, error) {
	var snapshot MinutesSnapshot
	err := s.db.WithContext(ctx).
		Where("meeting_id = ? AND is_final = ?", meetingID, isFinal).
		Order("id DESC").
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Minutes{}, false, nil
	}
	if err != nil {
		return Minutes{}, false, fmt.Errorf("minutes.latest: %w", err)
	}
	var doc Minutes
	if err := json.Unmarshal([]byte(snapshot.Payload), &doc); err != nil {
		return Minutes{}, false, fmt.Errorf("minutes.latest: decode snapshot %d: %w", snapshot.ID, err)
	}
	return doc, true, nil
}

// SaveLive merges an updated document into the latest provisional snapshot
// and appends the result as a new snapshot.
func (s *Service) SaveLive(ctx context.Context, meetingID int64, update Minutes) (Minutes, error) {
	current, ok, err := s.Live(ctx, meetingID)
	if err != nil {
		return Minutes{}, err
	}
	merged := update
	if ok {
		merged = Merge(current, update)
	}
	if err := s.insertSnapshot(ctx, meetingID, merged, false); err != nil {
		return Minutes{}, err
	}
	return merged, nil
}

// SummarizeChunk runs the incremental summarizer over one new transcript
// segment and stores the merged result as the latest live snapshot.
func (s *Service) SummarizeChunk(ctx context.Context, meeting *meetings.Meeting, segmentText string) (Minutes, error) {
	if s.summarizer == nil {
		return Minutes{}, ErrSummarizerUnavailable
	}
	current, ok, err := s.Live(ctx, meeting.ID)
	if err != nil {
		return Minutes{}, err
	}
	if !ok {
		current = EmptyMinutes(meeting.Project, meeting.MarketArea)
	}
	updated, err := s.summarizer.SummarizeIncremental(ctx, current, segmentText)
	if err != nil {
		s.logger.Warn("incremental summarization failed",
			zap.Int64("meeting_id", meeting.ID), zap.Error(err))
		return Minutes{}, err
	}
	return s.SaveLive(ctx, meeting.ID, updated)
}

// Finalize summarizes the complete transcript, replaces any previous final
// snapshot, and stamps the meeting's end time.
func (s *Service) Finalize(ctx context.Context, meeting *meetings.Meeting, transcript, project, marketArea string) (Minutes, error) {
	if s.summarizer == nil {
		return Minutes{}, ErrSummarizerUnavailable
	}
	if project == "" {
		project = meeting.Project
	}
	if marketArea == "" {
		marketArea = meeting.MarketArea
	}

	doc, err := s.summarizer.SummarizeFinal(ctx, transcript, project, marketArea)
	if err != nil {
		s.logger.Error("final summarization failed",
			zap.Int64("meeting_id", meeting.ID), zap.Error(err))
		return Minutes{}, err
	}
	if err := s.SaveFinal(ctx, meeting.ID, doc); err != nil {
		return Minutes{}, err
	}
	return doc, nil
}

// SaveFinal replaces the meeting's final snapshot with the given document
// and marks the meeting ended.
func (s *Service) SaveFinal(ctx context.Context, meetingID int64, doc Minutes) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("minutes.save_final: encode: %w", err)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("meeting_id = ? AND is_final = ?", meetingID, true).
			Delete(&MinutesSnapshot{}).Error; err != nil {
			return fmt.Errorf("minutes.save_final: drop previous: %w", err)
		}
		snapshot := MinutesSnapshot{MeetingID: meetingID, IsFinal: true, Payload: string(encoded)}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("minutes.save_final: insert: %w", err)
		}
		if err := tx.Model(&meetings.Meeting{}).
			Where("id = ?", meetingID).
			Update("ended_at", time.Now().UTC()).Error; err != nil {
			return fmt.Errorf("minutes.save_final: stamp ended_at: %w", err)
		}
		return nil
	})
}

func (s *Service) insertSnapshot(ctx context.Context, meetingID int64, doc Minutes, isFinal bool) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("minutes.insert_snapshot: encode: %w", err)
	}
	snapshot := MinutesSnapshot{MeetingID: meetingID, IsFinal: isFinal, Payload: string(encoded)}
	if err := s.db.WithContext(ctx).Create(&snapshot).Error; err != nil {
		return fmt.Errorf("minutes.insert_snapshot: %w", err)
	}
	return nil
}
