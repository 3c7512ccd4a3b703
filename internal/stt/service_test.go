package stt

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/roundtable-labs/backend/internal/meetings"
)

func newTestService(t *testing.T) (*Service, int64) {
	t.Helper()
	dsn := fmt.Sprintf("file:stt_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	if err := db.AutoMigrate(&meetings.Meeting{}, &TranscriptSegment{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	meeting := meetings.Meeting{Title: "standup", OwnerID: 1}
	if err := db.Create(&meeting).Error; err != nil {
		t.Fatalf("seed meeting: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service, meeting.ID
}

func TestAppendSegmentValidation(t *testing.T) {
	service, meetingID := newTestService(t)

	if _, err := service.AppendSegment(context.Background(), AppendSegmentInput{
		MeetingID: meetingID,
		Text:      "   ",
	}); !errors.Is(err, ErrMissingText) {
		t.Fatalf("expected text_required, got %v", err)
	}

	if _, err := service.AppendSegment(context.Background(), AppendSegmentInput{
		MeetingID: meetingID + 99,
		Text:      "hello",
	}); !errors.Is(err, meetings.ErrMeetingNotFound) {
		t.Fatalf("expected meeting_not_found, got %v", err)
	}
}

func TestAppendAndListSegments(t *testing.T) {
	service, meetingID := newTestService(t)

	first, err := service.AppendSegment(context.Background(), AppendSegmentInput{
		MeetingID: meetingID,
		Text:      "opening remarks",
		StartMS:   0,
		EndMS:     4000,
		Speaker:   "alice",
	})
	if err != nil {
		t.Fatalf("append first: %v", err)
	}
	if first.ID == 0 {
		t.Fatal("expected segment id assigned")
	}

	if _, err := service.AppendSegment(context.Background(), AppendSegmentInput{
		MeetingID: meetingID,
		Text:      "budget discussion",
		StartMS:   4000,
		EndMS:     9000,
	}); err != nil {
		t.Fatalf("append second: %v", err)
	}

	segments, err := service.ListSegments(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Speaker != "alice" || segments[1].Speaker != "" {
		t.Fatalf("unexpected speakers: %q %q", segments[0].Speaker, segments[1].Speaker)
	}
}

func TestFullTranscriptOrdersByStart(t *testing.T) {
	service, meetingID := newTestService(t)

	// inserted out of playback order on purpose
	inputs := []AppendSegmentInput{
		{MeetingID: meetingID, Text: "second", StartMS: 5000, EndMS: 9000},
		{MeetingID: meetingID, Text: "first", StartMS: 0, EndMS: 5000},
		{MeetingID: meetingID, Text: "third", StartMS: 9000, EndMS: 12000},
	}
	for _, input := range inputs {
		if _, err := service.AppendSegment(context.Background(), input); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	transcript, err := service.FullTranscript(context.Background(), meetingID)
	if err != nil {
		t.Fatalf("full transcript: %v", err)
	}
	if transcript != "first\nsecond\nthird" {
		t.Fatalf("unexpected transcript: %q", transcript)
	}
}
