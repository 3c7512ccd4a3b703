package stt

import "time"

// TranscriptSegment is one confirmed span of recognized speech belonging to
// a meeting.
type TranscriptSegment struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MeetingID int64     `gorm:"column:meeting_id;not null;index"`
	StartMS   int       `gorm:"column:start_ms;not null"`
	EndMS     int       `gorm:"column:end_ms;not null"`
	Speaker   string    `gorm:"column:speaker;size:50"`
	Text      string    `gorm:"column:text;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (TranscriptSegment) TableName() string {
	return "transcript_segments"
}
