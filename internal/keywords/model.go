package keywords

import "time"

// Extraction sources.
const (
	SourceRealtime = "realtime"
	SourceFinal    = "final"
)

// KeywordLog records one extraction run: the raw input text and the
// extracted keyword sets as a JSON document.
type KeywordLog struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MeetingID int64     `gorm:"column:meeting_id;not null;index"`
	Source    string    `gorm:"column:source;size:16;not null"`
	RawText   string    `gorm:"column:raw_text;type:text"`
	Keywords  string    `gorm:"column:keywords;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (KeywordLog) TableName() string {
	return "keyword_logs"
}
