package pipeline

import "time"

// MessageMetadata is the processing record of one consumed message.
type MessageMetadata struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	MessageKey        string     `gorm:"column:message_key;size:255" json:"messageKey"`
	Topic             string     `gorm:"size:255;not null;index:idx_topic" json:"topic"`
	Partition         int        `gorm:"column:partition_number" json:"partition"`
	Offset            int64      `gorm:"column:offset_value" json:"offset"`
	RawMessage        string     `gorm:"type:text" json:"rawMessage"`
	NormalizedMessage string     `gorm:"type:text" json:"normalizedMessage"`
	ServiceName       string     `gorm:"size:255;index:idx_service_name" json:"serviceName"`
	LogLevel          string     `gorm:"size:50" json:"logLevel"`
	SchemaVersion     string     `gorm:"size:50" json:"schemaVersion"`
	SchemaID          *int       `json:"schemaId,omitempty"`
	ProcessingTimeMs  int64      `json:"processingTimeMs"`
	CreatedAt         time.Time  `gorm:"not null;index:idx_created_at" json:"createdAt"`
	ProcessedAt       *time.Time `json:"processedAt,omitempty"`
	CreatedBy         string     `gorm:"size:255" json:"createdBy"`
}

func (MessageMetadata) TableName() string {
	return "message_metadata"
}

// TopicStats aggregates metadata rows of one topic.
type TopicStats struct {
	Topic               string  `json:"topic"`
	TotalMessages       int64   `json:"total_messages"`
	AvgProcessingTimeMs float64 `json:"avg_processing_time_ms"`
}
