package models

import "time"

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeEPUB FileType = "epub"
	FileTypeTXT  FileType = "txt"
)

func ParseFileType(s string) (FileType, bool) {
	switch FileType(s) {
	case FileTypePDF, FileTypeEPUB, FileTypeTXT:
		return FileType(s), true
	}
	return "", false
}

type KnowledgeBase struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Document struct {
	ID              string
	KnowledgeBaseID string
	Filename        string
	FileType        FileType
	FilePath        string
	FileSize        int64
	ContentText     string
	UploadDate      time.Time
}

// Question is immutable once persisted. ContextSnippet holds the excerpt the
// generation call was grounded on; empty when the knowledge base had no
// extracted content.
type Question struct {
	ID              string
	KnowledgeBaseID string
	QuestionText    string
	ContextSnippet  string
	GeneratedAt     time.Time
}

type Answer struct {
	ID            string
	QuestionID    string
	UserAnswer    string
	AIScore       *int
	AIFeedback    string
	AISuggestions []string
	AnsweredAt    time.Time
}

type ReviewSession struct {
	ID              string
	KnowledgeBaseID string
	QuestionsCount  int
	AverageScore    float64
	DurationSec     int64
	SessionDate     time.Time
}

type AIProvider string

const (
	ProviderDeepSeek AIProvider = "deepseek"
	ProviderOpenAI   AIProvider = "openai"
	ProviderLocal    AIProvider = "local"
)

func ParseAIProvider(s string) (AIProvider, bool) {
	switch AIProvider(s) {
	case ProviderDeepSeek, ProviderOpenAI, ProviderLocal:
		return AIProvider(s), true
	}
	return "", false
}

// AIConfig is a process-wide singleton row; saving replaces it wholesale.
type AIConfig struct {
	Provider    AIProvider
	APIKey      string
	APIURL      string
	ModelName   string
	MaxTokens   int
	Temperature float64
	UpdatedAt   time.Time
}

// HistoryItem pairs a question with one of its answers for the history view.
type HistoryItem struct {
	Question Question
	Answer   Answer
}

// HistoryFilter narrows the question-answer history query. Nil fields are
// ignored.
type HistoryFilter struct {
	MinScore  *int
	MaxScore  *int
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

type LearningProgress struct {
	TotalQuestionsAnswered int
	AverageScore           *float64
	RecentAverageScore     *float64
	ImprovementTrend       string
	TotalReviewSessions    int
}

// SessionStats is the aggregate over a knowledge base's review sessions,
// derived by a full scan at read time.
type SessionStats struct {
	TotalSessions    int
	MeanAverageScore float64
	MaxAverageScore  float64
	TotalDurationSec int64
}
