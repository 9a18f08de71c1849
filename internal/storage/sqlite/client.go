package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/storage"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_bases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_type TEXT NOT NULL CHECK(file_type IN ('pdf','epub','txt')),
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL CHECK(file_size > 0),
		content_text TEXT,
		upload_date INTEGER NOT NULL,
		FOREIGN KEY (knowledge_base_id) REFERENCES knowledge_bases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_documents_kb ON documents(knowledge_base_id);

	CREATE TABLE IF NOT EXISTS questions (
		id TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL,
		question_text TEXT NOT NULL,
		context_snippet TEXT NOT NULL DEFAULT '',
		generated_at INTEGER NOT NULL,
		FOREIGN KEY (knowledge_base_id) REFERENCES knowledge_bases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_questions_kb ON questions(knowledge_base_id);

	CREATE TABLE IF NOT EXISTS answers (
		id TEXT PRIMARY KEY,
		question_id TEXT NOT NULL,
		user_answer TEXT NOT NULL,
		ai_score INTEGER CHECK(ai_score IS NULL OR (ai_score >= 0 AND ai_score <= 100)),
		ai_feedback TEXT NOT NULL DEFAULT '',
		ai_suggestions TEXT NOT NULL DEFAULT '[]',
		answered_at INTEGER NOT NULL,
		FOREIGN KEY (question_id) REFERENCES questions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
	CREATE INDEX IF NOT EXISTS idx_answers_answered ON answers(answered_at);

	CREATE TABLE IF NOT EXISTS review_sessions (
		id TEXT PRIMARY KEY,
		knowledge_base_id TEXT NOT NULL,
		questions_count INTEGER NOT NULL CHECK(questions_count > 0),
		average_score REAL NOT NULL CHECK(average_score >= 0 AND average_score <= 100),
		duration_sec INTEGER NOT NULL DEFAULT 0,
		session_date INTEGER NOT NULL,
		FOREIGN KEY (knowledge_base_id) REFERENCES knowledge_bases(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_kb ON review_sessions(knowledge_base_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_date ON review_sessions(session_date);

	CREATE TABLE IF NOT EXISTS ai_config (
		id INTEGER PRIMARY KEY CHECK(id = 1),
		provider TEXT NOT NULL,
		api_key TEXT NOT NULL DEFAULT '',
		api_url TEXT NOT NULL DEFAULT '',
		model_name TEXT NOT NULL DEFAULT '',
		max_tokens INTEGER NOT NULL,
		temperature REAL NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w", op, storage.ErrConstraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Knowledge bases

func (c *Client) CreateKnowledgeBase(kb *models.KnowledgeBase) error {
	_, err := c.db.Exec(
		`INSERT INTO knowledge_bases (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		kb.ID, kb.Name, kb.Description, kb.CreatedAt.Unix(), kb.UpdatedAt.Unix(),
	)
	if err != nil {
		return wrapErr("insert knowledge base", err)
	}

	logger.Debug("Knowledge base created", zap.String("kb_id", kb.ID), zap.String("name", kb.Name))
	return nil
}

func (c *Client) ListKnowledgeBases() ([]models.KnowledgeBase, error) {
	rows, err := c.db.Query(
		`SELECT id, name, description, created_at, updated_at FROM knowledge_bases ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, wrapErr("list knowledge bases", err)
	}
	defer rows.Close()

	var kbs []models.KnowledgeBase
	for rows.Next() {
		var kb models.KnowledgeBase
		var createdAt, updatedAt int64
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &createdAt, &updatedAt); err != nil {
			return nil, wrapErr("scan knowledge base", err)
		}
		kb.CreatedAt = time.Unix(createdAt, 0)
		kb.UpdatedAt = time.Unix(updatedAt, 0)
		kbs = append(kbs, kb)
	}

	return kbs, rows.Err()
}

func (c *Client) GetKnowledgeBase(id string) (*models.KnowledgeBase, error) {
	var kb models.KnowledgeBase
	var createdAt, updatedAt int64

	err := c.db.QueryRow(
		`SELECT id, name, description, created_at, updated_at FROM knowledge_bases WHERE id = ?`, id,
	).Scan(&kb.ID, &kb.Name, &kb.Description, &createdAt, &updatedAt)
	if err != nil {
		return nil, wrapErr("get knowledge base", err)
	}

	kb.CreatedAt = time.Unix(createdAt, 0)
	kb.UpdatedAt = time.Unix(updatedAt, 0)
	return &kb, nil
}

func (c *Client) UpdateKnowledgeBase(id, name, description string) error {
	result, err := c.db.Exec(
		`UPDATE knowledge_bases SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		name, description, time.Now().Unix(), id,
	)
	if err != nil {
		return wrapErr("update knowledge base", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("update knowledge base", err)
	}
	if affected == 0 {
		return fmt.Errorf("update knowledge base: %w", storage.ErrNotFound)
	}
	return nil
}

// DeleteKnowledgeBase removes the knowledge base and, through ON DELETE
// CASCADE, every document, question, answer and review session owned by it
// in one transaction.
func (c *Client) DeleteKnowledgeBase(id string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return wrapErr("delete knowledge base", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`DELETE FROM knowledge_bases WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete knowledge base", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("delete knowledge base", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete knowledge base: %w", storage.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("delete knowledge base", err)
	}

	logger.Info("Knowledge base deleted", zap.String("kb_id", id))
	return nil
}

// Documents

func (c *Client) InsertDocument(doc *models.Document) error {
	content := sql.NullString{String: doc.ContentText, Valid: doc.ContentText != ""}
	_, err := c.db.Exec(
		`INSERT INTO documents (id, knowledge_base_id, filename, file_type, file_path, file_size, content_text, upload_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.KnowledgeBaseID, doc.Filename, string(doc.FileType), doc.FilePath, doc.FileSize,
		content, doc.UploadDate.Unix(),
	)
	if err != nil {
		return wrapErr("insert document", err)
	}

	logger.Debug("Document inserted",
		zap.String("doc_id", doc.ID),
		zap.String("kb_id", doc.KnowledgeBaseID),
		zap.String("filename", doc.Filename),
	)
	return nil
}

func (c *Client) ListDocuments(kbID string) ([]models.Document, error) {
	rows, err := c.db.Query(
		`SELECT id, knowledge_base_id, filename, file_type, file_path, file_size, content_text, upload_date
		 FROM documents WHERE knowledge_base_id = ? ORDER BY upload_date DESC`, kbID,
	)
	if err != nil {
		return nil, wrapErr("list documents", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	return docs, rows.Err()
}

func (c *Client) GetDocument(id string) (*models.Document, error) {
	row := c.db.QueryRow(
		`SELECT id, knowledge_base_id, filename, file_type, file_path, file_size, content_text, upload_date
		 FROM documents WHERE id = ?`, id,
	)
	return scanDocument(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var fileType string
	var content sql.NullString
	var uploadDate int64

	err := row.Scan(&doc.ID, &doc.KnowledgeBaseID, &doc.Filename, &fileType, &doc.FilePath,
		&doc.FileSize, &content, &uploadDate)
	if err != nil {
		return nil, wrapErr("scan document", err)
	}

	ft, ok := models.ParseFileType(fileType)
	if !ok {
		ft = models.FileTypeTXT
	}
	doc.FileType = ft
	doc.ContentText = content.String
	doc.UploadDate = time.Unix(uploadDate, 0)
	return &doc, nil
}

func (c *Client) DeleteDocument(id string) error {
	result, err := c.db.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete document", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return wrapErr("delete document", err)
	}
	if affected == 0 {
		return fmt.Errorf("delete document: %w", storage.ErrNotFound)
	}
	return nil
}

// Questions and answers

func (c *Client) InsertQuestion(q *models.Question) error {
	_, err := c.db.Exec(
		`INSERT INTO questions (id, knowledge_base_id, question_text, context_snippet, generated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.KnowledgeBaseID, q.QuestionText, q.ContextSnippet, q.GeneratedAt.Unix(),
	)
	if err != nil {
		return wrapErr("insert question", err)
	}
	return nil
}

func (c *Client) ListQuestions(kbID string) ([]models.Question, error) {
	rows, err := c.db.Query(
		`SELECT id, knowledge_base_id, question_text, context_snippet, generated_at
		 FROM questions WHERE knowledge_base_id = ? ORDER BY generated_at DESC`, kbID,
	)
	if err != nil {
		return nil, wrapErr("list questions", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var generatedAt int64
		if err := rows.Scan(&q.ID, &q.KnowledgeBaseID, &q.QuestionText, &q.ContextSnippet, &generatedAt); err != nil {
			return nil, wrapErr("scan question", err)
		}
		q.GeneratedAt = time.Unix(generatedAt, 0)
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

func (c *Client) GetQuestion(id string) (*models.Question, error) {
	var q models.Question
	var generatedAt int64

	err := c.db.QueryRow(
		`SELECT id, knowledge_base_id, question_text, context_snippet, generated_at FROM questions WHERE id = ?`, id,
	).Scan(&q.ID, &q.KnowledgeBaseID, &q.QuestionText, &q.ContextSnippet, &generatedAt)
	if err != nil {
		return nil, wrapErr("get question", err)
	}

	q.GeneratedAt = time.Unix(generatedAt, 0)
	return &q, nil
}

func (c *Client) InsertAnswer(a *models.Answer) error {
	suggestionsJSON, err := json.Marshal(a.AISuggestions)
	if err != nil {
		return fmt.Errorf("marshal suggestions: %w", err)
	}

	var score sql.NullInt64
	if a.AIScore != nil {
		score = sql.NullInt64{Int64: int64(*a.AIScore), Valid: true}
	}

	_, err = c.db.Exec(
		`INSERT INTO answers (id, question_id, user_answer, ai_score, ai_feedback, ai_suggestions, answered_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.QuestionID, a.UserAnswer, score, a.AIFeedback, string(suggestionsJSON), a.AnsweredAt.Unix(),
	)
	if err != nil {
		return wrapErr("insert answer", err)
	}

	logger.Debug("Answer inserted", zap.String("answer_id", a.ID), zap.String("question_id", a.QuestionID))
	return nil
}

func (c *Client) ListAnswersByQuestion(questionID string) ([]models.Answer, error) {
	rows, err := c.db.Query(
		`SELECT id, question_id, user_answer, ai_score, ai_feedback, ai_suggestions, answered_at
		 FROM answers WHERE question_id = ? ORDER BY answered_at DESC`, questionID,
	)
	if err != nil {
		return nil, wrapErr("list answers", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *a)
	}

	return answers, rows.Err()
}

func scanAnswer(row rowScanner) (*models.Answer, error) {
	var a models.Answer
	var score sql.NullInt64
	var suggestionsJSON string
	var answeredAt int64

	err := row.Scan(&a.ID, &a.QuestionID, &a.UserAnswer, &score, &a.AIFeedback, &suggestionsJSON, &answeredAt)
	if err != nil {
		return nil, wrapErr("scan answer", err)
	}

	if score.Valid {
		v := int(score.Int64)
		a.AIScore = &v
	}
	if err := json.Unmarshal([]byte(suggestionsJSON), &a.AISuggestions); err != nil {
		a.AISuggestions = nil
	}
	a.AnsweredAt = time.Unix(answeredAt, 0)
	return &a, nil
}

// QuestionAnswerHistory returns answered questions for a knowledge base,
// newest answer first, applying any score-band and date-range filters.
func (c *Client) QuestionAnswerHistory(kbID string, filter models.HistoryFilter) ([]models.HistoryItem, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT q.id, q.knowledge_base_id, q.question_text, q.context_snippet, q.generated_at,
		        a.id, a.user_answer, a.ai_score, a.ai_feedback, a.ai_suggestions, a.answered_at
		 FROM questions q
		 INNER JOIN answers a ON q.id = a.question_id
		 WHERE q.knowledge_base_id = ?`,
	)
	args := []interface{}{kbID}

	if filter.MinScore != nil {
		query.WriteString(" AND a.ai_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query.WriteString(" AND a.ai_score <= ?")
		args = append(args, *filter.MaxScore)
	}
	if filter.StartDate != nil {
		query.WriteString(" AND a.answered_at >= ?")
		args = append(args, filter.StartDate.Unix())
	}
	if filter.EndDate != nil {
		query.WriteString(" AND a.answered_at <= ?")
		args = append(args, filter.EndDate.Unix())
	}

	query.WriteString(" ORDER BY a.answered_at DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ? OFFSET ?")
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := c.db.Query(query.String(), args...)
	if err != nil {
		return nil, wrapErr("query history", err)
	}
	defer rows.Close()

	var items []models.HistoryItem
	for rows.Next() {
		var q models.Question
		var a models.Answer
		var generatedAt, answeredAt int64
		var score sql.NullInt64
		var suggestionsJSON string

		err := rows.Scan(&q.ID, &q.KnowledgeBaseID, &q.QuestionText, &q.ContextSnippet, &generatedAt,
			&a.ID, &a.UserAnswer, &score, &a.AIFeedback, &suggestionsJSON, &answeredAt)
		if err != nil {
			return nil, wrapErr("scan history", err)
		}

		q.GeneratedAt = time.Unix(generatedAt, 0)
		a.QuestionID = q.ID
		if score.Valid {
			v := int(score.Int64)
			a.AIScore = &v
		}
		if err := json.Unmarshal([]byte(suggestionsJSON), &a.AISuggestions); err != nil {
			a.AISuggestions = nil
		}
		a.AnsweredAt = time.Unix(answeredAt, 0)
		items = append(items, models.HistoryItem{Question: q, Answer: a})
	}

	return items, rows.Err()
}

// Review sessions

func (c *Client) InsertReviewSession(s *models.ReviewSession) error {
	_, err := c.db.Exec(
		`INSERT INTO review_sessions (id, knowledge_base_id, questions_count, average_score, duration_sec, session_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.KnowledgeBaseID, s.QuestionsCount, s.AverageScore, s.DurationSec, s.SessionDate.Unix(),
	)
	if err != nil {
		return wrapErr("insert review session", err)
	}

	logger.Info("Review session recorded",
		zap.String("session_id", s.ID),
		zap.String("kb_id", s.KnowledgeBaseID),
		zap.Float64("average_score", s.AverageScore),
	)
	return nil
}

// ListReviewSessions returns sessions newest-first. Filter date and score
// bounds apply to session_date and average_score respectively.
func (c *Client) ListReviewSessions(kbID string, filter models.HistoryFilter) ([]models.ReviewSession, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT id, knowledge_base_id, questions_count, average_score, duration_sec, session_date
		 FROM review_sessions WHERE knowledge_base_id = ?`,
	)
	args := []interface{}{kbID}

	if filter.MinScore != nil {
		query.WriteString(" AND average_score >= ?")
		args = append(args, *filter.MinScore)
	}
	if filter.MaxScore != nil {
		query.WriteString(" AND average_score <= ?")
		args = append(args, *filter.MaxScore)
	}
	if filter.StartDate != nil {
		query.WriteString(" AND session_date >= ?")
		args = append(args, filter.StartDate.Unix())
	}
	if filter.EndDate != nil {
		query.WriteString(" AND session_date <= ?")
		args = append(args, filter.EndDate.Unix())
	}

	query.WriteString(" ORDER BY session_date DESC")

	rows, err := c.db.Query(query.String(), args...)
	if err != nil {
		return nil, wrapErr("list review sessions", err)
	}
	defer rows.Close()

	var sessions []models.ReviewSession
	for rows.Next() {
		var s models.ReviewSession
		var sessionDate int64
		if err := rows.Scan(&s.ID, &s.KnowledgeBaseID, &s.QuestionsCount, &s.AverageScore, &s.DurationSec, &sessionDate); err != nil {
			return nil, wrapErr("scan review session", err)
		}
		s.SessionDate = time.Unix(sessionDate, 0)
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// AI config

func (c *Client) GetAIConfig() (*models.AIConfig, error) {
	var cfg models.AIConfig
	var provider string
	var updatedAt int64

	err := c.db.QueryRow(
		`SELECT provider, api_key, api_url, model_name, max_tokens, temperature, updated_at FROM ai_config WHERE id = 1`,
	).Scan(&provider, &cfg.APIKey, &cfg.APIURL, &cfg.ModelName, &cfg.MaxTokens, &cfg.Temperature, &updatedAt)
	if err != nil {
		return nil, wrapErr("get ai config", err)
	}

	p, ok := models.ParseAIProvider(provider)
	if !ok {
		p = models.ProviderDeepSeek
	}
	cfg.Provider = p
	cfg.UpdatedAt = time.Unix(updatedAt, 0)
	return &cfg, nil
}

// PutAIConfig replaces the singleton config row. The delete and insert run
// in one transaction so concurrent readers see the old row or the new one,
// never a partial mix.
func (c *Client) PutAIConfig(cfg *models.AIConfig) error {
	tx, err := c.db.Begin()
	if err != nil {
		return wrapErr("put ai config", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM ai_config`); err != nil {
		return wrapErr("put ai config", err)
	}

	_, err = tx.Exec(
		`INSERT INTO ai_config (id, provider, api_key, api_url, model_name, max_tokens, temperature, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		string(cfg.Provider), cfg.APIKey, cfg.APIURL, cfg.ModelName, cfg.MaxTokens, cfg.Temperature,
		cfg.UpdatedAt.Unix(),
	)
	if err != nil {
		return wrapErr("put ai config", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("put ai config", err)
	}

	logger.Info("AI config saved", zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.ModelName))
	return nil
}
