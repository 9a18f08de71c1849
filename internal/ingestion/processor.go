// Package ingestion owns the document upload pipeline and the quiz flow
// built on top of it.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/ai"
	"github.com/studyowl/backend/internal/extraction"
	"github.com/studyowl/backend/internal/metrics"
	"github.com/studyowl/backend/internal/snippet"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// Store is the slice of the assessment store the processor needs.
type Store interface {
	GetKnowledgeBase(id string) (*models.KnowledgeBase, error)
	DeleteKnowledgeBase(id string) error
	InsertDocument(doc *models.Document) error
	ListDocuments(kbID string) ([]models.Document, error)
	GetDocument(id string) (*models.Document, error)
	DeleteDocument(id string) error
	InsertQuestion(q *models.Question) error
	GetQuestion(id string) (*models.Question, error)
	InsertAnswer(a *models.Answer) error
}

// Gateway generates questions and evaluates answers.
type Gateway interface {
	GenerateQuestion(ctx context.Context, contextSnippet string) (string, error)
	EvaluateAnswer(ctx context.Context, question, answer, contextSnippet string) (*ai.Evaluation, error)
}

// ContentCache caches assembled knowledge base text. A nil cache is valid
// and means every read assembles from the store.
type ContentCache interface {
	GetContent(ctx context.Context, kbID string) (string, bool)
	SetContent(ctx context.Context, kbID, content string)
	Invalidate(ctx context.Context, kbID string)
}

type Processor struct {
	store     Store
	extractor *extraction.Extractor
	selector  *snippet.Selector
	gateway   Gateway
	cache     ContentCache

	uploadDir string
	// workers bounds concurrent extractions so a burst of large uploads
	// cannot exhaust memory.
	workers chan struct{}
}

func NewProcessor(store Store, extractor *extraction.Extractor, selector *snippet.Selector,
	gateway Gateway, cache ContentCache, uploadDir string, workers int) *Processor {
	if workers <= 0 {
		workers = 4
	}
	return &Processor{
		store:     store,
		extractor: extractor,
		selector:  selector,
		gateway:   gateway,
		cache:     cache,
		uploadDir: uploadDir,
		workers:   make(chan struct{}, workers),
	}
}

// UploadDocument validates, stores and extracts an uploaded file. On any
// extraction failure the stored blob is removed and no document row is
// written, so a failed upload leaves no trace.
func (p *Processor) UploadDocument(ctx context.Context, kbID, filename string, data []byte) (*models.Document, error) {
	if _, err := p.store.GetKnowledgeBase(kbID); err != nil {
		return nil, fmt.Errorf("verify knowledge base: %w", err)
	}

	fileType, ok := extraction.TypeForFilename(filename)
	if !ok {
		return nil, &extraction.Error{Kind: extraction.KindUnsupportedType,
			Msg: fmt.Sprintf("unsupported file extension in %q", filename)}
	}

	if err := p.extractor.Validate(data, fileType); err != nil {
		return nil, err
	}

	docID := uuid.New().String()
	blobPath := filepath.Join(p.uploadDir, docID+"_"+filepath.Base(filename))
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(blobPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	select {
	case p.workers <- struct{}{}:
	case <-ctx.Done():
		os.Remove(blobPath)
		return nil, ctx.Err()
	}
	text, err := p.extractor.Extract(data, fileType)
	<-p.workers

	if err != nil {
		if rmErr := os.Remove(blobPath); rmErr != nil {
			logger.Warn("Failed to remove blob after extraction failure",
				zap.String("path", blobPath), zap.Error(rmErr))
		}
		return nil, err
	}

	doc := &models.Document{
		ID:              docID,
		KnowledgeBaseID: kbID,
		Filename:        filename,
		FileType:        fileType,
		FilePath:        blobPath,
		FileSize:        int64(len(data)),
		ContentText:     text,
		UploadDate:      time.Now(),
	}
	if err := p.store.InsertDocument(doc); err != nil {
		os.Remove(blobPath)
		return nil, fmt.Errorf("persist document: %w", err)
	}

	if p.cache != nil {
		p.cache.Invalidate(ctx, kbID)
	}

	logger.Info("Document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("kb_id", kbID),
		zap.String("filename", filename),
		zap.Int64("size", doc.FileSize),
	)
	return doc, nil
}

// DeleteDocument removes the row and then the blob. A missing blob is not an
// error; the row is authoritative.
func (p *Processor) DeleteDocument(ctx context.Context, docID string) error {
	doc, err := p.store.GetDocument(docID)
	if err != nil {
		return err
	}

	if err := p.store.DeleteDocument(docID); err != nil {
		return err
	}

	if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove document blob",
			zap.String("path", doc.FilePath), zap.Error(err))
	}

	if p.cache != nil {
		p.cache.Invalidate(ctx, doc.KnowledgeBaseID)
	}
	return nil
}

// DeleteKnowledgeBase removes the knowledge base rows and then every
// document's blob file. The row cascade is authoritative; blob removal is
// best effort.
func (p *Processor) DeleteKnowledgeBase(ctx context.Context, kbID string) error {
	docs, err := p.store.ListDocuments(kbID)
	if err != nil {
		return fmt.Errorf("list documents: %w", err)
	}

	if err := p.store.DeleteKnowledgeBase(kbID); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove document blob",
				zap.String("path", doc.FilePath), zap.Error(err))
		}
	}

	if p.cache != nil {
		p.cache.Invalidate(ctx, kbID)
	}
	return nil
}

// assembleContent joins the extracted text of every document in the
// knowledge base, consulting the cache first.
func (p *Processor) assembleContent(ctx context.Context, kbID string) (string, error) {
	if p.cache != nil {
		if content, ok := p.cache.GetContent(ctx, kbID); ok {
			return content, nil
		}
	}

	docs, err := p.store.ListDocuments(kbID)
	if err != nil {
		return "", fmt.Errorf("list documents: %w", err)
	}

	var texts []string
	for _, doc := range docs {
		if doc.ContentText != "" {
			texts = append(texts, doc.ContentText)
		}
	}
	if len(texts) == 0 {
		return "", snippet.ErrNoContent
	}

	content := texts[0]
	if len(texts) > 1 {
		joined := texts[0]
		for _, t := range texts[1:] {
			joined += "\n\n" + t
		}
		content = joined
	}

	if p.cache != nil {
		p.cache.SetContent(ctx, kbID, content)
	}
	return content, nil
}

// GenerateQuestion picks a context snippet from the knowledge base and asks
// the AI provider for a question, persisting the result.
func (p *Processor) GenerateQuestion(ctx context.Context, kbID string) (*models.Question, error) {
	if _, err := p.store.GetKnowledgeBase(kbID); err != nil {
		return nil, fmt.Errorf("verify knowledge base: %w", err)
	}

	content, err := p.assembleContent(ctx, kbID)
	if err != nil {
		return nil, err
	}

	contextSnippet, err := p.selector.Select([]string{content})
	if err != nil {
		return nil, err
	}

	questionText, err := p.gateway.GenerateQuestion(ctx, contextSnippet)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kbID,
		QuestionText:    questionText,
		ContextSnippet:  contextSnippet,
		GeneratedAt:     time.Now(),
	}
	if err := p.store.InsertQuestion(question); err != nil {
		return nil, fmt.Errorf("persist question: %w", err)
	}

	metrics.QuestionsGenerated.Inc()
	logger.Debug("Question generated",
		zap.String("question_id", question.ID), zap.String("kb_id", kbID))
	return question, nil
}

// SubmitAnswer evaluates the learner's answer and persists the result. Once
// evaluation starts it runs detached from the caller's cancellation, so an
// abandoned request either persists a complete answer or nothing.
func (p *Processor) SubmitAnswer(ctx context.Context, questionID, userAnswer string) (*models.Answer, error) {
	question, err := p.store.GetQuestion(questionID)
	if err != nil {
		return nil, err
	}

	detached := context.WithoutCancel(ctx)
	eval, err := p.gateway.EvaluateAnswer(detached, question.QuestionText, userAnswer, question.ContextSnippet)
	if err != nil {
		return nil, err
	}

	score := eval.Score
	answer := &models.Answer{
		ID:            uuid.New().String(),
		QuestionID:    questionID,
		UserAnswer:    userAnswer,
		AIScore:       &score,
		AIFeedback:    eval.Feedback,
		AISuggestions: eval.Suggestions,
		AnsweredAt:    time.Now(),
	}
	if err := p.store.InsertAnswer(answer); err != nil {
		return nil, fmt.Errorf("persist answer: %w", err)
	}

	metrics.AnswersEvaluated.Inc()
	return answer, nil
}

// IsNoContent reports whether err is the empty knowledge base condition.
func IsNoContent(err error) bool {
	return errors.Is(err, snippet.ErrNoContent)
}
