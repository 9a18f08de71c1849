// Package review runs spaced review sessions over previously generated
// questions and computes learning statistics.
package review

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/metrics"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

var (
	ErrNoQuestions     = errors.New("knowledge base has no questions to review")
	ErrSessionNotFound = errors.New("review session not found")
	ErrSessionComplete = errors.New("review session already completed")
)

const DefaultSessionLength = 5

// State tracks where a session is in its answer loop.
type State int

const (
	StateAwaitingAnswer State = iota
	StateCompleted
)

// Store is the slice of the assessment store the engine needs.
type Store interface {
	ListQuestions(kbID string) ([]models.Question, error)
	InsertReviewSession(s *models.ReviewSession) error
	ListReviewSessions(kbID string, filter models.HistoryFilter) ([]models.ReviewSession, error)
	QuestionAnswerHistory(kbID string, filter models.HistoryFilter) ([]models.HistoryItem, error)
}

// Evaluator scores a learner's answer and persists it.
type Evaluator interface {
	SubmitAnswer(ctx context.Context, questionID, userAnswer string) (*models.Answer, error)
}

// session is the in-memory state of one active review session. Its mutex
// serializes answer submissions so concurrent submits to the same session
// cannot double-count.
type session struct {
	mu sync.Mutex

	id      string
	kbID    string
	target  int
	pool    []models.Question
	current models.Question
	scores  []int
	state   State
	started time.Time
}

// Engine owns the active sessions. Completed sessions are persisted to the
// store and dropped from memory; abandoned ones are dropped without a row.
type Engine struct {
	store     Store
	evaluator Evaluator

	mu       sync.Mutex
	sessions map[string]*session
	rng      *rand.Rand
}

func NewEngine(store Store, evaluator Evaluator, rng *rand.Rand) *Engine {
	return &Engine{
		store:     store,
		evaluator: evaluator,
		sessions:  make(map[string]*session),
		rng:       rng,
	}
}

// Snapshot is the caller-facing view of a session.
type Snapshot struct {
	SessionID string
	Question  models.Question
	Answered  int
	Target    int
	Completed bool
}

// pick returns a uniformly chosen question from the pool. The engine mutex
// must be held; rand.Rand is not safe for concurrent use.
func (e *Engine) pick(pool []models.Question) models.Question {
	return pool[e.rng.Intn(len(pool))]
}

// StartSession opens a new session over the knowledge base's question pool
// and returns the first question. Selection is uniform with replacement, so
// short pools repeat questions rather than cutting the session short.
func (e *Engine) StartSession(kbID string, target int) (*Snapshot, error) {
	if target <= 0 {
		target = DefaultSessionLength
	}

	pool, err := e.store.ListQuestions(kbID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s := &session{
		id:      uuid.New().String(),
		kbID:    kbID,
		target:  target,
		pool:    pool,
		current: e.pick(pool),
		started: time.Now(),
		state:   StateAwaitingAnswer,
	}
	e.sessions[s.id] = s

	logger.Info("Review session started",
		zap.String("session_id", s.id),
		zap.String("kb_id", kbID),
		zap.Int("target", target),
		zap.Int("pool_size", len(pool)),
	)

	return &Snapshot{SessionID: s.id, Question: s.current, Answered: 0, Target: target}, nil
}

func (e *Engine) get(sessionID string) (*session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Current returns the question the session is waiting on.
func (e *Engine) Current(sessionID string) (*Snapshot, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return &Snapshot{
		SessionID: s.id,
		Question:  s.current,
		Answered:  len(s.scores),
		Target:    s.target,
		Completed: s.state == StateCompleted,
	}, nil
}

// Result is the outcome of one answer within a session.
type Result struct {
	Answer    *models.Answer
	Completed bool
	// Next is the following question when the session continues.
	Next *models.Question
	// Session is set when the answer completed the session.
	Session *models.ReviewSession
}

// SubmitAnswer evaluates the answer to the session's current question. On
// evaluation failure the session stays on the same question and nothing is
// persisted, so the learner can retry. Completing the target persists the
// session row and removes the session from memory.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, userAnswer string) (*Result, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return nil, ErrSessionComplete
	}

	answer, err := e.evaluator.SubmitAnswer(ctx, s.current.ID, userAnswer)
	if err != nil {
		return nil, err
	}

	score := 0
	if answer.AIScore != nil {
		score = *answer.AIScore
	}
	s.scores = append(s.scores, score)

	if len(s.scores) < s.target {
		e.mu.Lock()
		s.current = e.pick(s.pool)
		e.mu.Unlock()
		next := s.current
		return &Result{Answer: answer, Next: &next}, nil
	}

	record, err := e.complete(s)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: answer, Completed: true, Session: record}, nil
}

// complete persists the finished session and drops it from memory. The
// session mutex is held by the caller.
func (e *Engine) complete(s *session) (*models.ReviewSession, error) {
	var sum int
	for _, score := range s.scores {
		sum += score
	}

	record := &models.ReviewSession{
		ID:              s.id,
		KnowledgeBaseID: s.kbID,
		QuestionsCount:  len(s.scores),
		AverageScore:    float64(sum) / float64(len(s.scores)),
		DurationSec:     int64(time.Since(s.started).Seconds()),
		SessionDate:     time.Now(),
	}
	if err := e.store.InsertReviewSession(record); err != nil {
		return nil, fmt.Errorf("persist review session: %w", err)
	}

	s.state = StateCompleted
	e.mu.Lock()
	delete(e.sessions, s.id)
	e.mu.Unlock()

	metrics.ReviewSessionsCompleted.Inc()
	return record, nil
}

// EndSession closes a session before it reaches its target. Sessions with
// at least one answered question are persisted the same way a full run is;
// the returned record is nil when nothing was answered and the session was
// simply discarded.
func (e *Engine) EndSession(sessionID string) (*models.ReviewSession, error) {
	s, err := e.get(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCompleted {
		return nil, ErrSessionComplete
	}

	if len(s.scores) == 0 {
		e.mu.Lock()
		delete(e.sessions, s.id)
		e.mu.Unlock()
		logger.Info("Review session ended with no answers",
			zap.String("session_id", s.id))
		return nil, nil
	}

	record, err := e.complete(s)
	if err != nil {
		return nil, err
	}

	logger.Info("Review session ended early",
		zap.String("session_id", s.id),
		zap.Int("answered", record.QuestionsCount),
		zap.Int("target", s.target),
	)
	return record, nil
}

// Abandon drops an active session without persisting anything.
func (e *Engine) Abandon(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(e.sessions, sessionID)
	return nil
}

// RandomQuestion picks one question uniformly outside any session, for the
// single-shot review endpoint.
func (e *Engine) RandomQuestion(kbID string) (*models.Question, error) {
	pool, err := e.store.ListQuestions(kbID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	e.mu.Lock()
	q := e.pick(pool)
	e.mu.Unlock()
	return &q, nil
}

// ReviewQuestions picks up to count distinct questions uniformly, for batch
// review without the session state machine.
func (e *Engine) ReviewQuestions(kbID string, count int) ([]models.Question, error) {
	if count <= 0 {
		count = DefaultSessionLength
	}

	pool, err := e.store.ListQuestions(kbID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestions
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if count >= len(pool) {
		out := make([]models.Question, len(pool))
		copy(out, pool)
		e.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		return out, nil
	}

	perm := e.rng.Perm(len(pool))
	out := make([]models.Question, 0, count)
	for _, idx := range perm[:count] {
		out = append(out, pool[idx])
	}
	return out, nil
}
