package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/backend/internal/storage"
	"github.com/studyowl/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, client.InitSchema())

	t.Cleanup(func() { client.Close() })
	return client
}

func seedKnowledgeBase(t *testing.T, c *Client, name string) *models.KnowledgeBase {
	t.Helper()

	now := time.Now()
	kb := &models.KnowledgeBase{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, c.CreateKnowledgeBase(kb))
	return kb
}

func TestKnowledgeBaseCRUD(t *testing.T) {
	client := newTestClient(t)

	kb := seedKnowledgeBase(t, client, "Biology")

	got, err := client.GetKnowledgeBase(kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Biology", got.Name)

	require.NoError(t, client.UpdateKnowledgeBase(kb.ID, "Cell Biology", "intro course"))

	got, err = client.GetKnowledgeBase(kb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Cell Biology", got.Name)
	assert.Equal(t, "intro course", got.Description)

	kbs, err := client.ListKnowledgeBases()
	require.NoError(t, err)
	assert.Len(t, kbs, 1)

	require.NoError(t, client.DeleteKnowledgeBase(kb.ID))

	_, err = client.GetKnowledgeBase(kb.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGetKnowledgeBaseNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetKnowledgeBase("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = client.UpdateKnowledgeBase("missing", "x", "")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = client.DeleteKnowledgeBase("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteKnowledgeBaseCascades(t *testing.T) {
	client := newTestClient(t)

	kb := seedKnowledgeBase(t, client, "History")

	doc := &models.Document{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		Filename:        "notes.txt",
		FileType:        models.FileTypeTXT,
		FilePath:        "/tmp/notes.txt",
		FileSize:        64,
		ContentText:     "The treaty was signed in 1648.",
		UploadDate:      time.Now(),
	}
	require.NoError(t, client.InsertDocument(doc))

	question := &models.Question{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		QuestionText:    "When was the treaty signed?",
		ContextSnippet:  "The treaty was signed in 1648.",
		GeneratedAt:     time.Now(),
	}
	require.NoError(t, client.InsertQuestion(question))

	score := 85
	answer := &models.Answer{
		ID:            uuid.New().String(),
		QuestionID:    question.ID,
		UserAnswer:    "1648",
		AIScore:       &score,
		AIFeedback:    "Correct.",
		AISuggestions: []string{"mention the location"},
		AnsweredAt:    time.Now(),
	}
	require.NoError(t, client.InsertAnswer(answer))

	session := &models.ReviewSession{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		QuestionsCount:  1,
		AverageScore:    85,
		DurationSec:     120,
		SessionDate:     time.Now(),
	}
	require.NoError(t, client.InsertReviewSession(session))

	require.NoError(t, client.DeleteKnowledgeBase(kb.ID))

	docs, err := client.ListDocuments(kb.ID)
	require.NoError(t, err)
	assert.Empty(t, docs)

	questions, err := client.ListQuestions(kb.ID)
	require.NoError(t, err)
	assert.Empty(t, questions)

	answers, err := client.ListAnswersByQuestion(question.ID)
	require.NoError(t, err)
	assert.Empty(t, answers)

	sessions, err := client.ListReviewSessions(kb.ID, models.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestInsertDocumentForeignKey(t *testing.T) {
	client := newTestClient(t)

	doc := &models.Document{
		ID:              uuid.New().String(),
		KnowledgeBaseID: "no-such-kb",
		Filename:        "orphan.txt",
		FileType:        models.FileTypeTXT,
		FilePath:        "/tmp/orphan.txt",
		FileSize:        10,
		UploadDate:      time.Now(),
	}
	err := client.InsertDocument(doc)
	assert.ErrorIs(t, err, storage.ErrConstraint)
}

func TestAnswerRoundTrip(t *testing.T) {
	client := newTestClient(t)

	kb := seedKnowledgeBase(t, client, "Chemistry")
	question := &models.Question{
		ID:              uuid.New().String(),
		KnowledgeBaseID: kb.ID,
		QuestionText:    "What is the atomic number of carbon?",
		GeneratedAt:     time.Now(),
	}
	require.NoError(t, client.InsertQuestion(question))

	score := 92
	answer := &models.Answer{
		ID:            uuid.New().String(),
		QuestionID:    question.ID,
		UserAnswer:    "6",
		AIScore:       &score,
		AIFeedback:    "Exactly right.",
		AISuggestions: []string{"relate it to the periodic table", "mention isotopes"},
		AnsweredAt:    time.Now(),
	}
	require.NoError(t, client.InsertAnswer(answer))

	answers, err := client.ListAnswersByQuestion(question.ID)
	require.NoError(t, err)
	require.Len(t, answers, 1)

	got := answers[0]
	require.NotNil(t, got.AIScore)
	assert.Equal(t, 92, *got.AIScore)
	assert.Equal(t, []string{"relate it to the periodic table", "mention isotopes"}, got.AISuggestions)
}

func TestQuestionAnswerHistoryFilters(t *testing.T) {
	client := newTestClient(t)

	kb := seedKnowledgeBase(t, client, "Physics")

	base := time.Now().Add(-time.Hour)
	scores := []int{40, 70, 95}
	for i, s := range scores {
		q := &models.Question{
			ID:              uuid.New().String(),
			KnowledgeBaseID: kb.ID,
			QuestionText:    "q",
			GeneratedAt:     base,
		}
		require.NoError(t, client.InsertQuestion(q))

		score := s
		a := &models.Answer{
			ID:         uuid.New().String(),
			QuestionID: q.ID,
			UserAnswer: "a",
			AIScore:    &score,
			AnsweredAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, client.InsertAnswer(a))
	}

	all, err := client.QuestionAnswerHistory(kb.ID, models.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest answer first.
	assert.Equal(t, 95, *all[0].Answer.AIScore)

	min := 60
	filtered, err := client.QuestionAnswerHistory(kb.ID, models.HistoryFilter{MinScore: &min})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	max := 50
	filtered, err = client.QuestionAnswerHistory(kb.ID, models.HistoryFilter{MaxScore: &max})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 40, *filtered[0].Answer.AIScore)

	start := base.Add(90 * time.Second)
	filtered, err = client.QuestionAnswerHistory(kb.ID, models.HistoryFilter{StartDate: &start})
	require.NoError(t, err)
	assert.Len(t, filtered, 1)

	limited, err := client.QuestionAnswerHistory(kb.ID, models.HistoryFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReviewSessionFilters(t *testing.T) {
	client := newTestClient(t)

	kb := seedKnowledgeBase(t, client, "Math")

	base := time.Now().Add(-2 * time.Hour)
	for i, avg := range []float64{55, 75, 90} {
		s := &models.ReviewSession{
			ID:              uuid.New().String(),
			KnowledgeBaseID: kb.ID,
			QuestionsCount:  5,
			AverageScore:    avg,
			DurationSec:     300,
			SessionDate:     base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, client.InsertReviewSession(s))
	}

	sessions, err := client.ListReviewSessions(kb.ID, models.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, 90.0, sessions[0].AverageScore)

	min := 70
	sessions, err = client.ListReviewSessions(kb.ID, models.HistoryFilter{MinScore: &min})
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestAIConfigPutReplacesSingleton(t *testing.T) {
	client := newTestClient(t)

	_, err := client.GetAIConfig()
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := &models.AIConfig{
		Provider:    models.ProviderDeepSeek,
		APIKey:      "sk-test",
		ModelName:   "deepseek-chat",
		MaxTokens:   1000,
		Temperature: 0.7,
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, client.PutAIConfig(first))

	second := &models.AIConfig{
		Provider:    models.ProviderLocal,
		APIURL:      "http://localhost:11434/v1",
		ModelName:   "llama3",
		MaxTokens:   2000,
		Temperature: 0.5,
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, client.PutAIConfig(second))

	got, err := client.GetAIConfig()
	require.NoError(t, err)
	assert.Equal(t, models.ProviderLocal, got.Provider)
	assert.Equal(t, "http://localhost:11434/v1", got.APIURL)
	assert.Empty(t, got.APIKey)
	assert.Equal(t, 2000, got.MaxTokens)
}
