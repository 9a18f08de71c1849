package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/backend/internal/ai"
	"github.com/studyowl/backend/internal/storage"
	"github.com/studyowl/backend/internal/storage/models"
)

type fakeConfigStore struct {
	cfg *models.AIConfig
}

func (f *fakeConfigStore) GetAIConfig() (*models.AIConfig, error) {
	if f.cfg == nil {
		return nil, storage.ErrNotFound
	}
	return f.cfg, nil
}

func (f *fakeConfigStore) PutAIConfig(cfg *models.AIConfig) error {
	f.cfg = cfg
	return nil
}

func newConfigApp(store ConfigStore) *fiber.App {
	h := NewConfigHandler(store, ai.NewGateway(2*time.Second))
	app := fiber.New()
	app.Get("/config", h.Get)
	app.Put("/config", h.Save)
	app.Post("/config/test", h.Test)
	return app
}

func newChatBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "OK"}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConnectionTestAcceptsPartialConfig(t *testing.T) {
	backend := newChatBackend(t)
	app := newConfigApp(&fakeConfigStore{})

	// Only provider and api_url, no model or generation settings.
	req := httptest.NewRequest("POST", "/config/test",
		jsonBody(t, map[string]interface{}{"provider": "local", "api_url": backend.URL}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestConnectionTestStillRequiresCredentials(t *testing.T) {
	app := newConfigApp(&fakeConfigStore{})

	req := httptest.NewRequest("POST", "/config/test",
		jsonBody(t, map[string]interface{}{"provider": "deepseek"}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSaveRejectsMissingModelName(t *testing.T) {
	store := &fakeConfigStore{}
	app := newConfigApp(store)

	req := httptest.NewRequest("PUT", "/config",
		jsonBody(t, map[string]interface{}{
			"provider":    "deepseek",
			"api_key":     "k",
			"max_tokens":  1000,
			"temperature": 0.7,
		}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Nil(t, store.cfg, "invalid config must not be persisted")
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	backend := newChatBackend(t)
	store := &fakeConfigStore{}
	app := newConfigApp(store)

	req := httptest.NewRequest("PUT", "/config",
		jsonBody(t, map[string]interface{}{
			"provider":    "local",
			"api_url":     backend.URL,
			"model_name":  "llama3",
			"max_tokens":  1000,
			"temperature": 0.7,
		}))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, store.cfg)

	resp, err = app.Test(httptest.NewRequest("GET", "/config", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "local", body["provider"])
	assert.Equal(t, "llama3", body["model_name"])
	assert.Equal(t, false, body["api_key_configured"])
}
