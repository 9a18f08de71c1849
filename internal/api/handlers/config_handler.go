package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/studyowl/backend/internal/ai"
	"github.com/studyowl/backend/internal/storage/models"
	"github.com/studyowl/backend/pkg/logger"
)

// ConfigStore persists the singleton AI configuration.
type ConfigStore interface {
	GetAIConfig() (*models.AIConfig, error)
	PutAIConfig(cfg *models.AIConfig) error
}

type ConfigHandler struct {
	store   ConfigStore
	gateway *ai.Gateway
}

func NewConfigHandler(store ConfigStore, gateway *ai.Gateway) *ConfigHandler {
	return &ConfigHandler{store: store, gateway: gateway}
}

type configRequest struct {
	Provider    string  `json:"provider"`
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	ModelName   string  `json:"model_name"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

func (r *configRequest) toModel() (*models.AIConfig, error) {
	provider, ok := models.ParseAIProvider(r.Provider)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Unknown provider")
	}
	return &models.AIConfig{
		Provider:    provider,
		APIKey:      r.APIKey,
		APIURL:      r.APIURL,
		ModelName:   r.ModelName,
		MaxTokens:   r.MaxTokens,
		Temperature: r.Temperature,
		UpdatedAt:   time.Now(),
	}, nil
}

// Get returns the stored configuration without the API key. The boolean
// api_key_configured lets the UI show whether a key is set.
func (h *ConfigHandler) Get(c *fiber.Ctx) error {
	cfg, err := h.store.GetAIConfig()
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"provider":           string(cfg.Provider),
		"api_key_configured": cfg.APIKey != "",
		"api_url":            cfg.APIURL,
		"model_name":         cfg.ModelName,
		"max_tokens":         cfg.MaxTokens,
		"temperature":        cfg.Temperature,
		"updated_at":         cfg.UpdatedAt.Unix(),
	})
}

// Save validates, persists and activates a new provider configuration in
// one step. Validation failures leave the stored config untouched.
func (h *ConfigHandler) Save(c *fiber.Ctx) error {
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cfg, err := req.toModel()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown provider",
		})
	}

	if err := ai.ValidateConfig(cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.store.PutAIConfig(cfg); err != nil {
		logger.Error("Failed to persist AI config", zap.Error(err))
		return fail(c, err)
	}

	if err := h.gateway.Configure(cfg); err != nil {
		logger.Error("Failed to activate AI config", zap.Error(err))
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"message": "Configuration saved"})
}

// applyTestDefaults fills in the fields a connection check can safely
// assume, so a partial config (provider plus credentials) is testable
// before the user has dialed in the generation settings.
func applyTestDefaults(cfg *models.AIConfig) {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.ModelName == "" {
		switch cfg.Provider {
		case models.ProviderDeepSeek:
			cfg.ModelName = "deepseek-chat"
		case models.ProviderOpenAI:
			cfg.ModelName = "gpt-3.5-turbo"
		case models.ProviderLocal:
			cfg.ModelName = "llama3"
		}
	}
}

// Test exercises a candidate configuration without persisting it. Unlike
// Save, missing generation settings are defaulted rather than rejected.
func (h *ConfigHandler) Test(c *fiber.Ctx) error {
	var req configRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	cfg, err := req.toModel()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown provider",
		})
	}

	applyTestDefaults(cfg)
	if err := ai.ValidateConfig(cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.gateway.TestConnection(c.Context(), cfg); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"message": "Connection successful"})
}
