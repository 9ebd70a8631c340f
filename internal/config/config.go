// Package config provides configuration management for the PDF translator.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name.
	DefaultConfigFileName = "pdf-translator-config.json"
	// EnvOpenAIAPIKey is the environment variable holding the API key.
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable holding the API base URL.
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// DefaultBaseURL is the default OpenAI-compatible API base URL.
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultModel is the default chat model.
	DefaultModel = "gpt-4o-mini"
	// DefaultService is the default translation backend.
	DefaultService = "openai"
	// DefaultContextWindow bounds translation batch size in tokens.
	DefaultContextWindow = 8192
	// DefaultConcurrency is the number of translation batches in flight.
	DefaultConcurrency = 4
	// DefaultRenderDPI is the rasterization resolution for layout detection.
	DefaultRenderDPI = 150
	// DefaultSourceLang and DefaultTargetLang are the default language pair.
	DefaultSourceLang = "en"
	DefaultTargetLang = "zh"
)

// Manager loads, defaults and persists the application configuration.
type Manager struct {
	configPath string
	config     *types.Config
}

// NewManager creates a Manager for the given config path. An empty path
// selects the default location under the user's config directory.
func NewManager(configPath string) (*Manager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-translator", DefaultConfigFileName)
	}

	logger.Info("config manager initialized", logger.String("configPath", configPath))
	return &Manager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

func defaultConfig() *types.Config {
	return &types.Config{
		OpenAIBaseURL: DefaultBaseURL,
		OpenAIModel:   DefaultModel,
		Service:       DefaultService,
		SourceLang:    DefaultSourceLang,
		TargetLang:    DefaultTargetLang,
		ContextWindow: DefaultContextWindow,
		Concurrency:   DefaultConcurrency,
		RenderDPI:     DefaultRenderDPI,
	}
}

// Load reads the config file. A missing file or invalid JSON falls back to
// defaults; empty fields are filled with their default values afterwards.
func (m *Manager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
		m.config = defaultConfig()
	case err != nil:
		logger.Error("failed to read config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to read config file", err)
	default:
		cfg := &types.Config{}
		if err := json.Unmarshal(data, cfg); err != nil {
			logger.Warn("invalid config file format, using defaults",
				logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(cfg.OpenAIAPIKey)),
				logger.String("model", cfg.OpenAIModel),
				logger.String("service", cfg.Service))
			m.config = cfg
		}
	}

	m.applyDefaults()
	return nil
}

func (m *Manager) applyDefaults() {
	if m.config.OpenAIBaseURL == "" {
		m.config.OpenAIBaseURL = DefaultBaseURL
	}
	if m.config.OpenAIModel == "" {
		m.config.OpenAIModel = DefaultModel
	}
	if m.config.Service == "" {
		m.config.Service = DefaultService
	}
	if m.config.SourceLang == "" {
		m.config.SourceLang = DefaultSourceLang
	}
	if m.config.TargetLang == "" {
		m.config.TargetLang = DefaultTargetLang
	}
	if m.config.ContextWindow == 0 {
		m.config.ContextWindow = DefaultContextWindow
	}
	if m.config.Concurrency == 0 {
		m.config.Concurrency = DefaultConcurrency
	}
	if m.config.RenderDPI == 0 {
		m.config.RenderDPI = DefaultRenderDPI
	}
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	// 0600: the file may hold an API key.
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig replaces the configuration.
func (m *Manager) SetConfig(cfg *types.Config) {
	m.config = cfg
}

// GetConfigPath returns the config file location.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// GetAPIKey returns the API key from the config file, falling back to the
// OPENAI_API_KEY environment variable.
func (m *Manager) GetAPIKey() string {
	if m.config != nil && m.config.OpenAIAPIKey != "" {
		return m.config.OpenAIAPIKey
	}
	return os.Getenv(EnvOpenAIAPIKey)
}

// GetBaseURL returns the API base URL from the config file, falling back to
// the OPENAI_BASE_URL environment variable, then the default.
func (m *Manager) GetBaseURL() string {
	if m.config != nil && m.config.OpenAIBaseURL != "" {
		return m.config.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetModel returns the chat model name.
func (m *Manager) GetModel() string {
	if m.config != nil && m.config.OpenAIModel != "" {
		return m.config.OpenAIModel
	}
	return DefaultModel
}

// GetService returns the translation backend name.
func (m *Manager) GetService() string {
	if m.config != nil && m.config.Service != "" {
		return m.config.Service
	}
	return DefaultService
}

// GetContextWindow returns the batch-size bound in tokens.
func (m *Manager) GetContextWindow() int {
	if m.config != nil && m.config.ContextWindow > 0 {
		return m.config.ContextWindow
	}
	return DefaultContextWindow
}

// GetConcurrency returns the number of translation batches in flight.
func (m *Manager) GetConcurrency() int {
	if m.config != nil && m.config.Concurrency > 0 {
		return m.config.Concurrency
	}
	return DefaultConcurrency
}

// GetRenderDPI returns the rasterization resolution.
func (m *Manager) GetRenderDPI() int {
	if m.config != nil && m.config.RenderDPI > 0 {
		return m.config.RenderDPI
	}
	return DefaultRenderDPI
}

// GetWorkDirectory returns the work directory, empty for the process default.
func (m *Manager) GetWorkDirectory() string {
	if m.config != nil {
		return m.config.WorkDirectory
	}
	return ""
}
