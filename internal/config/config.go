// Package config provides configuration management for the document translation backend.
//
// Settings are resolved from three layers: the JSON config file, a .env file in
// the working directory, and process environment variables. File values win over
// the environment so an operator can pin credentials per deployment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"doc-translator/internal/logger"
	"doc-translator/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "doc-translator-config.json"
	// EnvOpenAIAPIKey is the environment variable name for OpenAI API key
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	// EnvOpenAIBaseURL is the environment variable name for OpenAI base URL
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	// EnvBaiduAPIKey is the environment variable name for the Baidu translation API key
	EnvBaiduAPIKey = "BAIDU_TRANS_API_KEY"
	// EnvBaiduSecretKey is the environment variable name for the Baidu translation secret key
	EnvBaiduSecretKey = "BAIDU_TRANS_SECRET_KEY"
	// EnvPdflatexPath overrides the pdflatex executable location
	EnvPdflatexPath = "PDFLATEX_PATH"
	// EnvChromePath overrides the Chrome/Chromium executable location
	EnvChromePath = "CHROME_PATH"
	// DefaultBaseURL is the default OpenAI API base URL
	DefaultBaseURL = "https://api.openai.com/v1"
	// DefaultVisionModel is the default model for poster transcription
	DefaultVisionModel = "gpt-4o"
	// DefaultTextModel is the default model for HTML text translation
	DefaultTextModel = "gpt-4o-mini"
	// DefaultTargetLanguage is the default translation target
	DefaultTargetLanguage = "zh"
)

// Settings holds all user-adjustable settings for the backend.
type Settings struct {
	OpenAIAPIKey   string `json:"openai_api_key"`
	OpenAIBaseURL  string `json:"openai_base_url"`
	VisionModel    string `json:"vision_model"`
	TextModel      string `json:"text_model"`
	BaiduAPIKey    string `json:"baidu_api_key"`
	BaiduSecretKey string `json:"baidu_secret_key"`
	PdflatexPath   string `json:"pdflatex_path"`
	ChromePath     string `json:"chrome_path"`
	WorkDirectory  string `json:"work_directory"`
	TargetLanguage string `json:"target_language"`
}

// ConfigManager manages backend configuration
type ConfigManager struct {
	configPath string
	settings   *Settings
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "doc-translator", DefaultConfigFileName)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		settings:   defaultSettings(),
	}, nil
}

func defaultSettings() *Settings {
	return &Settings{
		OpenAIBaseURL:  DefaultBaseURL,
		VisionModel:    DefaultVisionModel,
		TextModel:      DefaultTextModel,
		TargetLanguage: DefaultTargetLanguage,
	}
}

// Load loads configuration from a .env file (if present) and the config file.
// A missing config file is not an error; defaults are used instead.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	// .env values only fill environment variables that are not already set
	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.settings = defaultSettings()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		settings := &Settings{}
		if err := json.Unmarshal(data, settings); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.settings = defaultSettings()
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.Int("apiKeyLength", len(settings.OpenAIAPIKey)),
				logger.String("baseURL", settings.OpenAIBaseURL))
			m.settings = settings
		}
	}

	// Apply defaults for empty fields
	if m.settings.OpenAIBaseURL == "" {
		m.settings.OpenAIBaseURL = DefaultBaseURL
	}
	if m.settings.VisionModel == "" {
		m.settings.VisionModel = DefaultVisionModel
	}
	if m.settings.TextModel == "" {
		m.settings.TextModel = DefaultTextModel
	}
	if m.settings.TargetLanguage == "" {
		m.settings.TargetLanguage = DefaultTargetLanguage
	}

	return nil
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// fromSettingsOrEnv returns the config file value if set, otherwise the
// environment variable value (which may be empty).
func fromSettingsOrEnv(value, envName string) string {
	if value != "" {
		return value
	}
	return os.Getenv(envName)
}

// GetOpenAIAPIKey returns the OpenAI API key, config file first, then environment.
func (m *ConfigManager) GetOpenAIAPIKey() string {
	return fromSettingsOrEnv(m.settings.OpenAIAPIKey, EnvOpenAIAPIKey)
}

// GetBaseURL returns the OpenAI API base URL.
func (m *ConfigManager) GetBaseURL() string {
	if m.settings.OpenAIBaseURL != "" && m.settings.OpenAIBaseURL != DefaultBaseURL {
		return m.settings.OpenAIBaseURL
	}
	if envURL := os.Getenv(EnvOpenAIBaseURL); envURL != "" {
		return envURL
	}
	return DefaultBaseURL
}

// GetBaiduAPIKey returns the Baidu translation API key.
func (m *ConfigManager) GetBaiduAPIKey() string {
	return fromSettingsOrEnv(m.settings.BaiduAPIKey, EnvBaiduAPIKey)
}

// GetBaiduSecretKey returns the Baidu translation secret key.
func (m *ConfigManager) GetBaiduSecretKey() string {
	return fromSettingsOrEnv(m.settings.BaiduSecretKey, EnvBaiduSecretKey)
}

// GetPdflatexPath returns the configured pdflatex path, if any.
func (m *ConfigManager) GetPdflatexPath() string {
	return fromSettingsOrEnv(m.settings.PdflatexPath, EnvPdflatexPath)
}

// GetChromePath returns the configured Chrome executable path, if any.
func (m *ConfigManager) GetChromePath() string {
	return fromSettingsOrEnv(m.settings.ChromePath, EnvChromePath)
}

// GetVisionModel returns the model used for poster transcription.
func (m *ConfigManager) GetVisionModel() string {
	if m.settings.VisionModel != "" {
		return m.settings.VisionModel
	}
	return DefaultVisionModel
}

// GetTextModel returns the model used for HTML text translation.
func (m *ConfigManager) GetTextModel() string {
	if m.settings.TextModel != "" {
		return m.settings.TextModel
	}
	return DefaultTextModel
}

// GetTargetLanguage returns the default translation target language.
func (m *ConfigManager) GetTargetLanguage() string {
	if m.settings.TargetLanguage != "" {
		return m.settings.TargetLanguage
	}
	return DefaultTargetLanguage
}

// GetWorkDirectory returns the work directory.
func (m *ConfigManager) GetWorkDirectory() string {
	return m.settings.WorkDirectory
}

// SetWorkDirectory sets the work directory without saving.
func (m *ConfigManager) SetWorkDirectory(dir string) {
	m.settings.WorkDirectory = dir
}

// GetSettings returns the current settings.
func (m *ConfigManager) GetSettings() *Settings {
	if m.settings == nil {
		return defaultSettings()
	}
	return m.settings
}

// SetSettings replaces the entire settings object.
func (m *ConfigManager) SetSettings(s *Settings) {
	m.settings = s
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}
