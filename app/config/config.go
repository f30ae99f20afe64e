package config

import (
	"errors"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       Log       `yaml:"log"`
	Server    Server    `yaml:"server"`
	OpenAI    OpenAI    `yaml:"openai"`
	Google    Google    `yaml:"google"`
	Messenger Messenger `yaml:"messenger"`
	Knowledge Knowledge `yaml:"knowledge"`
}

type OpenAI struct {
	// OpenAI base url
	BaseURL string `yaml:"base_url" example:"https://api.openai.com/v1" validate:"required"`
	// OpenAI token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Chat completion model
	Model string `yaml:"model" example:"gpt-3.5-turbo" validate:"required"`
}

type Google struct {
	// Service account key as a raw JSON blob
	CredentialsJSON string `yaml:"credentials_json" validate:"required_without=CredentialsFile"`
	// Path to a service account key file
	CredentialsFile string `yaml:"credentials_file" example:"service-account-key.json" validate:"required_without=CredentialsJSON"`
	// Spreadsheet holding the product / size / FAQ tables
	SheetID string `yaml:"sheet_id" example:"1mBtwo9D7zj0b32TQl6zfyrrrjuM3eMj-7czWyg4UP3o" validate:"required"`
}

type Messenger struct {
	// Graph API base url
	BaseURL string `yaml:"base_url" example:"https://graph.facebook.com/v18.0" validate:"required"`
	// Page access token of the connected page
	PageAccessToken string `yaml:"page_access_token" validate:"required"`
	// Shared secret for the webhook subscribe handshake
	VerifyToken string `yaml:"verify_token" validate:"required"`
	// App secret for X-Hub-Signature-256 verification, disabled when empty
	AppSecret string `yaml:"app_secret"`
}

type Server struct {
	// Listen port
	Port string `yaml:"port" example:"8080" validate:"required"`
}

type Knowledge struct {
	// Cron expression for periodic sheet refresh
	RefreshCron string `yaml:"refresh_cron" example:"@hourly"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	var result Config

	data, err := os.ReadFile("config.yaml")
	if err == nil {
		if err = yaml.Unmarshal(data, &result); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, oops.Errorf("failed to read config file: %w", err)
	}

	// Environment always wins over config.yaml, matching the
	// deployment contract of the hosting platform.
	_ = godotenv.Load()
	applyEnv(&result)

	if result.OpenAI.BaseURL == "" {
		result.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if result.OpenAI.Model == "" {
		result.OpenAI.Model = "gpt-3.5-turbo"
	}
	if result.Messenger.BaseURL == "" {
		result.Messenger.BaseURL = "https://graph.facebook.com/v18.0"
	}
	if result.Server.Port == "" {
		result.Server.Port = "8080"
	}
	if result.Knowledge.RefreshCron == "" {
		result.Knowledge.RefreshCron = "@hourly"
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyEnv(cfg *Config) {
	setEnv(&cfg.OpenAI.Token, "OPENAI_API_KEY")
	setEnv(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setEnv(&cfg.OpenAI.Model, "CHAT_MODEL")
	setEnv(&cfg.Google.CredentialsJSON, "GOOGLE_APPLICATION_CREDENTIALS_JSON")
	setEnv(&cfg.Google.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setEnv(&cfg.Google.SheetID, "GOOGLE_SHEET_ID")
	setEnv(&cfg.Messenger.PageAccessToken, "PAGE_ACCESS_TOKEN")
	setEnv(&cfg.Messenger.BaseURL, "GRAPH_BASE_URL")
	setEnv(&cfg.Messenger.VerifyToken, "VERIFY_TOKEN")
	setEnv(&cfg.Messenger.AppSecret, "APP_SECRET")
	setEnv(&cfg.Server.Port, "PORT")
	setEnv(&cfg.Knowledge.RefreshCron, "REFRESH_CRON")
	setEnv(&cfg.Log.Telegram.Token, "TELEGRAM_LOG_TOKEN")
	setEnv(&cfg.Log.Telegram.ChatID, "TELEGRAM_LOG_CHAT_ID")
}

func setEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
