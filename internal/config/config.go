package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphlearn/internal/util"
	"github.com/OFFIS-RIT/graphlearn/pkg/graph"

	"github.com/go-playground/validator"
)

// Config is built once at startup and handed to every component constructor.
type Config struct {
	Port           int    `validate:"min=1,max=65535"`
	Debug          bool
	LogJSON        bool
	DatabaseURL    string `validate:"required"`
	MigrationsPath string
	AutoMigrate    bool

	Storage  StorageConfig
	AI       AIConfig
	Scrape   ScrapeConfig
	Pipeline PipelineConfig
}

type StorageConfig struct {
	Adapter   string `validate:"oneof=s3 local"`
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	LocalRoot string
	MaxBytes  int64 `validate:"gt=0"`
}

type AIConfig struct {
	Adapter          string  `validate:"oneof=openai ollama gemini"`
	ChatModel        string
	ChatURL          string
	ChatKey          string
	Temperature      float64       `validate:"min=0,max=2"`
	MaxTokens        int           `validate:"min=0"`
	Timeout          time.Duration `validate:"gt=0"`
	ParallelRequests int           `validate:"min=1"`
	RepairJSON       bool
	JSONMode         bool
}

type ScrapeConfig struct {
	BaseURL       string  `validate:"required"`
	Mode          string  `validate:"oneof=paragraphs readability"`
	MaxChars      int     `validate:"min=1"`
	RatePerSecond float64 `validate:"min=0"`
	UserAgent     string
	Timeout       time.Duration `validate:"gt=0"`
}

type PipelineConfig struct {
	MinTextChars      int `validate:"min=1"`
	MaxPromptChars    int `validate:"min=1"`
	ExpansionLevel    int `validate:"min=2"`
	MergeStrategy     graph.MergeStrategy
	CallTimeout       time.Duration `validate:"gt=0"`
	TempDir           string
	PdftotextFallback bool
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	strategy, err := graph.ParseMergeStrategy(util.GetEnv("PIPELINE_MERGE_STRATEGY"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid PIPELINE_MERGE_STRATEGY: %w", err)
	}

	cfg := Config{
		Port:           util.GetEnvInt("PORT", 8080),
		Debug:          util.GetEnvBool("DEBUG", false),
		LogJSON:        util.GetEnvBool("LOG_JSON", false),
		DatabaseURL:    util.GetEnv("DATABASE_URL"),
		MigrationsPath: util.GetEnvString("MIGRATIONS_PATH", "migrations"),
		AutoMigrate:    util.GetEnvBool("AUTO_MIGRATE", true),
		Storage: StorageConfig{
			Adapter:   strings.ToLower(util.GetEnvString("STORAGE_ADAPTER", "s3")),
			Bucket:    util.GetEnvString("AWS_BUCKET", "documents"),
			Region:    util.GetEnvString("AWS_REGION", "us-east-1"),
			Endpoint:  util.GetEnv("AWS_ENDPOINT"),
			AccessKey: util.GetEnv("AWS_ACCESS_KEY"),
			SecretKey: util.GetEnv("AWS_SECRET_KEY"),
			LocalRoot: util.GetEnv("LOCAL_STORAGE_ROOT"),
			MaxBytes:  int64(util.GetEnvInt("STORAGE_MAX_MB", 100)) << 20,
		},
		AI: AIConfig{
			Adapter:          strings.ToLower(util.GetEnvString("AI_ADAPTER", "openai")),
			ChatModel:        util.GetEnv("AI_CHAT_MODEL"),
			ChatURL:          util.GetEnv("AI_CHAT_URL"),
			ChatKey:          util.GetEnv("AI_CHAT_KEY"),
			Temperature:      util.GetEnvFloat("AI_TEMPERATURE", 0.2),
			MaxTokens:        util.GetEnvInt("AI_MAX_TOKENS", 8192),
			Timeout:          util.GetEnvDuration("AI_TIMEOUT", graph.DefaultModelTimeout),
			ParallelRequests: util.GetEnvInt("AI_PARALLEL_REQ", 4),
			RepairJSON:       util.GetEnvBool("AI_REPAIR_JSON", false),
			JSONMode:         util.GetEnvBool("AI_JSON_MODE", true),
		},
		Scrape: ScrapeConfig{
			BaseURL:       util.GetEnvString("SCRAPE_BASE_URL", "https://en.wikipedia.org/wiki/"),
			Mode:          strings.ToLower(util.GetEnvString("SCRAPE_MODE", "paragraphs")),
			MaxChars:      util.GetEnvInt("SCRAPE_MAX_CHARS", 10000),
			RatePerSecond: util.GetEnvFloat("SCRAPE_RATE_PER_SEC", 2),
			UserAgent:     util.GetEnv("SCRAPE_USER_AGENT"),
			Timeout:       util.GetEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			MinTextChars:      util.GetEnvInt("PIPELINE_MIN_TEXT_CHARS", 50),
			MaxPromptChars:    util.GetEnvInt("PIPELINE_MAX_PROMPT_CHARS", graph.DefaultMaxInputChars),
			ExpansionLevel:    util.GetEnvInt("PIPELINE_EXPANSION_LEVEL", graph.DefaultExpansionLevel),
			MergeStrategy:     strategy,
			CallTimeout:       util.GetEnvDuration("PIPELINE_CALL_TIMEOUT", 60*time.Second),
			TempDir:           util.GetEnv("PIPELINE_TEMP_DIR"),
			PdftotextFallback: util.GetEnvBool("PDF_PDFTOTEXT_FALLBACK", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the keys each selected adapter needs.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var missing []string
	switch c.AI.Adapter {
	case "openai":
		if c.AI.ChatKey == "" {
			missing = append(missing, "AI_CHAT_KEY")
		}
		if c.AI.ChatModel == "" {
			missing = append(missing, "AI_CHAT_MODEL")
		}
	case "ollama":
		if c.AI.ChatModel == "" {
			missing = append(missing, "AI_CHAT_MODEL")
		}
	case "gemini":
		if c.AI.ChatKey == "" {
			missing = append(missing, "AI_CHAT_KEY")
		}
	}
	switch c.Storage.Adapter {
	case "s3":
		if c.Storage.Bucket == "" {
			missing = append(missing, "AWS_BUCKET")
		}
	case "local":
		if c.Storage.LocalRoot == "" {
			missing = append(missing, "LOCAL_STORAGE_ROOT")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
