// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultResponse is returned to end users whenever a turn cannot be answered.
const DefaultResponse = "I apologize, but I'm having trouble processing your request. Please try again."

// DefaultTopicVocabulary lists the topic keywords tracked on user profiles.
var DefaultTopicVocabulary = []string{
	"sleep", "stress", "anxiety", "diet", "exercise",
	"nutrition", "supplements", "meditation", "wellness",
}

// Config holds all application configuration.
type Config struct {
	Port            string
	GRPCPort        string // empty disables the gRPC health endpoint
	FrontendURL     string
	DBPath          string
	DefaultResponse string
	Models          ModelConfig
	Timeouts        TimeoutConfig
	Pipeline        PipelineConfig
	WhatsApp        WhatsAppConfig
	ChatHistory     ChatHistoryConfig
	ConversationLog ConversationLogConfig
}

// ModelConfig selects the external model providers.
type ModelConfig struct {
	GoogleAPIKey string
	PlannerModel string
	AnswerModel  string
	SonarAPIKey  string
	SonarBaseURL string
	SonarModel   string
}

// TimeoutConfig bounds every call to an external collaborator.
type TimeoutConfig struct {
	Model       time.Duration
	Search      time.Duration
	Retrieval   time.Duration
	Persistence time.Duration
}

// PipelineConfig tunes the orchestration pipeline.
type PipelineConfig struct {
	RetrievalLimit   int
	ContextExchanges int
	TopicVocabulary  []string
}

// WhatsAppConfig controls the Twilio WhatsApp webhook.
type WhatsAppConfig struct {
	Enabled     bool
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// ChatHistoryConfig controls persisted chat history retention.
type ChatHistoryConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	whatsApp := WhatsAppConfig{
		AccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		AuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		PhoneNumber: getEnv("TWILIO_WHATSAPP_NUMBER", ""),
	}
	whatsApp.Enabled = getEnvBool("WHATSAPP_ENABLED",
		whatsApp.AccountSID != "" && whatsApp.AuthToken != "" && whatsApp.PhoneNumber != "")

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		GRPCPort:        getEnv("GRPC_PORT", ""),
		FrontendURL:     getEnv("FRONTEND_URL", ""),
		DBPath:          getEnv("DB_PATH", "./data/healthchat.db"),
		DefaultResponse: getEnv("DEFAULT_RESPONSE", DefaultResponse),
		Models: ModelConfig{
			GoogleAPIKey: getEnv("GOOGLE_API_KEY", ""),
			PlannerModel: getEnv("PLANNER_MODEL", "gemini-1.5-flash"),
			AnswerModel:  getEnv("ANSWER_MODEL", "gemini-1.5-pro"),
			SonarAPIKey:  getEnv("SONAR_API_KEY", ""),
			SonarBaseURL: getEnv("SONAR_BASE_URL", "https://api.perplexity.ai"),
			SonarModel:   getEnv("SONAR_MODEL", "llama-3.1-sonar-small-128k-online"),
		},
		Timeouts: TimeoutConfig{
			Model:       getEnvDuration("MODEL_TIMEOUT", 60*time.Second),
			Search:      getEnvDuration("SEARCH_TIMEOUT", 45*time.Second),
			Retrieval:   getEnvDuration("RETRIEVAL_TIMEOUT", 5*time.Second),
			Persistence: getEnvDuration("PERSISTENCE_TIMEOUT", 5*time.Second),
		},
		Pipeline: PipelineConfig{
			RetrievalLimit:   getEnvInt("RETRIEVAL_LIMIT", 5),
			ContextExchanges: getEnvInt("CONTEXT_EXCHANGES", 5),
			TopicVocabulary:  getEnvList("TOPIC_VOCABULARY", DefaultTopicVocabulary),
		},
		WhatsApp: whatsApp,
		ChatHistory: ChatHistoryConfig{
			Retention:     getEnvDuration("CHAT_HISTORY_RETENTION", 30*24*time.Hour),
			SweepInterval: getEnvDuration("CHAT_HISTORY_SWEEP_INTERVAL", time.Hour),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Models.GoogleAPIKey == "" {
		return fmt.Errorf("GOOGLE_API_KEY cannot be empty")
	}
	if c.DefaultResponse == "" {
		return fmt.Errorf("DEFAULT_RESPONSE cannot be empty")
	}
	if c.Pipeline.RetrievalLimit <= 0 {
		return fmt.Errorf("RETRIEVAL_LIMIT must be > 0")
	}
	if c.Pipeline.ContextExchanges <= 0 {
		return fmt.Errorf("CONTEXT_EXCHANGES must be > 0")
	}
	for name, d := range map[string]time.Duration{
		"MODEL_TIMEOUT":       c.Timeouts.Model,
		"SEARCH_TIMEOUT":      c.Timeouts.Search,
		"RETRIEVAL_TIMEOUT":   c.Timeouts.Retrieval,
		"PERSISTENCE_TIMEOUT": c.Timeouts.Persistence,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// ResearchEnabled reports whether an external research provider is configured.
func (c *Config) ResearchEnabled() bool {
	return c.Models.SonarAPIKey != ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList reads a comma-separated list, lowercasing and dropping blanks.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
