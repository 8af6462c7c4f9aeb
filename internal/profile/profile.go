package profile

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol).
	// All providers (groq, openai, deepseek, siliconflow, openrouter, ollama) use the same config.
	LLMProvider string // Provider identifier
	LLMAPIKey   string // API key, required outside demo mode
	LLMBaseURL  string // Base URL (optional, has default per provider)
	LLMModel    string // Model name: llama-3.3-70b-versatile, gpt-4o-mini, etc.
	LLMTimeout  int    // LLM request timeout in seconds (default: 60)

	// Text-to-speech configuration
	TTSEndpoint string
	TTSAPIKey   string
	TTSVoice    string

	// Text-to-image configuration
	ImageEndpoint string
	ImageAPIKey   string
	ImageModel    string

	// Channel credentials
	TelegramBotToken string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string // e.g. "whatsapp:+14155238886"

	// Persona text blocks. Empty values fall back to the built-in defaults.
	PersonaText  string
	BehaviorText string
	SafetyText   string

	// Memory limits
	MaxPreferences     int
	MaxEmotionalTrends int
	MaxTopicInterests  int
	MaxFacts           int
	MaxHistory         int
	MaxShortTermTurns  int

	// Modality thresholds, probabilities in [0,1)
	VoiceProbability float64
	ImageProbability float64

	// Knowledge corpus directory (optional)
	KnowledgeDir string

	// Server
	Mode        string // demo, dev, prod
	Addr        string
	Port        int
	Data        string // data directory (memory records, generated media)
	Driver      string // memory persistence driver: file, sqlite
	DSN         string
	InstanceURL string // public base URL for serving generated media
	Version     string
}

// Provider default configurations for the LLM.
// Used when AURA_LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"groq": {
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.3-70b-versatile",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsTelegramEnabled returns true if the Telegram channel can be started.
func (p *Profile) IsTelegramEnabled() bool {
	return p.TelegramBotToken != ""
}

// IsWhatsAppEnabled returns true if the Twilio WhatsApp channel can be started.
func (p *Profile) IsWhatsAppEnabled() bool {
	return p.TwilioAccountSID != "" && p.TwilioAuthToken != ""
}

// IsTTSEnabled returns true if voice synthesis is configured.
func (p *Profile) IsTTSEnabled() bool {
	return p.TTSEndpoint != ""
}

// IsImageEnabled returns true if image generation is configured.
func (p *Profile) IsImageEnabled() bool {
	return p.ImageEndpoint != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("AURA_LLM_PROVIDER", "groq")
	p.LLMAPIKey = getEnvOrDefault("AURA_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("AURA_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("AURA_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("AURA_LLM_TIMEOUT_SECONDS", 60)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("Unknown LLM provider, treating as generic OpenAI-compatible", "provider", p.LLMProvider)
		}
	}
	if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = defaults.BaseURL
		}
		if p.LLMModel == "" {
			p.LLMModel = defaults.Model
		}
	}

	p.TTSEndpoint = getEnvOrDefault("AURA_TTS_ENDPOINT", "")
	p.TTSAPIKey = getEnvOrDefault("AURA_TTS_API_KEY", "")
	p.TTSVoice = getEnvOrDefault("AURA_TTS_VOICE", "alloy")

	p.ImageEndpoint = getEnvOrDefault("AURA_IMAGE_ENDPOINT", "")
	p.ImageAPIKey = getEnvOrDefault("AURA_IMAGE_API_KEY", "")
	p.ImageModel = getEnvOrDefault("AURA_IMAGE_MODEL", "")

	p.TelegramBotToken = getEnvOrDefault("AURA_TELEGRAM_BOT_TOKEN", "")
	p.TwilioAccountSID = getEnvOrDefault("AURA_TWILIO_SID", "")
	p.TwilioAuthToken = getEnvOrDefault("AURA_TWILIO_AUTH", "")
	p.TwilioFromNumber = getEnvOrDefault("AURA_TWILIO_NUMBER", "")

	p.PersonaText = getEnvOrDefault("AURA_PERSONA", "")
	p.BehaviorText = getEnvOrDefault("AURA_BEHAVIOR", "")
	p.SafetyText = getEnvOrDefault("AURA_SAFETY_RULES", "")

	p.MaxPreferences = getEnvOrDefaultInt("AURA_MAX_PREFERENCES", 10)
	p.MaxEmotionalTrends = getEnvOrDefaultInt("AURA_MAX_EMOTIONAL_TRENDS", 10)
	p.MaxTopicInterests = getEnvOrDefaultInt("AURA_MAX_TOPIC_INTERESTS", 10)
	p.MaxFacts = getEnvOrDefaultInt("AURA_MAX_FACTS", 10)
	p.MaxHistory = getEnvOrDefaultInt("AURA_MAX_HISTORY", 40)
	p.MaxShortTermTurns = getEnvOrDefaultInt("AURA_MAX_SHORT_TERM_TURNS", 10)

	p.VoiceProbability = getEnvOrDefaultFloat("AURA_VOICE_PROBABILITY", 0.25)
	p.ImageProbability = getEnvOrDefaultFloat("AURA_IMAGE_PROBABILITY", 0.12)

	p.KnowledgeDir = getEnvOrDefault("AURA_KNOWLEDGE_DIR", "")
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		p.Driver = "file"
	}
	if p.Driver != "file" && p.Driver != "sqlite" {
		return errors.Errorf("unsupported memory driver %q, expected file or sqlite", p.Driver)
	}

	// A missing LLM credential is a startup failure, not a per-request one.
	if p.Mode != "demo" && p.LLMAPIKey == "" {
		return errors.New("AURA_LLM_API_KEY is required outside demo mode")
	}

	if p.VoiceProbability < 0 || p.VoiceProbability >= 1 {
		return errors.Errorf("voice probability %v out of range [0,1)", p.VoiceProbability)
	}
	if p.ImageProbability < 0 || p.ImageProbability >= 1 {
		return errors.Errorf("image probability %v out of range [0,1)", p.ImageProbability)
	}

	if p.Data == "" {
		p.Data = filepath.Join(filepath.Dir(os.Args[0]), "data")
		if err := os.MkdirAll(p.Data, 0o770); err != nil {
			slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
			return err
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", p.Data), slog.String("error", err.Error()))
		return err
	}
	p.Data = dataDir

	if p.Driver == "sqlite" && p.DSN == "" {
		p.DSN = filepath.Join(dataDir, "aura_"+p.Mode+".db")
	}

	return nil
}
