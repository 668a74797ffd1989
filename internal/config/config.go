package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr    string
	UploadDir     string
	MaxUploadSize string

	GitHubToken   string
	GitHubAPIURL  string
	GitHubTimeout time.Duration

	MaxEntryBytes  int64
	MaxInputChars  int
	HTMLToMarkdown bool

	SummarizerBackend string

	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	OllamaURL   string
	OllamaModel string

	LogLevel  string
	LogFormat string
}

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

func defaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "127.0.0.1:5000")
	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("max_upload_size", "32M")

	v.SetDefault("github_api_url", "https://api.github.com")
	v.SetDefault("github_timeout", 10*time.Second)

	v.SetDefault("max_entry_bytes", 1<<20)
	v.SetDefault("max_input_chars", 12000)
	v.SetDefault("html_to_markdown", false)

	v.SetDefault("summarizer_backend", BackendOpenAI)
	v.SetDefault("llm_base_url", "https://api.openai.com/v1")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("ollama_url", "http://localhost:11434")
	v.SetDefault("ollama_model", "nemotron-mini")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads .env (if present) and the process environment. A missing
// GITHUB_TOKEN is not an error; the GitHub fetcher reports it per request.
func Load() *Config {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		ListenAddr:    v.GetString("listen_addr"),
		UploadDir:     v.GetString("upload_dir"),
		MaxUploadSize: v.GetString("max_upload_size"),

		GitHubToken:   strings.TrimSpace(v.GetString("github_token")),
		GitHubAPIURL:  v.GetString("github_api_url"),
		GitHubTimeout: v.GetDuration("github_timeout"),

		MaxEntryBytes:  v.GetInt64("max_entry_bytes"),
		MaxInputChars:  v.GetInt("max_input_chars"),
		HTMLToMarkdown: v.GetBool("html_to_markdown"),

		SummarizerBackend: strings.ToLower(v.GetString("summarizer_backend")),

		LLMBaseURL: v.GetString("llm_base_url"),
		LLMAPIKey:  v.GetString("llm_api_key"),
		LLMModel:   v.GetString("llm_model"),

		OllamaURL:   v.GetString("ollama_url"),
		OllamaModel: v.GetString("ollama_model"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
	}

	cfg.GitHubAPIURL = strings.TrimSuffix(cfg.GitHubAPIURL, "/")
	cfg.LLMBaseURL = strings.TrimSuffix(cfg.LLMBaseURL, "/")

	if cfg.GitHubTimeout <= 0 {
		cfg.GitHubTimeout = 10 * time.Second
	}

	return cfg
}
