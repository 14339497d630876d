package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// DefaultAPIBaseURL 是未配置 DENTAL_API_BASE_URL 时使用的后端地址。
const DefaultAPIBaseURL = "https://e0xv6c1woa.execute-api.us-east-1.amazonaws.com/api"

// Config 聚合整个应用的配置项。
type Config struct {
	Server ServerConfig
	API    APIConfig
	Widget WidgetConfig
	Media  MediaConfig
	Log    LogConfig
	AI     AIConfig
	Dev    DevConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	api, err := loadAPIConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	media, err := loadMediaConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		API:    api,
		Widget: widget,
		Media:  media,
		Log:    loadLogConfig(),
		AI:     ai,
		Dev:    loadDevConfig(),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// APIConfig 描述远端对话后端。
type APIConfig struct {
	BaseURL string
	// Timeout bounds each request; zero means no limit.
	Timeout time.Duration
	Voice   string
}

func loadAPIConfig() (APIConfig, error) {
	timeout, err := parseOptionalDurationEnv("DENTAL_API_TIMEOUT")
	if err != nil {
		return APIConfig{}, err
	}

	cfg := APIConfig{
		BaseURL: getEnvOrDefault("DENTAL_API_BASE_URL", DefaultAPIBaseURL),
		Voice:   getEnvOrDefault("DENTAL_VOICE", "Joanna"),
	}
	if timeout != nil {
		cfg.Timeout = *timeout
	}
	return cfg, nil
}

// WidgetConfig 描述挂件本身的行为。
type WidgetConfig struct {
	StoragePath    string
	AutoSpeak      bool
	AutoSpeakDelay time.Duration
	// InitialMessage is sent once right after the widget first opens.
	InitialMessage string
}

func loadWidgetConfig() (WidgetConfig, error) {
	autoSpeak, err := parseBoolEnv("DENTAL_AUTO_SPEAK", false)
	if err != nil {
		return WidgetConfig{}, err
	}

	delay := 800 * time.Millisecond
	if override, err := parseOptionalDurationEnv("DENTAL_AUTO_SPEAK_DELAY"); err != nil {
		return WidgetConfig{}, err
	} else if override != nil && *override >= 0 {
		delay = *override
	}

	return WidgetConfig{
		StoragePath:    getEnvOrDefault("DENTAL_STORAGE_PATH", filepath.Join(DataDir(), "storage.json")),
		AutoSpeak:      autoSpeak,
		AutoSpeakDelay: delay,
		InitialMessage: strings.TrimSpace(os.Getenv("DENTAL_INITIAL_MESSAGE")),
	}, nil
}

// 录音与播放后端
const (
	RecorderCommand = "command"
	RecorderFile    = "file"
	RecorderNone    = "none"

	PlayerCommand = "command"
	PlayerSilent  = "silent"
)

// MediaConfig 描述麦克风采集和音频播放方式。
type MediaConfig struct {
	Recorder      string
	RecordCommand string
	RecordFile    string
	ContentType   string
	Player        string
	PlayCommand   string
}

func loadMediaConfig() (MediaConfig, error) {
	cfg := MediaConfig{
		Recorder:      strings.ToLower(getEnvOrDefault("DENTAL_RECORDER", RecorderCommand)),
		RecordCommand: getEnvOrDefault("DENTAL_RECORD_COMMAND", "ffmpeg -loglevel quiet -f pulse -i default -c:a libopus -f webm -"),
		RecordFile:    strings.TrimSpace(os.Getenv("DENTAL_RECORD_FILE")),
		ContentType:   getEnvOrDefault("DENTAL_RECORD_CONTENT_TYPE", "audio/webm"),
		Player:        strings.ToLower(getEnvOrDefault("DENTAL_PLAYER", PlayerCommand)),
		PlayCommand:   getEnvOrDefault("DENTAL_PLAY_COMMAND", "mpg123 -q"),
	}

	switch cfg.Recorder {
	case RecorderCommand, RecorderNone:
	case RecorderFile:
		if cfg.RecordFile == "" {
			return MediaConfig{}, fmt.Errorf("DENTAL_RECORD_FILE is required when DENTAL_RECORDER=file")
		}
	default:
		return MediaConfig{}, fmt.Errorf("invalid DENTAL_RECORDER value: %q", cfg.Recorder)
	}

	switch cfg.Player {
	case PlayerCommand, PlayerSilent:
	default:
		return MediaConfig{}, fmt.Errorf("invalid DENTAL_PLAYER value: %q", cfg.Player)
	}

	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string
	Format string
	Output string
	File   string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "text")),
		Output: strings.ToLower(getEnvOrDefault("LOG_OUTPUT", "stderr")),
		File:   getEnvOrDefault("LOG_FILE", filepath.Join(DataDir(), "dentalchat.log")),
	}
}

// DevConfig 描述本地替身后端。
type DevConfig struct {
	ArchiveDir     string
	SpeechFixture  string
	TranscriptText string
}

func loadDevConfig() DevConfig {
	return DevConfig{
		ArchiveDir:     strings.TrimSpace(os.Getenv("DEV_ARCHIVE_DIR")),
		SpeechFixture:  strings.TrimSpace(os.Getenv("DEV_SPEECH_FIXTURE")),
		TranscriptText: strings.TrimSpace(os.Getenv("DEV_TRANSCRIPT_TEXT")),
	}
}

// DataDir returns the per-user directory holding local state and logs.
func DataDir() string {
	if dir := strings.TrimSpace(os.Getenv("DENTAL_DATA_DIR")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dentalchat"
	}
	return filepath.Join(home, ".dentalchat")
}

// AIConfig 描述大模型相关配置，仅替身后端使用。
type AIConfig struct {
	APIKey       string
	AccessKey    string
	SecretKey    string
	Model        string
	BaseURL      string
	Region       string
	Temperature  *float64
	TopP         *float64
	MaxTokens    *int
	SystemPrompt string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:       strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:    strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:    strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:        strings.TrimSpace(os.Getenv("Model")),
		BaseURL:      getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:       getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:  temperature,
		TopP:         topP,
		MaxTokens:    maxTokens,
		SystemPrompt: strings.TrimSpace(os.Getenv("DEV_SYSTEM_PROMPT")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseOptionalDurationEnv accepts Go durations ("800ms", "5s") or a bare
// number of milliseconds.
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if ms, err := strconv.Atoi(value); err == nil {
		d := time.Duration(ms) * time.Millisecond
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
