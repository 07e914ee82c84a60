package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "CORPUS_HARVESTER_CONFIG"
	baseURLEnv        = "HARVEST_BASE_URL"
	outputDirEnv      = "HARVEST_OUTPUT_DIR"
	ledgerPathEnv     = "HARVEST_LEDGER_PATH"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"

	// StrategyArchive walks the paginated archive listing;
	// StrategyFeed reads the journal's web feed instead.
	StrategyArchive = "archive"
	StrategyFeed    = "feed"
)

// Config holds high-level settings required across the application.
type Config struct {
	Source        SourceConfig       `yaml:"source"`
	Output        OutputConfig       `yaml:"output"`
	HTTP          HTTPConfig         `yaml:"http"`
	Browser       BrowserConfig      `yaml:"browser"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// SourceConfig locates the journal and picks the discovery strategy.
type SourceConfig struct {
	Strategy     string `yaml:"strategy"`
	BaseURL      string `yaml:"baseUrl"`
	ArchivePath  string `yaml:"archivePath"`
	ArchivePages int    `yaml:"archivePages"`
	FeedURL      string `yaml:"feedUrl"`
	Journal      string `yaml:"journal"`
}

// OutputConfig describes where corpus and checkpoint artifacts land.
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	SaveInterval int    `yaml:"saveInterval"`
}

// HTTPConfig tunes the outbound client and the politeness envelope.
// Durations are whole seconds in the file; accessor methods resolve
// them.
type HTTPConfig struct {
	TimeoutSeconds    int   `yaml:"timeoutSeconds"`
	RetryAttempts     int   `yaml:"retryAttempts"`
	RetryDelaySeconds int   `yaml:"retryDelaySeconds"`
	MinDocumentBytes  int64 `yaml:"minDocumentBytes"`
	DelayMinSeconds   int   `yaml:"delayMinSeconds"`
	DelayMaxSeconds   int   `yaml:"delayMaxSeconds"`
}

func (h HTTPConfig) Timeout() time.Duration    { return time.Duration(h.TimeoutSeconds) * time.Second }
func (h HTTPConfig) RetryDelay() time.Duration { return time.Duration(h.RetryDelaySeconds) * time.Second }
func (h HTTPConfig) DelayMin() time.Duration   { return time.Duration(h.DelayMinSeconds) * time.Second }
func (h HTTPConfig) DelayMax() time.Duration   { return time.Duration(h.DelayMaxSeconds) * time.Second }

// BrowserConfig controls the headless-browser acquisition fallback.
type BrowserConfig struct {
	Enabled     bool `yaml:"enabled"`
	WaitSeconds int  `yaml:"waitSeconds"`
}

func (b BrowserConfig) Wait() time.Duration { return time.Duration(b.WaitSeconds) * time.Second }

// ExtractionConfig tunes the OCR fallback of the text extractor.
type ExtractionConfig struct {
	OCRDPI       int    `yaml:"ocrDpi"`
	OCRLanguages string `yaml:"ocrLanguages"`
}

// LedgerConfig enables the run ledger when a database path is set.
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig selects the log level (debug, info, warn, error).
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides. An empty path falls back to the config path environment
// variable; a missing or unparsable file logs and keeps the defaults.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(baseURLEnv); v != "" {
		c.Source.BaseURL = v
	}

	if v := os.Getenv(outputDirEnv); v != "" {
		c.Output.Dir = v
	}

	if v := os.Getenv(ledgerPathEnv); v != "" {
		c.Ledger.Path = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

// normalize repairs values that would misbehave downstream.
func (c *Config) normalize() {
	if c.Source.Strategy != StrategyArchive && c.Source.Strategy != StrategyFeed {
		if c.Source.Strategy != "" {
			log.Printf("config: unknown strategy %q, reverting to %s", c.Source.Strategy, StrategyArchive)
		}
		c.Source.Strategy = StrategyArchive
	}
	if c.Source.ArchivePages < 1 {
		c.Source.ArchivePages = 1
	}
	if c.HTTP.RetryAttempts < 1 {
		c.HTTP.RetryAttempts = 1
	}
	if c.HTTP.DelayMaxSeconds < c.HTTP.DelayMinSeconds {
		c.HTTP.DelayMaxSeconds = c.HTTP.DelayMinSeconds
	}
}

func mergeConfig(base, override Config) Config {
	if override.Source.Strategy != "" {
		base.Source.Strategy = override.Source.Strategy
	}
	if override.Source.BaseURL != "" {
		base.Source.BaseURL = override.Source.BaseURL
	}
	if override.Source.ArchivePath != "" {
		base.Source.ArchivePath = override.Source.ArchivePath
	}
	if override.Source.ArchivePages > 0 {
		base.Source.ArchivePages = override.Source.ArchivePages
	}
	if override.Source.FeedURL != "" {
		base.Source.FeedURL = override.Source.FeedURL
	}
	if override.Source.Journal != "" {
		base.Source.Journal = override.Source.Journal
	}

	if override.Output.Dir != "" {
		base.Output.Dir = override.Output.Dir
	}
	if override.Output.SaveInterval > 0 {
		base.Output.SaveInterval = override.Output.SaveInterval
	}

	if override.HTTP.TimeoutSeconds > 0 {
		base.HTTP.TimeoutSeconds = override.HTTP.TimeoutSeconds
	}
	if override.HTTP.RetryAttempts > 0 {
		base.HTTP.RetryAttempts = override.HTTP.RetryAttempts
	}
	if override.HTTP.RetryDelaySeconds > 0 {
		base.HTTP.RetryDelaySeconds = override.HTTP.RetryDelaySeconds
	}
	if override.HTTP.MinDocumentBytes > 0 {
		base.HTTP.MinDocumentBytes = override.HTTP.MinDocumentBytes
	}
	if override.HTTP.DelayMinSeconds > 0 {
		base.HTTP.DelayMinSeconds = override.HTTP.DelayMinSeconds
	}
	if override.HTTP.DelayMaxSeconds > 0 {
		base.HTTP.DelayMaxSeconds = override.HTTP.DelayMaxSeconds
	}

	base.Browser.Enabled = base.Browser.Enabled || override.Browser.Enabled
	if override.Browser.WaitSeconds > 0 {
		base.Browser.WaitSeconds = override.Browser.WaitSeconds
	}

	if override.Extraction.OCRDPI > 0 {
		base.Extraction.OCRDPI = override.Extraction.OCRDPI
	}
	if override.Extraction.OCRLanguages != "" {
		base.Extraction.OCRLanguages = override.Extraction.OCRLanguages
	}

	if override.Ledger.Path != "" {
		base.Ledger.Path = override.Ledger.Path
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Source: SourceConfig{
			Strategy:     StrategyArchive,
			BaseURL:      "https://pof.ois.unsa.ba",
			ArchivePath:  "/index.php/pof/issue/archive",
			ArchivePages: 4,
			FeedURL:      "https://pof.ois.unsa.ba/index.php/pof/gateway/plugin/WebFeedGatewayPlugin/rss2",
			Journal:      "Prilozi za orijentalnu filologiju",
		},
		Output: OutputConfig{
			Dir:          "harvest_output",
			SaveInterval: 10,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:    30,
			RetryAttempts:     5,
			RetryDelaySeconds: 2,
			MinDocumentBytes:  1000,
			DelayMinSeconds:   2,
			DelayMaxSeconds:   5,
		},
		Browser: BrowserConfig{
			Enabled:     false,
			WaitSeconds: 10,
		},
		Extraction: ExtractionConfig{
			OCRDPI:       300,
			OCRLanguages: "eng",
		},
		Ledger: LedgerConfig{Path: ""},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
