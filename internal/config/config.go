package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LocalConfigName is the per-repository config file searched for by FindLocalConfig.
const LocalConfigName = ".selfheal.toml"

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Ingest        IngestConfig        `toml:"ingest"`
	Agents        AgentsConfig        `toml:"agents"`
	StartupFix    StartupFixConfig    `toml:"startup_fix"`
	Audit         AuditConfig         `toml:"audit"`
	FixAgent      FixAgentConfig      `toml:"fix_agent"`
	Notifications NotificationsConfig `toml:"notifications"`
	Tracing       TracingConfig       `toml:"tracing"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	ProjectRoot  string `toml:"project_root"`
	DatabasePath string `toml:"database_path"`
}

// IngestConfig holds settings for the log ingestion server
type IngestConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	LogsRoot     string `toml:"logs_root"`
	FallbackRoot string `toml:"fallback_root"`
	// Token is normally supplied through DEVELOPER_AGENT_TOKEN.
	Token             string `toml:"token"`
	MaxBodyBytes      int64  `toml:"max_body_bytes"`
	RetentionDays     int    `toml:"retention_days"`
	RetentionSchedule string `toml:"retention_schedule"`
}

// AgentsConfig locates the reports exchanged between agents and the supervisor
type AgentsConfig struct {
	OutputDir        string `toml:"output_dir"`
	ContextPath      string `toml:"context_path"`
	GitHubRepository string `toml:"github_repository"`
}

// StartupFixConfig holds settings for the startup fix agent
type StartupFixConfig struct {
	WorkflowPath  string `toml:"workflow_path"`
	AuthSetupPath string `toml:"auth_setup_path"`
	Push          bool   `toml:"push"`
}

// AuditConfig holds settings for the live selector audit
type AuditConfig struct {
	BaseURL        string `toml:"base_url"`
	StoragePath    string `toml:"storage_path"`
	FaultScenario  string `toml:"fault_scenario"`
	Headless       bool   `toml:"headless"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FixAgentConfig holds settings for the test-code fix agent
type FixAgentConfig struct {
	AllowedPaths []string `toml:"allowed_paths"`
	Branch       string   `toml:"branch"`
	Base         string   `toml:"base"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	// comma-separated for several channels
	SlackWebhook string `toml:"slack_webhook"`
}

// TracingConfig toggles OpenTelemetry tracing of the ingestion server
type TracingConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		General: GeneralConfig{
			ProjectRoot:  "",
			DatabasePath: filepath.Join(home, ".selfheal", "selfheal.db"),
		},
		Ingest: IngestConfig{
			Host:              "127.0.0.1",
			Port:              8090,
			LogsRoot:          "logs",
			FallbackRoot:      filepath.Join(os.TempDir(), "logs"),
			MaxBodyBytes:      10 << 20,
			RetentionDays:     14,
			RetentionSchedule: "0 3 * * *",
		},
		Agents: AgentsConfig{
			OutputDir:   "agent-outputs",
			ContextPath: filepath.Join("self-heal", "context.json"),
		},
		StartupFix: StartupFixConfig{
			WorkflowPath:  filepath.Join(".github", "workflows", "ai-startup-fix.yml"),
			AuthSetupPath: filepath.Join("tests", "auth.setup.ts"),
			Push:          true,
		},
		Audit: AuditConfig{
			BaseURL:        "http://localhost:8000",
			StoragePath:    filepath.Join("tests", "fixtures", "storageState.json"),
			Headless:       true,
			TimeoutSeconds: 15,
		},
		FixAgent: FixAgentConfig{
			AllowedPaths: []string{"tests/**"},
			Branch:       "ai-fix",
			Base:         "main",
		},
		Tracing: TracingConfig{
			ServiceName: "selfheal",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.expandPaths()
	return cfg, nil
}

// LoadWithLocalFallback loads the explicit path when given, otherwise the
// nearest .selfheal.toml, otherwise the user config file.
func LoadWithLocalFallback(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if local := FindLocalConfig(); local != "" {
		return Load(local)
	}
	return Load(DefaultConfigPath())
}

// FindLocalConfig walks up from the working directory looking for LocalConfigName.
// Returns "" if none is found.
func FindLocalConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, LocalConfigName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides settings from the environment variables the CI jobs export.
// Empty variables leave the current value untouched.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Ingest.Token, "DEVELOPER_AGENT_TOKEN")
	set(&c.Agents.OutputDir, "AGENT_OUTPUT_DIR")
	set(&c.Agents.ContextPath, "SELF_HEAL_CONTEXT_PATH")
	set(&c.Agents.GitHubRepository, "GITHUB_REPOSITORY")
	set(&c.Audit.BaseURL, "BASE_URL")
	set(&c.Audit.StoragePath, "STORAGE_PATH")
	set(&c.Audit.FaultScenario, "FAULT_SCENARIO")
	set(&c.Notifications.SlackWebhook, "SLACK_WEBHOOK_URL")

	if v := getenv("HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Audit.Headless = b
		}
	}
}

func (c *Config) expandPaths() {
	c.General.ProjectRoot = ExpandPath(c.General.ProjectRoot)
	c.General.DatabasePath = ExpandPath(c.General.DatabasePath)
	c.Ingest.LogsRoot = ExpandPath(c.Ingest.LogsRoot)
	c.Ingest.FallbackRoot = ExpandPath(c.Ingest.FallbackRoot)
}

// ProjectPath resolves p against the project root unless it is already absolute.
func (c *Config) ProjectPath(p string) string {
	if filepath.IsAbs(p) || c.General.ProjectRoot == "" {
		return p
	}
	return filepath.Join(c.General.ProjectRoot, p)
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "selfheal", "config.toml")
}
