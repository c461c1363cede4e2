// Package config handles loading, saving, and resolving the upkeep
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

const (
	// LocalConfigFilename is the per-directory upkeep config file.
	LocalConfigFilename = ".upkeep.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/upkeep/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "UpkeepConfig"
)

// Pull controls how updates are applied on the main branch.
type Pull struct {
	Rebase    bool `yaml:"rebase"`
	Autostash bool `yaml:"autostash"`
}

// Defaults holds tunables for operations.
type Defaults struct {
	TimeoutSeconds  int  `yaml:"timeout_seconds"`
	Concurrency     int  `yaml:"concurrency"`
	CacheTTLMinutes int  `yaml:"cache_ttl_minutes"`
	MaxReleases     int  `yaml:"max_releases"`
	LogLimit        int  `yaml:"log_limit"`
	Pull            Pull `yaml:"pull"`
}

// GitHub identifies the repository used for release metadata enrichment.
// Both fields empty disables enrichment.
type GitHub struct {
	Owner string `yaml:"owner,omitempty"`
	Repo  string `yaml:"repo,omitempty"`
}

// Config is the upkeep configuration.
type Config struct {
	APIVersion string `yaml:"apiVersion"`
	Kind       string `yaml:"kind"`
	// RepoPath is the tracked repository. Validated against shell
	// metacharacters before any subprocess runs.
	RepoPath string `yaml:"repo_path"`
	// MainBranch is the branch updates track.
	MainBranch string `yaml:"main_branch"`
	// RemoteName is the upstream remote.
	RemoteName string `yaml:"remote_name"`
	// TagPattern selects release tags.
	TagPattern string `yaml:"tag_pattern"`
	// LockfileGlobs is the allow-list of paths whose local modifications
	// are auto-discarded instead of blocking updates.
	LockfileGlobs []string `yaml:"lockfile_globs"`
	// LockfilePath is the plugin-manager lockfile, relative to RepoPath
	// unless absolute.
	LockfilePath string `yaml:"lockfile_path"`
	// PluginsDir is where the plugin manager keeps its clones. Empty
	// disables plugin reconciliation.
	PluginsDir string `yaml:"plugins_dir,omitempty"`
	// PluginRestore is the argv of the plugin manager's headless restore
	// command, run from PluginsDir. Empty disables plugin installs.
	PluginRestore []string `yaml:"plugin_restore,omitempty"`
	// ToolsRestore is the argv of an external tool-lockfile restore
	// command, run from RepoPath after version switches.
	ToolsRestore []string `yaml:"tools_restore,omitempty"`
	GitHub       GitHub   `yaml:"github,omitempty"`
	Defaults     Defaults `yaml:"defaults"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion: ConfigAPIVersion,
		Kind:       ConfigKind,
		MainBranch: "main",
		RemoteName: "origin",
		TagPattern: "v*",
		LockfileGlobs: []string{
			"lazy-lock.json",
			"**/lazy-lock.json",
			"*.lock.json",
		},
		LockfilePath: "lazy-lock.json",
		Defaults: Defaults{
			TimeoutSeconds:  60,
			Concurrency:     8,
			CacheTTLMinutes: 30,
			MaxReleases:     20,
			LogLimit:        20,
			Pull:            Pull{Rebase: true, Autostash: true},
		},
	}
}

// Upstream returns the upstream ref of the main branch.
func (c *Config) Upstream() string {
	return c.RemoteName + "/" + c.MainBranch
}

// ResolvedLockfilePath returns the lockfile path anchored at the repo.
func (c *Config) ResolvedLockfilePath() string {
	if filepath.IsAbs(c.LockfilePath) {
		return c.LockfilePath
	}
	return filepath.Join(c.RepoPath, c.LockfilePath)
}

// shellMetaChars are rejected in repo paths. The runner never invokes a
// shell, but paths also flow into messages and cache keys and a path that
// needs quoting is almost always a typo.
const shellMetaChars = ";&|$`<>(){}[]*?!\n\r"

// ValidateRepoPath rejects empty paths and shell metacharacters.
func ValidateRepoPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("repo_path is empty")
	}
	if strings.ContainsAny(path, shellMetaChars) {
		return fmt.Errorf("repo_path %q contains shell metacharacters", path)
	}
	return nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, "config.yaml"), nil
	}
	if env := os.Getenv("UPKEEP_CONFIG"); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, "config.yaml"), nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "upkeep", "config.yaml"), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, UPKEEP_CONFIG, nearest local dotfile in
// cwd/parents, then the global platform config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv("UPKEEP_CONFIG") != "" {
		return ConfigPath(override)
	}
	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}
	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent for .upkeep.yaml.
// It returns an empty string when no local config file is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. Defaults are
// back-filled for zero-valued tunables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateRepoPath(cfg.RepoPath); err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.MainBranch == "" {
		cfg.MainBranch = defaults.MainBranch
	}
	if cfg.RemoteName == "" {
		cfg.RemoteName = defaults.RemoteName
	}
	if cfg.TagPattern == "" {
		cfg.TagPattern = defaults.TagPattern
	}
	if len(cfg.LockfileGlobs) == 0 {
		cfg.LockfileGlobs = defaults.LockfileGlobs
	}
	if cfg.LockfilePath == "" {
		cfg.LockfilePath = defaults.LockfilePath
	}
	if cfg.Defaults.TimeoutSeconds <= 0 {
		cfg.Defaults.TimeoutSeconds = defaults.Defaults.TimeoutSeconds
	}
	if cfg.Defaults.Concurrency <= 0 {
		cfg.Defaults.Concurrency = defaults.Defaults.Concurrency
	}
	if cfg.Defaults.CacheTTLMinutes <= 0 {
		cfg.Defaults.CacheTTLMinutes = defaults.Defaults.CacheTTLMinutes
	}
	if cfg.Defaults.MaxReleases <= 0 {
		cfg.Defaults.MaxReleases = defaults.Defaults.MaxReleases
	}
	if cfg.Defaults.LogLimit <= 0 {
		cfg.Defaults.LogLimit = defaults.Defaults.LogLimit
	}
	return &cfg, nil
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func isConfigFilePath(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, "config.yaml") || strings.HasSuffix(lower, "config.yml") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
