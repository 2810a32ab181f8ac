package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

type ConfigLoad func() (AppConfig, error)

func AppConfigLoader() ConfigLoad {
	return LoadAppConfig
}

type AIConfig struct {
	BaseUrl string
	Model   string
}

// AppConfig carries server and fetch settings.
type AppConfig struct {
	FeedsPath       string
	ListenAddr      string
	FetchTimeoutSec int
	ArticlesPerFeed int

	AIConf AIConfig
}

// LoadFeedsPath returns the path of the JSON document holding the subscriptions.
func LoadFeedsPath() (string, error) {
	cfgPath, err := defaultConfigPath()
	if err == nil {
		if p, err := readFeedsPathFrom(cfgPath); err == nil && p != "" {
			return ExpandPath(p), nil
		}
	}
	return FallbackFeedsPath(), nil
}

func FallbackFeedsPath() string {
	if runtime.GOOS == "darwin" {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Curio", "feeds.json")
	}
	return "feeds.json"
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "curio", "config.yaml"), nil
}

func readFeedsPathFrom(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return "", err
	}
	if p, ok := raw["feeds_path"].(string); ok && p != "" {
		return p, nil
	}
	return "", nil
}

// ExpandPath expands leading ~ and environment variables in a filesystem path.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}

// LoadAppConfig parses relevant settings from ~/.config/curio/config.yaml.
// A missing or unreadable file yields the defaults.
func LoadAppConfig() (AppConfig, error) {
	ac := AppConfig{
		ListenAddr:      ":8391",
		FetchTimeoutSec: 10,
		ArticlesPerFeed: 20,
		AIConf: AIConfig{
			BaseUrl: "",
			Model:   "gpt-3.5-turbo",
		},
	}
	cfgPath, err := defaultConfigPath()
	if err != nil {
		return ac, nil
	}
	b, err := os.ReadFile(cfgPath)
	if err != nil {
		return ac, nil
	}
	var raw map[string]any
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return ac, nil
	}
	if addr, ok := raw["listen_addr"].(string); ok && strings.TrimSpace(addr) != "" {
		ac.ListenAddr = strings.TrimSpace(addr)
	}
	if fetch, ok := raw["fetch"].(map[string]any); ok {
		if v, ok := fetch["timeout"].(int); ok && v > 0 {
			ac.FetchTimeoutSec = v
		} else if vf, ok := fetch["timeout"].(float64); ok && int(vf) > 0 {
			ac.FetchTimeoutSec = int(vf)
		}
		if v, ok := fetch["articles_per_feed"].(int); ok && v > 0 {
			ac.ArticlesPerFeed = v
		} else if vf, ok := fetch["articles_per_feed"].(float64); ok && int(vf) > 0 {
			ac.ArticlesPerFeed = int(vf)
		}
	}
	if ai, ok := raw["ai"].(map[string]any); ok {
		if baseUrl, ok := ai["base_url"].(string); ok {
			ac.AIConf.BaseUrl = baseUrl
		}
		if model, ok := ai["model"].(string); ok && strings.TrimSpace(model) != "" {
			ac.AIConf.Model = model
		}
	}

	feedsPath, err := LoadFeedsPath()
	if err == nil {
		ac.FeedsPath = feedsPath
	}

	return ac, nil
}
