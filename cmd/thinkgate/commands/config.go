package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/urfave/cli/v3"

	"github.com/florianilch/thinkgate/internal/app"
)

// envPrefix is stripped from environment variables during config loading
// (e.g., THINKGATE_THINKING__POLICY → thinking.policy).
const envPrefix = "THINKGATE_"

// configSource is one layer of configuration. Later sources override earlier ones.
type configSource struct {
	name     string
	provider koanf.Provider
	parser   koanf.Parser
}

// loadConfig resolves the application configuration. Precedence, lowest first:
// defaults → config file → environment variables → CLI flags.
//
// Without an explicit configPath, $XDG_CONFIG_HOME/thinkgate/config.toml is read when it exists.
func loadConfig(configPath string, cmd *cli.Command, environFunc func() []string) (*app.Config, error) {
	if configPath == "" {
		configPath = discoverConfigFile()
	}

	var sources []configSource
	if configPath != "" {
		sources = append(sources, configSource{"config file", file.Provider(configPath), toml.Parser()})
	}
	sources = append(sources, configSource{"environment variables", env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: envKey,
		EnvironFunc:   environFunc,
	}), nil})
	if cmd != nil {
		sources = append(sources, configSource{"CLI flags", confmap.Provider(flagValues(cmd), "."), nil})
	}

	k := koanf.New(".")
	for _, src := range sources {
		if err := k.Load(src.provider, src.parser); err != nil {
			return nil, fmt.Errorf("loading %s: %w", src.name, err)
		}
	}

	config := &app.Config{}
	if err := k.UnmarshalWithConf("", config, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("applying defaults: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// discoverConfigFile returns the per-user config file path if the file exists.
func discoverConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "thinkgate", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// envKey maps THINKGATE_UPSTREAM__AUTH__ENV_KEY to upstream.auth.env_key.
func envKey(key, value string) (string, any) {
	stripped := strings.TrimPrefix(key, envPrefix)
	return strings.ToLower(strings.ReplaceAll(stripped, "__", ".")), value
}

// flagValues collects explicitly set flags, including those of parent commands,
// keyed by config path: --server--host → server.host, --log-level → log_level.
func flagValues(cmd *cli.Command) map[string]any {
	values := make(map[string]any)

	for _, name := range cmd.FlagNames() {
		// Unset flags would shadow file and environment values with flag defaults.
		if !cmd.IsSet(name) {
			continue
		}
		value := cmd.Value(name)
		if value == nil {
			continue
		}
		key := strings.ReplaceAll(strings.ReplaceAll(name, "--", "."), "-", "_")
		values[key] = value
	}

	return values
}
