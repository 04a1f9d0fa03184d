package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR}, ${VAR:-default} and ${VAR:?error} inside a
// config file, so secrets never need to sit in the YAML itself.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}`)

// LoadFromFile reads path as YAML, expanding environment variables and
// overlaying .env/.env.local first. A config value that is missing and
// has a `:?` marker fails the load with its stated message; one with a
// `:-` marker falls back to its default.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(raw))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	resolveSecrets(cfg)
	return cfg, nil
}

func expandEnvVars(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, modifier, arg := groups[1], groups[2], groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		switch modifier {
		case "-":
			return arg
		case "?":
			if firstErr == nil {
				msg := arg
				if msg == "" {
					msg = "required environment variable not set"
				}
				firstErr = fmt.Errorf("%s: %s", name, msg)
			}
			return ""
		default:
			return ""
		}
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// resolveSecrets fills config values left blank in the YAML from
// well-known environment variables, so secrets can live outside the file
// entirely rather than through ${VAR} substitution.
func resolveSecrets(cfg *Config) {
	if cfg.Store.Postgres.Password == "" {
		cfg.Store.Postgres.Password = os.Getenv("CHRONOS_POSTGRES_PASSWORD")
	}
	if cfg.Notify.Discord.Token == "" {
		cfg.Notify.Discord.Token = os.Getenv("CHRONOS_DISCORD_TOKEN")
	}
	if cfg.Notify.Webhook.SigningSecret == "" {
		cfg.Notify.Webhook.SigningSecret = os.Getenv("CHRONOS_WEBHOOK_SIGNING_SECRET")
	}
}

// FindConfigFile looks in the working directory's usual spots so `chronosd
// serve` works without an explicit --config flag in a deployment that
// always drops its config in one of these locations.
func FindConfigFile() string {
	for _, candidate := range []string{"chronos.yaml", "chronos.yml", "config/chronos.yaml"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
