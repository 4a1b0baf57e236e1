// Package config loads Loom's deployment-level configuration: storage
// endpoints, the secrets-store endpoint, and an optional tracing sink, per
// spec.md §6 "Environment inputs". Grounded on evalgo-org-eve's
// WHEN_REDIS_URL-style env-first resolution (queue/redis/queue.go), layered
// onto spf13/viper so defaults, environment bindings, and (optionally) a
// config file compose the same way the teacher layers its own
// functional-option defaults (graph.Option) on top of zero values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Runtime is Loom's fully resolved deployment configuration.
type Runtime struct {
	RedisURL      string        `mapstructure:"redis_url"`
	MySQLDSN      string        `mapstructure:"mysql_dsn"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	CouchDBURL    string        `mapstructure:"couchdb_url"`
	TracingSink   string        `mapstructure:"tracing_sink"` // empty disables OTel export
	WorkerPollMax time.Duration `mapstructure:"worker_poll_max"`

	// SecretBindings seeds the secrets store from well-known environment
	// names, per spec.md §6 ("azure-openai-*, etc. — case-sensitive,
	// lowercased-dashed").
	SecretBindings map[string]string
}

// wellKnownSecretPrefix is the environment variable prefix that Load scans
// for secret seeding, translating LOOM_SECRET_AZURE_OPENAI_KEY
// into the lowercased-dashed name "azure-openai-key".
var wellKnownSecretPrefix = "LOOM_SECRET_"

// Load resolves Runtime from (in increasing precedence) compiled-in
// defaults, an optional config file, and LOOM_-prefixed environment
// variables, mirroring viper's standard layering.
func Load(configFile string) (*Runtime, error) {
	v := viper.New()
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("sqlite_path", "./loom.db")
	v.SetDefault("worker_poll_max", 1*time.Second)

	v.SetEnvPrefix("LOOM")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// AutomaticEnv only reaches Unmarshal for keys viper already knows; bind
	// the keys without a default so their LOOM_ variables are read too.
	for _, key := range []string{"mysql_dsn", "couchdb_url", "tracing_sink"} {
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var rt Runtime
	if err := v.Unmarshal(&rt); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	rt.SecretBindings = scanSecretBindings(os.Environ())
	return &rt, nil
}

// scanSecretBindings collects every LOOM_SECRET_<NAME>=value binding
// present in env, translating <NAME> to its lowercased-dashed secret name
// (AZURE_OPENAI_KEY -> azure-openai-key), per spec.md §6.
func scanSecretBindings(env []string) map[string]string {
	bindings := make(map[string]string)
	for _, kv := range env {
		k, val, ok := strings.Cut(kv, "=")
		if !ok || val == "" || !strings.HasPrefix(k, wellKnownSecretPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(k, wellKnownSecretPrefix))
		name = strings.ReplaceAll(name, "_", "-")
		bindings[name] = val
	}
	return bindings
}
