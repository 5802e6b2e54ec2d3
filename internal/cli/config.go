package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envAliases are the unprefixed variable names accepted next to DEEPGUARD_*
var envAliases = map[string][]string{
	"environment":          {"ENVIRONMENT"},
	"secret_key":           {"SECRET_KEY"},
	"cors.allowed_origins": {"CORS_ORIGINS"},
	"upload.max_bytes":     {"MAX_UPLOAD_SIZE"},
	"store.dsn":            {"DATABASE_URL"},
	"store.redis_addr":     {"REDIS_URL"},
	"llm.api_key":          {"OPENAI_API_KEY"},
	"llm.base_url":         {"OLLAMA_BASE_URL"},
	"events.brokers":       {"KAFKA_BROKERS"},
}

// secretKeys are masked by config show
var secretKeys = map[string]bool{
	"secret_key":  true,
	"store.dsn":   true,
	"llm.api_key": true,
}

// configure registers defaults and environment bindings on v
func configure(v *viper.Viper) {
	for key, value := range flattenConfig(model.DefaultConfig()) {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix("DEEPGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		prefixed := "DEEPGUARD_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, names...)...)
	}
}

// decodeConfig unmarshals v over the defaults
func decodeConfig(v *viper.Viper) (model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return model.Config{}, fmt.Errorf("decode config: %w", err)
	}
	// Comma-separated env values arrive as a single element
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.Events.Brokers = splitList(cfg.Events.Brokers)
	return cfg, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// flattenConfig maps every leaf of cfg to its dotted mapstructure key.
// Durations are rendered as strings so files and env use the same form.
func flattenConfig(cfg model.Config) map[string]interface{} {
	out := map[string]interface{}{}
	flatten("", reflect.ValueOf(cfg), out)
	return out
}

var durationType = reflect.TypeOf(time.Duration(0))

func flatten(prefix string, v reflect.Value, out map[string]interface{}) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := v.Field(i)
		switch {
		case fv.Type() == durationType:
			out[key] = time.Duration(fv.Int()).String()
		case fv.Kind() == reflect.Struct:
			flatten(key, fv, out)
		default:
			out[key] = fv.Interface()
		}
	}
}

// displayConfig nests the flattened config back into a tree for YAML output, masking secrets
func displayConfig(cfg model.Config, mask bool) map[string]interface{} {
	tree := map[string]interface{}{}
	for key, value := range flattenConfig(cfg) {
		if mask && secretKeys[key] {
			if s, _ := value.(string); s != "" {
				value = "********"
			}
		}

		parts := strings.Split(key, ".")
		node := tree
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]interface{})
			if !ok {
				child = map[string]interface{}{}
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return tree
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage DeepGuard configuration",
	Long: `Manage DeepGuard configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DEEPGUARD_*, plus SECRET_KEY, CORS_ORIGINS,
   ENVIRONMENT, MAX_UPLOAD_SIZE, DATABASE_URL, OPENAI_API_KEY)
3. Config file (~/.deepguard/config.yaml)
4. .env file in the working directory
5. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, config file, environment and flags. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := decodeConfig(viper.GetViper())
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults and environment)\n\n")
		}

		yamlData, err := yaml.Marshal(displayConfig(cfg, true))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println(string(yamlData))

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Configuration is invalid: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.deepguard/config.yaml with all available options.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			path = filepath.Join(home, ".deepguard", "config.yaml")
		}

		if err := writeDefaultConfig(path); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", path)
		fmt.Printf("\nTo view the effective configuration:\n")
		fmt.Printf("  deepguard config show\n\n")
		return nil
	},
}

// writeDefaultConfig writes the default configuration to path, refusing to overwrite
func writeDefaultConfig(path string) error {
	if _, statErr := os.Stat(path); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'deepguard config show' to view it, or delete it first to recreate", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(displayConfig(model.DefaultConfig(), false))
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	var b strings.Builder
	b.WriteString("# DeepGuard configuration\n")
	b.WriteString("#\n")
	b.WriteString("# Every key can be overridden with DEEPGUARD_<SECTION>_<KEY>, e.g. DEEPGUARD_STORE_DRIVER=sqlite.\n")
	b.WriteString("# Durations use Go syntax (90s, 15m, 168h).\n")
	b.WriteString("# Store drivers: memory, sqlite (dsn = file path), postgres (dsn = URL), redis (redis_addr).\n")
	b.WriteString("# Keep secrets (secret_key, store.dsn, llm.api_key) in the environment rather than here.\n\n")
	b.Write(yamlData)

	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
