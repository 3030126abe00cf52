package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/AngelCh415/campaign-health/internal/health"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	AdsURL             string  `envconfig:"ADS_API_URL"`
	AdsToken           string  `envconfig:"ADS_API_TOKEN"`
	AdsRPS             float64 `envconfig:"ADS_API_RPS" default:"5"`
	HTTPTimeoutSeconds int     `envconfig:"HTTP_TIMEOUT_SECONDS" default:"15"`

	SinkURL    string `envconfig:"SINK_URL"`
	SinkSecret string `envconfig:"SINK_SECRET"`

	AlertWebhookURL string `envconfig:"ALERT_WEBHOOK_URL"`
	AlertSecret     string `envconfig:"ALERT_SECRET"`

	StoreBackend  string `envconfig:"STORE_BACKEND" default:"memory"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"ch"`

	LookbackDays        int      `envconfig:"LOOKBACK_DAYS" default:"30"`
	AnalysisConcurrency int      `envconfig:"ANALYSIS_CONCURRENCY" default:"8"`
	ThresholdsFile      string   `envconfig:"THRESHOLDS_FILE"`
	CORSOrigins         []string `envconfig:"CORS_ORIGINS" default:"*"`
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// FromEnv loads an optional .env file and then the process environment.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToLower(c.StoreBackend) {
	case "memory", "redis":
	default:
		return fmt.Errorf("STORE_BACKEND must be memory or redis, got %q", c.StoreBackend)
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("HTTP_TIMEOUT_SECONDS must be > 0")
	}
	if c.AnalysisConcurrency < 1 {
		return errors.New("ANALYSIS_CONCURRENCY must be >= 1")
	}
	if c.LookbackDays < 1 {
		return errors.New("LOOKBACK_DAYS must be >= 1")
	}
	return nil
}

// LoadThresholds overlays a YAML file on the default policy. An empty path
// returns the defaults.
func LoadThresholds(path string) (health.Thresholds, error) {
	if path == "" {
		return health.DefaultThresholds(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return health.Thresholds{}, fmt.Errorf("reading thresholds: %w", err)
	}
	return ParseThresholds(b)
}

func ParseThresholds(b []byte) (health.Thresholds, error) {
	th := health.DefaultThresholds()
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return health.Thresholds{}, fmt.Errorf("parsing thresholds: %w", err)
	}
	if len(doc.Content) > 0 {
		root := doc.Content[0]
		if root.Kind != yaml.MappingNode {
			return health.Thresholds{}, errors.New("parsing thresholds: top level must be a mapping")
		}
		patches, err := takeSensitivity(root)
		if err != nil {
			return health.Thresholds{}, err
		}
		if err := decodeStrict(root, &th); err != nil {
			return health.Thresholds{}, fmt.Errorf("parsing thresholds: %w", err)
		}
		if err := applySensitivity(&th, patches); err != nil {
			return health.Thresholds{}, err
		}
	}
	if err := th.Validate(); err != nil {
		return health.Thresholds{}, err
	}
	return th, nil
}

// sensitivityPatch is one stage's sensitivity entry; unset fields keep the
// default for that stage.
type sensitivityPatch struct {
	Enabled  *bool    `yaml:"enabled"`
	Warning  *float64 `yaml:"warning"`
	Critical *float64 `yaml:"critical"`
}

// takeSensitivity removes the sensitivity key from root and decodes it.
func takeSensitivity(root *yaml.Node) (map[health.LifeStage]sensitivityPatch, error) {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "sensitivity" {
			continue
		}
		node := root.Content[i+1]
		root.Content = append(root.Content[:i], root.Content[i+2:]...)
		var patches map[health.LifeStage]sensitivityPatch
		if err := decodeStrict(node, &patches); err != nil {
			return nil, fmt.Errorf("parsing thresholds sensitivity: %w", err)
		}
		return patches, nil
	}
	return nil, nil
}

func applySensitivity(th *health.Thresholds, patches map[health.LifeStage]sensitivityPatch) error {
	for st, p := range patches {
		cur, ok := th.Sensitivity[st]
		if !ok {
			return fmt.Errorf("%w: unknown life stage %q", health.ErrInvalidThresholds, st)
		}
		if p.Enabled != nil {
			cur.Enabled = *p.Enabled
		}
		if p.Warning != nil {
			cur.Warning = *p.Warning
		}
		if p.Critical != nil {
			cur.Critical = *p.Critical
		}
		th.Sensitivity[st] = cur
	}
	return nil
}

// decodeStrict decodes node into v rejecting unknown keys.
func decodeStrict(node *yaml.Node, v any) error {
	b, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// MarshalThresholds renders th in the same YAML layout LoadThresholds reads.
func MarshalThresholds(th health.Thresholds) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(th); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
