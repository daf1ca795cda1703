package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Config is built once at startup and passed by value or pointer into constructors; it is never
// mutated after Load returns.
type Config struct {
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
	Clients     ClientsConfig    `yaml:"clients"`
	Warehouse   WarehouseConfig  `yaml:"warehouse"`
	Reasoning   ReasoningConfig  `yaml:"reasoning"`
	Cache       CacheConfig      `yaml:"cache"`
	CodeIndex   CodeIndexConfig  `yaml:"codeIndex"`
	Sources     SourcesConfig    `yaml:"sources"`
	Identifiers IdentifierConfig `yaml:"identifiers"`
	Window      WindowConfig     `yaml:"window"`
	Fetch       FetchConfig      `yaml:"fetch"`
	Tracer      TracerConfig     `yaml:"tracer"`
	Cluster     ClusterConfig    `yaml:"cluster"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Report      ReportConfig     `yaml:"report"`
	Timeline    TimelineConfig   `yaml:"timeline"`
	Rules       RulesConfig      `yaml:"rules"`
}

// ServerConfig controls gRPC listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
	DefaultBudget   time.Duration `yaml:"defaultBudget"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ClientsConfig groups the HTTP capability backends.
type ClientsConfig struct {
	VictoriaLogs VictoriaLogsConfig `yaml:"victorialogs"`
	Archive      ArchiveConfig      `yaml:"archive"`
	CodeIntel    CodeIntelConfig    `yaml:"codeintel"`
	Status       StatusConfig       `yaml:"status"`
	Weaviate     WeaviateConfig     `yaml:"weaviate"`
}

// VictoriaLogsConfig configures the recent-log store.
type VictoriaLogsConfig struct {
	BaseURL      string        `yaml:"baseURL"`
	QueryPath    string        `yaml:"queryPath"`
	ServiceField string        `yaml:"serviceField"`
	LevelField   string        `yaml:"levelField"`
	Timeout      time.Duration `yaml:"timeout"`
}

// ArchiveConfig configures the Elasticsearch-compatible historical store.
type ArchiveConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	Index          string        `yaml:"index"`
	APIToken       string        `yaml:"apiToken"`
	TimestampField string        `yaml:"timestampField"`
	MessageField   string        `yaml:"messageField"`
	ServiceField   string        `yaml:"serviceField"`
	LevelField     string        `yaml:"levelField"`
	Timeout        time.Duration `yaml:"timeout"`
}

// CodeIntelConfig configures the remote code search and call-graph service.
type CodeIntelConfig struct {
	BaseURL    string        `yaml:"baseURL"`
	SearchPath string        `yaml:"searchPath"`
	GraphPath  string        `yaml:"graphPath"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StatusConfig configures the live entity status API.
type StatusConfig struct {
	BaseURL string        `yaml:"baseURL"`
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// WeaviateConfig configures documentation search.
type WeaviateConfig struct {
	Endpoint string        `yaml:"endpoint"`
	APIKey   string        `yaml:"apiKey"`
	Class    string        `yaml:"class"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WarehouseConfig configures the authoritative SQL store.
type WarehouseConfig struct {
	Driver       string            `yaml:"driver"`
	DSN          string            `yaml:"dsn"`
	Placeholder  string            `yaml:"placeholder"`
	MaxOpenConns int               `yaml:"maxOpenConns"`
	QueryTimeout time.Duration     `yaml:"queryTimeout"`
	Tables       WarehouseTables   `yaml:"tables"`
	Queries      map[string]string `yaml:"queries"`
}

// WarehouseTables names the tables the typed lookups read.
type WarehouseTables struct {
	Entities         string `yaml:"entities"`
	FailedRecords    string `yaml:"failedRecords"`
	Companies        string `yaml:"companies"`
	ValidationErrors string `yaml:"validationErrors"`
}

// ReasoningConfig configures the text-reasoning capability.
type ReasoningConfig struct {
	Provider  string        `yaml:"provider"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"maxTokens"`
	APIKey    string        `yaml:"apiKey"`
	Timeout   time.Duration `yaml:"timeout"`
	Extract   bool          `yaml:"extract"`
}

// CacheConfig controls caching of code-graph and documentation lookups.
type CacheConfig struct {
	Backend       string        `yaml:"backend"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	PoolSize      int           `yaml:"poolSize"`
	TLS           bool          `yaml:"tls"`
	MemorySize    int           `yaml:"memorySize"`
	CodeSearchTTL time.Duration `yaml:"codeSearchTTL"`
	CodeGraphTTL  time.Duration `yaml:"codeGraphTTL"`
	DocsTTL       time.Duration `yaml:"docsTTL"`
}

// CodeIndexConfig enables the local Go source index.
type CodeIndexConfig struct {
	Root  string `yaml:"root"`
	Repo  string `yaml:"repo"`
	Types bool   `yaml:"types"`
}

// SourceRoute maps services matching a glob to a log stream and keyword table.
type SourceRoute struct {
	Match    string   `yaml:"match"`
	Stream   string   `yaml:"stream"`
	Keywords []string `yaml:"keywords"`
}

// SourcesConfig holds the service-to-source mapping and keyword tables.
type SourcesConfig struct {
	Routes          []SourceRoute `yaml:"routes"`
	DefaultServices []string      `yaml:"defaultServices"`
	Keywords        []string      `yaml:"keywords"`
}

// IdentifierPattern extracts one identifier type from free text.
// The first capture group, when present, is the value.
type IdentifierPattern struct {
	Type       models.IdentifierType `yaml:"type"`
	Regex      string                `yaml:"regex"`
	LogField   string                `yaml:"logField"`
	Confidence float64               `yaml:"confidence"`
}

// IdentifierConfig lists extraction patterns.
type IdentifierConfig struct {
	Patterns []IdentifierPattern `yaml:"patterns"`
}

// WindowConfig holds the per-tier buffers.
type WindowConfig struct {
	LifecycleBuffer  time.Duration `yaml:"lifecycleBuffer"`
	ValidationBuffer time.Duration `yaml:"validationBuffer"`
	TextBuffer       time.Duration `yaml:"textBuffer"`
	ReportBuffer     time.Duration `yaml:"reportBuffer"`
}

// FetchConfig bounds the evidence fetcher.
type FetchConfig struct {
	Workers             int           `yaml:"workers"`
	TaskTimeout         time.Duration `yaml:"taskTimeout"`
	Retries             int           `yaml:"retries"`
	RetryBackoff        time.Duration `yaml:"retryBackoff"`
	Limit               int           `yaml:"limit"`
	RecentRetention     time.Duration `yaml:"recentRetention"`
	HistoricalRetention time.Duration `yaml:"historicalRetention"`
	Dedup               string        `yaml:"dedup"`
}

// TracerConfig bounds correlation tracing.
type TracerConfig struct {
	MaxIDs       int           `yaml:"maxIDs"`
	Concurrency  int           `yaml:"concurrency"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	Limit        int           `yaml:"limit"`
	Fields       []string      `yaml:"fields"`
	BodyPatterns []string      `yaml:"bodyPatterns"`
}

// ClusterConfig tunes the pattern clusterer.
type ClusterConfig struct {
	SimilarityThreshold float64 `yaml:"similarityThreshold"`
	MaxClusters         int     `yaml:"maxClusters"`
	Mask                bool    `yaml:"mask"`
	BurstThreshold      float64 `yaml:"burstThreshold"`
}

// ClassifierConfig bounds classification.
type ClassifierConfig struct {
	Workers      int           `yaml:"workers"`
	Timeout      time.Duration `yaml:"timeout"`
	GraphDepth   int           `yaml:"graphDepth"`
	MaxCodeRefs  int           `yaml:"maxCodeRefs"`
	Aggregation  string        `yaml:"aggregation"`
	UseDocs      bool          `yaml:"useDocs"`
	DocsCategory string        `yaml:"docsCategory"`
}

// ReportConfig holds the likelihood tier thresholds, expressed as the minimum number of
// corroborating real_error clusters for each tier.
type ReportConfig struct {
	MediumAt   int `yaml:"mediumAt"`
	HighAt     int `yaml:"highAt"`
	VeryHighAt int `yaml:"veryHighAt"`
}

// TimelineConfig bounds the timeline aggregator.
type TimelineConfig struct {
	BranchTimeout    time.Duration `yaml:"branchTimeout"`
	ETLLag           time.Duration `yaml:"etlLag"`
	LogLookback      time.Duration `yaml:"logLookback"`
	OutboundKeywords []string      `yaml:"outboundKeywords"`
	EntityLogField   string        `yaml:"entityLogField"`
}

// RulesConfig controls remediation rule-pack loading.
type RulesConfig struct {
	Path string `yaml:"path"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MIRADOR_INV_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":50051",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
			DefaultBudget:   2 * time.Minute,
		},
		Logging: LoggingConfig{Level: "info"},
		Clients: ClientsConfig{
			VictoriaLogs: VictoriaLogsConfig{
				QueryPath:    "/select/logsql/query",
				ServiceField: "service",
				LevelField:   "level",
				Timeout:      10 * time.Second,
			},
			Archive: ArchiveConfig{
				Index:          "logs-*",
				TimestampField: "@timestamp",
				MessageField:   "message",
				ServiceField:   "service",
				LevelField:     "level",
				Timeout:        30 * time.Second,
			},
			CodeIntel: CodeIntelConfig{
				SearchPath: "/api/v1/code/search",
				GraphPath:  "/api/v1/code/graph",
				Timeout:    5 * time.Second,
			},
			Status:   StatusConfig{Path: "/api/v1/entities", Timeout: 3 * time.Second},
			Weaviate: WeaviateConfig{Class: "DocChunk", Timeout: 5 * time.Second},
		},
		Warehouse: WarehouseConfig{
			Driver:       "sqlite",
			Placeholder:  "qmark",
			MaxOpenConns: 4,
			QueryTimeout: 10 * time.Second,
			Tables: WarehouseTables{
				Entities:         "entities",
				FailedRecords:    "failed_records",
				Companies:        "companies",
				ValidationErrors: "validation_errors",
			},
			Queries: DefaultBranchQueries(),
		},
		Reasoning: ReasoningConfig{
			Provider:  "anthropic",
			Model:     "claude-sonnet-4-5",
			MaxTokens: 1024,
			Timeout:   45 * time.Second,
		},
		Cache: CacheConfig{
			Backend:       "memory",
			MemorySize:    2048,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			PoolSize:      4,
			CodeSearchTTL: 10 * time.Minute,
			CodeGraphTTL:  30 * time.Minute,
			DocsTTL:       30 * time.Minute,
		},
		Identifiers: IdentifierConfig{Patterns: DefaultIdentifierPatterns()},
		Window: WindowConfig{
			LifecycleBuffer:  time.Hour,
			ValidationBuffer: 6 * time.Hour,
			TextBuffer:       2 * time.Hour,
			ReportBuffer:     6 * time.Hour,
		},
		Fetch: FetchConfig{
			Workers:             8,
			TaskTimeout:         20 * time.Second,
			Retries:             2,
			RetryBackoff:        250 * time.Millisecond,
			Limit:               2000,
			RecentRetention:     7 * 24 * time.Hour,
			HistoricalRetention: 90 * 24 * time.Hour,
			Dedup:               "normalized",
		},
		Tracer: TracerConfig{
			MaxIDs:       25,
			Concurrency:  4,
			QueryTimeout: 15 * time.Second,
			Limit:        500,
			Fields:       []string{"correlation_id", "trace_id", "x_request_id"},
			BodyPatterns: []string{`(?i)correlation[-_ ]?id[=: ]+([A-Za-z0-9-]{8,})`},
		},
		Cluster: ClusterConfig{
			SimilarityThreshold: 0.5,
			MaxClusters:         12,
			Mask:                true,
			BurstThreshold:      3.5,
		},
		Classifier: ClassifierConfig{
			Workers:      4,
			Timeout:      60 * time.Second,
			GraphDepth:   4,
			MaxCodeRefs:  5,
			Aggregation:  "noisy_or",
			UseDocs:      true,
			DocsCategory: "runbook",
		},
		Report: ReportConfig{MediumAt: 1, HighAt: 2, VeryHighAt: 3},
		Timeline: TimelineConfig{
			BranchTimeout:    10 * time.Second,
			ETLLag:           2 * time.Hour,
			LogLookback:      72 * time.Hour,
			OutboundKeywords: []string{"outbound", "webhook", "POST", "callback"},
			EntityLogField:   "tracking_id",
		},
		Rules: RulesConfig{Path: "configs/rules/default.yaml"},
	}
}

// DefaultIdentifierPatterns recognises the identifier phrasings seen in tickets.
func DefaultIdentifierPatterns() []IdentifierPattern {
	return []IdentifierPattern{
		{Type: models.IdentifierTracking, Regex: `(?i)tracking[\s_-]*(?:id|number|no)?\s*[:#=]?\s*([0-9]{6,})`, LogField: "tracking_id", Confidence: 0.9},
		{Type: models.IdentifierRequest, Regex: `(?i)request[\s_-]*id\s*[:#=]?\s*([A-Za-z0-9-]{6,})`, LogField: "request_id", Confidence: 0.85},
		{Type: models.IdentifierEntity, Regex: `(?i)entity[\s_-]*id\s*[:#=]?\s*([A-Za-z0-9-]{4,})`, LogField: "entity_id", Confidence: 0.85},
		{Type: models.IdentifierCompany, Regex: `(?i)company[\s_-]*id\s*[:#=]?\s*([A-Za-z0-9-]{2,})`, LogField: "company_id", Confidence: 0.8},
		{Type: models.IdentifierCompanyName, Regex: `(?i)(?:company|customer|client)\s*(?:name)?\s*[:=]\s*([A-Z][\w&.-]*(?:\s+[A-Z][\w&.-]*)*)`, Confidence: 0.6},
		{Type: models.IdentifierCorrelation, Regex: `(?i)\b([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`, LogField: "correlation_id", Confidence: 0.5},
	}
}

// DefaultBranchQueries are the warehouse queries behind the SQL-backed timeline branches. Each takes
// the entity id as its single parameter; a "ts" column marks timestamped rows.
func DefaultBranchQueries() map[string]string {
	return map[string]string{
		models.BranchCreationSource:  "SELECT source, created_at AS ts FROM entities WHERE entity_id = ?",
		models.BranchFileStats:       "SELECT file_name, record_count, received_at AS ts FROM file_stats WHERE entity_id = ? ORDER BY received_at",
		models.BranchProcessingStats: "SELECT stage, status, duration_ms, processed_at AS ts FROM processing_stats WHERE entity_id = ? ORDER BY processed_at",
		models.BranchErrorSummary:    "SELECT code, COUNT(*) AS occurrences, MAX(occurred_at) AS ts FROM validation_errors WHERE entity_id = ? GROUP BY code ORDER BY code",
		models.BranchNetworkStatus:   "SELECT partner_id, relation, status, updated_at AS ts FROM relationships WHERE entity_id = ? ORDER BY partner_id",
	}
}

// Validate rejects inconsistent values.
func (c Config) Validate() error {
	var errs []error
	if c.Fetch.Workers <= 0 {
		errs = append(errs, errors.New("fetch.workers must be positive"))
	}
	if c.Fetch.RecentRetention <= 0 || c.Fetch.HistoricalRetention < c.Fetch.RecentRetention {
		errs = append(errs, errors.New("fetch retention must satisfy 0 < recentRetention <= historicalRetention"))
	}
	if c.Fetch.Retries < 0 {
		errs = append(errs, errors.New("fetch.retries must not be negative"))
	}
	if c.Tracer.MaxIDs < 0 || c.Tracer.Concurrency <= 0 {
		errs = append(errs, errors.New("tracer.maxIDs must be >= 0 and tracer.concurrency positive"))
	}
	if c.Cluster.SimilarityThreshold <= 0 || c.Cluster.SimilarityThreshold > 1 {
		errs = append(errs, errors.New("cluster.similarityThreshold must be in (0, 1]"))
	}
	if c.Cluster.MaxClusters <= 0 {
		errs = append(errs, errors.New("cluster.maxClusters must be positive"))
	}
	if c.Classifier.Workers <= 0 || c.Classifier.GraphDepth <= 0 {
		errs = append(errs, errors.New("classifier.workers and classifier.graphDepth must be positive"))
	}
	switch c.Classifier.Aggregation {
	case "noisy_or", "weighted_average":
	default:
		errs = append(errs, fmt.Errorf("classifier.aggregation %q unsupported", c.Classifier.Aggregation))
	}
	switch c.Fetch.Dedup {
	case "normalized", "exact":
	default:
		errs = append(errs, fmt.Errorf("fetch.dedup %q unsupported", c.Fetch.Dedup))
	}
	switch c.Warehouse.Placeholder {
	case "qmark", "dollar":
	default:
		errs = append(errs, fmt.Errorf("warehouse.placeholder %q unsupported", c.Warehouse.Placeholder))
	}
	switch c.Cache.Backend {
	case "none", "memory", "valkey":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q unsupported", c.Cache.Backend))
	}
	if c.Cache.Backend == "valkey" && c.Cache.Addr == "" {
		errs = append(errs, errors.New("cache.addr is required for the valkey backend"))
	}
	if !(c.Report.MediumAt <= c.Report.HighAt && c.Report.HighAt <= c.Report.VeryHighAt) {
		errs = append(errs, errors.New("report thresholds must be non-decreasing"))
	}
	return errors.Join(errs...)
}

func applyEnvOverrides(cfg *Config) {
	envString("MIRADOR_INV_SERVER_ADDRESS", &cfg.Server.Address)
	envString("MIRADOR_INV_METRICS_ADDRESS", &cfg.Server.MetricsAddress)
	envDuration("MIRADOR_INV_DEFAULT_BUDGET", &cfg.Server.DefaultBudget)
	envString("MIRADOR_INV_LOG_LEVEL", &cfg.Logging.Level)
	if v := os.Getenv("MIRADOR_INV_LOG_FORMAT"); v != "" {
		cfg.Logging.JSON = strings.EqualFold(v, "json")
	}

	envString("MIRADOR_INV_VICTORIALOGS_URL", &cfg.Clients.VictoriaLogs.BaseURL)
	envString("MIRADOR_INV_ARCHIVE_URL", &cfg.Clients.Archive.BaseURL)
	envString("MIRADOR_INV_ARCHIVE_INDEX", &cfg.Clients.Archive.Index)
	envString("MIRADOR_INV_ARCHIVE_TOKEN", &cfg.Clients.Archive.APIToken)
	envString("MIRADOR_INV_CODEINTEL_URL", &cfg.Clients.CodeIntel.BaseURL)
	envString("MIRADOR_INV_STATUS_URL", &cfg.Clients.Status.BaseURL)
	envString("MIRADOR_INV_WEAVIATE_URL", &cfg.Clients.Weaviate.Endpoint)
	envString("MIRADOR_INV_WEAVIATE_API_KEY", &cfg.Clients.Weaviate.APIKey)

	envString("MIRADOR_INV_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver)
	envString("MIRADOR_INV_WAREHOUSE_DSN", &cfg.Warehouse.DSN)
	envString("MIRADOR_INV_WAREHOUSE_PLACEHOLDER", &cfg.Warehouse.Placeholder)

	envString("MIRADOR_INV_REASONING_PROVIDER", &cfg.Reasoning.Provider)
	envString("MIRADOR_INV_REASONING_MODEL", &cfg.Reasoning.Model)
	envInt("MIRADOR_INV_REASONING_MAX_TOKENS", &cfg.Reasoning.MaxTokens)
	envString("ANTHROPIC_API_KEY", &cfg.Reasoning.APIKey)
	envString("MIRADOR_INV_REASONING_API_KEY", &cfg.Reasoning.APIKey)

	envString("MIRADOR_INV_CACHE_BACKEND", &cfg.Cache.Backend)
	envString("MIRADOR_INV_CACHE_ADDR", &cfg.Cache.Addr)
	envString("MIRADOR_INV_CACHE_USERNAME", &cfg.Cache.Username)
	envString("MIRADOR_INV_CACHE_PASSWORD", &cfg.Cache.Password)
	envInt("MIRADOR_INV_CACHE_DB", &cfg.Cache.DB)
	if v := os.Getenv("MIRADOR_INV_CACHE_TLS"); strings.EqualFold(v, "true") || v == "1" {
		cfg.Cache.TLS = true
	}
	envDuration("MIRADOR_INV_CACHE_CODE_GRAPH_TTL", &cfg.Cache.CodeGraphTTL)
	envDuration("MIRADOR_INV_CACHE_DOCS_TTL", &cfg.Cache.DocsTTL)

	envString("MIRADOR_INV_CODE_INDEX_ROOT", &cfg.CodeIndex.Root)

	envInt("MIRADOR_INV_FETCH_WORKERS", &cfg.Fetch.Workers)
	envDuration("MIRADOR_INV_FETCH_TASK_TIMEOUT", &cfg.Fetch.TaskTimeout)
	envInt("MIRADOR_INV_FETCH_RETRIES", &cfg.Fetch.Retries)
	envDuration("MIRADOR_INV_RECENT_RETENTION", &cfg.Fetch.RecentRetention)
	envDuration("MIRADOR_INV_HISTORICAL_RETENTION", &cfg.Fetch.HistoricalRetention)
	envString("MIRADOR_INV_DEDUP", &cfg.Fetch.Dedup)
	envInt("MIRADOR_INV_TRACER_MAX_IDS", &cfg.Tracer.MaxIDs)
	envInt("MIRADOR_INV_MAX_CLUSTERS", &cfg.Cluster.MaxClusters)
	envString("MIRADOR_INV_AGGREGATION", &cfg.Classifier.Aggregation)
	envDuration("MIRADOR_INV_TIMELINE_ETL_LAG", &cfg.Timeline.ETLLag)
	envString("MIRADOR_INV_RULES_PATH", &cfg.Rules.Path)
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
