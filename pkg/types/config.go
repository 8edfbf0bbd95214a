package types

// ProjectConfig is the top-level pbtoado.yaml configuration.
type ProjectConfig struct {
	ADO          ADOConfig          `yaml:"ado" json:"ado"`
	ProductBoard ProductBoardConfig `yaml:"productboard" json:"productboard"`
	Webhook      WebhookConfig      `yaml:"webhook" json:"webhook"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Lock         LockConfig         `yaml:"lock,omitempty" json:"lock,omitempty"`
	Sync         SyncConfig         `yaml:"sync,omitempty" json:"sync,omitempty"`
	Server       *ServerConfig      `yaml:"server,omitempty" json:"server,omitempty"`
	Alerts       []AlertConfig      `yaml:"alerts,omitempty" json:"alerts,omitempty"`
	Logging      LoggingConfig      `yaml:"logging,omitempty" json:"logging,omitempty"`
	Telemetry    *TelemetryConfig   `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// ADOConfig holds Azure DevOps connection settings. Batch sizes are bounded by
// request URL length: the work item batch endpoint caps ids at 200 per call and
// paged list endpoints are kept at 50.
type ADOConfig struct {
	Organization      string            `yaml:"organization" json:"organization"`
	Project           string            `yaml:"project" json:"project"`
	BaseURL           string            `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	PAT               string            `yaml:"pat" json:"-"`
	APIVersion        string            `yaml:"apiVersion,omitempty" json:"apiVersion,omitempty"`
	BatchSize         int               `yaml:"batchSize,omitempty" json:"batchSize,omitempty"`
	QueryBatchSize    int               `yaml:"queryBatchSize,omitempty" json:"queryBatchSize,omitempty"`
	AreaDepth         int               `yaml:"areaDepth,omitempty" json:"areaDepth,omitempty"`
	RequestsPerSecond float64           `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int               `yaml:"burst,omitempty" json:"burst,omitempty"`
	Timeout           string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	AreaPath          string            `yaml:"areaPath,omitempty" json:"areaPath,omitempty"`
	WorkItemType      string            `yaml:"workItemType,omitempty" json:"workItemType,omitempty"`
	Fields            ADOFieldConfig    `yaml:"fields,omitempty" json:"fields,omitempty"`
	Headers           map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// ADOFieldConfig names the flat ADO field reference names that carry custom data.
type ADOFieldConfig struct {
	ProductBoardID string `yaml:"productboardId,omitempty" json:"productboardId,omitempty"`
	Score          string `yaml:"score,omitempty" json:"score,omitempty"`
	Reach          string `yaml:"reach,omitempty" json:"reach,omitempty"`
	Impact         string `yaml:"impact,omitempty" json:"impact,omitempty"`
	Confidence     string `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	Effort         string `yaml:"effort,omitempty" json:"effort,omitempty"`
	Teams          string `yaml:"teams,omitempty" json:"teams,omitempty"`
	Status         string `yaml:"status,omitempty" json:"status,omitempty"`
}

// ProductBoardConfig holds ProductBoard connection settings.
type ProductBoardConfig struct {
	BaseURL           string                   `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	Token             string                   `yaml:"token" json:"-"`
	RequestsPerSecond float64                  `yaml:"requestsPerSecond,omitempty" json:"requestsPerSecond,omitempty"`
	Burst             int                      `yaml:"burst,omitempty" json:"burst,omitempty"`
	Timeout           string                   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	FeatureURLPattern string                   `yaml:"featureUrlPattern,omitempty" json:"featureUrlPattern,omitempty"`
	CustomFields      ProductBoardCustomFields `yaml:"customFields,omitempty" json:"customFields,omitempty"`
}

// ProductBoardCustomFields maps canonical scoring fields to ProductBoard custom field ids.
type ProductBoardCustomFields struct {
	Reach      string `yaml:"reach,omitempty" json:"reach,omitempty"`
	Impact     string `yaml:"impact,omitempty" json:"impact,omitempty"`
	Confidence string `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	Effort     string `yaml:"effort,omitempty" json:"effort,omitempty"`
	Score      string `yaml:"score,omitempty" json:"score,omitempty"`
	Teams      string `yaml:"teams,omitempty" json:"teams,omitempty"`
}

// WebhookConfig controls the inbound webhook controller.
type WebhookConfig struct {
	Secret      string `yaml:"secret" json:"-"`
	ReadyStatus string `yaml:"readyStatus,omitempty" json:"readyStatus,omitempty"`
	LiveWrites  bool   `yaml:"liveWrites" json:"liveWrites"`
	LockTTL     string `yaml:"lockTtl,omitempty" json:"lockTtl,omitempty"`
	LockWait    string `yaml:"lockWait,omitempty" json:"lockWait,omitempty"`
}

// StoreConfig selects and configures the local cache store.
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty" json:"-"`
}

// LockConfig selects the per-item serialization backend.
type LockConfig struct {
	Backend  string          `yaml:"backend,omitempty" json:"backend,omitempty"` // "memory", "redis", or "dynamodb"
	Redis    *RedisConfig    `yaml:"redis,omitempty" json:"redis,omitempty"`
	DynamoDB *DynamoDBConfig `yaml:"dynamodb,omitempty" json:"dynamodb,omitempty"`
}

// RedisConfig holds Redis connection settings for distributed locks.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"-"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty" json:"keyPrefix,omitempty"`
}

// DynamoDBConfig holds DynamoDB settings for distributed locks.
type DynamoDBConfig struct {
	TableName string `yaml:"tableName" json:"tableName"`
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// SyncConfig controls the bulk sync path.
type SyncConfig struct {
	Interval    string       `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout     string       `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	EntityTypes []EntityType `yaml:"entityTypes,omitempty" json:"entityTypes,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	APIKey         string `yaml:"apiKey,omitempty" json:"-"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty" json:"maxRequestBody,omitempty"`
}

// AlertConfig defines an alert sink.
type AlertConfig struct {
	Type AlertType `yaml:"type" json:"type"`
	URL  string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path string    `yaml:"path,omitempty" json:"path,omitempty"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Format     string `yaml:"format,omitempty" json:"format,omitempty"` // "json" or "text"
	Level      string `yaml:"level,omitempty" json:"level,omitempty"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
	MaxBackups int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	MaxAgeDays int    `yaml:"maxAgeDays,omitempty" json:"maxAgeDays,omitempty"`
}

// TelemetryConfig enables OTLP export of traces and metrics.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	Insecure     bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName  string `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}
