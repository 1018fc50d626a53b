package config

// Defaults applied before the config file, env vars, and flags.
const (
	DefaultCatalogPath = ".sageworks/catalog.db"
	DefaultLocalRoot   = ".sageworks/store"
	DefaultQueryType   = "duckdb"
	DefaultQueryPath   = ":memory:"
	DefaultLogGroup    = "SageWorksLogGroup"
	DefaultOutput      = "auto"
)

// Config holds the resolved CLI configuration.
type Config struct {
	// Bucket is the SageWorks artifact bucket. Required; set it in
	// sageworks.yaml or via SAGEWORKS_BUCKET.
	Bucket string `koanf:"bucket"`

	// CatalogPath is the SQLite catalog location.
	CatalogPath string `koanf:"catalog_path"`

	// QueryType and QueryPath configure the SQL query engine.
	QueryType string `koanf:"query_type"`
	QueryPath string `koanf:"query_path"`

	// StorageEndpoint selects the object store: an http(s) URL for an
	// S3-compatible service, empty for the local store at LocalRoot.
	StorageEndpoint string `koanf:"storage_endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
	Region          string `koanf:"region"`
	LocalRoot       string `koanf:"local_root"`

	// LogGroup is where CLI log records are teed.
	LogGroup string `koanf:"log_group"`

	OutputFormat string `koanf:"output"`
	Verbose      bool   `koanf:"verbose"`

	// ProjectRoot is the directory the config file was found in (or the
	// working directory); relative paths resolve against it.
	ProjectRoot string `koanf:"-"`
}
