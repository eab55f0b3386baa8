package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

const (
	CreatePolicyStrict     = "strict"
	CreatePolicyLocalFirst = "local-first"

	StorageJSON = "json"
	StorageBolt = "bolt"
)

// SysConfig system configuration
type SysConfig struct {
	Appid    string `yaml:"appid"`
	Location string `yaml:"location"`
	Workdir  string `yaml:"workdir"`
	NodeID   int64  `yaml:"node_id"` // snowflake node used for sku generation
	Debug    bool   `yaml:"debug"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"` // session cookie secret
}

// LogConfig logger configuration
type LogConfig struct {
	Mode       string `yaml:"mode"`
	FileEnable bool   `yaml:"file_enable"`
	Filename   string `yaml:"filename"`
}

// StorageConfig local catalog storage
type StorageConfig struct {
	Type        string `yaml:"type"`
	CatalogFile string `yaml:"catalog_file"`
	BoltFile    string `yaml:"bolt_file"`
	ImageDir    string `yaml:"image_dir"`
}

// CatalogConfig remote catalog service (WooCommerce REST API)
type CatalogConfig struct {
	URL                string        `yaml:"url"`
	Version            string        `yaml:"version"`
	ConsumerKey        string        `yaml:"consumer_key"`
	ConsumerSecret     string        `yaml:"consumer_secret"`
	Timeout            time.Duration `yaml:"timeout"`
	PageSize           int           `yaml:"page_size"`
	BatchSize          int           `yaml:"batch_size"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
}

// MediaConfig remote media service (WordPress media API)
type MediaConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// SyncConfig sync workflow tuning
type SyncConfig struct {
	CreatePolicy  string `yaml:"create_policy"`
	UploadWorkers int    `yaml:"upload_workers"`
	MediaWorkers  int    `yaml:"media_workers"`
	AuditCron     string `yaml:"audit_cron"`
}

type AppConfig struct {
	System  SysConfig     `yaml:"system"`
	Web     WebConfig     `yaml:"web"`
	Logger  LogConfig     `yaml:"logger"`
	Storage StorageConfig `yaml:"storage"`
	Catalog CatalogConfig `yaml:"catalog"`
	Media   MediaConfig   `yaml:"media"`
	Sync    SyncConfig    `yaml:"sync"`
}

// GetLogDir returns the log directory under workdir
func (c *AppConfig) GetLogDir() string {
	return filepath.Join(c.System.Workdir, "logs")
}

// GetDataDir returns the data directory under workdir
func (c *AppConfig) GetDataDir() string {
	return filepath.Join(c.System.Workdir, "data")
}

// CatalogFilePath resolves the catalog file against the data dir when relative
func (c *AppConfig) CatalogFilePath() string {
	return c.resolve(c.Storage.CatalogFile)
}

// BoltFilePath resolves the bolt file against the data dir when relative
func (c *AppConfig) BoltFilePath() string {
	return c.resolve(c.Storage.BoltFile)
}

// ImageDirPath resolves the image directory against the data dir when relative
func (c *AppConfig) ImageDirPath() string {
	return c.resolve(c.Storage.ImageDir)
}

func (c *AppConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.GetDataDir(), p)
}

var DefaultAppConfig = &AppConfig{
	System: SysConfig{
		Appid:    "ShopSync",
		Location: "Local",
		Workdir:  "/var/shopsync",
		NodeID:   1,
		Debug:    true,
	},
	Web: WebConfig{
		Host:   "0.0.0.0",
		Port:   3000,
		Secret: "9b6de5cc-0731-4bf1-6f41-65c6a2b3b0f1",
	},
	Logger: LogConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/shopsync/logs/shopsync.log",
	},
	Storage: StorageConfig{
		Type:        StorageJSON,
		CatalogFile: "products.json",
		BoltFile:    "products.db",
		ImageDir:    "product-images",
	},
	Catalog: CatalogConfig{
		Version:   "wc/v3",
		Timeout:   30 * time.Second,
		PageSize:  100,
		BatchSize: 100,
	},
	Sync: SyncConfig{
		CreatePolicy:  CreatePolicyStrict,
		UploadWorkers: 4,
		MediaWorkers:  4,
	},
}

// LoadConfig reads the yaml file (optional) and applies SHOPSYNC_* environment overrides.
func LoadConfig(cfile string) (*AppConfig, error) {
	cfg := *DefaultAppConfig
	if cfile != "" {
		data, err := os.ReadFile(cfile)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", cfile)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", cfile)
		}
	}
	applyEnv(&cfg)
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) fillDefaults() {
	d := DefaultAppConfig
	c.Catalog.URL = strings.TrimRight(c.Catalog.URL, "/")
	if c.Catalog.Version == "" {
		c.Catalog.Version = d.Catalog.Version
	}
	if c.Catalog.Timeout <= 0 {
		c.Catalog.Timeout = d.Catalog.Timeout
	}
	if c.Catalog.PageSize <= 0 {
		c.Catalog.PageSize = d.Catalog.PageSize
	}
	if c.Catalog.BatchSize <= 0 {
		c.Catalog.BatchSize = d.Catalog.BatchSize
	}
	if c.Storage.Type == "" {
		c.Storage.Type = d.Storage.Type
	}
	if c.Storage.CatalogFile == "" {
		c.Storage.CatalogFile = d.Storage.CatalogFile
	}
	if c.Storage.BoltFile == "" {
		c.Storage.BoltFile = d.Storage.BoltFile
	}
	if c.Storage.ImageDir == "" {
		c.Storage.ImageDir = d.Storage.ImageDir
	}
	if c.Sync.CreatePolicy == "" {
		c.Sync.CreatePolicy = d.Sync.CreatePolicy
	}
	if c.Sync.UploadWorkers <= 0 {
		c.Sync.UploadWorkers = d.Sync.UploadWorkers
	}
	if c.Sync.MediaWorkers <= 0 {
		c.Sync.MediaWorkers = d.Sync.MediaWorkers
	}
	if c.Web.Port <= 0 {
		c.Web.Port = d.Web.Port
	}
}

// Validate rejects values the workflows cannot act on
func (c *AppConfig) Validate() error {
	switch c.Sync.CreatePolicy {
	case CreatePolicyStrict, CreatePolicyLocalFirst:
	default:
		return errors.Errorf("unknown sync.create_policy %q", c.Sync.CreatePolicy)
	}
	switch c.Storage.Type {
	case StorageJSON, StorageBolt:
	default:
		return errors.Errorf("unknown storage.type %q", c.Storage.Type)
	}
	return nil
}

func applyEnv(c *AppConfig) {
	setEnvString("SHOPSYNC_WORKDIR", &c.System.Workdir)
	setEnvString("SHOPSYNC_LOCATION", &c.System.Location)
	setEnvInt64("SHOPSYNC_NODE_ID", &c.System.NodeID)
	setEnvBool("SHOPSYNC_DEBUG", &c.System.Debug)

	setEnvString("SHOPSYNC_WEB_HOST", &c.Web.Host)
	setEnvInt("SHOPSYNC_WEB_PORT", &c.Web.Port)
	setEnvInt("PORT", &c.Web.Port)
	setEnvString("SHOPSYNC_WEB_SECRET", &c.Web.Secret)

	setEnvString("SHOPSYNC_LOGGER_MODE", &c.Logger.Mode)
	setEnvBool("SHOPSYNC_LOGGER_FILE_ENABLE", &c.Logger.FileEnable)

	setEnvString("SHOPSYNC_STORAGE_TYPE", &c.Storage.Type)
	setEnvString("SHOPSYNC_CATALOG_FILE", &c.Storage.CatalogFile)
	setEnvString("SHOPSYNC_IMAGE_DIR", &c.Storage.ImageDir)

	setEnvString("WOOCOMMERCE_URL", &c.Catalog.URL)
	setEnvString("WOOCOMMERCE_VERSION", &c.Catalog.Version)
	setEnvString("WOOCOMMERCE_CONSUMER_KEY", &c.Catalog.ConsumerKey)
	setEnvString("WOOCOMMERCE_CONSUMER_SECRET", &c.Catalog.ConsumerSecret)
	setEnvBool("WOOCOMMERCE_INSECURE_SKIP_VERIFY", &c.Catalog.InsecureSkipVerify)
	if v := os.Getenv("WOOCOMMERCE_TIMEOUT"); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			c.Catalog.Timeout = d
		}
	}

	setEnvString("WORDPRESS_USERNAME", &c.Media.Username)
	setEnvString("WORDPRESS_PASSWORD", &c.Media.Password)

	setEnvString("SHOPSYNC_CREATE_POLICY", &c.Sync.CreatePolicy)
	setEnvInt("SHOPSYNC_UPLOAD_WORKERS", &c.Sync.UploadWorkers)
	setEnvString("SHOPSYNC_AUDIT_CRON", &c.Sync.AuditCron)
}

func setEnvString(name string, val *string) {
	if v := os.Getenv(name); v != "" {
		*val = v
	}
}

func setEnvInt(name string, val *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			*val = i
		}
	}
}

func setEnvInt64(name string, val *int64) {
	if v := os.Getenv(name); v != "" {
		if i, err := cast.ToInt64E(v); err == nil {
			*val = i
		}
	}
}

func setEnvBool(name string, val *bool) {
	if v := os.Getenv(name); v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			*val = b
		}
	}
}
