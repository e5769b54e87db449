package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. PGKEEP_BACKUP_DIR.
const EnvPrefix = "PGKEEP"

type Config struct {
	App       AppConfig       `mapstructure:"app" yaml:"app"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Postgres  PostgresConfig  `mapstructure:"postgres" yaml:"postgres"`
	Physical  PhysicalConfig  `mapstructure:"physical" yaml:"physical"`
	Upload    UploadConfig    `mapstructure:"upload" yaml:"upload"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Notify    NotifyConfig    `mapstructure:"notify" yaml:"notify"`
	Schedule  ScheduleConfig  `mapstructure:"schedule" yaml:"schedule"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Hostname string `mapstructure:"hostname" yaml:"hostname"`
	LockFile string `mapstructure:"lock_file" yaml:"lock_file"`
}

type LogConfig struct {
	File       string `mapstructure:"file" yaml:"file"`
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

type BackupConfig struct {
	Dir            string `mapstructure:"dir" yaml:"dir"`
	LogicalPrefix  string `mapstructure:"logical_prefix" yaml:"logical_prefix"`
	PhysicalPrefix string `mapstructure:"physical_prefix" yaml:"physical_prefix"`
}

type PostgresConfig struct {
	Database      string `mapstructure:"database" yaml:"database"`
	User          string `mapstructure:"user" yaml:"user"`
	Password      string `mapstructure:"password" yaml:"password"`
	Host          string `mapstructure:"host" yaml:"host"`
	Port          int    `mapstructure:"port" yaml:"port"`
	SSLMode       string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
	ServiceUser   string `mapstructure:"service_user" yaml:"service_user"`
	PgDumpPath    string `mapstructure:"pg_dump_path" yaml:"pg_dump_path"`
	PsqlPath      string `mapstructure:"psql_path" yaml:"psql_path"`
	CompressLevel int    `mapstructure:"compress_level" yaml:"compress_level"`
	QueryMode     string `mapstructure:"query_mode" yaml:"query_mode"`
}

type PhysicalConfig struct {
	Archiver string `mapstructure:"archiver" yaml:"archiver"`
	UseSudo  bool   `mapstructure:"use_sudo" yaml:"use_sudo"`
	TarPath  string `mapstructure:"tar_path" yaml:"tar_path"`
}

type UploadConfig struct {
	Destination  string       `mapstructure:"destination" yaml:"destination"`
	RclonePath   string       `mapstructure:"rclone_path" yaml:"rclone_path"`
	RcloneConfig string       `mapstructure:"rclone_config" yaml:"rclone_config"`
	S3           S3Config     `mapstructure:"s3" yaml:"s3"`
	GCS          GCSConfig    `mapstructure:"gcs" yaml:"gcs"`
	GDrive       GDriveConfig `mapstructure:"gdrive" yaml:"gdrive"`
	Azure        AzureConfig  `mapstructure:"azure" yaml:"azure"`
}

type S3Config struct {
	Region    string `mapstructure:"region" yaml:"region"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
}

type GDriveConfig struct {
	CredentialsFile  string `mapstructure:"credentials_file" yaml:"credentials_file"`
	ClientSecretFile string `mapstructure:"client_secret_file" yaml:"client_secret_file"`
	RefreshToken     string `mapstructure:"refresh_token" yaml:"refresh_token"`
	AuthAddr         string `mapstructure:"auth_addr" yaml:"auth_addr"`
}

type AzureConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key"`
}

type RetentionConfig struct {
	Days        int  `mapstructure:"days" yaml:"days"`
	Remote      bool `mapstructure:"remote" yaml:"remote"`
	FailOnError bool `mapstructure:"fail_on_error" yaml:"fail_on_error"`
}

type NotifyConfig struct {
	LogTailLines int            `mapstructure:"log_tail_lines" yaml:"log_tail_lines"`
	Email        EmailConfig    `mapstructure:"email" yaml:"email"`
	Telegram     TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

type EmailConfig struct {
	Enabled      bool       `mapstructure:"enabled" yaml:"enabled"`
	To           string     `mapstructure:"to" yaml:"to"`
	From         string     `mapstructure:"from" yaml:"from"`
	Transport    string     `mapstructure:"transport" yaml:"transport"`
	SendmailPath string     `mapstructure:"sendmail_path" yaml:"sendmail_path"`
	SMTP         SMTPConfig `mapstructure:"smtp" yaml:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	StartTLS bool   `mapstructure:"starttls" yaml:"starttls"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"`
	ChatID   string `mapstructure:"chat_id" yaml:"chat_id"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron" yaml:"cron"`
}

// Loader reads configuration from defaults, an optional file, and the environment.
type Loader struct {
	v          *viper.Viper
	configPath string
}

func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// Set overrides a single key, used for CLI flags.
func (l *Loader) Set(key string, value any) {
	l.v.Set(key, value)
}

// Load merges all sources. Precedence: overrides > environment > file > defaults.
func (l *Loader) Load() (*Config, error) {
	setDefaults(l.v)

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Load is a shortcut for NewLoader().WithConfigPath(path).Load().
func Load(path string) (*Config, error) {
	return NewLoader().WithConfigPath(path).Load()
}

func (l *Loader) readConfigFile() error {
	l.v.SetConfigType("yaml")

	if l.configPath != "" {
		l.v.SetConfigFile(l.configPath)
		if err := l.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	l.v.SetConfigName("pgkeep")
	l.v.AddConfigPath(".")
	l.v.AddConfigPath("/etc/pgkeep")

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

// ConfigFileUsed returns the file viper read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pgkeep")
	v.SetDefault("app.hostname", "")
	v.SetDefault("app.lock_file", "/run/pgkeep.lock")

	v.SetDefault("log.file", "/var/log/pgkeep/backup.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "plain")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("backup.dir", "/var/backups/postgresql")
	v.SetDefault("backup.logical_prefix", "")
	v.SetDefault("backup.physical_prefix", "")

	v.SetDefault("postgres.database", "")
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", 0)
	v.SetDefault("postgres.ssl_mode", "")
	v.SetDefault("postgres.service_user", "postgres")
	v.SetDefault("postgres.pg_dump_path", "pg_dump")
	v.SetDefault("postgres.psql_path", "psql")
	v.SetDefault("postgres.compress_level", 9)
	v.SetDefault("postgres.query_mode", "psql")

	v.SetDefault("physical.archiver", "tar")
	v.SetDefault("physical.use_sudo", true)
	v.SetDefault("physical.tar_path", "tar")

	v.SetDefault("upload.destination", "")
	v.SetDefault("upload.rclone_path", "rclone")
	v.SetDefault("upload.rclone_config", "")
	v.SetDefault("upload.s3.region", "us-east-1")
	v.SetDefault("upload.s3.access_key", "")
	v.SetDefault("upload.s3.secret_key", "")
	v.SetDefault("upload.s3.endpoint", "")
	v.SetDefault("upload.gcs.credentials_file", "")
	v.SetDefault("upload.gdrive.credentials_file", "")
	v.SetDefault("upload.gdrive.client_secret_file", "")
	v.SetDefault("upload.gdrive.refresh_token", "")
	v.SetDefault("upload.gdrive.auth_addr", "localhost:8085")
	v.SetDefault("upload.azure.account_name", "")
	v.SetDefault("upload.azure.account_key", "")

	v.SetDefault("retention.days", 7)
	v.SetDefault("retention.remote", false)
	v.SetDefault("retention.fail_on_error", false)

	v.SetDefault("notify.log_tail_lines", 15)
	v.SetDefault("notify.email.enabled", true)
	v.SetDefault("notify.email.to", "")
	v.SetDefault("notify.email.from", "")
	v.SetDefault("notify.email.transport", "sendmail")
	v.SetDefault("notify.email.sendmail_path", "/usr/sbin/sendmail")
	v.SetDefault("notify.email.smtp.host", "")
	v.SetDefault("notify.email.smtp.port", 587)
	v.SetDefault("notify.email.smtp.username", "")
	v.SetDefault("notify.email.smtp.password", "")
	v.SetDefault("notify.email.smtp.starttls", true)
	v.SetDefault("notify.telegram.enabled", false)
	v.SetDefault("notify.telegram.bot_token", "")
	v.SetDefault("notify.telegram.chat_id", "")

	v.SetDefault("schedule.cron", "0 0 2 * * *")
}

func (c *Config) applyDerivedDefaults() {
	if c.Backup.LogicalPrefix == "" && c.Postgres.Database != "" {
		c.Backup.LogicalPrefix = c.Postgres.Database + "_logical"
	}
	if c.Backup.PhysicalPrefix == "" && c.Postgres.Database != "" {
		c.Backup.PhysicalPrefix = c.Postgres.Database + "_physical"
	}
	if c.App.Hostname == "" {
		if host, err := os.Hostname(); err == nil {
			c.App.Hostname = host
		} else {
			c.App.Hostname = "unknown"
		}
	}
}

func (c *Config) Validate() error {
	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir is required")
	}
	if c.Log.File == "" {
		return fmt.Errorf("log.file is required")
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database is required")
	}
	if c.Postgres.User == "" {
		return fmt.Errorf("postgres.user is required")
	}
	if c.Postgres.CompressLevel < 0 || c.Postgres.CompressLevel > 9 {
		return fmt.Errorf("postgres.compress_level must be between 0 and 9")
	}
	switch c.Postgres.QueryMode {
	case "psql", "sql":
	default:
		return fmt.Errorf("postgres.query_mode must be psql or sql, got %q", c.Postgres.QueryMode)
	}
	switch c.Physical.Archiver {
	case "tar", "native":
	default:
		return fmt.Errorf("physical.archiver must be tar or native, got %q", c.Physical.Archiver)
	}
	switch c.Log.Format {
	case "plain", "json":
	default:
		return fmt.Errorf("log.format must be plain or json, got %q", c.Log.Format)
	}
	if c.Upload.Destination == "" {
		return fmt.Errorf("upload.destination is required")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must not be negative")
	}
	if c.Notify.LogTailLines < 0 {
		return fmt.Errorf("notify.log_tail_lines must not be negative")
	}

	if c.Notify.Email.Enabled {
		if c.Notify.Email.To == "" {
			return fmt.Errorf("notify.email.to is required when email is enabled")
		}
		if c.Notify.Email.From == "" {
			return fmt.Errorf("notify.email.from is required when email is enabled")
		}
		switch c.Notify.Email.Transport {
		case "sendmail":
		case "smtp":
			if c.Notify.Email.SMTP.Host == "" {
				return fmt.Errorf("notify.email.smtp.host is required for the smtp transport")
			}
		default:
			return fmt.Errorf("notify.email.transport must be sendmail or smtp, got %q", c.Notify.Email.Transport)
		}
	}

	if c.Notify.Telegram.Enabled {
		if c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "" {
			return fmt.Errorf("notify.telegram.bot_token and chat_id are required when telegram is enabled")
		}
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}

	c.Postgres.Password = mask(c.Postgres.Password)
	c.Upload.S3.SecretKey = mask(c.Upload.S3.SecretKey)
	c.Upload.Azure.AccountKey = mask(c.Upload.Azure.AccountKey)
	c.Upload.GDrive.RefreshToken = mask(c.Upload.GDrive.RefreshToken)
	c.Notify.Email.SMTP.Password = mask(c.Notify.Email.SMTP.Password)
	c.Notify.Telegram.BotToken = mask(c.Notify.Telegram.BotToken)
	return c
}
