package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	JWT        JWTConfig
	SMTP       SMTPConfig
	Newsletter NewsletterConfig
	Scheduler  SchedulerConfig
	Redis      RedisConfig
	Log        LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ShutdownGrace  time.Duration
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// JWTConfig holds the secret used to verify admin tokens
type JWTConfig struct {
	Secret string
}

// SMTPConfig holds the mail relay settings
type SMTPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	FromName      string
	TLSMode       string
	Mock          bool
	VerifyTimeout time.Duration
	// SendTimeout bounds one SMTP delivery
	SendTimeout time.Duration
}

// NewsletterConfig holds dispatch defaults
type NewsletterConfig struct {
	FrontendBaseURL string
	BatchSize       int
	BatchDelay      time.Duration
	SendDelay       time.Duration
	SettingsTTL     time.Duration
}

// SchedulerConfig controls the in-process due-campaign loop. Enabled only
// seeds the runtime schedulerEnabled setting; the loop always runs.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	LockTTL  time.Duration
}

// RedisConfig is optional. An empty Addr selects the in-process lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LogConfig selects the log level and encoder
type LogConfig struct {
	Level string
	Env   string
}

// Load loads configuration from .env, an optional config file in path, and
// environment variables (SECTION_KEY, e.g. NEWSLETTER_BATCHSIZE).
func Load(path string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.AddConfigPath("./config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindAliases(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	switch {
	case c.MongoDB.URI == "":
		return errors.New("config: MongoDB.URI is required")
	case c.MongoDB.Database == "":
		return errors.New("config: MongoDB.Database is required")
	case c.Newsletter.BatchSize <= 0:
		return fmt.Errorf("config: Newsletter.BatchSize must be positive, got %d", c.Newsletter.BatchSize)
	case c.Newsletter.BatchDelay < 0 || c.Newsletter.SendDelay < 0:
		return errors.New("config: newsletter delays must not be negative")
	case c.SMTP.SendTimeout <= 0:
		return errors.New("config: SMTP.SendTimeout must be positive")
	case c.Newsletter.FrontendBaseURL == "":
		return errors.New("config: Newsletter.FrontendBaseURL is required")
	case c.Scheduler.Interval <= 0:
		return errors.New("config: Scheduler.Interval must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Server.Port", "4000")
	v.SetDefault("Server.AllowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("Server.ShutdownGrace", 5*time.Second)

	v.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	v.SetDefault("MongoDB.Database", "ecell")
	v.SetDefault("MongoDB.ConnectTimeout", 10*time.Second)

	v.SetDefault("JWT.Secret", "")

	v.SetDefault("SMTP.Host", "")
	v.SetDefault("SMTP.Port", 587)
	v.SetDefault("SMTP.Username", "")
	v.SetDefault("SMTP.Password", "")
	v.SetDefault("SMTP.From", "newsletter@ecell.local")
	v.SetDefault("SMTP.FromName", "E-Cell Newsletter")
	v.SetDefault("SMTP.TLSMode", "starttls")
	v.SetDefault("SMTP.Mock", true)
	v.SetDefault("SMTP.VerifyTimeout", 10*time.Second)
	v.SetDefault("SMTP.SendTimeout", 30*time.Second)

	v.SetDefault("Newsletter.FrontendBaseURL", "http://localhost:3000")
	v.SetDefault("Newsletter.BatchSize", 10)
	v.SetDefault("Newsletter.BatchDelay", 2*time.Second)
	v.SetDefault("Newsletter.SendDelay", 100*time.Millisecond)
	v.SetDefault("Newsletter.SettingsTTL", 30*time.Second)

	v.SetDefault("Scheduler.Enabled", true)
	v.SetDefault("Scheduler.Interval", time.Minute)
	v.SetDefault("Scheduler.LockTTL", 30*time.Minute)

	v.SetDefault("Redis.Addr", "")
	v.SetDefault("Redis.Password", "")
	v.SetDefault("Redis.DB", 0)

	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.Env", "dev")
}

// bindAliases accepts the conventional variable names used by the deployment.
func bindAliases(v *viper.Viper) {
	_ = v.BindEnv("MongoDB.URI", "MONGODB_URI", "MONGO_URI")
	_ = v.BindEnv("MongoDB.Database", "MONGODB_DATABASE")
	_ = v.BindEnv("JWT.Secret", "JWT_SECRET")
	_ = v.BindEnv("Server.Port", "PORT", "SERVER_PORT")
	_ = v.BindEnv("Newsletter.FrontendBaseURL", "FRONTEND_URL", "NEWSLETTER_FRONTENDBASEURL")
	_ = v.BindEnv("Redis.Addr", "REDIS_ADDR")
	_ = v.BindEnv("Log.Level", "LOG_LEVEL")
}
