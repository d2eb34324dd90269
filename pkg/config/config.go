package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "ORDERDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "ORDERDESK_APP_ENV"
	EnvPort         = "ORDERDESK_APP_PORT"
	EnvDBDSN        = "ORDERDESK_DB_DSN"
	EnvDBHost       = "ORDERDESK_DB_HOST"
	EnvDBUser       = "ORDERDESK_DB_USER"
	EnvDBName       = "ORDERDESK_DB_NAME"
	EnvRedisURL     = "ORDERDESK_REDIS_URL"
	EnvGCPProjectID = "ORDERDESK_GCP_PROJECT_ID"
	EnvEventsTopic  = "ORDERDESK_PUBSUB_ASSIGNMENT_TOPIC"
	EnvWorkStart    = "ORDERDESK_WORK_START"
	EnvWorkEnd      = "ORDERDESK_WORK_END"
	EnvWorkDays     = "ORDERDESK_WORK_DAYS"
	EnvWorkTimezone = "ORDERDESK_WORK_TIMEZONE"
	EnvAssignRoles  = "ORDERDESK_ASSIGNMENT_ROLES"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	Assignment AssignmentConfig
	WorkHours  WorkHoursConfig
	Cron       CronConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Assignment.validate(); err != nil {
		return nil, err
	}
	if cfg.PubSub.Enabled && strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return nil, fmt.Errorf("%s is required when assignment events are enabled", EnvGCPProjectID)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ORDERDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"ORDERDESK_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ORDERDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ORDERDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ORDERDESK_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"ORDERDESK_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ORDERDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"ORDERDESK_DB_DSN"`

	LegacyHost     string `envconfig:"ORDERDESK_DB_HOST"`
	LegacyPort     int    `envconfig:"ORDERDESK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ORDERDESK_DB_USER"`
	LegacyPassword string `envconfig:"ORDERDESK_DB_PASSWORD"`
	LegacyName     string `envconfig:"ORDERDESK_DB_NAME"`
	LegacySSLMode  string `envconfig:"ORDERDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ORDERDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ORDERDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ORDERDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ORDERDESK_REDIS_URL"`
	Address      string        `envconfig:"ORDERDESK_REDIS_ADDR"`
	Password     string        `envconfig:"ORDERDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"ORDERDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ORDERDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ORDERDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ORDERDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ORDERDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AssignmentConfig tunes the order assignment orchestrator.
type AssignmentConfig struct {
	Roles             []string      `envconfig:"ORDERDESK_ASSIGNMENT_ROLES" default:"agent,manager"`
	RosterTimeout     time.Duration `envconfig:"ORDERDESK_ASSIGNMENT_ROSTER_TIMEOUT" default:"5s"`
	ConstraintTimeout time.Duration `envconfig:"ORDERDESK_ASSIGNMENT_CONSTRAINT_TIMEOUT" default:"5s"`
	InFlightLockTTL   time.Duration `envconfig:"ORDERDESK_ASSIGNMENT_INFLIGHT_TTL" default:"30s"`
	MaxBatchSize      int           `envconfig:"ORDERDESK_ASSIGNMENT_MAX_BATCH" default:"200"`
	IdempotencyTTL    time.Duration `envconfig:"ORDERDESK_ASSIGNMENT_IDEMPOTENCY_TTL" default:"24h"`
}

func (a AssignmentConfig) validate() error {
	if len(a.Roles) == 0 {
		return fmt.Errorf("%s must list at least one role", EnvAssignRoles)
	}
	if a.RosterTimeout <= 0 || a.ConstraintTimeout <= 0 {
		return fmt.Errorf("assignment fetch timeouts must be positive")
	}
	return nil
}

// WorkHoursConfig seeds the work settings record when none is stored.
type WorkHoursConfig struct {
	Start      string `envconfig:"ORDERDESK_WORK_START" default:"09:00"`
	End        string `envconfig:"ORDERDESK_WORK_END" default:"17:00"`
	Days       []int  `envconfig:"ORDERDESK_WORK_DAYS" default:"1,2,3,4,5"`
	BreakStart string `envconfig:"ORDERDESK_WORK_BREAK_START"`
	BreakEnd   string `envconfig:"ORDERDESK_WORK_BREAK_END"`
	Timezone   string `envconfig:"ORDERDESK_WORK_TIMEZONE" default:"UTC"`
}

type CronConfig struct {
	SweepInterval  time.Duration `envconfig:"ORDERDESK_CRON_SWEEP_INTERVAL" default:"5m"`
	SweepBatchSize int           `envconfig:"ORDERDESK_CRON_SWEEP_BATCH" default:"100"`
	LockTTL        time.Duration `envconfig:"ORDERDESK_CRON_LOCK_TTL" default:"10m"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"ORDERDESK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	Enabled         bool   `envconfig:"ORDERDESK_PUBSUB_ENABLED" default:"false"`
	AssignmentTopic string `envconfig:"ORDERDESK_PUBSUB_ASSIGNMENT_TOPIC" default:"orderdesk-assignment-events"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
