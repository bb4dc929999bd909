package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Security SecurityConfig `mapstructure:"security"`
	Quest    QuestConfig    `mapstructure:"quest"`
}

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Debug    bool   `mapstructure:"debug"`
	AdminKey string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	Mode         string        `mapstructure:"mode"` // sqlite | mysql
	SQLitePath   string        `mapstructure:"sqlite_path"`
	MySQLDSN     string        `mapstructure:"mysql_dsn"`
	MySQLMaxOpen int           `mapstructure:"mysql_max_open"`
	MySQLMaxIdle int           `mapstructure:"mysql_max_idle"`
	MySQLMaxLife time.Duration `mapstructure:"mysql_max_life"`
	SlowQuery    time.Duration `mapstructure:"slow_query"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type SecurityConfig struct {
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
	RateLimitBurst int      `mapstructure:"rate_limit_burst"`
	AdminAllowIPs  []string `mapstructure:"admin_allow_ips"` // IPs or CIDRs; empty allows all
}

// QuestConfig tunes the quest lifecycle engine and its schedule.
type QuestConfig struct {
	BatchSize        int           `mapstructure:"batch_size"`
	StatsTTL         time.Duration `mapstructure:"stats_ttl"`
	SchedulerEnabled bool          `mapstructure:"scheduler_enabled"`
	DailyCron        string        `mapstructure:"daily_cron"`
	WeeklyCron       string        `mapstructure:"weekly_cron"`
	MonthlyCron      string        `mapstructure:"monthly_cron"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	BackfillInterval time.Duration `mapstructure:"backfill_interval"`
	JobLockTTL       time.Duration `mapstructure:"job_lock_ttl"` // lease held by the instance running a job
}

// Load reads config from the given YAML file path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/quests.db")
	v.SetDefault("database.mysql_max_open", 50)
	v.SetDefault("database.mysql_max_idle", 10)
	v.SetDefault("database.mysql_max_life", "1h")
	v.SetDefault("database.slow_query", "200ms")
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 200)
	v.SetDefault("quest.batch_size", 50)
	v.SetDefault("quest.stats_ttl", "30s")
	v.SetDefault("quest.scheduler_enabled", true)
	v.SetDefault("quest.daily_cron", "0 0 * * *")
	v.SetDefault("quest.weekly_cron", "0 0 * * 1")
	v.SetDefault("quest.monthly_cron", "0 0 1 * *")
	v.SetDefault("quest.sweep_interval", "1h")
	v.SetDefault("quest.backfill_interval", "15m")
	v.SetDefault("quest.job_lock_ttl", "10m")
}
