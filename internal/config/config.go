package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	JWTSecret  string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	Storage    `yaml:"storage"`
	Postgres   `yaml:"postgres"`
	SQLite     `yaml:"sqlite"`
	Redis      `yaml:"redis"`
	RabbitMQ   `yaml:"rabbitmq"`
	HTTPServer `yaml:"http_server"`
	Scraper    `yaml:"scraper"`
	Scheduler  `yaml:"scheduler"`
	Notifier   `yaml:"notifier"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	// Registration scrapes synchronously, so it gets a longer deadline than the
	// plain CRUD handlers.
	RegisterTimeout time.Duration `yaml:"register_timeout" env-default:"90s"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type SQLite struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"./data/price_tracker.db"`
}

type Redis struct {
	Enabled    bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"true"`
	Addr       string        `yaml:"addr" env:"REDIS_ADDR" env-default:"redis:6379"`
	Db         int           `yaml:"db" env-default:"1"`
	DefaultTTL time.Duration `yaml:"default_ttl" env-default:"1m"`
}

type RabbitMQ struct {
	Enabled        bool   `yaml:"enabled" env:"RABBITMQ_ENABLED" env-default:"true"`
	URL            string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName      string `yaml:"queue_name" env-default:"price_alerts"`
	WorkerPoolSize int    `yaml:"worker_pool_size" env-default:"4"`
}

type Scraper struct {
	Timeout       time.Duration `yaml:"timeout" env-default:"15s"`
	MaxAttempts   int           `yaml:"max_attempts" env-default:"3"`
	RetryDelayMin time.Duration `yaml:"retry_delay_min" env-default:"2s"`
	RetryDelayMax time.Duration `yaml:"retry_delay_max" env-default:"5s"`
}

type Scheduler struct {
	Enabled      bool          `yaml:"enabled" env:"SCHEDULER_ENABLED" env-default:"true"`
	PollInterval time.Duration `yaml:"poll_interval" env-default:"1m"`
	Every        time.Duration `yaml:"every" env-default:"1h"`
	DailyAt      []string      `yaml:"daily_at" env:"SCHEDULER_DAILY_AT" env-separator:","`
	PaceMin      time.Duration `yaml:"pace_min" env-default:"2s"`
	PaceMax      time.Duration `yaml:"pace_max" env-default:"5s"`
}

type Notifier struct {
	Channel  string `yaml:"channel" env:"NOTIFIER_CHANNEL" env-default:"email"`
	Email    `yaml:"email"`
	Telegram `yaml:"telegram"`
}

type Email struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" env:"SMTP_FROM"`
	To       string `yaml:"to" env:"ALERT_EMAIL_TO"`
}

type Telegram struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	APIURL   string `yaml:"api_url" env-default:"https://api.telegram.org"`
}

func MustLoad(configPath string) *Config {
	// .env is optional, values from it are only used when the variable is not
	// already set in the environment
	_ = godotenv.Load()

	// проверка существования файла
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s: %s", configPath, err)
	}

	return &cfg
}
