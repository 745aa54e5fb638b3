// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
//
// Здесь только статическая конфигурация (креды, БД, расписание).
// Горячие настройки (шаблоны ответов, лимиты) живут в wiki-документе
// сабреддита и читаются пакетом botcfg при каждом обращении.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ статические настройки приложения.
type Config struct {
	// --- Reddit ---
	RedditClientID     string `envconfig:"REDDIT_CLIENT_ID" required:"true"`
	RedditClientSecret string `envconfig:"REDDIT_CLIENT_SECRET" required:"true"`
	RedditUsername     string `envconfig:"REDDIT_USERNAME" required:"true"`
	RedditPassword     string `envconfig:"REDDIT_PASSWORD" required:"true"`
	RedditUserAgent    string `envconfig:"REDDIT_USER_AGENT" default:"golang:MarketMM2Rep:2.0"`

	// Сабреддит, в котором бот работает (единственный обслуживаемый)
	Subreddit string `envconfig:"SUBREDDIT" default:"MarketMM2"`
	// Wiki-страница с горячим конфигом (шаблоны ответов и лимиты)
	WikiConfigPage string `envconfig:"WIKI_CONFIG_PAGE" default:"marketmm2botsconfig/rep_bot_config"`

	// --- Flair ---
	// ID шаблона пользовательского флаира с репутацией
	RepFlairTemplateID string `envconfig:"REP_FLAIR_TEMPLATE_ID" required:"true"`
	// ID шаблона флаира закрытого поста («Trade Ended»)
	TradeEndedFlairTemplateID string `envconfig:"TRADE_ENDED_FLAIR_TEMPLATE_ID" required:"true"`

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose).
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"repbot"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"rep_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	// Часовой пояс бота: от него считается «сегодня» для суточного лимита
	// и полночь для задачи очистки.
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"UTC"`

	// --- Consumer ---
	// Пауза между опросами ленты новых комментариев
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	// База бэкоффа при ошибках платформы: задержка = база × число подряд
	// идущих неудач (счётчик сбрасывается в 1 после успеха)
	BackoffBase time.Duration `envconfig:"BACKOFF_BASE" default:"5m"`

	// --- Retention ---
	// Горизонт хранения транзакций в днях
	RetentionDays int `envconfig:"RETENTION_DAYS" default:"180"`
	// Окно суточного экспорта в часах
	ExportWindowHours int `envconfig:"EXPORT_WINDOW_HOURS" default:"24"`

	// --- Discord ---
	// Webhook для сообщений оператору об ошибках
	DiscordErrorWebhook string `envconfig:"DISCORD_ERROR_WEBHOOK" required:"true"`
	// Webhook для ссылок на суточные выгрузки
	DiscordUpdatesWebhook string `envconfig:"DISCORD_UPDATES_WEBHOOK" required:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.Subreddit == "" {
		return fmt.Errorf("SUBREDDIT не задан")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL должен быть > 0")
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("BACKOFF_BASE должен быть > 0")
	}
	if c.RetentionDays <= 0 || c.ExportWindowHours <= 0 {
		return fmt.Errorf("некорректные RETENTION_DAYS/EXPORT_WINDOW_HOURS")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
