package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLockDB   int    `mapstructure:"REDIS_LOCK_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Stripe.
	StripeKey           string `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	// Pricing.
	Currency              string  `mapstructure:"CURRENCY"`
	HourlyRate            float64 `mapstructure:"HOURLY_RATE"`
	MultiChildDiscountPct float64 `mapstructure:"MULTI_CHILD_DISCOUNT_PCT"`
	MaxDiscountPct        float64 `mapstructure:"MAX_DISCOUNT_PCT"`
	// Base price per package id, usually set in config.yaml.
	PackagePrices map[string]float64 `mapstructure:"PACKAGE_PRICES"`

	TopUpSuccessURL  string        `mapstructure:"TOPUP_SUCCESS_URL"`
	TopUpCancelURL   string        `mapstructure:"TOPUP_CANCEL_URL"`
	ChildLockTTL     time.Duration `mapstructure:"CHILD_LOCK_TTL"`
	ReminderLeadTime time.Duration `mapstructure:"REMINDER_LEAD_TIME"`

	// Outgoing mail. An empty SMTP_HOST prints mails to the log instead.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "kidsclub")
	viper.SetDefault("JWT_SECRET", "")

	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_LOCK_DB", 1)
	viper.SetDefault("REDIS_QUEUE_DB", 2)

	viper.SetDefault("STRIPE_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")

	viper.SetDefault("CURRENCY", "usd")
	viper.SetDefault("HOURLY_RATE", 15.0)
	viper.SetDefault("MULTI_CHILD_DISCOUNT_PCT", 5.0)
	viper.SetDefault("MAX_DISCOUNT_PCT", 25.0)

	viper.SetDefault("TOPUP_SUCCESS_URL", "http://localhost:3000/bookings/topup/success")
	viper.SetDefault("TOPUP_CANCEL_URL", "http://localhost:3000/bookings/topup/cancel")
	viper.SetDefault("CHILD_LOCK_TTL", "15s")
	viper.SetDefault("REMINDER_LEAD_TIME", "24h")

	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_USERNAME", "")
	viper.SetDefault("SMTP_PASSWORD", "")
	viper.SetDefault("MAIL_FROM", "Kids Club <bookings@kidsclub.local>")
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
