package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mirrorstack/mirror_server/internal/models"
)

type Config struct {
	DB_HOST        string
	DB_PORT        string
	DB_USER        string
	DB_PASSWORD    string
	DB_NAME        string
	ES_URL         string
	ES_USER        string
	ES_PASSWORD    string
	JWT_SECRET     string
	TOKEN_EXPIRE   string
	APP_TOKEN_NAME string
	KAFKA_ADDRESS  string
	PORT           string
	LOG_LEVEL      string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Notice: .env file not found: %v. Using system environment variables", err)
	}

	config := &Config{
		DB_HOST:        os.Getenv("DB_HOST"),
		DB_PORT:        os.Getenv("DB_PORT"),
		DB_USER:        os.Getenv("DB_USER"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		ES_URL:         os.Getenv("ES_URL"),
		ES_USER:        os.Getenv("ES_USER"),
		ES_PASSWORD:    os.Getenv("ES_PASSWORD"),
		JWT_SECRET:     os.Getenv("JWT_SECRET"),
		TOKEN_EXPIRE:   os.Getenv("TOKEN_EXPIRE"),
		APP_TOKEN_NAME: os.Getenv("APP_TOKEN_NAME"),
		KAFKA_ADDRESS:  os.Getenv("KAFKA_ADDRESS"),
		PORT:           os.Getenv("PORT"),
		LOG_LEVEL:      os.Getenv("LOG_LEVEL"),
	}
	if config.JWT_SECRET == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return config, nil
}

// TokenTTL parses TOKEN_EXPIRE as a duration offset from issuance,
// e.g. "15m". Defaults to 15 minutes.
func (c *Config) TokenTTL() time.Duration {
	if c.TOKEN_EXPIRE == "" {
		return 15 * time.Minute
	}
	d, err := time.ParseDuration(c.TOKEN_EXPIRE)
	if err != nil {
		log.Printf("Notice: invalid TOKEN_EXPIRE %q, using 15m", c.TOKEN_EXPIRE)
		return 15 * time.Minute
	}
	return d
}

func configurePool(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

func InitDB(cfg *Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.DB_USER, cfg.DB_PASSWORD, cfg.DB_HOST, cfg.DB_PORT, cfg.DB_NAME,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		NowFunc:     func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := configurePool(db); err != nil {
		return nil, fmt.Errorf("configuring pool: %w", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Mirror{}, &models.UserMirror{}, &models.RevokedToken{}); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}
