package datafeed

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Store persists executed trades and admission decisions. A nil Store is
// valid and no-ops every method, the degraded mode when no database is
// configured.
type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

func NewStore(log *logrus.Logger) (*Store, error) {
	cfg := DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"), // Required - no default
		DBName:   getEnvOrDefault("DB_NAME", "regimescout"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, log: log.WithField("component", "store")}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}

	store.log.Info("Database connected successfully")
	return store, nil
}

func (s *Store) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close()
}

func (s *Store) ensureSchema() error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS trades (
		id SERIAL PRIMARY KEY,
		idea_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		volume TEXT NOT NULL,
		price TEXT NOT NULL,
		total_value TEXT NOT NULL,
		strategy TEXT NOT NULL,
		confluence_score REAL NOT NULL,
		order_id TEXT,
		status TEXT,
		executed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS decisions (
		id SERIAL PRIMARY KEY,
		symbol TEXT NOT NULL,
		strategy TEXT NOT NULL,
		regime TEXT NOT NULL,
		passed BOOLEAN NOT NULL,
		confluence_score REAL NOT NULL,
		reason TEXT,
		decided_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
	CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
	`

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
