package database

import (
	"database/sql"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atlo/dashboard/internal/config"
	"github.com/atlo/dashboard/internal/model"
)

// Manager handles database connections and operations.
type Manager struct {
	DB      *gorm.DB
	SqlDB   *sql.DB
	IsValid bool
	Logger  zerolog.Logger
}

// NewManager creates a new database manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		IsValid: false,
		Logger:  log,
	}
}

// Connect opens the database selected by cfg.Type and validates the
// connection.
func (m *Manager) Connect(cfg config.StorageConfig) error {
	var err error

	switch cfg.Type {
	case "postgres":
		m.Logger.Debug().Str("host", cfg.Postgres.Host).Str("database", cfg.Postgres.Database).Msg("Connecting to Postgres DB")
		m.DB, err = GetPostgresDB(cfg.Postgres)
	case "sqlite":
		m.DB, err = GetSqliteDB(cfg.SQLite.Path)
		if err == nil {
			m.Logger.Info().Str("path", cfg.SQLite.Path).Msg("Using local SQLite DB")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to open %s DB: %w", cfg.Type, err)
	}

	// test connection
	m.SqlDB, err = m.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}

	if err = m.SqlDB.Ping(); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to validate connection: %w", err)
	}

	if cfg.Type == "postgres" {
		m.SqlDB.SetMaxOpenConns(10)
	}

	m.Logger.Info().Str("type", cfg.Type).Msg("Connected to database")
	m.IsValid = true
	return nil
}

// Setup migrates the schema.
func (m *Manager) Setup() error {
	if m.DB == nil {
		return fmt.Errorf("db not connected")
	}

	m.Logger.Info().Msg("Migrating schema")
	if err := m.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		m.IsValid = false
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	m.Logger.Info().Msg("Database setup complete")
	return nil
}

// Close releases the underlying connection pool.
func (m *Manager) Close() error {
	if m.SqlDB == nil {
		return nil
	}
	m.IsValid = false
	return m.SqlDB.Close()
}

// PostgresDSN builds a connection string from the config.
func PostgresDSN(cfg config.PostgresConfig) string {
	return fmt.Sprintf(`host=%s port=%s user=%s password=%s dbname=%s sslmode=disable`,
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
}

// GetPostgresDB returns a connection to the Postgres database.
func GetPostgresDB(cfg config.PostgresConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  PostgresDSN(cfg),
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		CreateBatchSize:        1000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

// GetSqliteDB returns a connection to a SQLite database.
// If path is empty or ":memory:", uses a shared in-memory database.
func GetSqliteDB(path string) (*gorm.DB, error) {
	if path == "" || path == ":memory:" {
		path = "file::memory:?cache=shared"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        500,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA cache_size = -32000;",
		"PRAGMA temp_store = MEMORY;",
	}

	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	return db, nil
}
