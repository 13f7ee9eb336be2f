package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/gps-logger/backend/internal/config"
	"github.com/gps-logger/backend/internal/models"
	"github.com/gps-logger/backend/internal/query"
)

const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"

	// sqlite caps bound variables per statement; 9 columns x 100 rows stays under it.
	insertBatchSize = 100
)

// ErrNoFixes is returned by Latest when the table holds no timestamped fix.
var ErrNoFixes = errors.New("no fixes stored")

var tableNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store defines the interface for fix storage.
type Store interface {
	Insert(ctx context.Context, fixes ...models.GpsFix) error
	RetrieveWhere(ctx context.Context, pred query.Predicate) ([]models.GpsFix, error)
	Latest(ctx context.Context) (*models.GpsFix, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// SQLStore implements Store on an embedded SQLite or DuckDB file.
type SQLStore struct {
	db      *sqlx.DB
	driver  string
	table   string
	dialect goqu.DialectWrapper
	log     zerolog.Logger
}

// fixRow is the scan target for a stored fix.
type fixRow struct {
	UTCTime    string  `db:"utc_time"`
	Latitude   float64 `db:"latitude"`
	Longitude  float64 `db:"longitude"`
	Altitude   float64 `db:"altitude"`
	Speed      float64 `db:"speed"`
	Course     float64 `db:"course"`
	Satellites int64   `db:"satellites"`
	HDOP       float64 `db:"hdop"`
	SessionID  string  `db:"session_id"`
}

// insertRow is the insert shape; goqu reads the db tags.
type insertRow struct {
	UTCTime    string  `db:"utc_time"`
	Latitude   float64 `db:"latitude"`
	Longitude  float64 `db:"longitude"`
	Altitude   float64 `db:"altitude"`
	Speed      float64 `db:"speed"`
	Course     float64 `db:"course"`
	Satellites int     `db:"satellites"`
	HDOP       float64 `db:"hdop"`
	SessionID  string  `db:"session_id"`
}

// Connect opens (creating if needed) the configured database and ensures the fixes table exists.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*SQLStore, error) {
	log = log.With().Str("component", "store").Str("driver", cfg.Driver).Logger()
	log.Debug().Str("path", cfg.Filename).Msg("Opening database")

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite, "":
		db, err = sqlx.Open(DriverSQLite, cfg.Filename)
		if err == nil {
			// one writer at a time; the file lock would serialize anyway
			db.SetMaxOpenConns(1)
		}
	case DriverDuckDB:
		db, err = openDuckDB(cfg.Filename, log)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Filename, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database %s: %w", cfg.Filename, err)
	}

	driverName := cfg.Driver
	if driverName == "" {
		driverName = DriverSQLite
	}
	s, err := NewSQLStore(db, driverName, cfg.Table, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Msg("Database ready")
	return s, nil
}

// openDuckDB opens a DuckDB file with conservative resource pragmas.
func openDuckDB(path string, log zerolog.Logger) (*sqlx.DB, error) {
	connector, err := duckdb.NewConnector(path, func(execer driver.ExecerContext) error {
		pragmas := []string{
			"PRAGMA threads=2",
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				// Non-fatal - continue even if pragma fails
				log.Warn().Err(err).Str("pragma", pragma).Msg("Pragma failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}
	return sqlx.NewDb(sql.OpenDB(connector), DriverDuckDB), nil
}

// NewSQLStore wraps an open handle. driver selects the SQL dialect.
func NewSQLStore(db *sqlx.DB, driverName, table string, log zerolog.Logger) (*SQLStore, error) {
	if table == "" {
		table = "locations"
	}
	if !tableNameRegex.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	var dialect goqu.DialectWrapper
	switch driverName {
	case DriverSQLite:
		dialect = goqu.Dialect("sqlite3")
	case DriverDuckDB:
		dialect = goqu.Dialect("postgres")
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}

	return &SQLStore{
		db:      db,
		driver:  driverName,
		table:   table,
		dialect: dialect,
		log:     log,
	}, nil
}

// EnsureSchema creates the fixes table and its time index if missing.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	text, real, integer := "TEXT", "REAL", "INTEGER"
	if s.driver == DriverDuckDB {
		text, real = "VARCHAR", "DOUBLE"
	}

	// Column order matters for the DuckDB appender.
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			utc_time   %[2]s NOT NULL,
			latitude   %[3]s NOT NULL,
			longitude  %[3]s NOT NULL,
			altitude   %[3]s,
			speed      %[3]s,
			course     %[3]s,
			satellites %[4]s,
			hdop       %[3]s,
			session_id %[2]s
		)`, s.table, text, real, integer)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%[1]s_utc_time ON %[1]s(utc_time)", s.table)
	if _, err := s.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to create utc_time index: %w", err)
	}
	return nil
}

func fixColumns() []interface{} {
	zero := goqu.L("0")
	return []interface{}{
		goqu.C("utc_time"),
		goqu.C("latitude"),
		goqu.C("longitude"),
		goqu.COALESCE(goqu.C("altitude"), zero).As("altitude"),
		goqu.COALESCE(goqu.C("speed"), zero).As("speed"),
		goqu.COALESCE(goqu.C("course"), zero).As("course"),
		goqu.COALESCE(goqu.C("satellites"), zero).As("satellites"),
		goqu.COALESCE(goqu.C("hdop"), zero).As("hdop"),
		goqu.COALESCE(goqu.C("session_id"), goqu.L("''")).As("session_id"),
	}
}

// RetrieveWhere returns every fix matching pred, oldest first.
func (s *SQLStore) RetrieveWhere(ctx context.Context, pred query.Predicate) ([]models.GpsFix, error) {
	ds := s.dialect.From(s.table).
		Select(fixColumns()...).
		Order(goqu.C(query.TimeColumn).Asc())
	if pred.Expr != nil {
		ds = ds.Where(pred.Expr)
	}
	return s.selectFixes(ctx, ds)
}

// Latest returns the most recent fix.
func (s *SQLStore) Latest(ctx context.Context) (*models.GpsFix, error) {
	ds := s.dialect.From(s.table).
		Select(fixColumns()...).
		Where(query.NotNull().Expr).
		Order(goqu.C(query.TimeColumn).Desc()).
		Limit(1)

	fixes, err := s.selectFixes(ctx, ds)
	if err != nil {
		return nil, err
	}
	if len(fixes) == 0 {
		return nil, ErrNoFixes
	}
	return &fixes[0], nil
}

func (s *SQLStore) selectFixes(ctx context.Context, ds *goqu.SelectDataset) ([]models.GpsFix, error) {
	sqlStr, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	start := time.Now()
	var rows []fixRow
	if err := s.db.SelectContext(ctx, &rows, sqlStr, args...); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	s.log.Debug().Str("sql", sqlStr).Int("rows", len(rows)).Dur("elapsed", time.Since(start)).Msg("Query complete")

	fixes := make([]models.GpsFix, 0, len(rows))
	for _, r := range rows {
		ts, err := models.ParseUTC(r.UTCTime)
		if err != nil {
			return nil, fmt.Errorf("bad utc_time %q: %w", r.UTCTime, err)
		}
		fixes = append(fixes, models.GpsFix{
			UTCTime:    ts,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Altitude:   r.Altitude,
			Speed:      r.Speed,
			Course:     r.Course,
			Satellites: int(r.Satellites),
			HDOP:       r.HDOP,
			SessionID:  r.SessionID,
		})
	}
	return fixes, nil
}

// Count returns the number of stored fixes.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	sqlStr, args, err := s.dialect.From(s.table).Select(goqu.COUNT(goqu.Star())).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, sqlStr, args...); err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return n, nil
}

// Insert stores fixes. DuckDB goes through the native appender, SQLite
// through batched multi-row inserts in one transaction.
func (s *SQLStore) Insert(ctx context.Context, fixes ...models.GpsFix) error {
	if len(fixes) == 0 {
		return nil
	}
	if s.driver == DriverDuckDB {
		return s.appendDuckDB(ctx, fixes)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(fixes); start += insertBatchSize {
		end := min(start+insertBatchSize, len(fixes))

		rows := make([]interface{}, 0, end-start)
		for _, f := range fixes[start:end] {
			rows = append(rows, toInsertRow(f))
		}
		sqlStr, args, err := s.dialect.Insert(s.table).Rows(rows...).Prepared(true).ToSQL()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlStr, args...); err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Debug().Int("fixes", len(fixes)).Msg("Inserted fixes")
	return nil
}

// appendDuckDB writes fixes using the native Appender API.
func (s *SQLStore) appendDuckDB(ctx context.Context, fixes []models.GpsFix) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	err = conn.Raw(func(driverConn interface{}) error {
		dConn, ok := driverConn.(*duckdb.Conn)
		if !ok {
			return fmt.Errorf("failed to cast to duckdb.Conn")
		}

		appender, err := duckdb.NewAppenderFromConn(dConn, "", s.table)
		if err != nil {
			return fmt.Errorf("failed to create appender: %w", err)
		}
		defer appender.Close()

		for i, f := range fixes {
			r := toInsertRow(f)
			err := appender.AppendRow(
				r.UTCTime,
				r.Latitude,
				r.Longitude,
				r.Altitude,
				r.Speed,
				r.Course,
				int32(r.Satellites),
				r.HDOP,
				r.SessionID,
			)
			if err != nil {
				return fmt.Errorf("failed to append row %d: %w", i, err)
			}
		}
		return appender.Flush()
	})
	if err != nil {
		return fmt.Errorf("appender error: %w", err)
	}

	s.log.Debug().Int("fixes", len(fixes)).Msg("Appended fixes")
	return nil
}

func toInsertRow(f models.GpsFix) insertRow {
	return insertRow{
		UTCTime:    models.FormatUTC(f.UTCTime),
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
		Altitude:   f.Altitude,
		Speed:      f.Speed,
		Course:     f.Course,
		Satellites: f.Satellites,
		HDOP:       f.HDOP,
		SessionID:  f.SessionID,
	}
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	s.log.Debug().Msg("Closing database")
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
