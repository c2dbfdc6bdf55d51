package data

import (
	"database/sql"
	"embed"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "aire.db"
)

var (
	//go:embed sql/*
	f embed.FS

	errDBNotInitialized = errors.New("database not initialized")
)

// Init creates the database file and schema if they do not exist yet.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		db, err := GetDB(dbFilePath)
		if err != nil {
			return errors.Wrapf(err, "error opening database: %s", dbFilePath)
		}
		defer db.Close()

		slog.Debug("creating db schema", "path", dbFilePath)
		b, err := f.ReadFile("sql/ddl.sql")
		if err != nil {
			return errors.Wrap(err, "failed to read the schema creation file")
		}
		if _, err := db.Exec(string(b)); err != nil {
			return errors.Wrapf(err, "failed to create database schema in: %s", dbFilePath)
		}
		slog.Debug("db schema created")
	}

	return nil
}

func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}
	return conn, nil
}

var stateQueries = map[string]string{
	"analyses":  "SELECT COUNT(*) FROM analysis",
	"watches":   "SELECT COUNT(*) FROM watchlist",
	"holdings":  "SELECT COUNT(*) FROM portfolio",
	"templates": "SELECT COUNT(*) FROM template",
}

// GetDataState returns row counts per table, for the info command and the
// dashboard footer.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64)
	for k, q := range stateQueries {
		var count int64
		if err := db.QueryRow(q).Scan(&count); err != nil {
			return nil, errors.Wrapf(err, "error getting %s count", k)
		}
		state[k] = count
	}

	return state, nil
}
