package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	// Required for sqlite driver
	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// DatabaseProvider contains the database instance
type DatabaseProvider struct {
	sqliteDb *sql.DB
}

// New returns an instance
func New(dbConfig models.DbConnection) (DatabaseProvider, error) {
	return DatabaseProvider{}.init(dbConfig)
}

// GetType returns 0, for being a Sqlite interface
func (p DatabaseProvider) GetType() int {
	return 0 // dbabstraction.TypeSqlite
}

// GetDbVersion gets the version number of the database
func (p DatabaseProvider) GetDbVersion() int {
	userVersion, err := p.readDbVersion()
	helper.Check(err)
	return userVersion
}

func (p DatabaseProvider) readDbVersion() (int, error) {
	var userVersion int
	row := p.sqliteDb.QueryRow("PRAGMA user_version;")
	err := row.Scan(&userVersion)
	return userVersion, err
}

// SetDbVersion sets the version number of the database
func (p DatabaseProvider) SetDbVersion(newVersion int) {
	_, err := p.sqliteDb.Exec(fmt.Sprintf("PRAGMA user_version = %d;", newVersion))
	helper.Check(err)
}

func (p DatabaseProvider) init(dbConfig models.DbConnection) (DatabaseProvider, error) {
	if dbConfig.HostUrl == "" {
		return DatabaseProvider{}, errors.New("empty database url was provided")
	}
	cleanPath := filepath.Clean(dbConfig.HostUrl)
	dataDir := filepath.Dir(cleanPath)
	if !helper.FolderExists(dataDir) {
		err := os.MkdirAll(dataDir, 0700)
		if err != nil {
			return DatabaseProvider{}, err
		}
	}
	var err error
	p.sqliteDb, err = sql.Open("sqlite", cleanPath+"?_pragma=busy_timeout=10000&_pragma=journal_mode=WAL")
	if err != nil {
		return DatabaseProvider{}, err
	}
	p.sqliteDb.SetMaxOpenConns(100)
	p.sqliteDb.SetMaxIdleConns(10)
	err = p.sqliteDb.Ping()
	if err != nil {
		return DatabaseProvider{}, err
	}
	version, err := p.readDbVersion()
	if err != nil {
		_ = p.sqliteDb.Close()
		return DatabaseProvider{}, err
	}
	if version < schemaVersion {
		err = p.createNewDatabase()
		if err != nil {
			return DatabaseProvider{}, err
		}
		p.SetDbVersion(schemaVersion)
	}
	return p, nil
}

// Close the database connection
func (p DatabaseProvider) Close() {
	if p.sqliteDb != nil {
		err := p.sqliteDb.Close()
		if err != nil {
			fmt.Println(err)
		}
	}
}

// RunGarbageCollection deletes all chunk sessions that were not updated since olderThan
func (p DatabaseProvider) RunGarbageCollection(olderThan time.Time) []string {
	rows, err := p.sqliteDb.Query("SELECT Id FROM ChunkSessions WHERE LastUpdate < ?", olderThan.Unix())
	helper.Check(err)
	var ids []string
	for rows.Next() {
		var id string
		err = rows.Scan(&id)
		helper.Check(err)
		ids = append(ids, id)
	}
	helper.Check(rows.Err())
	_ = rows.Close()
	for _, id := range ids {
		p.DeleteChunkSession(id)
	}
	return ids
}

func (p DatabaseProvider) createNewDatabase() error {
	sqlStmt := `CREATE TABLE IF NOT EXISTS "ChunkSessions" (
			"Id"	TEXT NOT NULL UNIQUE,
			"FileName"	TEXT NOT NULL,
			"TotalSize"	INTEGER NOT NULL,
			"Received"	INTEGER NOT NULL,
			"Description"	TEXT NOT NULL,
			"LastUpdate"	INTEGER NOT NULL,
			PRIMARY KEY("Id")
		) WITHOUT ROWID;
`
	return p.rawSqlite(sqlStmt)
}

// rawSqlite runs a raw SQL statement. Should only be used for creating the schema
func (p DatabaseProvider) rawSqlite(statement string) error {
	if p.sqliteDb == nil {
		panic("Sqlite not initialised")
	}
	_, err := p.sqliteDb.Exec(statement)
	return err
}
