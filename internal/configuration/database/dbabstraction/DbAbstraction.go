package dbabstraction

import (
	"fmt"
	"time"

	"github.com/forceu/rangeupload/internal/configuration/database/provider/redis"
	"github.com/forceu/rangeupload/internal/configuration/database/provider/sqlite"
	"github.com/forceu/rangeupload/internal/models"
)

const (
	// TypeSqlite specifies to use an SQLite database
	TypeSqlite = iota
	// TypeRedis specifies to use a Redis database
	TypeRedis
)

// Database declares the required functions for a database connection
type Database interface {
	// GetType returns identifier of the underlying interface
	GetType() int
	// Close the database connection
	Close()
	// RunGarbageCollection deletes all chunk sessions that were not updated since olderThan
	// and returns their ids
	RunGarbageCollection(olderThan time.Time) []string

	// GetChunkSession returns the chunk session with the given ID or false if not a valid ID
	GetChunkSession(id string) (models.ChunkSession, bool)
	// GetAllChunkSessions returns all stored chunk sessions
	GetAllChunkSessions() []models.ChunkSession
	// SaveChunkSession stores the chunk session, replacing an existing one with the same ID
	SaveChunkSession(session models.ChunkSession)
	// DeleteChunkSession deletes the chunk session with the given ID
	DeleteChunkSession(id string)
}

// GetNew connects to the given database and initialises it
func GetNew(config models.DbConnection) (Database, error) {
	switch config.Type {
	case TypeSqlite:
		return sqlite.New(config)
	case TypeRedis:
		return redis.New(config)
	default:
		return nil, fmt.Errorf("unsupported database: type %v", config.Type)
	}
}
