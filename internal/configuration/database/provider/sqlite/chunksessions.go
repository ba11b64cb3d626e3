package sqlite

import (
	"database/sql"
	"errors"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
)

type schemaChunkSessions struct {
	Id          string
	FileName    string
	TotalSize   int64
	Received    int64
	Description string
	LastUpdate  int64
}

func (rowResult schemaChunkSessions) toModel() models.ChunkSession {
	return models.ChunkSession{
		Id:          rowResult.Id,
		FileName:    rowResult.FileName,
		TotalSize:   rowResult.TotalSize,
		Received:    rowResult.Received,
		Description: rowResult.Description,
		LastUpdate:  rowResult.LastUpdate,
	}
}

// GetChunkSession returns the chunk session with the given ID or false if not a valid ID
func (p DatabaseProvider) GetChunkSession(id string) (models.ChunkSession, bool) {
	var rowResult schemaChunkSessions
	row := p.sqliteDb.QueryRow("SELECT Id, FileName, TotalSize, Received, Description, LastUpdate FROM ChunkSessions WHERE Id = ?", id)
	err := row.Scan(&rowResult.Id, &rowResult.FileName, &rowResult.TotalSize, &rowResult.Received,
		&rowResult.Description, &rowResult.LastUpdate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ChunkSession{}, false
		}
		helper.Check(err)
		return models.ChunkSession{}, false
	}
	return rowResult.toModel(), true
}

// GetAllChunkSessions returns all stored chunk sessions
func (p DatabaseProvider) GetAllChunkSessions() []models.ChunkSession {
	result := make([]models.ChunkSession, 0)
	rows, err := p.sqliteDb.Query("SELECT Id, FileName, TotalSize, Received, Description, LastUpdate FROM ChunkSessions ORDER BY Id")
	helper.Check(err)
	defer rows.Close()
	for rows.Next() {
		var rowResult schemaChunkSessions
		err = rows.Scan(&rowResult.Id, &rowResult.FileName, &rowResult.TotalSize, &rowResult.Received,
			&rowResult.Description, &rowResult.LastUpdate)
		helper.Check(err)
		result = append(result, rowResult.toModel())
	}
	helper.Check(rows.Err())
	return result
}

// SaveChunkSession stores the chunk session, replacing an existing one with the same ID
func (p DatabaseProvider) SaveChunkSession(session models.ChunkSession) {
	_, err := p.sqliteDb.Exec(`INSERT OR REPLACE INTO ChunkSessions (Id, FileName, TotalSize, Received, Description, LastUpdate)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.Id, session.FileName, session.TotalSize, session.Received, session.Description, session.LastUpdate)
	helper.Check(err)
}

// DeleteChunkSession deletes the chunk session with the given ID
func (p DatabaseProvider) DeleteChunkSession(id string) {
	_, err := p.sqliteDb.Exec("DELETE FROM ChunkSessions WHERE Id = ?", id)
	helper.Check(err)
}
