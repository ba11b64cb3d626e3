package redis

import (
	"sort"
	"strings"
	"time"

	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	redigo "github.com/gomodule/redigo/redis"
)

const (
	prefixChunkSessions = "cs:"
)

// GetChunkSession returns the chunk session with the given ID or false if not a valid ID
func (p DatabaseProvider) GetChunkSession(id string) (models.ChunkSession, bool) {
	hashmapEntry, ok := p.getHashMap(prefixChunkSessions + id)
	if !ok {
		return models.ChunkSession{}, false
	}
	var result models.ChunkSession
	err := redigo.ScanStruct(hashmapEntry, &result)
	helper.Check(err)
	return result, true
}

// GetAllChunkSessions returns all stored chunk sessions
func (p DatabaseProvider) GetAllChunkSessions() []models.ChunkSession {
	result := make([]models.ChunkSession, 0)
	for _, key := range p.getAllKeysWithPrefix(prefixChunkSessions) {
		id := strings.TrimPrefix(key, p.dbPrefix+prefixChunkSessions)
		session, ok := p.GetChunkSession(id)
		if ok {
			result = append(result, session)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Id < result[j].Id
	})
	return result
}

// SaveChunkSession stores the chunk session, replacing an existing one with the same ID
func (p DatabaseProvider) SaveChunkSession(session models.ChunkSession) {
	p.setHashMap(p.buildArgs(prefixChunkSessions + session.Id).AddFlat(session))
}

// DeleteChunkSession deletes the chunk session with the given ID
func (p DatabaseProvider) DeleteChunkSession(id string) {
	p.deleteKey(prefixChunkSessions + id)
}

// RunGarbageCollection deletes all chunk sessions that were not updated since olderThan
func (p DatabaseProvider) RunGarbageCollection(olderThan time.Time) []string {
	var result []string
	for _, session := range p.GetAllChunkSessions() {
		if session.LastUpdate < olderThan.Unix() {
			p.DeleteChunkSession(session.Id)
			result = append(result, session.Id)
		}
	}
	return result
}
