package chunking

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/configuration/database/dbabstraction"
	"github.com/forceu/rangeupload/internal/helper"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
	"github.com/gabriel-vasile/mimetype"
)

// HeaderSessionId carries the session correlation id
const HeaderSessionId = "Session-ID"

// HeaderDescription carries the percent-encoded description of the upload
const HeaderDescription = "X-Upload-Description"

// ErrInvalidRequest is returned if a header is missing or malformed
var ErrInvalidRequest = errors.New("invalid chunk request")

// ErrSizeMismatch is returned if a chunk announces a different file size than the session
var ErrSizeMismatch = errors.New("file size does not match upload session")

// ErrGap is returned if a chunk starts after the last received byte
var ErrGap = errors.New("chunk does not continue the received data")

// ErrIncomplete is returned by Complete if not all bytes have been received
var ErrIncomplete = errors.New("upload is not complete")

// ErrUnknownSession is returned by Complete if no data has been received for the session
var ErrUnknownSession = errors.New("unknown upload session")

// ChunkInfo is the parsed form of the range headers of a chunk request
type ChunkInfo struct {
	SessionId string
	Range     models.ByteRange
	TotalSize int64
	// Final is set for the confirmation call "bytes */total"
	Final bool
}

// FileHeader contains the file attributes sent with every chunk
type FileHeader struct {
	Filename    string
	Description string
}

var sessionIdPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,128}$`)
var contentRangePattern = regexp.MustCompile(`^bytes (\d+)-(\d+)/(\d+)$`)
var finalRangePattern = regexp.MustCompile(`^bytes \*/(\d+)$`)

// ParseChunkInfo reads the Session-ID, Content-Range and Content-Length headers
func ParseChunkInfo(r *http.Request) (ChunkInfo, error) {
	info := ChunkInfo{SessionId: r.Header.Get(HeaderSessionId)}
	if !sessionIdPattern.MatchString(info.SessionId) {
		return ChunkInfo{}, fmt.Errorf("%w: invalid session id", ErrInvalidRequest)
	}
	contentRange := strings.TrimSpace(r.Header.Get("Content-Range"))
	if match := finalRangePattern.FindStringSubmatch(contentRange); match != nil {
		total, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return ChunkInfo{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if r.ContentLength > 0 {
			return ChunkInfo{}, fmt.Errorf("%w: confirmation call must not contain data", ErrInvalidRequest)
		}
		info.TotalSize = total
		info.Final = true
		info.Range = models.ByteRange{Start: total, End: total - 1}
		return info, nil
	}
	match := contentRangePattern.FindStringSubmatch(contentRange)
	if match == nil {
		return ChunkInfo{}, fmt.Errorf("%w: invalid Content-Range %q", ErrInvalidRequest, contentRange)
	}
	values := make([]int64, 3)
	for i := range values {
		var err error
		values[i], err = strconv.ParseInt(match[i+1], 10, 64)
		if err != nil {
			return ChunkInfo{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	info.Range = models.ByteRange{Start: values[0], End: values[1]}
	info.TotalSize = values[2]
	if info.Range.End < info.Range.Start || info.Range.End >= info.TotalSize {
		return ChunkInfo{}, fmt.Errorf("%w: range %s outside of file size %d", ErrInvalidRequest, info.Range, info.TotalSize)
	}
	if r.ContentLength != info.Range.Length() {
		return ChunkInfo{}, fmt.Errorf("%w: Content-Length %d does not match range length %d",
			ErrInvalidRequest, r.ContentLength, info.Range.Length())
	}
	return info, nil
}

// ParseFileHeader reads the file name from Content-Disposition and the optional description
func ParseFileHeader(r *http.Request) (FileHeader, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Disposition"))
	if err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	name := filepath.Base(filepath.Clean("/" + params["filename"]))
	if name == "" || name == "/" || name == "." {
		return FileHeader{}, fmt.Errorf("%w: empty filename provided", ErrInvalidRequest)
	}
	description, err := url.PathUnescape(r.Header.Get(HeaderDescription))
	if err != nil {
		return FileHeader{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return FileHeader{Filename: name, Description: description}, nil
}

// Store writes received ranges into partial files and keeps the offsets in the database
type Store struct {
	dataDir string
	db      dbabstraction.Database
	storage interfaces.System
	locks   sync.Map
}

// NewStore returns a store that keeps partial files in dataDir and moves completed files
// to storage
func NewStore(dataDir string, db dbabstraction.Database, storage interfaces.System) (*Store, error) {
	if !helper.FolderExists(dataDir) {
		err := os.MkdirAll(dataDir, 0770)
		if err != nil {
			return nil, err
		}
	}
	return &Store{dataDir: dataDir, db: db, storage: storage}, nil
}

func (s *Store) lock(id string) func() {
	value, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func (s *Store) getChunkFilePath(id string) string {
	return filepath.Join(s.dataDir, "chunk-"+id)
}

// GetSession returns the stored state of a session
func (s *Store) GetSession(id string) (models.ChunkSession, bool) {
	return s.db.GetChunkSession(id)
}

// WriteChunk stores the range of info read from content. Ranges may overlap already received
// data, but must not leave a gap
func (s *Store) WriteChunk(content io.Reader, info ChunkInfo, header FileHeader) (models.ChunkSession, error) {
	unlock := s.lock(info.SessionId)
	defer unlock()

	session, exists := s.db.GetChunkSession(info.SessionId)
	if !exists {
		session = models.ChunkSession{
			Id:        info.SessionId,
			TotalSize: info.TotalSize,
		}
	}
	if session.TotalSize != info.TotalSize {
		return session, ErrSizeMismatch
	}
	if info.Range.Start > session.Received {
		return session, ErrGap
	}
	if !exists {
		err := s.allocateFile(session)
		if err != nil {
			return models.ChunkSession{}, err
		}
	}
	err := s.writeChunk(content, info)
	if err != nil {
		return session, err
	}
	session.FileName = header.Filename
	session.Description = header.Description
	if info.Range.End+1 > session.Received {
		session.Received = info.Range.End + 1
	}
	session.LastUpdate = time.Now().Unix()
	s.db.SaveChunkSession(session)
	return session, nil
}

func (s *Store) allocateFile(session models.ChunkSession) error {
	file, err := os.OpenFile(s.getChunkFilePath(session.Id), os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Truncate(session.TotalSize)
}

func (s *Store) writeChunk(content io.Reader, info ChunkInfo) error {
	if !helper.FileExists(s.getChunkFilePath(info.SessionId)) {
		return errors.New("file has not been allocated yet")
	}
	file, err := os.OpenFile(s.getChunkFilePath(info.SessionId), os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	defer file.Close()
	newOffset, err := file.Seek(info.Range.Start, io.SeekStart)
	if err != nil {
		return err
	}
	if newOffset != info.Range.Start {
		return errors.New("seek returned invalid offset")
	}
	written, err := io.CopyN(file, content, info.Range.Length())
	if err != nil {
		return err
	}
	if written != info.Range.Length() {
		return errors.New("chunk was not written completely")
	}
	return nil
}

// Complete moves a fully received file to the storage and removes the session
func (s *Store) Complete(info ChunkInfo, header FileHeader) (models.StoredFile, error) {
	unlock := s.lock(info.SessionId)
	defer unlock()

	session, ok := s.db.GetChunkSession(info.SessionId)
	if !ok {
		if info.TotalSize != 0 {
			return models.StoredFile{}, ErrUnknownSession
		}
		session = models.ChunkSession{Id: info.SessionId}
		err := s.allocateFile(session)
		if err != nil {
			return models.StoredFile{}, err
		}
	}
	if session.TotalSize != info.TotalSize {
		return models.StoredFile{}, ErrSizeMismatch
	}
	if !session.IsComplete() {
		return models.StoredFile{}, fmt.Errorf("%w: %d of %d bytes received", ErrIncomplete, session.Received, session.TotalSize)
	}
	file, err := os.Open(s.getChunkFilePath(session.Id))
	if err != nil {
		return models.StoredFile{}, err
	}
	contentType, err := mimetype.DetectReader(file)
	if err != nil {
		_ = file.Close()
		return models.StoredFile{}, err
	}
	_, err = file.Seek(0, io.SeekStart)
	if err != nil {
		_ = file.Close()
		return models.StoredFile{}, err
	}
	stored, err := s.storage.MoveToFilesystem(file, models.StoredFile{
		Name:        header.Filename,
		Size:        session.TotalSize,
		ContentType: contentType.String(),
	})
	if err != nil {
		return models.StoredFile{}, err
	}
	s.db.DeleteChunkSession(session.Id)
	return stored, nil
}

// CleanExpired deletes partial files of sessions that were not updated since olderThan
func (s *Store) CleanExpired(olderThan time.Time) []string {
	removed := s.db.RunGarbageCollection(olderThan)
	for _, id := range removed {
		_ = os.Remove(s.getChunkFilePath(id))
	}
	return removed
}
