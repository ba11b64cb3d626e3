package webserver

/**
Reference backend that receives ranged uploads
*/

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/forceu/rangeupload/internal/configuration/database/dbabstraction"
	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/logging/serverstats"
	"github.com/forceu/rangeupload/internal/storage/chunking"
	"github.com/forceu/rangeupload/internal/storage/filesystem/interfaces"
	"github.com/forceu/rangeupload/internal/webserver/ratelimiter"
	"github.com/juju/ratelimit"
)

const timeOutWebserverRead = 2 * time.Hour
const timeOutWebserverWrite = 2 * time.Hour
const cleanupInterval = time.Hour

// Config contains everything required to run the backend
type Config struct {
	Port          int
	DataDir       string
	AuthToken     string
	MaxIngestKBps int
	SessionExpiry time.Duration
	Database      dbabstraction.Database
	Storage       interfaces.System
	// CertFile and KeyFile enable TLS if both are set
	CertFile string
	KeyFile  string
}

// Server receives chunks on /upload and assembles the files
type Server struct {
	config   Config
	store    *chunking.Store
	ingest   *ratelimit.Bucket
	srv      *http.Server
	stop     chan struct{}
	stopOnce sync.Once
	// cleanupMutex guards stopped, no cleanup may run once Shutdown returned
	cleanupMutex sync.Mutex
	stopped      bool
}

// New creates a new backend. Partial files are stored in DataDir/chunks
func New(config Config) (*Server, error) {
	if config.Database == nil || config.Storage == nil {
		return nil, errors.New("database and storage are required")
	}
	if config.SessionExpiry <= 0 {
		config.SessionExpiry = 24 * time.Hour
	}
	store, err := chunking.NewStore(config.DataDir+"/chunks", config.Database, config.Storage)
	if err != nil {
		return nil, err
	}
	server := &Server{
		config: config,
		store:  store,
		stop:   make(chan struct{}),
	}
	if config.MaxIngestKBps > 0 {
		bytesPerSecond := int64(config.MaxIngestKBps) * 1024
		server.ingest = ratelimit.NewBucketWithRate(float64(bytesPerSecond), bytesPerSecond)
	}
	server.srv = &http.Server{
		Addr:         ":" + strconv.Itoa(config.Port),
		Handler:      server.Handler(),
		ReadTimeout:  timeOutWebserverRead,
		WriteTimeout: timeOutWebserverWrite,
	}
	return server, nil
}

// Handler returns the routes of the backend
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.Handle("/health", gziphandler.GzipHandler(http.HandlerFunc(s.handleHealth)))
	mux.Handle("/auth", gziphandler.GzipHandler(http.HandlerFunc(s.handleAuth)))
	return mux
}

// Start binds the webserver and blocks until Shutdown is called
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener and blocks until Shutdown is called
func (s *Server) Serve(listener net.Listener) error {
	go s.runCleanup()
	logging.LogStartup("Webserver on " + listener.Addr().String())
	var err error
	if s.config.CertFile != "" && s.config.KeyFile != "" {
		err = s.srv.ServeTLS(listener, s.config.CertFile, s.config.KeyFile)
	} else {
		err = s.srv.Serve(listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the webserver and the cleanup routine
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.cleanupMutex.Lock()
	s.stopped = true
	s.cleanupMutex.Unlock()
	logging.LogShutdown("Webserver")
	return s.srv.Shutdown(ctx)
}

func (s *Server) runCleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		s.cleanExpired()
		select {
		case <-ticker.C:
		case <-s.stop:
			return
		}
	}
}

func (s *Server) cleanExpired() int {
	s.cleanupMutex.Lock()
	defer s.cleanupMutex.Unlock()
	if s.stopped {
		return 0
	}
	removed := s.store.CleanExpired(time.Now().Add(-s.config.SessionExpiry))
	if len(removed) > 0 {
		logging.LogCleanup(len(removed))
	}
	return len(removed)
}

// isAuthorised returns true if no token is configured or the bearer token matches
func (s *Server) isAuthorised(r *http.Request) bool {
	if s.config.AuthToken == "" {
		return true
	}
	expected := []byte("Bearer " + s.config.AuthToken)
	return subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), expected) == 1
}

func (s *Server) rejectUnauthorised(w http.ResponseWriter, r *http.Request) {
	logging.LogFailedAuth(r)
	ratelimiter.WaitOnFailedAuth(r)
	sendJson(w, http.StatusUnauthorized, authResponse{Authenticated: false, Error: "Invalid token"})
}

type authResponse struct {
	Authenticated bool   `json:"authenticated"`
	Error         string `json:"error,omitempty"`
}

// Handling of /auth
// Used by reverse proxies to check the credential before forwarding an upload
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.isAuthorised(r) {
		s.rejectUnauthorised(w, r)
		return
	}
	sendJson(w, http.StatusOK, authResponse{Authenticated: true})
}

type healthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Stats   serverstats.Stats `json:"stats"`
}

// Handling of /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	sendJson(w, http.StatusOK, healthResponse{
		Status:  "healthy",
		Service: "rangeserver",
		Stats: serverstats.Get(len(s.config.Database.GetAllChunkSessions()),
			s.config.Storage.GetSystemName(), databaseName(s.config.Database)),
	})
}

func databaseName(db dbabstraction.Database) string {
	switch db.GetType() {
	case dbabstraction.TypeSqlite:
		return "sqlite"
	case dbabstraction.TypeRedis:
		return "redis"
	default:
		return "unknown"
	}
}

func sendJson(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sendError(w http.ResponseWriter, status int, errorMessage string) {
	sendJson(w, status, errorResponse{Result: "error", ErrorMessage: errorMessage})
}

type errorResponse struct {
	Result       string `json:"Result"`
	ErrorMessage string `json:"ErrorMessage"`
}
