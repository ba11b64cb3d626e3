package logging

import (
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/sirupsen/logrus"
)

const categoryInfo = "info"
const categoryUpload = "upload"
const categorySession = "session"
const categoryAuth = "authentication"
const categoryWarning = "warning"

var logger = newLogger()
var logPath string
var logFile *os.File
var mutex sync.Mutex

func newLogger() *logrus.Logger {
	result := logrus.New()
	result.SetOutput(io.Discard)
	result.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC1123,
	})
	return result
}

// Init sets the directory the log file is written to. Log entries are also written to stdout,
// if LOG_STDOUT is set
func Init(dir string) error {
	env := environment.New()
	mutex.Lock()
	defer mutex.Unlock()
	closeFile()
	err := os.MkdirAll(dir, 0770)
	if err != nil {
		return err
	}
	logPath = strings.TrimSuffix(dir, "/") + "/log.txt"
	logFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if env.LogToStdout {
		logger.SetOutput(io.MultiWriter(logFile, os.Stdout))
	} else {
		logger.SetOutput(logFile)
	}
	level, err := logrus.ParseLevel(env.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return nil
}

// InitStdout only writes log entries to stdout. Used by the CLI in verbose mode
func InitStdout(level logrus.Level) {
	mutex.Lock()
	defer mutex.Unlock()
	closeFile()
	logger.SetOutput(os.Stdout)
	logger.SetLevel(level)
}

// Close closes the log file. Further entries are discarded
func Close() {
	mutex.Lock()
	defer mutex.Unlock()
	closeFile()
	logger.SetOutput(io.Discard)
}

func closeFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

func entry(category string) *logrus.Entry {
	return logger.WithField("category", category)
}

func sessionFields(info models.SessionInfo) logrus.Fields {
	return logrus.Fields{
		"category":    categorySession,
		"session_id":  info.Id,
		"status":      info.Status,
		"offset":      info.Offset,
		"total":       info.TotalSize,
		"retry_count": info.RetryCount,
	}
}

// LogStartup adds a log entry to indicate that a component has started
func LogStartup(component string) {
	entry(categoryInfo).WithField("version", environment.VersionString()).Info(component + " started")
}

// LogShutdown adds a log entry to indicate that a component is shutting down
func LogShutdown(component string) {
	entry(categoryInfo).Info(component + " shutting down")
}

// LogSessionAdded adds a log entry when a file was added to the registry
func LogSessionAdded(info models.SessionInfo) {
	logger.WithFields(sessionFields(info)).WithField("file", info.FileName).Info("Session added")
}

// LogDuplicate adds a log entry when a file was rejected as a duplicate
func LogDuplicate(id, fileName string) {
	entry(categorySession).WithFields(logrus.Fields{"session_id": id, "file": fileName}).Info("Duplicate file ignored")
}

// LogTransition adds a log entry for a status change of a session
func LogTransition(info models.SessionInfo, previous models.SessionStatus) {
	logger.WithFields(sessionFields(info)).WithField("previous", previous).Info("Session status changed")
}

// LogChunkAcknowledged adds a debug entry for every acknowledged chunk
func LogChunkAcknowledged(info models.SessionInfo, byteRange models.ByteRange) {
	logger.WithFields(sessionFields(info)).WithField("range", byteRange.String()).Debug("Chunk acknowledged")
}

// LogRetry adds a warning when a failed chunk is sent again
func LogRetry(info models.SessionInfo, reason string) {
	fields := sessionFields(info)
	fields["category"] = categoryWarning
	logger.WithFields(fields).WithField("reason", reason).Warn("Chunk failed, retrying")
}

// LogSessionFailed adds an entry when a session ran out of retries
func LogSessionFailed(info models.SessionInfo, reason string) {
	logger.WithFields(sessionFields(info)).WithField("reason", reason).Error("Upload failed")
}

// LogSessionCompleted adds an entry when the backend confirmed the upload
func LogSessionCompleted(info models.SessionInfo) {
	logger.WithFields(sessionFields(info)).WithField("file", info.FileName).Info("Upload completed")
}

// LogDiscardedOutcome adds a debug entry if a transport outcome arrived for a cancelled run
func LogDiscardedOutcome(id string, outcome string) {
	entry(categorySession).WithFields(logrus.Fields{"session_id": id, "outcome": outcome}).Debug("Outcome of cancelled run discarded")
}

// LogRangeFallback adds a warning if the Range header of a response could not be parsed
func LogRangeFallback(sessionId, header string, inferred int64) {
	entry(categoryWarning).WithFields(logrus.Fields{
		"session_id": sessionId,
		"header":     header,
		"inferred":   inferred,
	}).Warn("Could not parse Range header, inferring next offset")
}

// LogChunkReceived adds a debug entry when the backend stored a chunk
func LogChunkReceived(chunkSession models.ChunkSession, byteRange models.ByteRange, r *http.Request) {
	entry(categoryUpload).WithFields(logrus.Fields{
		"session_id": chunkSession.Id,
		"range":      byteRange.String(),
		"received":   chunkSession.Received,
		"total":      chunkSession.TotalSize,
		"ip":         GetIpAddress(r),
	}).Debug("Chunk received")
}

// LogFileAssembled adds a log entry when the backend assembled a complete file
func LogFileAssembled(file models.StoredFile, sessionId string, r *http.Request) {
	entry(categoryUpload).WithFields(logrus.Fields{
		"session_id": sessionId,
		"file":       file.Name,
		"size":       file.Size,
		"path":       file.Path,
		"ip":         GetIpAddress(r),
		"user_agent": r.UserAgent(),
	}).Info("File assembled")
}

// LogCleanup adds a log entry when expired partial uploads have been deleted
func LogCleanup(count int) {
	entry(categoryUpload).WithField("count", count).Info("Expired upload sessions removed")
}

// LogInvalidRequest adds a warning for a rejected chunk request
func LogInvalidRequest(r *http.Request, err error) {
	entry(categoryWarning).WithFields(logrus.Fields{
		"ip":    GetIpAddress(r),
		"error": err.Error(),
	}).Warn("Invalid upload request")
}

// LogFailedAuth adds a warning for a request with an invalid credential
func LogFailedAuth(r *http.Request) {
	entry(categoryAuth).WithField("ip", GetIpAddress(r)).Warn("Invalid credential provided")
}

// LogError adds an error entry that is not related to a single session
func LogError(message string, err error) {
	entry(categoryWarning).WithError(err).Error(message)
}

// GetIpAddress returns the IP address of the requester
func GetIpAddress(r *http.Request) string {
	// Get IP from X-FORWARDED-FOR header
	ips := r.Header.Get("X-FORWARDED-FOR")
	splitIps := strings.Split(ips, ",")
	for _, ip := range splitIps {
		ip = strings.TrimSpace(ip)
		netIP := net.ParseIP(ip)
		if netIP != nil {
			return ip
		}
	}

	// Get IP from the X-REAL-IP header
	ip := r.Header.Get("X-REAL-IP")
	netIP := net.ParseIP(ip)
	if netIP != nil {
		return ip
	}

	// Get IP from RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "Unknown IP"
	}
	netIP = net.ParseIP(ip)
	if netIP != nil {
		return ip
	}
	return "Unknown IP"
}
