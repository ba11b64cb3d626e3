package environment

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	envParser "github.com/caarlos0/env/v6"
	"github.com/forceu/rangeupload/internal/models"
)

// DefaultPort for the reference backend
const DefaultPort = 53843

// DefaultChunkSize is used if no or an invalid chunk size has been set
const DefaultChunkSize = 1024 * 1024

// RetryBackoffFixed waits the same delay before every retry
const RetryBackoffFixed = "fixed"

// RetryBackoffExponential doubles the delay for every retry of the same chunk
const RetryBackoffExponential = "exponential"

// Environment is a struct containing available env variables
type Environment struct {
	ChunkSize         int64  `env:"CHUNK_SIZE" envDefault:"1048576"`
	InterChunkDelayMs int    `env:"INTER_CHUNK_DELAY_MS" envDefault:"100"`
	MaxRetries        int    `env:"MAX_RETRIES" envDefault:"3"`
	RetryDelayMs      int    `env:"RETRY_DELAY_MS" envDefault:"1000"`
	RetryBackoff      string `env:"RETRY_BACKOFF" envDefault:"fixed"`
	RequestTimeoutS   int    `env:"REQUEST_TIMEOUT_S" envDefault:"0"`
	MinSampleMs       int    `env:"MIN_SAMPLE_MS" envDefault:"500"`
	ConfigDir         string `env:"CONFIG_DIR" envDefault:"config"`
	LogToStdout       bool   `env:"LOG_STDOUT" envDefault:"false"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	WebserverPort     int    `env:"PORT" envDefault:"53843"`
	DataDir           string `env:"DATA_DIR" envDefault:"data"`
	DatabaseUrl       string `env:"DATABASE_URL" envDefault:"sqlite://[data]/rangeupload.sqlite"`
	AuthToken         string `env:"AUTH_TOKEN"`
	MaxIngestKBps     int    `env:"MAX_INGEST_KBPS" envDefault:"0"`
	SessionExpiryH    int    `env:"SESSION_EXPIRY_HOURS" envDefault:"24"`
	UseSsl            bool   `env:"USE_SSL" envDefault:"false"`
	SslHost           string `env:"SSL_HOST" envDefault:"localhost"`
	AwsBucket         string `env:"AWS_BUCKET"`
	AwsRegion         string `env:"AWS_REGION"`
	AwsKeyId          string `env:"AWS_KEY"`
	AwsKeySecret      string `env:"AWS_KEY_SECRET"`
	AwsEndpoint       string `env:"AWS_ENDPOINT"`
	AwsKeyPrefix      string `env:"AWS_KEY_PREFIX"`
}

// New parses the env variables
func New() Environment {
	result := Environment{WebserverPort: DefaultPort}
	err := envParser.Parse(&result, envParser.Options{
		Prefix: "RANGEUPLOAD_",
	})
	if err != nil {
		fmt.Println("Error parsing env variables:", err)
		osExit(1)
		return Environment{}
	}

	result.ConfigDir = path.Clean(result.ConfigDir)
	result.DataDir = path.Clean(result.DataDir)
	result.DatabaseUrl = strings.Replace(result.DatabaseUrl, "[data]", result.DataDir, 1)

	if result.ChunkSize < 1 {
		result.ChunkSize = DefaultChunkSize
	}
	if result.MaxRetries < 0 {
		result.MaxRetries = 0
	}
	if result.InterChunkDelayMs < 0 {
		result.InterChunkDelayMs = 0
	}
	if result.RetryDelayMs < 0 {
		result.RetryDelayMs = 0
	}
	if result.RequestTimeoutS < 0 {
		result.RequestTimeoutS = 0
	}
	if result.MinSampleMs < 0 {
		result.MinSampleMs = 0
	}
	if result.MaxIngestKBps < 0 {
		result.MaxIngestKBps = 0
	}
	if result.SessionExpiryH < 1 {
		result.SessionExpiryH = 1
	}
	result.RetryBackoff = strings.ToLower(result.RetryBackoff)
	if result.RetryBackoff != RetryBackoffExponential {
		result.RetryBackoff = RetryBackoffFixed
	}
	return result
}

// InterChunkDelay returns the pause between two acknowledged chunks
func (e *Environment) InterChunkDelay() time.Duration {
	return time.Duration(e.InterChunkDelayMs) * time.Millisecond
}

// RetryDelay returns the base delay before a failed chunk is sent again
func (e *Environment) RetryDelay() time.Duration {
	return time.Duration(e.RetryDelayMs) * time.Millisecond
}

// RequestTimeout returns the timeout for a single chunk request, 0 means no timeout
func (e *Environment) RequestTimeout() time.Duration {
	return time.Duration(e.RequestTimeoutS) * time.Second
}

// MinSampleInterval returns the minimum time between two speed measurements
func (e *Environment) MinSampleInterval() time.Duration {
	return time.Duration(e.MinSampleMs) * time.Millisecond
}

// SessionExpiry returns how long the backend keeps an unfinished upload
func (e *Environment) SessionExpiry() time.Duration {
	return time.Duration(e.SessionExpiryH) * time.Hour
}

// IsAwsProvided returns true if all required env variables have been set for using AWS S3
func (e *Environment) IsAwsProvided() bool {
	return e.AwsBucket != "" &&
		e.AwsRegion != "" &&
		e.AwsKeyId != "" &&
		e.AwsKeySecret != ""
}

// GetAwsConfig returns the AWS settings of the environment
func (e *Environment) GetAwsConfig() models.AwsConfig {
	return models.AwsConfig{
		Bucket:    e.AwsBucket,
		Region:    e.AwsRegion,
		Endpoint:  e.AwsEndpoint,
		KeyId:     e.AwsKeyId,
		KeySecret: e.AwsKeySecret,
		KeyPrefix: e.AwsKeyPrefix,
	}
}

var osExit = os.Exit
