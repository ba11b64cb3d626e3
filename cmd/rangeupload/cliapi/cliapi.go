package cliapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/forceu/rangeupload/internal/environment"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/upload/registry"
	"github.com/forceu/rangeupload/internal/upload/session"
	"github.com/forceu/rangeupload/internal/upload/transport"
)

// ErrUnauthorised is returned if the server rejected the credential
var ErrUnauthorised = errors.New("unauthorised")

// ErrUploadFailed is returned by Run if at least one file could not be uploaded
var ErrUploadFailed = errors.New("upload failed")

// UploadUrl returns the endpoint chunks are sent to
func UploadUrl(serverUrl string) string {
	return strings.TrimSuffix(serverUrl, "/") + "/upload"
}

// AuthUrl returns the endpoint used to verify a credential
func AuthUrl(serverUrl string) string {
	return strings.TrimSuffix(serverUrl, "/") + "/auth"
}

// CheckLogin verifies the credential with the auth endpoint of the server
func CheckLogin(serverUrl, credential string) error {
	client := &http.Client{
		Timeout: time.Second * 10,
	}
	req, err := http.NewRequest(http.MethodGet, AuthUrl(serverUrl), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", credential)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorised
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	return nil
}

// NewRegistry returns a registry that sends chunks to the server with the settings of env
func NewRegistry(serverUrl string, env environment.Environment, sink session.Sink) *registry.Registry {
	config := session.ConfigFromEnvironment(env, transport.NewHttp(UploadUrl(serverUrl), env.RequestTimeout()))
	config.Sink = sink
	return registry.New(config)
}

// Run starts all pending sessions and blocks until every session is completed or failed.
// A cancelled ctx pauses all sessions
func Run(ctx context.Context, r *registry.Registry, credential, description string) ([]models.SessionInfo, error) {
	result := r.StartAll(credential, description)
	for id, err := range result.Errors {
		return r.List(), fmt.Errorf("could not start %s: %w", id, err)
	}
	err := r.Wait(ctx)
	if err != nil {
		r.PauseAll()
		return r.List(), err
	}
	infos := r.List()
	for _, info := range infos {
		if info.Status == models.StatusFailed {
			if isUnauthorised(info) {
				return infos, ErrUnauthorised
			}
			return infos, fmt.Errorf("%w: %s", ErrUploadFailed, info.Error)
		}
	}
	return infos, nil
}

func isUnauthorised(info models.SessionInfo) bool {
	unauthorised := &transport.StatusError{StatusCode: http.StatusUnauthorized}
	forbidden := &transport.StatusError{StatusCode: http.StatusForbidden}
	return info.Error == unauthorised.Error() || info.Error == forbidden.Error()
}
