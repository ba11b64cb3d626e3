package webserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/forceu/rangeupload/internal/logging"
	"github.com/forceu/rangeupload/internal/logging/serverstats"
	"github.com/forceu/rangeupload/internal/models"
	"github.com/forceu/rangeupload/internal/storage/chunking"
	"github.com/forceu/rangeupload/internal/webserver/ratelimiter"
	"github.com/juju/ratelimit"
)

// Handling of /upload
// Every request carries one range of the file. The response to a range is 201 with the
// received bytes in the Range header, the response to "bytes */total" is 200 with the stored file
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.isAuthorised(r) {
		s.rejectUnauthorised(w, r)
		return
	}
	info, err := chunking.ParseChunkInfo(r)
	if err != nil {
		logging.LogInvalidRequest(r, err)
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	header, err := chunking.ParseFileHeader(r)
	if err != nil {
		logging.LogInvalidRequest(r, err)
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if info.Final {
		s.completeUpload(w, r, info, header)
		return
	}
	s.receiveChunk(w, r, info, header)
}

func (s *Server) receiveChunk(w http.ResponseWriter, r *http.Request, info chunking.ChunkInfo, header chunking.FileHeader) {
	_, exists := s.store.GetSession(info.SessionId)
	if !exists && !ratelimiter.IsAllowedNewSession(r) {
		sendError(w, http.StatusTooManyRequests, "Too many new upload sessions")
		return
	}
	var body io.Reader = r.Body
	if s.ingest != nil {
		body = ratelimit.Reader(r.Body, s.ingest)
	}
	session, err := s.store.WriteChunk(body, info, header)
	if err != nil {
		switch {
		case errors.Is(err, chunking.ErrGap):
			// Tell the client where to continue, if anything has been received
			if session.Received > 0 {
				setReceivedRange(w, session)
				w.WriteHeader(http.StatusCreated)
				return
			}
			sendError(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
		case errors.Is(err, chunking.ErrSizeMismatch):
			logging.LogInvalidRequest(r, err)
			sendError(w, http.StatusBadRequest, err.Error())
		default:
			logging.LogError("Could not store chunk", err)
			sendError(w, http.StatusInternalServerError, "Could not store chunk")
		}
		return
	}
	serverstats.AddChunk(uint64(info.Range.Length()))
	logging.LogChunkReceived(session, info.Range, r)
	setReceivedRange(w, session)
	w.WriteHeader(http.StatusCreated)
}

// setReceivedRange writes the Range header "0-<last received byte>"
func setReceivedRange(w http.ResponseWriter, session models.ChunkSession) {
	w.Header().Set("Range", fmt.Sprintf("0-%d", session.Received-1))
}

func (s *Server) completeUpload(w http.ResponseWriter, r *http.Request, info chunking.ChunkInfo, header chunking.FileHeader) {
	file, err := s.store.Complete(info, header)
	if err != nil {
		switch {
		case errors.Is(err, chunking.ErrIncomplete):
			session, _ := s.store.GetSession(info.SessionId)
			if session.Received > 0 {
				setReceivedRange(w, session)
			}
			sendError(w, http.StatusConflict, err.Error())
		case errors.Is(err, chunking.ErrUnknownSession):
			sendError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, chunking.ErrSizeMismatch):
			logging.LogInvalidRequest(r, err)
			sendError(w, http.StatusBadRequest, err.Error())
		default:
			logging.LogError("Could not assemble file", err)
			sendError(w, http.StatusInternalServerError, "Could not assemble file")
		}
		return
	}
	serverstats.AddFile()
	logging.LogFileAssembled(file, info.SessionId, r)
	form := map[string]string{"session_id": info.SessionId}
	if header.Description != "" {
		form["description"] = header.Description
	}
	sendJson(w, http.StatusOK, models.FileServiceResponse{
		Message: "File uploaded successfully",
		Status:  "success",
		Files:   []models.StoredFile{file},
		Form:    form,
	})
}
