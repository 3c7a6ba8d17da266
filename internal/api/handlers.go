package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/export"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/processor/frame"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	msgAlreadyCapturing = "AlreadyCapturing"
	msgInvalidConfig    = "InvalidConfig"
	msgNotFound         = "Packet not found"
	msgNothingToSave    = "No packets to save"

	// maxStartBody bounds the start request body
	maxStartBody = 64 << 10
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type packetsResponse struct {
	Packets []frame.Record `json:"packets"`
}

type detailsResponse struct {
	Details string `json:"details"`
}

type interfacesResponse struct {
	Interfaces []netif.Interface `json:"interfaces"`
	Error      string            `json:"error,omitempty"`
}

type captureStatusResponse struct {
	Capture capture.Status `json:"capture"`
	Host    *metadata.Host `json:"host,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) startCapture(w http.ResponseWriter, r *http.Request) {
	var cfg common.CaptureConfig
	body := io.LimitReader(r.Body, maxStartBody)
	if err := json.NewDecoder(body).Decode(&cfg); err != nil {
		s.log.Warn("[api] Malformed start request: %v", err)
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: statusError, Message: msgInvalidConfig})
		return
	}

	err := s.session.Start(cfg)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, statusResponse{Status: statusSuccess, Message: "Capture started"})
	case errors.Is(err, common.ErrAlreadyCapturing):
		writeJSON(w, http.StatusConflict, statusResponse{Status: statusError, Message: msgAlreadyCapturing})
	case errors.Is(err, common.ErrInvalidConfig):
		writeJSON(w, http.StatusBadRequest, statusResponse{Status: statusError, Message: msgInvalidConfig})
	default:
		s.log.Error("[api] Failed to start capture: %v", err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusError, Message: err.Error()})
	}
}

func (s *Server) stopCapture(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Stop(); err != nil {
		s.log.Warn("[api] Stop reported: %v", err)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: statusSuccess, Message: "Capture stopped"})
}

func (s *Server) getPackets(w http.ResponseWriter, r *http.Request) {
	packets := s.session.Packets()
	if packets == nil {
		packets = []frame.Record{}
	}
	writeJSON(w, http.StatusOK, packetsResponse{Packets: packets})
}

func (s *Server) getPacketDetails(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		// only reachable on overflow, the route only matches digits
		writeJSON(w, http.StatusNotFound, detailsResponse{Details: msgNotFound})
		return
	}

	details, err := s.session.Details(index)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, detailsResponse{Details: details})
	case errors.Is(err, common.ErrNotFound):
		writeJSON(w, http.StatusNotFound, detailsResponse{Details: msgNotFound})
	default:
		writeJSON(w, http.StatusOK, detailsResponse{Details: fmt.Sprintf("Error showing details: %v", err)})
	}
}

func (s *Server) saveCapture(w http.ResponseWriter, r *http.Request) {
	frames := s.session.Snapshot()
	if len(frames) == 0 {
		writeJSON(w, http.StatusOK, statusResponse{Status: statusError, Message: msgNothingToSave})
		return
	}

	data, err := export.EncodeBytes(frames)
	if err != nil {
		s.log.Error("[api] Failed to encode %d frames: %v", len(frames), err)
		writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusError, Message: fmt.Sprintf("Error saving capture: %v", err)})
		return
	}

	name := export.FileName(s.now())
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.log.Warn("[api] Failed to send %s: %v", name, err)
	}
}

func (s *Server) getInterfaces(w http.ResponseWriter, r *http.Request) {
	interfaces, err := netif.List(s.interfaces)
	if err != nil {
		s.log.Error("[api] Failed to list interfaces: %v", err)
		writeJSON(w, http.StatusOK, interfacesResponse{Interfaces: []netif.Interface{}, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, interfacesResponse{Interfaces: interfaces})
}

func (s *Server) captureStatus(w http.ResponseWriter, r *http.Request) {
	resp := captureStatusResponse{Capture: s.session.Status()}
	if s.host != nil {
		h := s.host.Collect(resp.Capture.Interface)
		resp.Host = &h
	}
	writeJSON(w, http.StatusOK, resp)
}
