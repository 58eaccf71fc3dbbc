package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/samueltorres/stepcounter/pkg/steps"
)

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

type teamTotalResponse struct {
	Team       string `json:"team"`
	TotalSteps int64  `json:"totalSteps"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Errorf("could not encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Message: message, Code: status})
}

// writeServiceError maps service sentinels to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, steps.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, steps.ErrInvalidID),
		errors.Is(err, steps.ErrInvalidSteps),
		errors.Is(err, steps.ErrAlreadyExists):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleAddTeam(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]

	if err := s.service.AddTeam(teamID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{fmt.Sprintf("Team %s added.", teamID)})
}

func (s *Server) handleDeleteTeam(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]

	if err := s.service.DeleteTeam(teamID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{fmt.Sprintf("Team %s deleted.", teamID)})
}

func (s *Server) handleAddCounter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, counterID := vars["teamId"], vars["counterId"]

	if err := s.service.AddCounter(teamID, counterID); err != nil {
		// a missing team is reported as a failed add, not as not found
		if errors.Is(err, steps.ErrNotFound) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{fmt.Sprintf("Counter %s added to team %s.", counterID, teamID)})
}

func (s *Server) handleDeleteCounter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, counterID := vars["teamId"], vars["counterId"]

	if err := s.service.DeleteCounter(teamID, counterID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{fmt.Sprintf("Counter %s deleted from team %s.", counterID, teamID)})
}

func (s *Server) handleIncrementCounter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	teamID, counterID := vars["teamId"], vars["counterId"]

	var n int64
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		s.logger.Debugf("could not decode increment body: %v", err)
		s.writeError(w, http.StatusBadRequest, "request body must be an integer number of steps")
		return
	}

	if err := s.service.IncrementCounter(teamID, counterID, n); err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{fmt.Sprintf("%d steps added to %s in %s.", n, counterID, teamID)})
}

func (s *Server) handleGetTotalSteps(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]

	total, err := s.service.GetTotalSteps(teamID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, teamTotalResponse{Team: teamID, TotalSteps: total})
}

func (s *Server) handleListCounters(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]

	counters, err := s.service.ListCounters(teamID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, counters)
}

func (s *Server) handleListTeams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.ListTeams())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
