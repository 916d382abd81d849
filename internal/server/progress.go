package server

import (
	"bytes"
	"mime"
	"net/http"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/report"
	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

type enrollRequest struct {
	TraineeID string `json:"trainee_id"`
}

type finishRequest struct {
	ActualStartDate  *string `json:"actual_start_date"`
	ActualFinishDate *string `json:"actual_finish_date"`
	// Confirm accepts finishing while some tasks are not done.
	Confirm bool `json:"confirm"`
}

type assessmentRequest struct {
	Score             *int    `json:"score"`
	SupervisorComment *string `json:"supervisor_comment"`
}

type toggleResponse struct {
	TaskID    string              `json:"task_id"`
	TraineeID string              `json:"trainee_id"`
	Status    training.TaskStatus `json:"status"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Enroll(r.Context(), r.PathValue("courseID"), req.TraineeID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.Progress(r.Context(), r.PathValue("id"), r.PathValue("traineeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	taskID, traineeID := r.PathValue("taskID"), r.PathValue("traineeID")
	status, err := s.svc.ToggleTask(r.Context(), taskID, traineeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{TaskID: taskID, TraineeID: traineeID, Status: status})
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate("actual_start_date", req.ActualStartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := parseDate("actual_finish_date", req.ActualFinishDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	confirm := &confirmFlag{ok: req.Confirm}
	view, err := s.svc.TraineeFinish(r.Context(), training.FinishRequest{
		CourseSubjectID: r.PathValue("id"),
		TraineeID:       r.PathValue("traineeID"),
		ActualStart:     start,
		ActualEnd:       end,
	}, confirm.hook)
	if err != nil {
		confirm.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleForceComplete(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.ForceComplete(r.Context(), r.PathValue("id"), r.PathValue("traineeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAssessment(w http.ResponseWriter, r *http.Request) {
	var req assessmentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	view, err := s.svc.SaveAssessment(r.Context(), r.PathValue("id"), r.PathValue("traineeID"), req.Score, req.SupervisorComment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("courseID")
	rep, err := s.svc.CourseReport(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, rep); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": "course-" + courseID + "-progress.xlsx",
	}))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
