package server

import (
	"net/http"
	"strings"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/training"
)

type addSubjectRequest struct {
	SubjectID         string   `json:"subject_id"`
	Name              string   `json:"name"`
	EstimatedTimeDays int      `json:"estimated_time_days"`
	MaxScore          int      `json:"max_score"`
	Tasks             []string `json:"tasks"`
	PlannedStartDate  *string  `json:"planned_start_date"`
	PlannedFinishDate *string  `json:"planned_finish_date"`
}

type updateSubjectRequest struct {
	Name                   *string `json:"name"`
	EstimatedTimeDays      *int    `json:"estimated_time_days"`
	PlannedStartDate       *string `json:"planned_start_date"`
	PlannedFinishDate      *string `json:"planned_finish_date"`
	ClearPlannedStartDate  bool    `json:"clear_planned_start_date"`
	ClearPlannedFinishDate bool    `json:"clear_planned_finish_date"`
}

type reorderRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

type taskNameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.svc.Subjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleCurriculum(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Curriculum(r.Context(), r.PathValue("courseID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	digest, err := training.CurriculumDigest(list)
	if err != nil {
		writeError(w, r, err)
		return
	}
	etag := `"` + digest + `"`
	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddSubject(w http.ResponseWriter, r *http.Request) {
	var req addSubjectRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate("planned_start_date", req.PlannedStartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	finish, err := parseDate("planned_finish_date", req.PlannedFinishDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cs, err := s.svc.AddSubject(r.Context(), r.PathValue("courseID"), training.SubjectDefinition{
		SubjectID:         req.SubjectID,
		Name:              req.Name,
		EstimatedTimeDays: req.EstimatedTimeDays,
		MaxScore:          req.MaxScore,
		Tasks:             req.Tasks,
		PlannedStartDate:  start,
		PlannedFinishDate: finish,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	courseID := r.PathValue("courseID")
	if err := s.svc.Reorder(r.Context(), courseID, req.OrderedIDs); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.svc.Curriculum(r.Context(), courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpdateSubject(w http.ResponseWriter, r *http.Request) {
	var req updateSubjectRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err := parseDate("planned_start_date", req.PlannedStartDate)
	if err != nil {
		writeError(w, r, err)
		return
	}
	finish, err := parseDate("planned_finish_date", req.PlannedFinishDate)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cs, err := s.svc.UpdateFields(r.Context(), r.PathValue("id"), training.CourseSubjectPatch{
		Name:                   req.Name,
		EstimatedTimeDays:      req.EstimatedTimeDays,
		PlannedStartDate:       start,
		PlannedFinishDate:      finish,
		ClearPlannedStartDate:  req.ClearPlannedStartDate,
		ClearPlannedFinishDate: req.ClearPlannedFinishDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) handleRemoveSubject(w http.ResponseWriter, r *http.Request) {
	confirm := newConfirmFlag(r)
	if err := s.svc.RemoveSubject(r.Context(), r.PathValue("id"), confirm.hook); err != nil {
		confirm.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddTask(w http.ResponseWriter, r *http.Request) {
	var req taskNameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.svc.AddTask(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleRenameTask(w http.ResponseWriter, r *http.Request) {
	var req taskNameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	task, err := s.svc.RenameTask(r.Context(), r.PathValue("id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	confirm := newConfirmFlag(r)
	if err := s.svc.DeleteTask(r.Context(), r.PathValue("id"), confirm.hook); err != nil {
		confirm.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// etagMatches implements the If-None-Match comparison for strong tags.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
