package training

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

// Store is the course/subject persistence collaborator. Implementations
// return *NotFoundError for unknown ids and *PersistenceError for transient
// failures. Every mutation is atomic.
type Store interface {
	curriculum.CatalogWriter
	GetSubject(ctx context.Context, id string) (curriculum.Subject, error)

	FetchCurriculum(ctx context.Context, courseID string) ([]CourseSubject, error)
	GetCourseSubject(ctx context.Context, id string) (CourseSubject, error)
	AttachSubject(ctx context.Context, req NewCourseSubject) (CourseSubject, error)
	RemoveCourseSubject(ctx context.Context, id string) error
	UpdateCourseSubject(ctx context.Context, id string, patch CourseSubjectPatch) (CourseSubject, error)
	Reorder(ctx context.Context, courseID string, placements []Placement) error
	CoursesUsingSubject(ctx context.Context, subjectID string) ([]string, error)

	GetTask(ctx context.Context, id string) (curriculum.Task, error)
	AddTask(ctx context.Context, courseSubjectID, name string) (curriculum.Task, error)
	RenameTask(ctx context.Context, id, name string) (curriculum.Task, error)
	DeleteTask(ctx context.Context, id string) error

	Enroll(ctx context.Context, courseID, traineeID string) (bool, error)
	ListEnrolled(ctx context.Context, courseID string) ([]string, error)

	FetchProgress(ctx context.Context, courseSubjectID, traineeID string) (Progress, error)
	SetTaskStatus(ctx context.Context, taskID, traineeID string, status TaskStatus) error
	SaveCompletion(ctx context.Context, c Completion) error
	SaveAssessment(ctx context.Context, a Assessment) error
}

var _ Store = (*MemoryStore)(nil)

type statusKey struct {
	traineeID string
	taskID    string
}

type progressKey struct {
	traineeID       string
	courseSubjectID string
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	subjects       map[string]*curriculum.Subject
	courseSubjects map[string]*CourseSubject // Subject and Tasks left empty
	tasks          map[string]*curriculum.Task
	enrollments    map[string]map[string]struct{}
	statuses       map[statusKey]TaskStatus
	progress       map[progressKey]*Progress // Tasks left empty
	mu             sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:       make(map[string]*curriculum.Subject),
		courseSubjects: make(map[string]*CourseSubject),
		tasks:          make(map[string]*curriculum.Task),
		enrollments:    make(map[string]map[string]struct{}),
		statuses:       make(map[statusKey]TaskStatus),
		progress:       make(map[progressKey]*Progress),
	}
}

func (s *MemoryStore) ListSubjects(_ context.Context) ([]curriculum.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]curriculum.Subject, 0, len(s.subjects))
	for _, subj := range s.subjects {
		out = append(out, copySubject(*subj))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateSubject(_ context.Context, subj curriculum.Subject) (curriculum.Subject, error) {
	if err := subj.Validate(); err != nil {
		return curriculum.Subject{}, &ValidationError{Field: "subject", Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subj.ID = generateID()
	tasks := make([]curriculum.Task, 0, len(subj.Tasks))
	for i, t := range subj.Tasks {
		tasks = append(tasks, curriculum.Task{
			ID:        generateID(),
			SubjectID: subj.ID,
			Name:      curriculum.CleanName(t.Name),
			Position:  i + 1,
		})
	}
	subj.Tasks = tasks
	subj.Name = curriculum.CleanName(subj.Name)
	s.subjects[subj.ID] = &subj
	return copySubject(subj), nil
}

func (s *MemoryStore) GetSubject(_ context.Context, id string) (curriculum.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	subj, ok := s.subjects[id]
	if !ok {
		return curriculum.Subject{}, notFound("subject", id)
	}
	return copySubject(*subj), nil
}

func (s *MemoryStore) FetchCurriculum(_ context.Context, courseID string) ([]CourseSubject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []CourseSubject{}
	for _, cs := range s.courseSubjects {
		if cs.CourseID == courseID {
			out = append(out, s.composeLocked(cs))
		}
	}
	SortCurriculum(out)
	return out, nil
}

func (s *MemoryStore) GetCourseSubject(_ context.Context, id string) (CourseSubject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cs, ok := s.courseSubjects[id]
	if !ok {
		return CourseSubject{}, notFound("course subject", id)
	}
	return s.composeLocked(cs), nil
}

func (s *MemoryStore) AttachSubject(_ context.Context, req NewCourseSubject) (CourseSubject, error) {
	if err := checkDateRange("planned dates", req.PlannedStartDate, req.PlannedFinishDate); err != nil {
		return CourseSubject{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subj, ok := s.subjects[req.SubjectID]
	if !ok {
		return CourseSubject{}, notFound("subject", req.SubjectID)
	}

	maxPos := 0
	for _, cs := range s.courseSubjects {
		if cs.CourseID == req.CourseID && cs.Position > maxPos {
			maxPos = cs.Position
		}
	}

	cs := &CourseSubject{
		ID:                generateID(),
		CourseID:          req.CourseID,
		SubjectID:         subj.ID,
		Position:          maxPos + 1,
		PlannedStartDate:  DayPtr(req.PlannedStartDate),
		PlannedFinishDate: DayPtr(req.PlannedFinishDate),
	}
	s.courseSubjects[cs.ID] = cs

	for _, tmpl := range subj.Tasks {
		task := &curriculum.Task{
			ID:              generateID(),
			SubjectID:       subj.ID,
			CourseSubjectID: cs.ID,
			Name:            tmpl.Name,
			Position:        tmpl.Position,
		}
		s.tasks[task.ID] = task
		for traineeID := range s.enrollments[req.CourseID] {
			s.statuses[statusKey{traineeID, task.ID}] = TaskNotDone
		}
	}

	return s.composeLocked(cs), nil
}

func (s *MemoryStore) RemoveCourseSubject(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courseSubjects[id]; !ok {
		return notFound("course subject", id)
	}
	for taskID, task := range s.tasks {
		if task.CourseSubjectID == id {
			s.deleteTaskLocked(taskID)
		}
	}
	for key := range s.progress {
		if key.courseSubjectID == id {
			delete(s.progress, key)
		}
	}
	delete(s.courseSubjects, id)
	return nil
}

func (s *MemoryStore) UpdateCourseSubject(_ context.Context, id string, patch CourseSubjectPatch) (CourseSubject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.courseSubjects[id]
	if !ok {
		return CourseSubject{}, notFound("course subject", id)
	}
	subj, ok := s.subjects[cs.SubjectID]
	if !ok {
		return CourseSubject{}, notFound("subject", cs.SubjectID)
	}

	start, finish := patch.Dates(cs.PlannedStartDate, cs.PlannedFinishDate)
	if err := checkDateRange("planned dates", start, finish); err != nil {
		return CourseSubject{}, err
	}

	cs.PlannedStartDate, cs.PlannedFinishDate = start, finish
	if patch.Name != nil {
		subj.Name = curriculum.CleanName(*patch.Name)
	}
	if patch.EstimatedTimeDays != nil {
		subj.EstimatedTimeDays = *patch.EstimatedTimeDays
	}
	return s.composeLocked(cs), nil
}

func (s *MemoryStore) Reorder(_ context.Context, courseID string, placements []Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make([]string, 0)
	for _, cs := range s.courseSubjects {
		if cs.CourseID == courseID {
			current = append(current, cs.ID)
		}
	}
	ids := make([]string, 0, len(placements))
	for _, p := range placements {
		ids = append(ids, p.ID)
	}
	if err := CheckOrdering(courseID, current, ids); err != nil {
		return err
	}

	for _, p := range placements {
		s.courseSubjects[p.ID].Position = p.Position
	}
	return nil
}

func (s *MemoryStore) CoursesUsingSubject(_ context.Context, subjectID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, cs := range s.courseSubjects {
		if cs.SubjectID != subjectID {
			continue
		}
		if _, ok := seen[cs.CourseID]; !ok {
			seen[cs.CourseID] = struct{}{}
			out = append(out, cs.CourseID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (curriculum.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return curriculum.Task{}, notFound("task", id)
	}
	return *task, nil
}

func (s *MemoryStore) AddTask(_ context.Context, courseSubjectID, name string) (curriculum.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.courseSubjects[courseSubjectID]
	if !ok {
		return curriculum.Task{}, notFound("course subject", courseSubjectID)
	}

	maxPos := 0
	for _, t := range s.tasks {
		if t.CourseSubjectID != courseSubjectID {
			continue
		}
		if curriculum.SameName(t.Name, name) {
			return curriculum.Task{}, &DuplicateTaskNameError{Name: name}
		}
		if t.Position > maxPos {
			maxPos = t.Position
		}
	}

	task := &curriculum.Task{
		ID:              generateID(),
		SubjectID:       cs.SubjectID,
		CourseSubjectID: courseSubjectID,
		Name:            curriculum.CleanName(name),
		Position:        maxPos + 1,
	}
	s.tasks[task.ID] = task
	for traineeID := range s.enrollments[cs.CourseID] {
		s.statuses[statusKey{traineeID, task.ID}] = TaskNotDone
	}
	return *task, nil
}

func (s *MemoryStore) RenameTask(_ context.Context, id, name string) (curriculum.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return curriculum.Task{}, notFound("task", id)
	}
	for _, t := range s.tasks {
		if t.ID != id && t.CourseSubjectID == task.CourseSubjectID && curriculum.SameName(t.Name, name) {
			return curriculum.Task{}, &DuplicateTaskNameError{Name: name}
		}
	}
	task.Name = curriculum.CleanName(name)
	return *task, nil
}

func (s *MemoryStore) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return notFound("task", id)
	}
	s.deleteTaskLocked(id)
	return nil
}

func (s *MemoryStore) Enroll(_ context.Context, courseID, traineeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trainees, ok := s.enrollments[courseID]
	if !ok {
		trainees = make(map[string]struct{})
		s.enrollments[courseID] = trainees
	}
	if _, ok := trainees[traineeID]; ok {
		return false, nil
	}
	trainees[traineeID] = struct{}{}

	for _, task := range s.tasks {
		cs, ok := s.courseSubjects[task.CourseSubjectID]
		if !ok || cs.CourseID != courseID {
			continue
		}
		key := statusKey{traineeID, task.ID}
		if _, exists := s.statuses[key]; !exists {
			s.statuses[key] = TaskNotDone
		}
	}
	return true, nil
}

func (s *MemoryStore) ListEnrolled(_ context.Context, courseID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.enrollments[courseID]))
	for id := range s.enrollments[courseID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) FetchProgress(_ context.Context, courseSubjectID, traineeID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courseSubjects[courseSubjectID]; !ok {
		return Progress{}, notFound("course subject", courseSubjectID)
	}
	return s.progressLocked(courseSubjectID, traineeID), nil
}

func (s *MemoryStore) SetTaskStatus(_ context.Context, taskID, traineeID string, status TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok {
		return notFound("task", taskID)
	}
	s.ensureProgressLocked(task.CourseSubjectID, traineeID)
	s.statuses[statusKey{traineeID, taskID}] = status
	return nil
}

func (s *MemoryStore) SaveCompletion(_ context.Context, c Completion) error {
	if err := checkDateRange("actual dates", c.ActualStartDate, c.ActualFinishDate); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courseSubjects[c.CourseSubjectID]; !ok {
		return notFound("course subject", c.CourseSubjectID)
	}
	p := s.ensureProgressLocked(c.CourseSubjectID, c.TraineeID)
	p.Status = c.Status
	p.ActualStartDate = DayPtr(c.ActualStartDate)
	p.ActualFinishDate = DayPtr(c.ActualFinishDate)

	if c.MarkAllDone {
		for _, task := range s.tasks {
			if task.CourseSubjectID == c.CourseSubjectID {
				s.statuses[statusKey{c.TraineeID, task.ID}] = TaskDone
			}
		}
	}
	return nil
}

func (s *MemoryStore) SaveAssessment(_ context.Context, a Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courseSubjects[a.CourseSubjectID]; !ok {
		return notFound("course subject", a.CourseSubjectID)
	}
	p := s.ensureProgressLocked(a.CourseSubjectID, a.TraineeID)
	p.Score = copyInt(a.Score)
	p.SupervisorComment = copyString(a.SupervisorComment)
	at := a.CommentUpdatedAt
	p.CommentUpdatedAt = &at
	return nil
}

// ensureProgressLocked lazily creates the progress record and the NOT_DONE
// rows for every task of the course subject.
func (s *MemoryStore) ensureProgressLocked(courseSubjectID, traineeID string) *Progress {
	key := progressKey{traineeID, courseSubjectID}
	p, ok := s.progress[key]
	if !ok {
		p = &Progress{
			TraineeID:       traineeID,
			CourseSubjectID: courseSubjectID,
			Status:          StatusNotStarted,
		}
		s.progress[key] = p
	}
	for _, task := range s.tasks {
		if task.CourseSubjectID != courseSubjectID {
			continue
		}
		sk := statusKey{traineeID, task.ID}
		if _, exists := s.statuses[sk]; !exists {
			s.statuses[sk] = TaskNotDone
		}
	}
	return p
}

func (s *MemoryStore) progressLocked(courseSubjectID, traineeID string) Progress {
	p := *s.ensureProgressLocked(courseSubjectID, traineeID)
	p.ActualStartDate = copyTime(p.ActualStartDate)
	p.ActualFinishDate = copyTime(p.ActualFinishDate)
	p.CommentUpdatedAt = copyTime(p.CommentUpdatedAt)
	p.Score = copyInt(p.Score)
	p.SupervisorComment = copyString(p.SupervisorComment)

	p.Tasks = []TaskProgress{}
	for _, task := range s.sortedTasksLocked(courseSubjectID) {
		p.Tasks = append(p.Tasks, TaskProgress{
			TaskID:   task.ID,
			Name:     task.Name,
			Position: task.Position,
			Status:   s.statuses[statusKey{traineeID, task.ID}],
		})
	}
	return p
}

func (s *MemoryStore) deleteTaskLocked(taskID string) {
	for key := range s.statuses {
		if key.taskID == taskID {
			delete(s.statuses, key)
		}
	}
	delete(s.tasks, taskID)
}

func (s *MemoryStore) sortedTasksLocked(courseSubjectID string) []curriculum.Task {
	out := []curriculum.Task{}
	for _, t := range s.tasks {
		if t.CourseSubjectID == courseSubjectID {
			out = append(out, *t)
		}
	}
	SortTasks(out)
	return out
}

func (s *MemoryStore) composeLocked(cs *CourseSubject) CourseSubject {
	out := *cs
	out.PlannedStartDate = copyTime(cs.PlannedStartDate)
	out.PlannedFinishDate = copyTime(cs.PlannedFinishDate)
	if subj, ok := s.subjects[cs.SubjectID]; ok {
		out.Subject = *subj
		out.Subject.Tasks = nil
	}
	out.Tasks = s.sortedTasksLocked(cs.ID)
	return out
}

// SortCurriculum orders course subjects by position, ties broken by id.
func SortCurriculum(list []CourseSubject) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].ID < list[j].ID
	})
}

// SortTasks orders tasks by position, ties broken by id.
func SortTasks(tasks []curriculum.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Position != tasks[j].Position {
			return tasks[i].Position < tasks[j].Position
		}
		return tasks[i].ID < tasks[j].ID
	})
}

func copySubject(s curriculum.Subject) curriculum.Subject {
	s.Tasks = append([]curriculum.Task(nil), s.Tasks...)
	return s
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func generateID() string {
	return uuid.NewString()
}
