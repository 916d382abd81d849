package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// CurriculumSession is the curriculum list owned by one editing session. The
// caller reads Items for display; Reorder applies the new order to Items at
// once and reverts to the last order the server accepted if persisting fails.
type CurriculumSession struct {
	svc      *Service
	courseID string

	gesture sync.Mutex // one reorder at a time

	mu    sync.RWMutex
	items []CourseSubject
	good  []CourseSubject
}

// OpenCurriculum loads a course's curriculum into a new editing session.
func (s *Service) OpenCurriculum(ctx context.Context, courseID string) (*CurriculumSession, error) {
	sess := &CurriculumSession{svc: s, courseID: courseID}
	if err := sess.Refresh(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// CourseID returns the course the session edits.
func (c *CurriculumSession) CourseID() string {
	return c.courseID
}

// Items returns the current, possibly optimistic, curriculum order.
func (c *CurriculumSession) Items() []CourseSubject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]CourseSubject(nil), c.items...)
}

// IDs returns the course subject ids in current order.
func (c *CurriculumSession) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return idsOf(c.items)
}

// Refresh replaces the session state with the stored curriculum.
func (c *CurriculumSession) Refresh(ctx context.Context) error {
	list, err := c.svc.Curriculum(ctx, c.courseID)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = list
	c.good = append([]CourseSubject(nil), list...)
	c.mu.Unlock()
	return nil
}

// Move relocates the entry at index from to index to and persists the result.
func (c *CurriculumSession) Move(ctx context.Context, from, to int) error {
	ids := c.IDs()
	if from < 0 || from >= len(ids) || to < 0 || to >= len(ids) {
		return &ValidationError{Field: "index", Message: fmt.Sprintf("move %d -> %d out of range [0, %d)", from, to, len(ids))}
	}
	id := ids[from]
	ids = append(ids[:from], ids[from+1:]...)
	ids = append(ids[:to], append([]string{id}, ids[to:]...)...)
	return c.Reorder(ctx, ids)
}

// Reorder applies orderedIDs to the session view, persists it, and restores
// the last accepted order on failure. A stale view is refetched.
func (c *CurriculumSession) Reorder(ctx context.Context, orderedIDs []string) error {
	c.gesture.Lock()
	defer c.gesture.Unlock()

	c.mu.Lock()
	if err := CheckOrdering(c.courseID, idsOf(c.items), orderedIDs); err != nil {
		c.mu.Unlock()
		return err
	}
	byID := make(map[string]CourseSubject, len(c.items))
	for _, cs := range c.items {
		byID[cs.ID] = cs
	}
	next := make([]CourseSubject, len(orderedIDs))
	for i, id := range orderedIDs {
		cs := byID[id]
		cs.Position = i + 1
		next[i] = cs
	}
	c.items = next
	c.mu.Unlock()

	err := c.svc.Reorder(ctx, c.courseID, orderedIDs)

	c.mu.Lock()
	if err == nil {
		c.good = append([]CourseSubject(nil), next...)
		c.mu.Unlock()
		return nil
	}
	c.items = append([]CourseSubject(nil), c.good...)
	c.mu.Unlock()

	slog.Warn("reorder failed, restored previous order", "course_id", c.courseID, "error", err)

	var incomplete *IncompleteOrderingError
	if IsNotFound(err) || errors.As(err, &incomplete) {
		if rerr := c.Refresh(ctx); rerr != nil {
			slog.Warn("refetch after stale reorder failed", "course_id", c.courseID, "error", rerr)
		}
	}
	return err
}

// ProgressSession is one trainee's progress view on a course subject with
// optimistic task toggling.
type ProgressSession struct {
	svc             *Service
	courseSubjectID string
	traineeID       string

	mu   sync.RWMutex
	view ProgressView
}

// OpenProgress loads a trainee's progress view into a new session.
func (s *Service) OpenProgress(ctx context.Context, courseSubjectID, traineeID string) (*ProgressSession, error) {
	sess := &ProgressSession{svc: s, courseSubjectID: courseSubjectID, traineeID: traineeID}
	if err := sess.Refresh(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}

// View returns the current, possibly optimistic, progress view.
func (p *ProgressSession) View() ProgressView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v := p.view
	v.Tasks = append([]TaskProgress(nil), p.view.Tasks...)
	return v
}

// Refresh reloads the view from the store.
func (p *ProgressSession) Refresh(ctx context.Context) error {
	v, err := p.svc.Progress(ctx, p.courseSubjectID, p.traineeID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.view = v
	p.mu.Unlock()
	return nil
}

// Toggle flips a task in the view, persists it, and flips that task back if
// the write fails. Other tasks toggled meanwhile keep their state.
func (p *ProgressSession) Toggle(ctx context.Context, taskID string) error {
	p.mu.Lock()
	idx := p.taskIndexLocked(taskID)
	if idx < 0 {
		p.mu.Unlock()
		return notFound("task", taskID)
	}
	next := p.view.Tasks[idx].Status.Flip()
	p.view.Tasks = append([]TaskProgress(nil), p.view.Tasks...)
	p.view.Tasks[idx].Status = next
	p.rederiveLocked()
	p.mu.Unlock()

	if err := p.svc.SetTaskStatus(ctx, taskID, p.traineeID, next); err != nil {
		p.mu.Lock()
		if i := p.taskIndexLocked(taskID); i >= 0 && p.view.Tasks[i].Status == next {
			p.view.Tasks = append([]TaskProgress(nil), p.view.Tasks...)
			p.view.Tasks[i].Status = next.Flip()
			p.rederiveLocked()
		}
		p.mu.Unlock()
		slog.Warn("task toggle failed, reverted", "task_id", taskID, "trainee_id", p.traineeID, "error", err)
		return err
	}
	return nil
}

func (p *ProgressSession) taskIndexLocked(taskID string) int {
	for i, t := range p.view.Tasks {
		if t.TaskID == taskID {
			return i
		}
	}
	return -1
}

func (p *ProgressSession) rederiveLocked() {
	p.view.Status = DeriveStatus(p.svc.now(), p.view.PlannedFinishDate, p.view.ActualStartDate, p.view.ActualFinishDate, p.view.Tasks)
	p.view.StatusLabel = p.view.Status.Label()
	p.view.CompletionPercent = CompletionPercent(p.view.Tasks)
}

func idsOf(list []CourseSubject) []string {
	out := make([]string, len(list))
	for i, cs := range list {
		out[i] = cs.ID
	}
	return out
}
