package training

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/nguyenbaduy011/IE221-fe-sub000/internal/curriculum"
)

const curriculumKeyPrefix = "training:curriculum:"

// Cache is the key/value store CachedStore keeps curriculum snapshots in.
type Cache interface {
	GetBytes(ctx context.Context, key string) ([]byte, bool, error)
	SetBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CachedStore is a read-through cache for FetchCurriculum in front of another
// Store. Every curriculum mutation drops the course's entry. Cache failures
// fall back to the wrapped store.
type CachedStore struct {
	Store
	cache Cache
	ttl   time.Duration
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps store with cache; ttl bounds staleness from writers
// that bypass this process.
func NewCachedStore(store Store, cache Cache, ttl time.Duration) *CachedStore {
	return &CachedStore{Store: store, cache: cache, ttl: ttl}
}

func (c *CachedStore) FetchCurriculum(ctx context.Context, courseID string) ([]CourseSubject, error) {
	key := curriculumKeyPrefix + courseID
	data, ok, err := c.cache.GetBytes(ctx, key)
	if err != nil {
		slog.Warn("curriculum cache read failed", "course_id", courseID, "error", err)
	}
	if ok {
		var list []CourseSubject
		if err := json.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		slog.Warn("dropping undecodable curriculum cache entry", "course_id", courseID)
	}

	list, err := c.Store.FetchCurriculum(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(list); err == nil {
		if err := c.cache.SetBytes(ctx, key, data, c.ttl); err != nil {
			slog.Warn("curriculum cache write failed", "course_id", courseID, "error", err)
		}
	}
	return list, nil
}

func (c *CachedStore) AttachSubject(ctx context.Context, req NewCourseSubject) (CourseSubject, error) {
	cs, err := c.Store.AttachSubject(ctx, req)
	c.invalidate(ctx, req.CourseID)
	return cs, err
}

func (c *CachedStore) RemoveCourseSubject(ctx context.Context, id string) error {
	courseID := c.courseOf(ctx, id)
	err := c.Store.RemoveCourseSubject(ctx, id)
	c.invalidate(ctx, courseID)
	return err
}

func (c *CachedStore) UpdateCourseSubject(ctx context.Context, id string, patch CourseSubjectPatch) (CourseSubject, error) {
	cs, err := c.Store.UpdateCourseSubject(ctx, id, patch)
	if err != nil {
		c.invalidate(ctx, c.courseOf(ctx, id))
		return cs, err
	}
	// A name change edits the shared template, which other courses may embed.
	if patch.Name != nil || patch.EstimatedTimeDays != nil {
		c.invalidateSubject(ctx, cs.SubjectID)
	}
	c.invalidate(ctx, cs.CourseID)
	return cs, nil
}

func (c *CachedStore) Reorder(ctx context.Context, courseID string, placements []Placement) error {
	err := c.Store.Reorder(ctx, courseID, placements)
	c.invalidate(ctx, courseID)
	return err
}

func (c *CachedStore) AddTask(ctx context.Context, courseSubjectID, name string) (curriculum.Task, error) {
	task, err := c.Store.AddTask(ctx, courseSubjectID, name)
	c.invalidate(ctx, c.courseOf(ctx, courseSubjectID))
	return task, err
}

func (c *CachedStore) RenameTask(ctx context.Context, id, name string) (curriculum.Task, error) {
	task, err := c.Store.RenameTask(ctx, id, name)
	if err == nil {
		c.invalidate(ctx, c.courseOf(ctx, task.CourseSubjectID))
	}
	return task, err
}

func (c *CachedStore) DeleteTask(ctx context.Context, id string) error {
	courseID := ""
	if task, err := c.Store.GetTask(ctx, id); err == nil {
		courseID = c.courseOf(ctx, task.CourseSubjectID)
	}
	err := c.Store.DeleteTask(ctx, id)
	c.invalidate(ctx, courseID)
	return err
}

func (c *CachedStore) courseOf(ctx context.Context, courseSubjectID string) string {
	cs, err := c.Store.GetCourseSubject(ctx, courseSubjectID)
	if err != nil {
		return ""
	}
	return cs.CourseID
}

func (c *CachedStore) invalidate(ctx context.Context, courseID string) {
	if courseID == "" {
		return
	}
	if err := c.cache.Delete(ctx, curriculumKeyPrefix+courseID); err != nil {
		slog.Warn("curriculum cache invalidation failed", "course_id", courseID, "error", err)
	}
}

// invalidateSubject drops every cached course that embeds the template.
func (c *CachedStore) invalidateSubject(ctx context.Context, subjectID string) {
	courses, err := c.Store.CoursesUsingSubject(ctx, subjectID)
	if err != nil {
		slog.Warn("listing courses for subject failed", "subject_id", subjectID, "error", err)
		return
	}
	for _, courseID := range courses {
		c.invalidate(ctx, courseID)
	}
}

// CurriculumDigest is a stable fingerprint of a curriculum listing, used as
// an HTTP entity tag.
func CurriculumDigest(list []CourseSubject) (string, error) {
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal curriculum: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:16]), nil
}
