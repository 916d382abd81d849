package training

import (
	"context"
	"fmt"
	"sort"
)

// CheckOrdering verifies that ordered holds every id of current exactly once
// and nothing else.
func CheckOrdering(courseID string, current, ordered []string) error {
	want := make(map[string]bool, len(current))
	for _, id := range current {
		want[id] = false
	}

	e := &IncompleteOrderingError{CourseID: courseID}
	for _, id := range ordered {
		seen, known := want[id]
		switch {
		case !known:
			e.Unknown = append(e.Unknown, id)
		case seen:
			e.Duplicated = append(e.Duplicated, id)
		default:
			want[id] = true
		}
	}
	for id, seen := range want {
		if !seen {
			e.Missing = append(e.Missing, id)
		}
	}

	if len(e.Missing) == 0 && len(e.Duplicated) == 0 && len(e.Unknown) == 0 {
		return nil
	}
	sort.Strings(e.Missing)
	return e
}

// Placements assigns 1-based positions in the given order.
func Placements(ordered []string) []Placement {
	out := make([]Placement, len(ordered))
	for i, id := range ordered {
		out[i] = Placement{ID: id, Position: i + 1}
	}
	return out
}

// Reorder persists a new order for a course's subjects in one atomic write.
// The ids must be exactly the course's current course subjects.
func (s *Service) Reorder(ctx context.Context, courseID string, orderedIDs []string) error {
	current, err := s.store.FetchCurriculum(ctx, courseID)
	if err != nil {
		return fmt.Errorf("fetch curriculum: %w", err)
	}
	ids := make([]string, len(current))
	for i, cs := range current {
		ids[i] = cs.ID
	}
	if err := CheckOrdering(courseID, ids, orderedIDs); err != nil {
		return err
	}

	if err := s.store.Reorder(ctx, courseID, Placements(orderedIDs)); err != nil {
		return fmt.Errorf("reorder: %w", err)
	}

	s.emit(Event{
		CourseID:  courseID,
		EventType: EventCurriculumReordered,
		Data:      map[string]any{"order": orderedIDs},
	})
	return nil
}
