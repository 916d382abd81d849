package training

// TaskStatusRows returns the stored trainee statuses of a task keyed by trainee.
func (s *MemoryStore) TaskStatusRows(taskID string) map[string]TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TaskStatus)
	for key, status := range s.statuses {
		if key.taskID == taskID {
			out[key.traineeID] = status
		}
	}
	return out
}
