package database

import (
	"context"
	"fmt"
)

// schema creates the training tables. Every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name TEXT NOT NULL CHECK (btrim(name) <> ''),
		estimated_time_days INTEGER NOT NULL DEFAULT 0 CHECK (estimated_time_days >= 0),
		max_score INTEGER NOT NULL DEFAULT 0 CHECK (max_score >= 0),
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subject_tasks (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		subject_id UUID NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS course_subjects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		course_id TEXT NOT NULL,
		subject_id UUID NOT NULL REFERENCES subjects(id),
		position INTEGER NOT NULL CHECK (position > 0),
		planned_start_date DATE,
		planned_finish_date DATE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		CHECK (planned_start_date IS NULL OR planned_finish_date IS NULL OR planned_start_date <= planned_finish_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_course_subjects_course ON course_subjects (course_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_course_subjects_subject ON course_subjects (subject_id)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		course_subject_id UUID NOT NULL REFERENCES course_subjects(id) ON DELETE CASCADE,
		subject_id UUID NOT NULL REFERENCES subjects(id),
		name TEXT NOT NULL CHECK (btrim(name) <> ''),
		position INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_course_subject ON tasks (course_subject_id, position)`,
	`CREATE TABLE IF NOT EXISTS enrollments (
		course_id TEXT NOT NULL,
		trainee_id TEXT NOT NULL,
		enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (course_id, trainee_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trainee_task_statuses (
		trainee_id TEXT NOT NULL,
		task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'NOT_DONE' CHECK (status IN ('DONE', 'NOT_DONE')),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (trainee_id, task_id)
	)`,
	`CREATE TABLE IF NOT EXISTS trainee_subject_progress (
		trainee_id TEXT NOT NULL,
		course_subject_id UUID NOT NULL REFERENCES course_subjects(id) ON DELETE CASCADE,
		status TEXT NOT NULL DEFAULT 'NOT_STARTED',
		actual_start_date DATE,
		actual_finish_date DATE,
		score INTEGER CHECK (score IS NULL OR score >= 0),
		supervisor_comment TEXT,
		comment_updated_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		PRIMARY KEY (trainee_id, course_subject_id),
		CHECK (actual_start_date IS NULL OR actual_finish_date IS NULL OR actual_start_date <= actual_finish_date)
	)`,
	`CREATE TABLE IF NOT EXISTS training_events (
		id BIGSERIAL PRIMARY KEY,
		course_id TEXT NOT NULL,
		trainee_id TEXT,
		event_type TEXT NOT NULL,
		data JSONB,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_training_events_course ON training_events (course_id, created_at)`,
}

// Migrate applies the training schema.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
