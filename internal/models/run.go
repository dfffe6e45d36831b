package models

import "time"

// Run records one scan/download/upload/retention cycle for reporting.
type Run struct {
	ID         int        `db:"id"`
	RunType    string     `db:"run_type"`
	Status     string     `db:"status"`
	Message    *string    `db:"message"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}
