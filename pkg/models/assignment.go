package models

import "time"

// Assignment is one declared bead-to-worker binding.
type Assignment struct {
	WorkflowID string    `json:"workflow_id"`
	BeadID     string    `json:"bead_id"`
	WorkerID   string    `json:"worker_id"`
	Since      time.Time `json:"since"`
}
