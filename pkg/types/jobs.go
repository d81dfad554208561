// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType selects the kind of work an embedding/indexing job requests.
type JobType string

const (
	JobChunkEmbed  JobType = "chunk_embed"
	JobIndexUpdate JobType = "index_update"
)

// ProcessingJob is the payload shape handed to the external job queue
// when a paper needs chunking, embedding, or index maintenance. The core
// never schedules or executes these; it only produces well-formed payloads.
type ProcessingJob struct {
	// PMID identifies the paper to process.
	PMID string `json:"pmid" yaml:"pmid"`

	// ProjectID scopes the job to a review project.
	ProjectID uuid.UUID `json:"project_id" yaml:"project_id"`

	// JobType selects chunk_embed or index_update.
	JobType JobType `json:"job_type" yaml:"job_type"`

	// Payload carries job-specific parameters (e.g. chunk size, model).
	Payload map[string]any `json:"payload" yaml:"payload"`

	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the job shape before it is handed to the queue.
func (j ProcessingJob) Validate() error {
	if !ValidPMID(j.PMID) {
		return fmt.Errorf("job: pmid %q is not an 8-digit PMID", j.PMID)
	}
	if j.ProjectID == uuid.Nil {
		return fmt.Errorf("job: missing project id")
	}
	if j.JobType != JobChunkEmbed && j.JobType != JobIndexUpdate {
		return fmt.Errorf("job: unknown type %q", j.JobType)
	}
	return nil
}
