package service

import (
	"context"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

const (
	reembedProfessorKind = "reembed_professor"
	// ReembedQueueName is the River queue used for re-embedding jobs.
	ReembedQueueName = "reembed"
)

// JobInserter inserts jobs (e.g. River client). Used by ReembedService.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// ReembedArgs is the job payload for moving one professor record from FromModel's vector space to
// ToModel's. Uniqueness is by namespace, professor and target model, so re-running the enqueue
// command does not create duplicate jobs.
type ReembedArgs struct {
	Namespace   string `json:"namespace"    river:"unique"`
	ProfessorID string `json:"professor_id" river:"unique"`
	FromModel   string `json:"from_model"`
	ToModel     string `json:"to_model"     river:"unique"`
}

// Kind returns the River job kind.
func (ReembedArgs) Kind() string { return reembedProfessorKind }

var _ river.JobArgs = ReembedArgs{}
