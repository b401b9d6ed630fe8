package jobqueue

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/digiworld/backoffice/internal/pkg/proofstore"
)

// DiscardProofs queues one delete job per proof key.
func (q *Queue) DiscardProofs(ctx context.Context, keys []string) error {
	for _, key := range keys {
		if _, err := q.EnqueueJob(ctx, JobTypeProofDelete, ProofDeletePayload{Key: key}.ToMap()); err != nil {
			return err
		}
	}
	return nil
}

// ProofDeleteHandler removes the object named in a proof_delete job.
func ProofDeleteHandler(store proofstore.Store) Handler {
	return func(ctx context.Context, job *Job) error {
		payload, err := ProofDeletePayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		if payload.Key == "" {
			return errors.New("proof_delete job without key")
		}
		if err := store.Delete(ctx, payload.Key); err != nil {
			return err
		}
		log.Infof("[JobQueue] Deleted proof %s", payload.Key)
		return nil
	}
}
