package documents

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/sync/errgroup"
)

// OCRQueue feeds uploaded documents to a bounded worker pool for text
// extraction. Enqueue never blocks the upload path: when the buffer is
// full the job is dropped and can be retried by re-validating later.
type OCRQueue struct {
	jobs    chan bson.ObjectID
	group   *errgroup.Group
	cancel  context.CancelFunc
	service *Service
}

func NewOCRQueue(service *Service, workers, buffer int) *OCRQueue {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	q := &OCRQueue{
		jobs:    make(chan bson.ObjectID, buffer),
		group:   group,
		cancel:  cancel,
		service: service,
	}
	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id, ok := <-q.jobs:
					if !ok {
						return nil
					}
					if err := service.ProcessOCR(ctx, id); err != nil {
						log.Printf("❌ OCR failed for document %s: %v", id.Hex(), err)
					}
				}
			}
		})
	}
	return q
}

func (q *OCRQueue) Enqueue(id bson.ObjectID) {
	select {
	case q.jobs <- id:
	default:
		log.Printf("⚠️ OCR queue full, dropping document %s", id.Hex())
	}
}

// Close stops the workers and waits for in-flight jobs to finish.
func (q *OCRQueue) Close() error {
	close(q.jobs)
	err := q.group.Wait()
	q.cancel()
	return err
}
