package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"finot/ingest/internal/models"
)

// job is one queued submission.
type job struct {
	ctx    context.Context
	input  models.RawInput
	result chan models.PipelineResult
}

// queueSet serializes runs per user: one worker goroutine per user id drains
// a FIFO channel, so a user's submissions complete in submission order while
// different users proceed in parallel.
type queueSet struct {
	handle func(context.Context, models.RawInput) models.PipelineResult
	buffer int

	mu      sync.Mutex
	queues  map[string]chan job
	workers sync.WaitGroup
	// senders tracks submissions that hold a queue reference, so close can
	// wait for their sends before closing the channels.
	senders sync.WaitGroup
	closed  bool
}

func newQueueSet(buffer int, handle func(context.Context, models.RawInput) models.PipelineResult) *queueSet {
	return &queueSet{
		handle: handle,
		buffer: buffer,
		queues: make(map[string]chan job),
	}
}

// submit enqueues the input for its user and returns the result channel. A
// cancelled context or a closed set delivers a cancelled result instead of
// blocking.
func (s *queueSet) submit(ctx context.Context, in models.RawInput) <-chan models.PipelineResult {
	result := make(chan models.PipelineResult, 1)

	queue, ok := s.userQueue(in.UserID)
	if !ok {
		result <- cancelledResult(in)
		return result
	}
	defer s.senders.Done()

	select {
	case queue <- job{ctx: ctx, input: in, result: result}:
	case <-ctx.Done():
		result <- cancelledResult(in)
	}
	return result
}

// userQueue returns the user's channel, starting its worker on first use.
// The second return value is false after close. On success the caller is
// registered as a pending sender and must call senders.Done after its send.
func (s *queueSet) userQueue(userID string) (chan job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false
	}
	queue, ok := s.queues[userID]
	if !ok {
		queue = make(chan job, s.buffer)
		s.queues[userID] = queue
		s.workers.Add(1)
		go s.drain(queue)
	}
	s.senders.Add(1)
	return queue, true
}

func (s *queueSet) drain(queue chan job) {
	defer s.workers.Done()
	for j := range queue {
		j.result <- s.handle(j.ctx, j.input)
	}
}

// close stops accepting submissions, lets queued runs finish and waits for
// the workers to exit. The channels are closed only after every in-flight
// submit has completed its send, so a submitter blocked on a full queue
// finishes normally instead of panicking.
func (s *queueSet) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.senders.Wait()

	s.mu.Lock()
	for _, queue := range s.queues {
		close(queue)
	}
	s.mu.Unlock()
	s.workers.Wait()
}

func cancelledResult(in models.RawInput) models.PipelineResult {
	return models.PipelineResult{
		RunID:            uuid.NewString(),
		UserID:           in.UserID,
		Status:           models.PipelineFailed,
		Reasons:          []string{models.ReasonCancelled},
		Message:          messageFor(models.PipelineFailed, []string{models.ReasonCancelled}),
		CreditsRemaining: -1,
	}
}
