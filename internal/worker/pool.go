package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/bookhub/book-notify/internal/queue"
)

// Pool runs a fixed number of consumer goroutines against the transport.
// Each worker processes one message end to end before pulling the next; the
// only coordination between workers is the queue itself.
type Pool struct {
	transport queue.Transport
	consumer  *Consumer
	size      int
	logger    *zap.Logger
	wg        sync.WaitGroup
}

func NewPool(transport queue.Transport, consumer *Consumer, size int, logger *zap.Logger) *Pool {
	return &Pool{
		transport: transport,
		consumer:  consumer,
		size:      size,
		logger:    logger,
	}
}

// Start launches the workers. Cancelling ctx stops them: a worker blocked
// in Receive returns immediately, a worker mid-message finishes its current
// settlement first.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, id)
		}(i)
	}
}

// Wait blocks until every worker has returned after ctx is cancelled.
// Call this after cancelling the context so in-flight messages finish.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, id int) {
	log := p.logger.With(zap.Int("worker_id", id))
	log.Info("delivery worker started")
	for {
		d, ok := p.transport.Receive(ctx)
		if !ok {
			log.Info("delivery worker stopping")
			return
		}
		p.consumer.Handle(ctx, d)
	}
}
