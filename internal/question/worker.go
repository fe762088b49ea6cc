package question

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// FetcherWorker warms the question cache in the background so that session
// starts rarely wait on the generator.
type FetcherWorker struct {
	service *Service
	queue   chan Request
	logger  zerolog.Logger
	timeout time.Duration
}

func NewFetcherWorker(service *Service, queueSize int, logger zerolog.Logger, timeout time.Duration) *FetcherWorker {
	if timeout <= 0 {
		timeout = 2 * defaultFetchTimeout
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	return &FetcherWorker{
		service: service,
		queue:   make(chan Request, queueSize),
		logger:  logger.With().Str("component", "question_fetcher").Logger(),
		timeout: timeout,
	}
}

// Enqueue schedules a prefetch; it drops the request when the queue is full.
func (w *FetcherWorker) Enqueue(req Request) bool {
	select {
	case w.queue <- req:
		return true
	default:
		w.logger.Debug().Str("topic", req.Topic).Msg("prefetch queue full, dropping")
		return false
	}
}

// Run processes prefetch requests until ctx is cancelled.
func (w *FetcherWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("question fetcher stopping")
			return nil
		case req := <-w.queue:
			w.handle(ctx, req)
		}
	}
}

func (w *FetcherWorker) handle(ctx context.Context, req Request) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	set, err := w.service.Fetch(ctx, req)
	if err != nil {
		w.logger.Warn().Err(err).Str("topic", req.Topic).Msg("prefetch failed")
		return
	}
	if set.Source == SourceFallback {
		w.logger.Warn().Str("topic", req.Topic).Msg("prefetch fell back to the local bank")
		return
	}
	w.logger.Debug().Str("topic", req.Topic).Str("source", set.Source).Int("count", len(set.Questions)).Msg("question set warmed")
}
