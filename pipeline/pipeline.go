// SPDX-License-Identifier: GPL-3.0-or-later
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jkoelker/go-imap-watch/domain"
	"github.com/jkoelker/go-imap-watch/log"

	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 2 * time.Second

// Runner is the filter chain as the pipeline sees it.
type Runner interface {
	Run(actions domain.MailActions, fetched *domain.FetchedMail)
}

// Pipeline decouples detection from processing: the watch loop pushes
// uids, workers pull them, dial a private one-shot session, fetch the
// mail and hand it to the chain. Delivery is at-least-once; whatever
// is still queued at shutdown is dropped, only the cursor survives.
type Pipeline struct {
	sessions domain.SessionFactory
	chain    Runner

	folder       string
	workers      int
	pollInterval time.Duration

	mu    sync.Mutex
	queue []uint32

	wg sync.WaitGroup

	l *logrus.Logger
}

func NewPipeline(sessions domain.SessionFactory, chain Runner, folder string, workers int, pollInterval time.Duration) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Pipeline{
		sessions:     sessions,
		chain:        chain,
		folder:       folder,
		workers:      workers,
		pollInterval: pollInterval,
		l:            log.Logger(log.LOG_PIPELINE),
	}
}

// Enqueue never blocks, the queue only carries small integers.
func (p *Pipeline) Enqueue(uid uint32) {
	p.mu.Lock()
	p.queue = append(p.queue, uid)
	p.mu.Unlock()
}

func (p *Pipeline) dequeue() (uint32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return 0, false
	}

	uid := p.queue[0]
	p.queue = p.queue[1:]
	return uid, true
}

func (p *Pipeline) pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Start launches the workers. They run until ctx is cancelled.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(ctx, i)
	}

	p.l.WithFields(logrus.Fields{"workers": p.workers, "folder": p.folder}).Debug("Started workers")
}

// Join blocks until all workers observed the shutdown signal and
// exited. Shutdown is observed within one poll interval.
func (p *Pipeline) Join() {
	p.wg.Wait()

	if dropped := p.pending(); dropped > 0 {
		p.l.WithFields(logrus.Fields{"dropped": dropped}).Warn("Dropped queued mails at shutdown")
	}
}

func (p *Pipeline) work(ctx context.Context, worker int) {
	defer p.wg.Done()

	for {
		if ctx.Err() != nil {
			p.l.WithFields(logrus.Fields{"worker": worker}).Debug("Worker exiting")
			return
		}

		uid, ok := p.dequeue()
		if !ok {
			// Poll with a short interval instead of blocking forever
			// so shutdown is picked up promptly.
			select {
			case <-ctx.Done():
			case <-time.After(p.pollInterval):
			}
			continue
		}

		p.process(worker, uid)
	}
}

func (p *Pipeline) process(worker int, uid uint32) {
	baseLogger := p.l.WithFields(logrus.Fields{"worker": worker, "uid": uid})

	session, err := p.sessions.Dial(p.folder)
	if err != nil {
		baseLogger.WithFields(logrus.Fields{"error": err}).Error("Could not open fetch session, dropping mail")
		return
	}
	defer session.Close()

	fetched, err := session.FetchFull(uid)
	if errors.Is(err, domain.ErrMailNotFound) {
		baseLogger.Debug("Mail vanished before fetch, skipping")
		return
	}
	if err != nil {
		baseLogger.WithFields(logrus.Fields{"error": err}).Error("Could not fetch mail, dropping it")
		return
	}

	p.chain.Run(session, fetched)
}
