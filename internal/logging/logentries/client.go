package logentries

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
	"github.com/Chichichkin/LogentriesAgent/internal/logging/queue"
)

const flushPollInterval = 10 * time.Millisecond

// Client is the asynchronous delivery pipeline: producers Submit lines into
// a bounded queue and one background Worker forwards them to the collector.
type Client struct {
	config  logging.Config
	queue   *queue.Queue
	worker  *Worker
	logger  *log.Logger
	metrics *Metrics

	disabled bool
	mu       sync.Mutex // serializes Start against Shutdown
	started  atomic.Bool
	stopped  atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

type options struct {
	dialer   logging.Dialer
	logger   *log.Logger
	registry prometheus.Registerer
}

type Option func(*options)

// WithDialer replaces the TCP/TLS dialer built from the config.
func WithDialer(d logging.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithLogger sets the diagnostic logger, overriding the Verbose default.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// NewClient always returns a usable client. When the config is invalid the
// error is returned alongside a client whose Submit and Start do nothing.
func NewClient(config logging.Config, opts ...Option) (*Client, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = newDiagnosticLogger(config.Verbose)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: config,
		logger: o.logger,
		ctx:    ctx,
		cancel: cancel,
	}

	err := config.Validate()
	if err == nil && o.dialer == nil {
		o.dialer, err = NewNetDialer(config)
	}
	if err != nil {
		if errors.Is(err, logging.ErrInvalidToken) {
			// always shown, independent of Verbose
			log.Printf("LE: It appears the LOGENTRIES_TOKEN parameter you entered is incorrect! (%v)", err)
		} else {
			c.logger.Printf("Logentries handler disabled: %v", err)
		}
		c.disabled = true
		c.queue = queue.New(1, logging.PolicyDropNewest)
		c.metrics = NewMetrics(nil, func() float64 { return 0 })
		return c, err
	}

	c.queue = queue.New(config.QueueSize, config.QueuePolicy)
	c.metrics = NewMetrics(o.registry, func() float64 { return float64(c.queue.Len()) })
	c.worker = NewWorker(c.queue, o.dialer, config, c.logger, c.metrics)
	return c, nil
}

func newDiagnosticLogger(verbose bool) *log.Logger {
	if !verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(os.Stderr, "LE: ", log.LstdFlags)
}

func (c *Client) Token() string {
	return c.config.Token
}

// Enabled is false when the client was built from an invalid config.
func (c *Client) Enabled() bool {
	return !c.disabled
}

// Start launches the worker once. Concurrent and repeated calls are no-ops,
// and it never blocks, so it is safe to call from the emit path.
func (c *Client) Start() {
	if c.disabled || c.stopped.Load() || c.started.Load() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped.Load() || !c.started.CompareAndSwap(false, true) {
		return
	}

	c.logger.Println("Starting Logentries Asynchronous Socket Appender")
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.worker.Run(c.ctx)
	}()
}

// Submit enqueues a formatted line. It never returns an error to the caller;
// under PolicyBlock it waits for space until Shutdown.
func (c *Client) Submit(line string) {
	c.SubmitContext(context.Background(), line)
}

// SubmitContext is Submit with a caller context: a producer blocked on a
// full queue also gives up when ctx is done, and the line is not queued.
func (c *Client) SubmitContext(ctx context.Context, line string) {
	if c.disabled || c.stopped.Load() {
		return
	}

	enqueueCtx := c.ctx
	if ctx.Done() != nil {
		var cancel context.CancelFunc
		enqueueCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(c.ctx, cancel)
		defer stop()
	}

	dropped, err := c.queue.Enqueue(enqueueCtx, line)
	if dropped {
		c.metrics.LinesDropped.Inc()
	}
	switch {
	case err == nil:
		c.metrics.LinesEnqueued.Inc()
	case errors.Is(err, queue.ErrQueueFull):
		c.logger.Printf("Event queue full (%d lines), dropping line", c.queue.Cap())
	}
}

// IsIdle reports whether nothing is queued and no line is being written.
// Best effort under concurrent producers.
func (c *Client) IsIdle() bool {
	if c.disabled {
		return true
	}
	return c.queue.Pending() == 0
}

// Flush waits up to timeout for the pipeline to go idle. Expiry is not an
// error; it returns whether idleness was observed.
func (c *Client) Flush(timeout time.Duration) bool {
	if c.IsIdle() {
		return true
	}
	if !c.started.Load() || c.stopped.Load() {
		return false
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.IsIdle() {
				return true
			}
		case <-deadline.C:
			c.logger.Printf("Flush timed out after %s with %d lines queued", timeout, c.queue.Len())
			return false
		}
	}
}

// Shutdown stops the worker and closes its connection. Queued lines are
// abandoned. Safe to call more than once.
func (c *Client) Shutdown() {
	c.mu.Lock()
	if !c.stopped.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return
	}
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

// Close flushes with the configured timeout, then shuts down.
func (c *Client) Close() error {
	c.Flush(c.config.FlushTimeout)
	c.Shutdown()
	return nil
}

// State is Disconnected until Start and Stopped after Shutdown.
func (c *Client) State() State {
	if c.worker == nil || c.stopped.Load() {
		return Stopped
	}
	return c.worker.State()
}

func (c *Client) Metrics() *Metrics {
	return c.metrics
}
