package logentries

import (
	"context"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/Chichichkin/LogentriesAgent/internal/logging"
	"github.com/Chichichkin/LogentriesAgent/internal/logging/backoff"
	"github.com/Chichichkin/LogentriesAgent/internal/logging/queue"
)

type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Stopped
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Worker drains the queue onto a single collector connection. It is the only
// goroutine that ever touches conn.
type Worker struct {
	queue        *queue.Queue
	dialer       logging.Dialer
	backoff      *backoff.Backoff
	writeTimeout time.Duration
	logger       *log.Logger
	metrics      *Metrics

	conn     net.Conn
	state    atomic.Int32
	inflight atomic.Bool // a dequeued line is not written yet
}

func NewWorker(q *queue.Queue, dialer logging.Dialer, config logging.Config, logger *log.Logger, metrics *Metrics) *Worker {
	return &Worker{
		queue:        q,
		dialer:       dialer,
		backoff:      backoff.New(config.MinDelay, config.MaxDelay),
		writeTimeout: config.WriteTimeout,
		logger:       logger,
		metrics:      metrics,
	}
}

func (w *Worker) State() State {
	return State(w.state.Load())
}

// Busy reports whether a dequeued line has not been written yet.
func (w *Worker) Busy() bool {
	return w.inflight.Load()
}

// Run connects and then sends queued lines until ctx is cancelled. A line
// whose write fails is resent on the next connection before anything else is
// dequeued. The line in flight when ctx is cancelled is lost.
func (w *Worker) Run(ctx context.Context) {
	defer func() {
		w.closeConnection()
		if w.inflight.Swap(false) {
			w.queue.Done()
		}
		w.setState(Stopped)
	}()

	if !w.reopenConnection(ctx) {
		w.logger.Println("Logentries asynchronous socket client interrupted")
		return
	}

	for {
		line, err := w.queue.Dequeue(ctx)
		if err != nil {
			w.logger.Println("Logentries asynchronous socket client interrupted")
			return
		}
		w.inflight.Store(true)

		payload := Encode(line)
		for {
			err := w.write(ctx, payload)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				w.logger.Println("Logentries asynchronous socket client interrupted")
				return
			}

			w.logger.Printf("Write to Logentries failed: %v", err)
			w.metrics.WriteFailures.Inc()
			if !w.reopenConnection(ctx) {
				w.logger.Println("Logentries asynchronous socket client interrupted")
				return
			}
		}

		w.metrics.LinesSent.Inc()
		w.inflight.Store(false)
		w.queue.Done()
	}
}

// reopenConnection replaces the current connection, retrying with backoff
// until it succeeds. Returns false only when ctx is cancelled.
func (w *Worker) reopenConnection(ctx context.Context) bool {
	w.closeConnection()
	w.setState(Connecting)
	w.backoff.Reset()

	for {
		conn, err := w.dialer.Dial(ctx)
		if err == nil {
			w.conn = conn
			w.metrics.Connects.Inc()
			w.setState(Connected)
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		w.metrics.ConnectFailures.Inc()
		base, wait := w.backoff.Next()
		w.logger.Printf("Unable to connect to Logentries: %v (retry in %s, base %s)", err, wait.Round(time.Millisecond), base)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false
		}
	}
}

func (w *Worker) write(ctx context.Context, payload []byte) error {
	conn := w.conn
	if w.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(w.writeTimeout)); err != nil {
			return err
		}
	}

	// unblock a stalled write on shutdown
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetWriteDeadline(time.Now())
	})
	defer stop()

	_, err := conn.Write(payload)
	return err
}

func (w *Worker) closeConnection() {
	if w.conn == nil {
		return
	}
	if err := w.conn.Close(); err != nil {
		w.logger.Printf("Error closing Logentries connection: %v", err)
	}
	w.conn = nil
	w.setState(Disconnected)
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
	w.metrics.State.Set(float64(s))
}
