// Package cancel turns process signals into context cancellation.
package cancel

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Sumatoshi-tech/mnemoscan/pkg/exitcode"
)

// NotifyFunc registers c to receive the given signals.
type NotifyFunc func(c chan<- os.Signal, sig ...os.Signal)

// StopFunc undoes a NotifyFunc registration.
type StopFunc func(c chan<- os.Signal)

// Controller cancels a context on the first signal and exits the process on the second.
type Controller struct {
	logger  *slog.Logger
	signals []os.Signal
	notify  NotifyFunc
	stop    StopFunc
	exit    func(code int)
}

// Option configures a Controller.
type Option func(*Controller)

// WithNotify replaces signal.Notify and signal.Stop.
func WithNotify(notify NotifyFunc, stop StopFunc) Option {
	return func(c *Controller) {
		c.notify = notify
		c.stop = stop
	}
}

// WithExit replaces os.Exit.
func WithExit(exit func(code int)) Option {
	return func(c *Controller) {
		c.exit = exit
	}
}

// WithSignals overrides the watched signals (default SIGINT and SIGTERM).
func WithSignals(sig ...os.Signal) Option {
	return func(c *Controller) {
		c.signals = sig
	}
}

// New creates a controller. A nil logger discards output.
func New(logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Controller{
		logger:  logger,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		notify:  signal.Notify,
		stop:    signal.Stop,
		exit:    os.Exit,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Watch returns a context cancelled by the first signal. A second signal
// before release calls exit with exitcode.Aborted. release unregisters the
// handler and cancels the context.
func (c *Controller) Watch(parent context.Context) (ctx context.Context, release func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	done := make(chan struct{})
	c.notify(sigCh, c.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			c.logger.WarnContext(ctx, "cancel: interrupt received, finishing in-flight work",
				"signal", sig.String())
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-sigCh:
			c.logger.ErrorContext(ctx, "cancel: second interrupt, aborting", "signal", sig.String())
			c.exit(exitcode.Aborted)
		case <-done:
		}
	}()

	var released atomic.Bool

	return ctx, func() {
		if released.Swap(true) {
			return
		}

		c.stop(sigCh)
		close(done)
		cancel()
	}
}
