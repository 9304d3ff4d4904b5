package progress

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultInterval is the refresh period when none is configured.
const DefaultInterval = time.Second

// clearLine returns the cursor to column 0 and erases the line.
const clearLine = "\r\x1b[K"

// Reporter redraws a status line on its own goroutine.
type Reporter struct {
	out      io.Writer
	interval time.Duration
	read     func() Sample
	now      func() time.Time
	est      *Estimator

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
}

// NewReporter creates a reporter that polls read every interval and writes to out.
func NewReporter(out io.Writer, interval time.Duration, est *Estimator, read func() Sample) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reporter{
		out:      out,
		interval: interval,
		read:     read,
		now:      time.Now,
		est:      est,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the refresh loop. Start and Stop must be called from the
// same goroutine.
func (r *Reporter) Start() {
	r.started = true

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.draw("")
			}
		}
	}()
}

// Stop ends the loop and draws a final line followed by a newline. It is
// safe to call more than once.
func (r *Reporter) Stop() {
	r.once.Do(func() {
		if r.started {
			close(r.stop)
			<-r.done
		}

		r.draw("\n")
	})
}

// draw ignores write errors; a broken terminal must not stop the scan.
func (r *Reporter) draw(suffix string) {
	snap := r.est.Observe(r.read(), r.now())

	_, _ = fmt.Fprint(r.out, clearLine+Render(snap)+suffix)
}
