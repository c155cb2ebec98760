package failuredetector

import (
	"context"
	"time"

	"github.com/rapidcluster/rapid/internal/core/membership"
	"github.com/rapidcluster/rapid/internal/core/observability/log"
)

// ProbeStatus mirrors the wire ProbeResponse status (spec.md §6).
type ProbeStatus int

const (
	ProbeOK ProbeStatus = iota
	ProbeBootstrapping
)

// Prober sends a best-effort liveness probe to subject. A non-nil error
// means the probe round-trip itself failed (timeout, connection refused);
// it is dropped silently rather than treated as a heartbeat.
type Prober interface {
	Probe(ctx context.Context, subject membership.Endpoint) (ProbeStatus, error)
}

// OnFailure is invoked at most once per Runner, the moment the detector
// judges its subject unavailable.
type OnFailure func(subject membership.Endpoint)

// Config holds one Runner's tuning parameters (spec.md §4.D/§4.E, §5).
type Config struct {
	Interval                  time.Duration
	ExpectFirstHeartbeatAfter time.Duration
	BootstrapLimit            int
	Theta                     float64
	NMax                      int
	Alpha                     float64
	Clock                     Clock
}

// Runner is the cooperative, single-goroutine task that ticks a Detector for
// one monitored subject (spec.md §4.E). It is not safe for concurrent use
// from outside its own loop; Start/Stop are the only methods callers outside
// the loop may call.
type Runner struct {
	subject membership.Endpoint
	prober  Prober
	onFail  OnFailure
	cfg     Config
	log     log.Log

	detector *Detector
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewRunner creates a Runner for subject. It does not start ticking until
// Start is called.
func NewRunner(subject membership.Endpoint, prober Prober, onFail OnFailure, cfg Config, logger log.Log) (*Runner, error) {
	if cfg.BootstrapLimit <= 0 {
		cfg.BootstrapLimit = 30
	}
	d, err := New(cfg.Theta, cfg.NMax, cfg.Alpha, cfg.Clock)
	if err != nil {
		return nil, err
	}
	return &Runner{
		subject:  subject,
		prober:   prober,
		onFail:   onFail,
		cfg:      cfg,
		log:      logger,
		detector: d,
	}, nil
}

// Start launches the runner's tick loop in its own goroutine.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(ctx)
}

// Stop cancels the run synchronously: it does not return until the loop has
// observed cancellation and exited, so no heartbeat or failure signal is
// delivered after Stop returns (spec.md §4.E cancellation semantics).
func (r *Runner) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

type probeResult struct {
	status ProbeStatus
}

func (r *Runner) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	resultCh := make(chan probeResult, 4)

	var bootstrapTimer *time.Timer
	bootstrapCh := func() <-chan time.Time {
		if bootstrapTimer == nil {
			return nil
		}
		return bootstrapTimer.C
	}

	firstTickSeen := false
	firstHeartbeatObserved := false
	bootstrapCount := 0
	stoppedProbing := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-bootstrapCh():
			r.detector.Heartbeat()
			firstHeartbeatObserved = true
			bootstrapTimer = nil

		case res := <-resultCh:
			if stoppedProbing {
				continue
			}
			switch res.status {
			case ProbeOK:
				r.detector.Heartbeat()
				firstHeartbeatObserved = true
			case ProbeBootstrapping:
				if bootstrapCount < r.cfg.BootstrapLimit {
					r.detector.Heartbeat()
					bootstrapCount++
					firstHeartbeatObserved = true
				}
			}

		case <-ticker.C:
			if stoppedProbing {
				continue
			}
			if !firstTickSeen {
				firstTickSeen = true
				bootstrapTimer = time.NewTimer(r.cfg.ExpectFirstHeartbeatAfter)
			}

			now := r.cfg.Clock()
			if firstHeartbeatObserved && !r.detector.IsAvailable(now) {
				stoppedProbing = true
				r.log.Warn("edge unavailable", log.Any("subject", r.subject.String()))
				r.onFail(r.subject)
				continue
			}

			go func() {
				status, err := r.prober.Probe(ctx, r.subject)
				if err != nil {
					return
				}
				select {
				case resultCh <- probeResult{status: status}:
				case <-ctx.Done():
				}
			}()
		}
	}
}
