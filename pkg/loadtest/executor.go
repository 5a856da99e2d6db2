package loadtest

import (
	"context"
	"sync"
	"time"
)

// Schedule tells the runner how many VUs should be active at a point of the run.
type Schedule interface {
	Total() time.Duration
	VUsAt(elapsed time.Duration) int
}

type constantSchedule struct {
	vus      int
	duration time.Duration
}

func (s constantSchedule) Total() time.Duration { return s.duration }

func (s constantSchedule) VUsAt(elapsed time.Duration) int {
	if elapsed >= s.duration {
		return 0
	}
	return s.vus
}

type rampingSchedule struct {
	start  int
	stages []Stage
}

func (s rampingSchedule) Total() time.Duration {
	var total time.Duration
	for _, st := range s.stages {
		total += st.Duration
	}
	return total
}

func (s rampingSchedule) VUsAt(elapsed time.Duration) int {
	return ScheduleAt(s.start, s.stages, elapsed)
}

// ScheduleFor picks constant-vus or ramping-vus for the profile.
func ScheduleFor(p *Profile) Schedule {
	if p.Ramping() {
		return rampingSchedule{start: p.StartVUs, stages: p.Stages}
	}
	return constantSchedule{vus: p.VUs, duration: p.Duration}
}

// ScheduleAt linearly interpolates the VU count inside the stage containing t,
// moving from the previous stage's target (or start) toward the current one.
func ScheduleAt(start int, stages []Stage, t time.Duration) int {
	if t < 0 {
		t = 0
	}
	from := start
	var offset time.Duration
	for _, st := range stages {
		if t < offset+st.Duration {
			frac := float64(t-offset) / float64(st.Duration)
			return from + int(float64(st.Target-from)*frac)
		}
		offset += st.Duration
		from = st.Target
	}
	return from
}

// vuPool runs independent VU loops. Stopped VUs finish their current iteration;
// the newest VU is always the first one stopped.
type vuPool struct {
	ctx      context.Context
	iterate  func(ctx context.Context)
	onChange func(active int)

	wg    sync.WaitGroup
	stops []chan struct{}
}

func newVUPool(ctx context.Context, iterate func(ctx context.Context), onChange func(int)) *vuPool {
	return &vuPool{ctx: ctx, iterate: iterate, onChange: onChange}
}

func (p *vuPool) active() int {
	return len(p.stops)
}

func (p *vuPool) scaleTo(n int) {
	if n < 0 {
		n = 0
	}
	if n == len(p.stops) {
		return
	}
	for len(p.stops) < n {
		stop := make(chan struct{})
		p.stops = append(p.stops, stop)
		p.wg.Add(1)
		go p.loop(stop)
	}
	for len(p.stops) > n {
		last := len(p.stops) - 1
		close(p.stops[last])
		p.stops = p.stops[:last]
	}
	if p.onChange != nil {
		p.onChange(len(p.stops))
	}
}

func (p *vuPool) loop(stop <-chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-p.ctx.Done():
			return
		default:
		}
		p.iterate(p.ctx)
	}
}

// drain stops every VU and waits up to grace for in-flight iterations before
// calling hardStop. It reports whether hardStop was needed.
func (p *vuPool) drain(grace time.Duration, hardStop func()) bool {
	p.scaleTo(0)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return false
	case <-timer.C:
		hardStop()
		<-done
		return true
	}
}
