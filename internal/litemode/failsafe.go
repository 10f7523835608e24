package litemode

import (
	"fmt"
	"sync"
	"time"
)

// DefaultFailsafeBudget is how long a page may take to become interactive
// before the visitor is moved to the lite version.
const DefaultFailsafeBudget = 270 * time.Second

// Outcome is how a Failsafe race ended.
type Outcome int

const (
	Pending Outcome = iota
	Ready
	TimedOut
	Stopped
)

// Failsafe races a readiness signal against a fixed budget. Whichever comes
// first settles it; later signals are no-ops.
type Failsafe struct {
	timer   *time.Timer
	once    sync.Once
	mu      sync.Mutex
	outcome Outcome
	done    chan struct{}
}

// StartFailsafe arms the budget. onTimeout runs on its own goroutine if the
// budget elapses before MarkReady or Stop.
func StartFailsafe(budget time.Duration, onTimeout func()) *Failsafe {
	f := &Failsafe{done: make(chan struct{})}
	f.timer = time.AfterFunc(budget, func() {
		if f.settle(TimedOut) && onTimeout != nil {
			onTimeout()
		}
	})
	return f
}

// MarkReady cancels the timeout. It reports whether this call won the race.
func (f *Failsafe) MarkReady() bool {
	f.timer.Stop()
	return f.settle(Ready)
}

// Stop abandons the race without marking the page ready.
func (f *Failsafe) Stop() {
	f.timer.Stop()
	f.settle(Stopped)
}

// Done is closed once the race settles.
func (f *Failsafe) Done() <-chan struct{} {
	return f.done
}

// Outcome returns how the race ended, or Pending.
func (f *Failsafe) Outcome() Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcome
}

func (f *Failsafe) settle(o Outcome) bool {
	won := false
	f.once.Do(func() {
		f.mu.Lock()
		f.outcome = o
		f.mu.Unlock()
		close(f.done)
		won = true
	})
	return won
}

// FailsafeScript is the inline page script equivalent of Failsafe: unless the
// page is already a lite page, it redirects to /lite after budget, and
// window.__clearLiteTimer or the load event cancels it.
func FailsafeScript(budget time.Duration) string {
	return fmt.Sprintf(`(function(){
  if(window.location.pathname.startsWith('/lite'))return;
  var t=setTimeout(function(){
    window.location.replace('/lite?from=timeout');
  },%d);
  window.__clearLiteTimer=function(){clearTimeout(t);};
  window.addEventListener('load',function(){clearTimeout(t);},{once:true});
})();`, budget.Milliseconds())
}
