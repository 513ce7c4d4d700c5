// FilePath: internal/accounting/transition.go
package accounting

import (
	"time"

	"github.com/fabwatch/factoryhub/internal/models"
)

// debounceWindow is the threshold below which a status flip is treated
// as contact bounce rather than a real run/stop transition.
const debounceWindow = time.Second

type timeBucket int

const (
	bucketNone timeBucket = iota
	bucketActive
	bucketStop
)

// transitionDecision describes what a status message does to the ledger:
// whether the stored status flips, and how much closed-interval time gets
// committed to which bucket.
type transitionDecision struct {
	changed bool
	commit  time.Duration
	bucket  timeBucket
}

// transition is the guarded two-state machine over {STOPPED, RUNNING}.
// The elapsed interval belongs to the *previous* status: a machine that
// was RUNNING and now reports STOPPED has been active for the whole
// interval. Flips within the debounce window record the new status but
// commit no time.
func transition(prev, incoming models.MachineStatus, elapsed time.Duration) transitionDecision {
	if incoming == prev {
		return transitionDecision{}
	}
	if elapsed <= debounceWindow {
		return transitionDecision{changed: true}
	}

	bucket := bucketStop
	if prev == models.StatusRunning {
		bucket = bucketActive
	}
	return transitionDecision{changed: true, commit: elapsed, bucket: bucket}
}
