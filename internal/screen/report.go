package screen

import (
	"fmt"
	"strings"
	"sync"
)

// Abandoned is a security (or a whole board group) the run gave up on.
type Abandoned struct {
	SecID  string `json:"secid"`
	Group  int    `json:"group"`
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// runState holds the counters of one run. The heartbeat reads them from its own goroutine.
type runState struct {
	mu        sync.Mutex
	scanned   int
	passed    int
	accepted  int
	errors    int
	abandoned []Abandoned
}

func (st *runState) addError() {
	st.mu.Lock()
	st.errors++
	st.mu.Unlock()
}

func (st *runState) addScanned(passedBase bool) {
	st.mu.Lock()
	st.scanned++
	if passedBase {
		st.passed++
	}
	st.mu.Unlock()
}

func (st *runState) addAccepted() {
	st.mu.Lock()
	st.accepted++
	st.mu.Unlock()
}

func (st *runState) abandon(a Abandoned) {
	st.mu.Lock()
	st.abandoned = append(st.abandoned, a)
	st.mu.Unlock()
}

func (st *runState) snapshot() (scanned, passed, accepted, errors int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.scanned, st.passed, st.accepted, st.errors
}

func joinAbandonedReasons(list []Abandoned) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	for i, a := range list {
		if i > 0 {
			b.WriteString("; ")
		}
		if a.SecID != "" {
			b.WriteString(a.SecID)
		} else {
			fmt.Fprintf(&b, "group %d", a.Group)
		}
		b.WriteString(" [")
		b.WriteString(a.Stage)
		b.WriteString("]: ")
		b.WriteString(a.Reason)
		if i >= 4 && len(list) > 6 {
			fmt.Fprintf(&b, " (+%d more)", len(list)-5)
			break
		}
	}
	return b.String()
}
