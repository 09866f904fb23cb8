package bootstrap

import (
	"sync"

	"github.com/ternbusty/kontainer-runtime/libcontainer/configs"
)

// globalState is the process-wide bootstrap state spec §3 describes:
// is_init_process and init_pid, set exactly once per process and read by
// the managed runtime after bootstrap returns. A struct with a mutex,
// rather than bare package vars, so concurrent reads from the managed
// runtime's own goroutines (started only after bootstrap returns, but
// still worth guarding) never race with the one write.
type globalState struct {
	mu      sync.Mutex
	isInit  bool
	initPID int
	handoff *configs.Config
}

var state globalState

func (s *globalState) setInit(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isInit = v
}

func (s *globalState) setInitPID(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initPID = pid
}

func (s *globalState) setHandoff(cfg *configs.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handoff = cfg
}

// IsInitProcess reports whether the calling process is the container's
// Stage-2/init process (spec §6's query API).
func IsInitProcess() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.isInit
}

// InitPID returns the Stage-2 pid as known to its kernel parent. It is
// meaningful only in the orchestrator-side ancestors (Stage-0, and the
// external orchestrator once Stage-0 forwards it) — in the Stage-2 process
// itself it is always zero, since Stage-2 never records its own pid here.
func InitPID() int {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.initPID
}

// HandoffConfig returns the configuration record Stage-2 built for the
// managed runtime, or nil if the calling process never reached Stage-2
// (e.g. a NORMAL-role process, or Stage-0/-1 themselves, which always
// exit before returning to any caller).
func HandoffConfig() *configs.Config {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.handoff
}
