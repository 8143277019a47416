package campaigns

// State is a status plus, for paused campaigns, its reason.
type State struct {
	Status      Status
	PauseReason PauseReason
}

// Matches reports whether c is in state s. An empty PauseReason matches any reason.
func (s State) Matches(c Campaign) bool {
	if c.Status != s.Status {
		return false
	}
	return s.PauseReason == "" || s.PauseReason == c.PauseReason
}

func matchesAny(c Campaign, from []State) bool {
	for _, s := range from {
		if s.Matches(c) {
			return true
		}
	}
	return false
}

// Source states for each lifecycle command. Every status write is a
// compare-and-set against one of these lists so a control command and the
// engine cannot overwrite each other.
var (
	fromStart  = []State{{Status: StatusIdle}, {Status: StatusError}}
	fromPause  = []State{{Status: StatusRunning}, {Status: StatusPaused, PauseReason: PauseOutsideWindow}, {Status: StatusPaused, PauseReason: PauseDailyCap}}
	fromResume = []State{{Status: StatusPaused}}
	fromStop   = []State{{Status: StatusRunning}, {Status: StatusPaused}, {Status: StatusError}}

	fromSoftPause  = []State{{Status: StatusRunning}, {Status: StatusPaused, PauseReason: PauseOutsideWindow}, {Status: StatusPaused, PauseReason: PauseDailyCap}}
	fromAutoResume = []State{{Status: StatusPaused, PauseReason: PauseOutsideWindow}, {Status: StatusPaused, PauseReason: PauseDailyCap}}
	fromComplete   = []State{{Status: StatusRunning}}
	fromFail       = []State{{Status: StatusRunning}, {Status: StatusPaused}}
)

// Schedulable reports whether the engine should look at c on a tick.
func Schedulable(c Campaign) bool {
	return c.Status == StatusRunning || (c.Status == StatusPaused && c.PauseReason.Scheduling())
}
