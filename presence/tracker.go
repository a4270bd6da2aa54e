package presence

// State is the externally observable occupancy of a zone.
type State int

const (
	Unknown State = iota
	Present
	Absent
)

func (s State) String() string {
	switch s {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "unknown"
	}
}

// Transition is what a cycle asks the caller to publish.
type Transition int

const (
	None Transition = iota
	In
	Out
)

// String returns the wire value published for the transition.
func (t Transition) String() string {
	switch t {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return ""
	}
}

// Observation is one scan cycle's view of the target device.
type Observation struct {
	RSSI     int
	Observed bool
}

func Seen(rssi int) Observation { return Observation{RSSI: rssi, Observed: true} }

func Missed() Observation { return Observation{} }

type Config struct {
	Threshold    int  `mapstructure:"threshold"`
	Cap          int  `mapstructure:"cap"`
	MissLimit    int  `mapstructure:"miss_limit"`
	MissRecovery bool `mapstructure:"miss_recovery"`
}

func DefaultConfig() Config {
	return Config{
		Threshold:    -80,
		Cap:          3,
		MissLimit:    3,
		MissRecovery: true,
	}
}

// Tracker debounces per-cycle RSSI observations into in/out transitions.
// It is not safe for concurrent use; it belongs to one polling loop.
type Tracker struct {
	cfg           Config
	presentStreak int
	absentStreak  int
	missed        int
	last          int
	published     bool
	state         State
}

func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.Cap <= 0 {
		cfg.Cap = def.Cap
	}
	if cfg.MissLimit <= 0 {
		cfg.MissLimit = def.MissLimit
	}
	return &Tracker{cfg: cfg}
}

// Step feeds one cycle into the tracker and returns the transition to publish,
// or None.
func (t *Tracker) Step(obs Observation) Transition {
	if obs.Observed {
		t.missed = 0
		if obs.RSSI > t.cfg.Threshold {
			t.presentStreak = saturate(t.presentStreak, t.cfg.Cap)
			t.absentStreak = 0
		} else {
			t.absentStreak = saturate(t.absentStreak, t.cfg.Cap)
			t.presentStreak = 0
		}
	}

	switch {
	case t.presentStreak > 0 && t.presentStreak != t.last:
		t.last = t.presentStreak
		if !t.published {
			t.published = true
			t.state = Present
			return In
		}
	case t.absentStreak > 0 && t.absentStreak != t.last:
		t.last = t.absentStreak
		if t.published {
			t.published = false
			t.state = Absent
			return Out
		}
	default:
		t.missed = saturate(t.missed, t.cfg.MissLimit)
		if t.missed > 1 && t.published && t.cfg.MissRecovery && t.missed%t.cfg.MissLimit == 0 {
			// device left range without ever reporting a weak sample
			t.published = false
			t.presentStreak = 0
			t.absentStreak = 0
			t.state = Absent
			return Out
		}
	}
	return None
}

// ResetStreaks clears the counters but keeps the published state, so a
// reconnect does not re-announce a room that was already reported.
func (t *Tracker) ResetStreaks() {
	t.presentStreak = 0
	t.absentStreak = 0
	t.missed = 0
}

func (t *Tracker) State() State { return t.state }

func (t *Tracker) Streaks() (present, absent int) { return t.presentStreak, t.absentStreak }

func (t *Tracker) MissedCycles() int { return t.missed }

func (t *Tracker) Published() bool { return t.published }

func saturate(v, limit int) int {
	if v >= limit {
		return limit
	}
	return v + 1
}
