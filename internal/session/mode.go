package session

// Mode is the controller's scheduling state. Autonomous trading is a
// persistent choice that survives a backtest, so the backtest states
// remember which mode to return to.
type Mode int

const (
	Passive Mode = iota
	Autonomous
	BacktestFromPassive
	BacktestFromAutonomous
)

func (m Mode) String() string {
	switch m {
	case Passive:
		return "PASSIVE"
	case Autonomous:
		return "AUTONOMOUS"
	case BacktestFromPassive, BacktestFromAutonomous:
		return "BACKTEST"
	default:
		return "UNKNOWN"
	}
}

// MarshalText reports the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Autonomous reports whether autonomous trading is enabled, including the
// setting that will resume after a running backtest.
func (m Mode) Autonomous() bool {
	return m == Autonomous || m == BacktestFromAutonomous
}

// Backtesting reports whether a backtest owns the schedule.
func (m Mode) Backtesting() bool {
	return m == BacktestFromPassive || m == BacktestFromAutonomous
}

// WithAutonomous sets the autonomous flag without leaving a backtest.
func (m Mode) WithAutonomous(enabled bool) Mode {
	switch {
	case m.Backtesting() && enabled:
		return BacktestFromAutonomous
	case m.Backtesting():
		return BacktestFromPassive
	case enabled:
		return Autonomous
	default:
		return Passive
	}
}

// BeginBacktest enters the backtest state. It reports false if a backtest
// is already running.
func (m Mode) BeginBacktest() (Mode, bool) {
	switch m {
	case Passive:
		return BacktestFromPassive, true
	case Autonomous:
		return BacktestFromAutonomous, true
	default:
		return m, false
	}
}

// EndBacktest returns to the mode that was active before the backtest.
func (m Mode) EndBacktest() Mode {
	switch m {
	case BacktestFromPassive:
		return Passive
	case BacktestFromAutonomous:
		return Autonomous
	default:
		return m
	}
}
