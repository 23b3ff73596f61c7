package control

// idle is the value of every line when nothing drives it.
var idle = Signals{
	PCInc: 1,
}

// Defaults returns the idle control vector for pos: address latch closed,
// incrementer passing through, no bus driver, no cycle flags except Fetch,
// which mirrors M1, all transient latches clear and PC increment enabled.
func Defaults(pos Position) Signals {
	s := idle
	if pos.M&M1 != 0 {
		s[Fetch] = 1
	}
	return s
}
