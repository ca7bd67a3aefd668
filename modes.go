package register

// Mode is the process-wide verification policy. It controls how many
// confirmations an account needs before it becomes active.
type Mode = string

const (
	// ModeNone activates accounts immediately on registration, no token issued
	ModeNone Mode = "NONE"
	// ModeOneStep requires the channel owner to confirm a verification token
	ModeOneStep Mode = "ONE_STEP"
	// ModeTwoStep additionally requires a supervisor approbation
	ModeTwoStep Mode = "TWO_STEP"
)

// IsValidMode checks the mode is one of the predefined policies
func IsValidMode(m Mode) bool {
	switch m {
	case ModeNone, ModeOneStep, ModeTwoStep:
		return true
	default:
		return false
	}
}

// RequiresVerification reports whether the mode gates activation behind at
// least one confirmation step.
func RequiresVerification(m Mode) bool {
	return m == ModeOneStep || m == ModeTwoStep
}

// ParseMode safely parses a string into a Mode
func ParseMode(raw string) (Mode, bool) {
	m := Mode(raw)
	return m, IsValidMode(m)
}

// AllModes returns the recognized verification policies
func AllModes() []Mode {
	return []Mode{ModeNone, ModeOneStep, ModeTwoStep}
}
