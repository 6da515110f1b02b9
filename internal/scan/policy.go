package scan

// Classify maps a probe outcome to the record status for mode. The bool
// reports whether the platform produces a record at all; Indeterminate never
// does.
func Classify(outcome Outcome, mode Mode) (Status, bool) {
	switch outcome {
	case Exists:
		if mode == Availability {
			return StatusTaken, false
		}
		return StatusFound, true
	case DoesNotExist:
		if mode == Availability {
			return StatusAvailable, true
		}
		return StatusNotFound, false
	default:
		return "", false
	}
}
