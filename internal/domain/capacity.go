package domain

// reserveSlot and releaseSlot are the single capacity implementation shared
// by legacy group bookings and group sessions. Both fail without side
// effects, keeping 0 <= current <= max true after every call.

func reserveSlot(current, max int) (int, error) {
	if current >= max {
		return current, &CapacityError{Current: current, Max: max}
	}
	return current + 1, nil
}

func releaseSlot(current int) (int, error) {
	if current <= 0 {
		return current, &CapacityError{Current: current}
	}
	return current - 1, nil
}
