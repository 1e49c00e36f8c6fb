package bill

// CanScan reports whether another analysis is allowed
func CanScan(s Settings) bool {
	if s.IsPro {
		return true
	}
	return s.ScansUsed < s.MaxFreeScans
}

// RemainingScans is nil for pro installs
func RemainingScans(s Settings) *int {
	if s.IsPro {
		return nil
	}
	remaining := max(0, s.MaxFreeScans-s.ScansUsed)
	return &remaining
}
