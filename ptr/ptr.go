package ptr

import "time"

func String(s string) *string {
	return &s
}

func Time(t time.Time) *time.Time {
	return &t
}

// NonEmptyString returns nil for an empty string so optional fields stay unset.
func NonEmptyString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
