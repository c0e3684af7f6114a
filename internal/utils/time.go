package utils

import "time"

// CurrentTime returns the current UTC time truncated to whole seconds, the
// precision stored for created_at and updated_at.
func CurrentTime() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
