package lifecycle

import "time"

// Window is the time after creation during which an order may be paid or
// have its shipping edited. Gateway sessions are issued with the same
// duration, so it must not change without reissuing them.
const Window = 15 * time.Minute

// Expired reports whether the payment window has elapsed at now.
func Expired(createdAt, now time.Time) bool {
	return now.Sub(createdAt) >= Window
}

// Deadline is the instant the window closes.
func Deadline(createdAt time.Time) time.Time {
	return createdAt.Add(Window)
}
