package mailer

import "time"

// SetSleep replaces the pause used between bulk items.
func (m *Mailer) SetSleep(f func(time.Duration)) { m.sleep = f }
