package server

// Announcer words the system chat lines for players joining and leaving.
type Announcer interface {
	JoinMessage(name string) string
	LeaveMessage(name string) string
}

type defaultAnnouncer struct{}

func (defaultAnnouncer) JoinMessage(name string) string  { return name + " has connected" }
func (defaultAnnouncer) LeaveMessage(name string) string { return name + " has disconnected" }

// DefaultAnnouncer returns the built-in wording.
func DefaultAnnouncer() Announcer { return defaultAnnouncer{} }
