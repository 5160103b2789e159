package domain

import "strings"

// Gaze is the discrete head direction of the tracked face
type Gaze string

const (
	GazeForward Gaze = "forward"
	GazeLeft    Gaze = "left"
	GazeRight   Gaze = "right"
	GazeUp      Gaze = "up"
	GazeDown    Gaze = "down"
)

// Label returns the operator-facing text, e.g. "Looking Left"
func (g Gaze) Label() string {
	if g == "" {
		return ""
	}
	return "Looking " + strings.ToUpper(string(g[:1])) + string(g[1:])
}

func (g Gaze) Valid() bool {
	switch g {
	case GazeForward, GazeLeft, GazeRight, GazeUp, GazeDown:
		return true
	}
	return false
}

// ParseGaze accepts both "left" and "Looking Left" forms
func ParseGaze(s string) (Gaze, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "looking ")
	g := Gaze(s)
	return g, g.Valid()
}
