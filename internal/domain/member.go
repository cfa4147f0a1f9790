// Package domain contains entity without logic, just meta-data
package domain

// Position is a point in the shared 2D space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Player is the presence state peers can see.
// No transport or lifecycle logic here.
type Player struct {
	// Username is the display name exactly as the client sent it. Not unique.
	Username string
	// Position stays nil until the first move.
	Position *Position
	OnStage  bool
}

// PositionOrOrigin reports the last known position, or {0,0} when the player never moved.
func (p Player) PositionOrOrigin() Position {
	if p.Position == nil {
		return Position{}
	}
	return *p.Position
}
