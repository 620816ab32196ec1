package core

// Action represents a semantic player intent, abstracted from physical keys.
type Action int

const (
	ActionNone Action = iota
	ActionMoveLeft
	ActionMoveRight
	ActionSoftDrop
	ActionRotateCW
	ActionRotateCCW
	ActionHold
	ActionHardDrop
	ActionSurrender
	ActionConfirm // Enter in menus and result screens
	ActionBack    // Esc/B - leave to menu
	ActionRestart // R after game over
	ActionQuit    // Q, Ctrl+C
)

var actionNames = map[Action]string{
	ActionNone:      "None",
	ActionMoveLeft:  "MoveLeft",
	ActionMoveRight: "MoveRight",
	ActionSoftDrop:  "SoftDrop",
	ActionRotateCW:  "RotateCW",
	ActionRotateCCW: "RotateCCW",
	ActionHold:      "Hold",
	ActionHardDrop:  "HardDrop",
	ActionSurrender: "Surrender",
	ActionConfirm:   "Confirm",
	ActionBack:      "Back",
	ActionRestart:   "Restart",
	ActionQuit:      "Quit",
}

// String returns a human-readable name for the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "Unknown"
}

// IsGameplay reports whether the action drives the simulation
// rather than the surrounding UI.
func (a Action) IsGameplay() bool {
	return a >= ActionMoveLeft && a <= ActionSurrender
}
