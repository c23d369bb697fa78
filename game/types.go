package game

import (
	"fmt"
	"strings"
)

// Position is a player's directional exposure.
type Position string

const (
	PositionNone  Position = ""
	PositionLong  Position = "long"
	PositionShort Position = "short"
)

// Opposite returns the direction a reverse flips into.
func (p Position) Opposite() Position {
	switch p {
	case PositionLong:
		return PositionShort
	case PositionShort:
		return PositionLong
	default:
		return PositionNone
	}
}

func (p Position) IsOpen() bool {
	return p == PositionLong || p == PositionShort
}

// ActionKind is the closed set of player actions accepted by the engine.
type ActionKind int

const (
	ActionOpenLong ActionKind = iota + 1
	ActionOpenShort
	ActionClose
	ActionReverse
	ActionDouble
	ActionTrim
)

var actionNames = map[ActionKind]string{
	ActionOpenLong:  "open-long",
	ActionOpenShort: "open-short",
	ActionClose:     "close",
	ActionReverse:   "reverse",
	ActionDouble:    "double",
	ActionTrim:      "trim",
}

// Button custom ids sent by the chat client.
var actionButtons = map[string]ActionKind{
	"buy_share":  ActionOpenLong,
	"sell_share": ActionOpenShort,
	"close":      ActionClose,
	"reverse":    ActionReverse,
	"double":     ActionDouble,
	"trim":       ActionTrim,
}

func (a ActionKind) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a ActionKind) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// Direction returns the position an opening action creates.
func (a ActionKind) Direction() Position {
	switch a {
	case ActionOpenLong:
		return PositionLong
	case ActionOpenShort:
		return PositionShort
	default:
		return PositionNone
	}
}

// ParseActionKind maps a button custom id or canonical action name to an ActionKind.
func ParseActionKind(raw string) (ActionKind, error) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if kind, ok := actionButtons[id]; ok {
		return kind, nil
	}
	for kind, name := range actionNames {
		if name == id {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", raw)
}
