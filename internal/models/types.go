// Package models defines the wire protocol between the match server and
// its websocket clients. Everything here is JSON in, JSON out; the rules
// engine never imports this package.
package models

import (
	"github.com/pefman/w40k-tabletop/internal/phases"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Client-to-server message types.
const (
	MsgJoin   = "join"
	MsgAction = "action"
	MsgState  = "state"
	MsgLegal  = "legal_actions"
)

// Server-to-client message types.
const (
	MsgJoined   = "joined"
	MsgResult   = "result"
	MsgEvent    = "event"
	MsgSnapshot = "snapshot"
	MsgActions  = "actions"
	MsgError    = "error"
)

// Envelope is the single websocket frame shape in both directions.
type Envelope struct {
	Type string `json:"type"`
	// Join
	Name string `json:"name,omitempty"`
	// Action carries the player-submitted action on MsgAction frames.
	Action *phases.Action `json:"action,omitempty"`
	// Result / events / snapshot on server frames.
	Result  *phases.Result      `json:"result,omitempty"`
	Event   *phases.Event       `json:"event,omitempty"`
	Game    *state.Game         `json:"game,omitempty"`
	Actions []phases.Descriptor `json:"actions,omitempty"`
	// Joined
	Player int    `json:"player,omitempty"`
	Room   string `json:"room,omitempty"`
	// Error
	Error string `json:"error,omitempty"`
}

// RoomSummary is what the lobby endpoint reports per open match.
type RoomSummary struct {
	ID      string `json:"id"`
	Players int    `json:"players"`
	Phase   string `json:"phase"`
	Round   int    `json:"round"`
	Actor   int    `json:"actor"`
	Ended   bool   `json:"ended"`
	Created int64  `json:"created"`
}
