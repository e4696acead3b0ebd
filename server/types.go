package server

import "github.com/ttsim/ttsim/bridge"

// Player is the session the server hands commands to. *bridge.Session implements it.
type Player interface {
	Play(command string) (bridge.Transcript, error)
	State() bridge.State
	PID() int
	Banner() string
}

// SessionStatus is the body of GET /session.
type SessionStatus struct {
	State  string
	PID    int
	Banner string
}

// PlayRequest is a client->server message on the /ws WebSocket.
type PlayRequest struct {
	Command string
}

// PlayResponse is a server->client message on the /ws WebSocket, one per PlayRequest.
// Error is set if the command failed, in which case Response may hold a partial response.
type PlayResponse struct {
	ID       string
	Request  string
	Response string
	Error    string `json:",omitempty"`
}

// Transcript returns the request followed by the response.
func (r *PlayResponse) Transcript() string {
	return r.Request + r.Response
}
