package server

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// playWS plays every PlayRequest received on the WebSocket and answers each with a PlayResponse.
// Commands from all connections and from POST /play go through the same session, one at a time.
func (s *Server) playWS(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		s.log.Debugf("error accepting WebSocket conn: %s", err)
		return
	}
	s.log.Debug("accepted WebSocket conn")
	defer conn.Close(websocket.StatusInternalError, "")

	// leave room for the JSON envelope around the command
	conn.SetReadLimit(s.maxCommandBytes + 1024)

	ctx := r.Context()
	for {
		var req PlayRequest
		err := wsjson.Read(ctx, conn, &req)
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			s.log.Debug("WebSocket closed by client")
			return
		}
		if err != nil {
			s.log.Debugf("error reading play request: %s", err)
			return
		}

		t, err := s.player.Play(req.Command)
		resp := PlayResponse{
			ID:       t.ID,
			Request:  t.Request,
			Response: t.Response,
		}
		if err != nil {
			s.log.Infow("play failed", "ID", t.ID, "Error", err)
			resp.Error = err.Error()
		}

		err = wsjson.Write(ctx, conn, resp)
		if err != nil {
			s.log.Debugf("error writing play response: %s", err)
			return
		}
	}
}
