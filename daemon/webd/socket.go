package webd

import (
	"encoding/json"
	"github.com/olahol/melody"
	"github.com/rotblauer/catfuse/fusion"
)

type websocketAction string

const (
	websocketActionOutput     websocketAction = "output"
	websocketActionVisibility websocketAction = "visibility"
)

const sessionVisibilityKey = "visibility"

type broadcast struct {
	Action websocketAction `json:"action"`
	Output fusion.Output   `json:"output"`
}

// visibility is a client's choice of which positions it wants pushed.
type visibility struct {
	Measured  bool `json:"measured"`
	Estimated bool `json:"estimated"`
}

// apply strips the positions the client does not want.
// Outputs with nothing left to show are reported as !ok.
func (v visibility) apply(o fusion.Output) (fusion.Output, bool) {
	if !v.Measured {
		o.Measured = nil
	}
	if !v.Estimated {
		o.Estimated = nil
	}
	return o, o.Measured != nil || o.Estimated != nil
}

type visibilityMessage struct {
	Action websocketAction `json:"action"`
	visibility
}

func (s *WebDaemon) defaultVisibility() visibility {
	return visibility{Measured: s.Config.ShowMeasured, Estimated: s.Config.ShowEstimated}
}

func (s *WebDaemon) sessionVisibility(sess *melody.Session) visibility {
	if v, ok := sess.Get(sessionVisibilityKey); ok {
		if vis, ok := v.(visibility); ok {
			return vis
		}
	}
	return s.defaultVisibility()
}

func marshalOutput(o fusion.Output) ([]byte, error) {
	return json.Marshal(broadcast{Action: websocketActionOutput, Output: o})
}

// initMelody sets up the websocket handler.
func (s *WebDaemon) initMelody() {
	s.melodyInstance = melody.New()

	// Catch new clients up with the recent outputs.
	s.melodyInstance.HandleConnect(func(sess *melody.Session) {
		s.logger.Info("Websocket connected", "remote", sess.Request.RemoteAddr)
		vis := s.sessionVisibility(sess)
		for _, o := range s.recent.Get() {
			o, ok := vis.apply(o)
			if !ok {
				continue
			}
			b, err := marshalOutput(o)
			if err != nil {
				s.logger.Error("Failed to marshal output", "error", err)
				continue
			}
			if err := sess.Write(b); err != nil {
				s.logger.Warn("Failed to write output", "error", err)
				return
			}
		}
	})

	s.melodyInstance.HandleMessage(func(sess *melody.Session, msg []byte) {
		var m visibilityMessage
		if err := json.Unmarshal(msg, &m); err != nil || m.Action != websocketActionVisibility {
			s.logger.Debug("Websocket message dropped", "message", string(msg))
			return
		}
		sess.Set(sessionVisibilityKey, m.visibility)
		s.logger.Debug("Websocket visibility",
			"remote", sess.Request.RemoteAddr, "measured", m.Measured, "estimated", m.Estimated)
	})

	s.melodyInstance.HandleDisconnect(func(sess *melody.Session) {
		s.logger.Info("Websocket disconnected", "remote", sess.Request.RemoteAddr)
	})

	s.melodyInstance.HandleError(func(sess *melody.Session, e error) {
		s.logger.Warn("Websocket error", "error", e, "remote", sess.Request.RemoteAddr)
	})
}

var visibilities = []visibility{
	{Measured: true, Estimated: true},
	{Measured: true, Estimated: false},
	{Measured: false, Estimated: true},
}

// broadcastLoop pushes scheduler outputs, as they arrive, to all connected
// clients until the subscription ends.
func (s *WebDaemon) broadcastLoop() {
	defer close(s.done)
	for {
		select {
		case o := <-s.outputs:
			s.recent.Add(o)
			if s.melodyInstance.IsClosed() || s.melodyInstance.Len() == 0 {
				continue
			}
			for _, vis := range visibilities {
				out, ok := vis.apply(o)
				if !ok {
					continue
				}
				b, err := marshalOutput(out)
				if err != nil {
					s.logger.Error("Failed to marshal output", "error", err)
					break
				}
				want := vis
				err = s.melodyInstance.BroadcastFilter(b, func(sess *melody.Session) bool {
					return s.sessionVisibility(sess) == want
				})
				if err != nil {
					s.logger.Warn("Failed to broadcast output", "error", err)
				}
			}
		case err, ok := <-s.sub.Err():
			if ok && err != nil {
				s.logger.Error("Output subscription failed", "error", err)
			}
			return
		}
	}
}
