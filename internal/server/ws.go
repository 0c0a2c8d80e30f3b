package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/recallhq/recall/internal/events"
	"github.com/recallhq/recall/internal/model"
)

const writeDeadline = 10 * time.Second

// welcomeFrame tells a freshly connected client its transport-assigned
// player identity. Clients pass the id back on reconnect to reclaim their
// seat.
type welcomeFrame struct {
	Type     string    `json:"type"`
	RoomID   uuid.UUID `json:"roomId"`
	PlayerID uuid.UUID `json:"playerId"`
}

// handleWS upgrades the connection and runs the read/write pumps for one
// client. Every inbound frame is a typed action; PlayerID on inbound
// actions is server-assigned, never trusted from the wire.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID, err := uuid.Parse(r.URL.Query().Get("room"))
	if err != nil {
		http.Error(w, "missing or invalid room id", http.StatusBadRequest)
		return
	}
	rm := s.Room(roomID)
	if rm == nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	playerID := uuid.New()
	if raw := r.URL.Query().Get("player"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, "invalid player id", http.StatusBadRequest)
			return
		}
		playerID = id
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.log.WithError(err).Warn("ws: accept failed")
		return
	}

	c := &client{
		server:   s,
		conn:     conn,
		roomID:   roomID,
		playerID: playerID,
		log: s.log.WithFields(logrus.Fields{
			"room_id":   roomID,
			"player_id": playerID,
		}),
	}
	c.run(r.Context())
}

// client is one websocket session bound to a room and a player identity.
type client struct {
	server   *Server
	conn     *websocket.Conn
	roomID   uuid.UUID
	playerID uuid.UUID
	log      *logrus.Entry
}

func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	if err := c.writeJSON(ctx, welcomeFrame{
		Type:     "welcome",
		RoomID:   c.roomID,
		PlayerID: c.playerID,
	}); err != nil {
		return
	}

	sub, unsubscribe := c.server.bus.Subscribe()
	defer unsubscribe()
	go c.writePump(ctx, cancel, sub)
	c.readPump(ctx)
}

// readPump decodes inbound frames and funnels them into the room's queue.
// A dead connection marks the player disconnected through the same action
// path a deliberate leave would take.
func (c *client) readPump(ctx context.Context) {
	rm := c.server.Room(c.roomID)
	for {
		_, raw, err := c.conn.Read(ctx)
		if err != nil {
			c.log.WithError(err).Debug("ws: connection closed")
			if rm != nil {
				rm.Submit(&model.Action{
					Type:     model.ActionLeaveGame,
					PlayerID: c.playerID,
					At:       time.Now(),
					Leave:    &model.LeaveGame{Reason: "connection_lost"},
				})
			}
			return
		}

		a, err := model.DecodeAction(raw)
		if err != nil {
			c.log.WithError(err).Warn("ws: malformed action frame")
			continue
		}
		a.PlayerID = c.playerID
		a.At = time.Now()
		if rm == nil {
			rm = c.server.Room(c.roomID)
			if rm == nil {
				return
			}
		}
		rm.Submit(a)
	}
}

// writePump forwards this client's slice of the event stream: broadcasts
// for its room plus events addressed to its player.
func (c *client) writePump(ctx context.Context, cancel context.CancelFunc, sub <-chan events.Event) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if ev.RoomID != c.roomID {
				continue
			}
			if ev.Recipient != nil && *ev.Recipient != c.playerID {
				continue
			}
			if err := c.writeJSON(ctx, ev); err != nil {
				c.log.WithError(err).Debug("ws: write failed")
				return
			}
		}
	}
}

func (c *client) writeJSON(ctx context.Context, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeDeadline)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, raw)
}
