package handlers

import (
	"context"

	fws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DartinBot/Khyrie-sub002/internal/websocket"
)

// RequireSessionUpgrade guards GET /ws/sessions/:id/leaderboard: the request must be a
// WebSocket handshake for a session the caller can see, i.e. one in a club they belong to.
func RequireSessionUpgrade(d *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !fws.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		sessionID, err := paramID(c, "id", "Session not found")
		if err != nil {
			return err
		}
		if ok, err := d.requireSessionViewer(c, sessionID); !ok {
			return err
		}
		return c.Next()
	}
}

// LiveLeaderboard streams a session's leaderboard. The client gets the current standings
// on connect, then a fresh snapshot after every sync in that session.
//
// conn is only valid until this function returns (the contrib package pools it), so
// every goroutine touching it must finish first:
//
//	handler goroutine: reads until the client goes away, then unregisters
//	writer goroutine:  drains client.Send; closes conn when Send closes or a write fails
//
// Closing conn unblocks the reader, and unregistering closes Send, which stops the writer.
// The handler waits for the writer before returning.
func LiveLeaderboard(d *Deps) fiber.Handler {
	return fws.New(func(conn *fws.Conn) {
		sessionID, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			return
		}

		client := websocket.NewClient(sessionID.String())
		if !d.Hub.Register(client) {
			return
		}

		if snapshot, err := d.leaderboardSnapshot(context.Background(), sessionID); err == nil {
			if err := conn.WriteMessage(fws.TextMessage, snapshot); err != nil {
				d.Hub.Unregister(client)
				return
			}
		} else {
			d.Log.Warn("initial leaderboard snapshot", zap.Error(err))
		}

		// From here on only the writer goroutine writes to conn.
		written := make(chan struct{})
		go func() {
			defer close(written)
			// Dropped by the hub (slow or shutting down) or a dead socket: either way
			// the connection is finished, and closing it wakes the reader below.
			defer conn.Close()
			for msg := range client.Send {
				if err := conn.WriteMessage(fws.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// Viewers never send anything meaningful; reading only detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		d.Hub.Unregister(client)
		<-written
	})
}
