package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/brainboard/internal/errs"
	"github.com/and161185/brainboard/internal/model"
	"github.com/and161185/brainboard/internal/realtime"
)

// handleFeed upgrades to a websocket and writes every matching change as one JSON text
// frame. Query: entity (repeatable) narrows the kinds, node narrows node-scoped rows.
// Incoming frames are discarded.
func (a *API) handleFeed(w http.ResponseWriter, r *http.Request) {
	uid, boardID, err := a.authorize(r, model.RoleViewer)
	if err != nil {
		a.respondErr(w, "feed", err)
		return
	}
	q := r.URL.Query()
	var nodeID uuid.UUID
	if s := q.Get("node"); s != "" {
		if nodeID, err = uuid.FromString(s); err != nil {
			a.respondErr(w, "feed", errs.ErrInvalidArgument)
			return
		}
	}
	filter, err := realtime.ParseFilter(q["entity"], nodeID)
	if err != nil {
		a.respondErr(w, "feed", err)
		return
	}

	sub := a.cfg.Feed.Subscribe(boardID, filter)
	defer sub.Close()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied.
		a.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	log := a.log.With(zap.Stringer("board", boardID), zap.Stringer("user", uid))

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(a.cfg.PingInterval)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(a.cfg.WriteTimeout)); err != nil {
				return
			}
		case ch, ok := <-sub.C:
			if !ok {
				code, text := websocket.CloseNormalClosure, ""
				switch err := sub.Err(); {
				case errors.Is(err, realtime.ErrSlowConsumer):
					log.Warn("feed dropped")
					code, text = websocket.CloseTryAgainLater, err.Error()
				case errors.Is(err, realtime.ErrHubClosed):
					code, text = websocket.CloseGoingAway, err.Error()
				}
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text),
					time.Now().Add(a.cfg.WriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout))
			if err := conn.WriteJSON(ch); err != nil {
				log.Debug("feed write failed", zap.Error(err))
				return
			}
		}
	}
}
