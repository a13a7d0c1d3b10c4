package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/doorwatch/internal/config"
	"github.com/relabs-tech/doorwatch/internal/telemetry"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboard pages are served from other hosts on the LAN
	},
}

// doorView holds the latest snapshot seen on the broker and fans it out to
// WebSocket clients.
type doorView struct {
	mu   sync.RWMutex
	last telemetry.Snapshot
	have bool
	subs map[chan telemetry.Snapshot]struct{}
}

func newDoorView() *doorView {
	return &doorView{subs: make(map[chan telemetry.Snapshot]struct{})}
}

func (v *doorView) update(s telemetry.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.last = s
	v.have = true
	for ch := range v.subs {
		select {
		case ch <- s:
		default:
			// slow client, it will catch up with the next snapshot
		}
	}
}

func (v *doorView) latest() (telemetry.Snapshot, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last, v.have
}

func (v *doorView) subscribe() (<-chan telemetry.Snapshot, func()) {
	ch := make(chan telemetry.Snapshot, 4)
	v.mu.Lock()
	v.subs[ch] = struct{}{}
	v.mu.Unlock()
	return ch, func() {
		v.mu.Lock()
		delete(v.subs, ch)
		v.mu.Unlock()
	}
}

// handleSnapshot is the MQTT handler for the snapshot topic.
func (v *doorView) handleSnapshot(_ mqtt.Client, msg mqtt.Message) {
	var s telemetry.Snapshot
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		logrus.Warnf("web: snapshot unmarshal error: %v", err)
		return
	}
	v.update(s)
}

// WSMessage is sent by browser clients.
type WSMessage struct {
	Action string `json:"action"` // calibrate, enable, disable
}

// WSResponse is sent to browser clients.
type WSResponse struct {
	Type     string              `json:"type"` // snapshot, ack, error
	Snapshot *telemetry.Snapshot `json:"snapshot,omitempty"`
	Action   string              `json:"action,omitempty"`
	Message  string              `json:"message,omitempty"`
}

type wsSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSession) send(resp WSResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(resp)
}

func newWebHandler(view *doorView, cmds *Commander) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/door", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := view.latest()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(snap); err != nil {
			logrus.Warnf("web: json encode error: %v", err)
		}
	})

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.Warnf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()
		serveWS(&wsSession{conn: conn}, view, cmds)
	})

	return mux
}

// serveWS pushes every snapshot to the client and executes the actions it
// sends until the connection closes.
func serveWS(s *wsSession, view *doorView, cmds *Commander) {
	updates, cancel := view.subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg WSMessage
			if err := s.conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.Debugf("web: websocket read error: %v", err)
				}
				return
			}
			resp := WSResponse{Type: "ack", Action: msg.Action}
			if err := cmds.Do(msg.Action); err != nil {
				resp = WSResponse{Type: "error", Action: msg.Action, Message: err.Error()}
			}
			if err := s.send(resp); err != nil {
				return
			}
		}
	}()

	if snap, ok := view.latest(); ok {
		if err := s.send(WSResponse{Type: "snapshot", Snapshot: &snap}); err != nil {
			return
		}
	}
	for {
		select {
		case <-done:
			return
		case snap := <-updates:
			if err := s.send(WSResponse{Type: "snapshot", Snapshot: &snap}); err != nil {
				return
			}
		}
	}
}

// RunWeb mirrors the published door state over HTTP until ctx is cancelled.
func RunWeb(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectMS)

	view := newDoorView()
	if err := subscribe(client, telemetry.SnapshotTopic(cfg.TopicPrefix), view.handleSnapshot); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           newWebHandler(view, NewCommander(client, cfg.TopicPrefix)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("web server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "web server")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
