package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Wyydra/pairlink/internal/config"
	"github.com/Wyydra/pairlink/internal/core/domain"
	"github.com/Wyydra/pairlink/internal/core/service"
	"github.com/gorilla/websocket"
)

type testServer struct {
	*httptest.Server
	relay *service.RelayService
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.StaticDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	relay := service.NewRelayService(service.NewRegistry(cfg.BroadcastBuffer), service.SessionConfig{
		PingInterval:   cfg.PingInterval,
		NotifyPeerLeft: cfg.NotifyPeerLeft,
		EchoToSender:   cfg.EchoToSender,
	})
	srv := httptest.NewServer(NewHandler(relay, cfg).NewRouter())
	t.Cleanup(srv.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = relay.Stop(ctx)
	})
	return &testServer{Server: srv, relay: relay}
}

func (s *testServer) wsURL(roomID string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/" + roomID
}

func dial(t *testing.T, url string, header http.Header) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(url, header)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("Expected text frame, got type %d", mt)
	}
	return data
}

func expectAlert(t *testing.T, conn *websocket.Conn, detail string) {
	t.Helper()
	env := domain.Decode(readFrame(t, conn))
	if env != (domain.Alert{Detail: detail}) {
		t.Fatalf("Expected alert %q, got %+v", detail, env)
	}
}

// expectNoFrame leaves conn unusable for further reads.
func expectNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Unexpected frame %s", data)
	}
}

// joinPair connects two peers to roomID and consumes their admission alerts.
func joinPair(t *testing.T, s *testServer, roomID string) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	a := dial(t, s.wsURL(roomID), nil)
	expectAlert(t, a, domain.AlertCreated)

	b := dial(t, s.wsURL(roomID), nil)
	expectAlert(t, a, domain.AlertJoined)
	expectAlert(t, b, domain.AlertJoined)
	return a, b
}

func waitForMembers(t *testing.T, s *testServer, roomID domain.RoomID, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := 0
		for _, info := range s.relay.Rooms() {
			if info.ID == roomID {
				got = info.Members
			}
		}
		if got == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Room %q never reached %d members: %+v", roomID, want, s.relay.Rooms())
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Get(s.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestRelayBetweenTwoPeers(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := joinPair(t, s, "room1")

	t.Run("offer arrives unmodified", func(t *testing.T) {
		offer := `{"type":"offer","payload":{"type":"offer","sdp":"v=0\r\ns=-\r\n"}}`
		if err := a.WriteMessage(websocket.TextMessage, []byte(offer)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := string(readFrame(t, b)); got != offer {
			t.Errorf("Expected %s, got %s", offer, got)
		}
	})

	t.Run("answer flows back", func(t *testing.T) {
		answer := `{"type":"answer","payload":{"type":"answer","sdp":"v=0"}}`
		if err := b.WriteMessage(websocket.TextMessage, []byte(answer)); err != nil {
			t.Fatalf("write: %v", err)
		}
		if got := string(readFrame(t, a)); got != answer {
			t.Errorf("Expected %s, got %s", answer, got)
		}
	})

	t.Run("garbage, miscased and binary frames are dropped", func(t *testing.T) {
		_ = a.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = a.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		_ = a.WriteMessage(websocket.TextMessage, []byte("{\"type\":\"text\",\"payload\":{\"body\":\"\xff\xfe\"}}"))
		_ = a.WriteMessage(websocket.TextMessage, []byte(`{"TYPE":"ready"}`))
		_ = a.WriteMessage(websocket.TextMessage, []byte(`{"type":"ready"}`))

		if got := domain.Decode(readFrame(t, b)); got != (domain.Ready{}) {
			t.Errorf("Expected ready, got %+v", got)
		}
		expectNoFrame(t, a)
	})
}

func TestThirdPeerIsRejected(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := joinPair(t, s, "room1")

	c := dial(t, s.wsURL("room1"), nil)
	expectAlert(t, c, domain.AlertFull)

	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("Expected normal close after rejection, got %v", err)
	}

	expectNoFrame(t, a)
	expectNoFrame(t, b)
	waitForMembers(t, s, "room1", 2)
}

func TestDisconnectFreesSlot(t *testing.T) {
	s := newTestServer(t, nil)
	a, b := joinPair(t, s, "room1")

	_ = a.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = a.Close()
	waitForMembers(t, s, "room1", 1)

	c := dial(t, s.wsURL("room1"), nil)
	expectAlert(t, c, domain.AlertJoined)
	expectAlert(t, b, domain.AlertJoined)
}

func TestPeerLeftNotice(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.NotifyPeerLeft = true })
	a, b := joinPair(t, s, "room1")

	_ = a.Close()
	expectAlert(t, b, domain.AlertLeft)
}

func TestRoomsAreIsolated(t *testing.T) {
	s := newTestServer(t, nil)
	a1, b1 := joinPair(t, s, "room1")
	_, b2 := joinPair(t, s, "Room1")

	_ = a1.WriteMessage(websocket.TextMessage, []byte(`{"type":"text","payload":{"body":"only room1"}}`))
	if got := domain.Decode(readFrame(t, b1)); got != (domain.Text{Body: "only room1"}) {
		t.Errorf("Expected text in room1, got %+v", got)
	}
	expectNoFrame(t, b2)
}

func TestListRooms(t *testing.T) {
	s := newTestServer(t, nil)
	joinPair(t, s, "room1")
	a := dial(t, s.wsURL("lonely"), nil)
	expectAlert(t, a, domain.AlertCreated)

	resp, err := http.Get(s.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("GET /api/rooms: %v", err)
	}
	defer resp.Body.Close()

	var rooms []domain.RoomInfo
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []domain.RoomInfo{{ID: "lonely", Members: 1}, {ID: "room1", Members: 2}}
	if len(rooms) != len(want) || rooms[0] != want[0] || rooms[1] != want[1] {
		t.Errorf("Expected %+v, got %+v", want, rooms)
	}
}

func TestOriginPolicy(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.AllowedOrigins = []string{"https://app.example"}
	})

	t.Run("allowed origin", func(t *testing.T) {
		h := http.Header{}
		h.Set("Origin", "https://APP.example")
		conn := dial(t, s.wsURL("o1"), h)
		expectAlert(t, conn, domain.AlertCreated)
	})

	t.Run("no origin header", func(t *testing.T) {
		conn := dial(t, s.wsURL("o2"), nil)
		expectAlert(t, conn, domain.AlertCreated)
	})

	t.Run("disallowed origin", func(t *testing.T) {
		h := http.Header{}
		h.Set("Origin", "https://evil.example")
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		conn, resp, err := dialer.Dial(s.wsURL("o3"), h)
		if err == nil {
			conn.Close()
			t.Fatal("Expected handshake to fail")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Errorf("Expected 403, got %v", resp)
		}
		if resp != nil {
			resp.Body.Close()
		}
	})
}

func TestStaticAssets(t *testing.T) {
	var dir string
	s := newTestServer(t, func(cfg *config.Config) { dir = cfg.StaticDir })
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>lobby</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{"/", "/public/index.html"} {
		resp, err := http.Get(s.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "lobby") {
			t.Errorf("GET %s: status %d body %q", path, resp.StatusCode, body)
		}
	}
}
