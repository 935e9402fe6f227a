package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaymepena/debatelords/go/internal/models"
	"github.com/jaymepena/debatelords/go/internal/overlay/events"
)

// echoHandler applies score updates to an in-memory snapshot and broadcasts
// them back through the gateway.
type echoHandler struct {
	mu       sync.Mutex
	svc      *Service
	snapshot models.Blob
	received []events.Type
	names    []string
}

func (h *echoHandler) Join(deliver func(*events.Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ev, err := events.New(events.TypeInitData, h.snapshot)
	if err != nil {
		panic(err)
	}
	deliver(ev)
}

func (h *echoHandler) HandleEvent(_ context.Context, ev *events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.received = append(h.received, ev.Type)

	payload, err := events.ParsePayload(ev)
	if err != nil {
		return err
	}
	if p, ok := payload.(*events.NamePayload); ok {
		h.names = append(h.names, p.Name)
	}
	if p, ok := payload.(*events.ScorePayload); ok {
		h.snapshot.Scores[p.Panel] = p.Score
		out, err := events.New(events.TypeUpdateScore, p)
		if err != nil {
			return err
		}
		h.svc.Broadcast(out)
	}
	return nil
}

func (h *echoHandler) Snapshot() models.Blob {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot.Clone()
}

func (h *echoHandler) receivedNames() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.names...)
}

func (h *echoHandler) types() []events.Type {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]events.Type(nil), h.received...)
}

type recordingMirror struct {
	mu     sync.Mutex
	events []events.Type
}

func (m *recordingMirror) Publish(ev *events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev.Type)
}

func (m *recordingMirror) types() []events.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]events.Type(nil), m.events...)
}

type harness struct {
	svc     *Service
	handler *echoHandler
	mirror  *recordingMirror
	server  *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithConfig(t, DefaultConfig())
}

func newHarnessWithConfig(t *testing.T, config Config) *harness {
	t.Helper()

	mirror := &recordingMirror{}
	svc := NewService(config, mirror)
	handler := &echoHandler{
		svc:      svc,
		snapshot: models.DefaultBlob(models.DefaultPanels(3), models.DefaultTimerDuration),
	}

	router := httprouter.New()
	svc.RegisterRoutes(router, handler, handler)
	server := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		server.Close()
	})

	return &harness{svc: svc, handler: handler, mirror: mirror, server: server}
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) *events.Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	ev, err := events.Decode(frame)
	require.NoError(t, err)
	return ev
}

func sendEvent(t *testing.T, conn *websocket.Conn, typ events.Type, payload any) {
	t.Helper()

	ev, err := events.New(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(ev))
}

func waitForConnections(t *testing.T, h *harness, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.svc.GetStats().TotalConnections == n
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConnect_ReceivesSnapshotFirst(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	ev := readEvent(t, conn)
	require.Equal(t, events.TypeInitData, ev.Type)

	var blob models.Blob
	require.NoError(t, json.Unmarshal(ev.Data, &blob))
	assert.Len(t, blob.Players, 3)
	assert.Equal(t, 60.0, blob.Timer.RemainingTime)

	assert.Empty(t, h.mirror.types(), "snapshots are not mirrored")
}

func TestBroadcast_ReachesEverySessionInOrder(t *testing.T) {
	h := newHarness(t)

	a := h.dial(t)
	b := h.dial(t)
	readEvent(t, a)
	readEvent(t, b)
	waitForConnections(t, h, 2)

	for score := 1; score <= 5; score++ {
		sendEvent(t, a, events.TypeScoreUpdate, events.ScorePayload{Panel: "1", Score: score})
	}

	for _, conn := range []*websocket.Conn{a, b} {
		for score := 1; score <= 5; score++ {
			ev := readEvent(t, conn)
			require.Equal(t, events.TypeUpdateScore, ev.Type)

			var p events.ScorePayload
			require.NoError(t, json.Unmarshal(ev.Data, &p))
			assert.Equal(t, events.ScorePayload{Panel: "1", Score: score}, p)
		}
	}

	assert.Len(t, h.mirror.types(), 5)
}

func TestClientMessages_MalformedFramesAreDropped(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEvent(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`)))
	sendEvent(t, conn, events.TypePauseTimer, nil)
	sendEvent(t, conn, events.TypeScoreUpdate, events.ScorePayload{Panel: "2", Score: 4})

	ev := readEvent(t, conn)
	assert.Equal(t, events.TypeUpdateScore, ev.Type)
	assert.Equal(t, []events.Type{events.TypePauseTimer, events.TypeScoreUpdate}, h.handler.types())
}

func TestSendTo_OnlyReachesTarget(t *testing.T) {
	h := newHarness(t)

	a := h.dial(t)
	b := h.dial(t)
	readEvent(t, a)
	readEvent(t, b)
	waitForConnections(t, h, 2)

	stats := h.svc.GetStats()
	target := stats.Connections[0].ID

	ev, err := events.New(events.TypeGoalUpdate, events.GoalUpdatePayload{NewGoal: 100})
	require.NoError(t, err)
	h.svc.connectionManager.SendTo(target, ev)

	broadcast, err := events.New(events.TypeNewDonation, events.NewDonationPayload{Amount: 5})
	require.NoError(t, err)
	h.svc.Broadcast(broadcast)

	got := map[events.Type]int{}
	for _, conn := range []*websocket.Conn{a, b} {
		first := readEvent(t, conn)
		got[first.Type]++
		if first.Type == events.TypeGoalUpdate {
			assert.Equal(t, events.TypeNewDonation, readEvent(t, conn).Type)
		}
	}
	assert.Equal(t, map[events.Type]int{events.TypeGoalUpdate: 1, events.TypeNewDonation: 1}, got)
}

func TestDisconnect_UnregistersSession(t *testing.T) {
	h := newHarness(t)

	conn := h.dial(t)
	readEvent(t, conn)
	waitForConnections(t, h, 1)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	waitForConnections(t, h, 0)
}

func TestStateRoutes(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEvent(t, conn)
	waitForConnections(t, h, 1)

	resp, err := http.Get(h.server.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var blob models.Blob
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&blob))
	assert.Equal(t, h.handler.Snapshot(), blob)

	resp, err = http.Get(h.server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats ConnectionStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.TotalConnections)
	require.Len(t, stats.Connections, 1)
	assert.NotEmpty(t, stats.Connections[0].ID)
}

func TestOriginChecker(t *testing.T) {
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	allowAll := OriginChecker(nil)
	assert.True(t, allowAll(req("https://evil.example")))

	restricted := OriginChecker([]string{"http://localhost:3000"})
	assert.True(t, restricted(req("http://localhost:3000")))
	assert.True(t, restricted(req("")))
	assert.False(t, restricted(req("https://evil.example")))

	assert.True(t, OriginChecker([]string{"*"})(req("https://any.example")))
}

func TestClientMessages_LongNameReachesHandler(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)
	readEvent(t, conn)

	name := strings.Repeat("Débat ", 2000)
	require.Greater(t, len(name), 8*1024)

	sendEvent(t, conn, events.TypeNameUpdate, events.NamePayload{PlayerID: "1", Name: name})
	sendEvent(t, conn, events.TypeScoreUpdate, events.ScorePayload{Panel: "1", Score: 1})

	// The score echo arrives only after the name frame was handled.
	ev := readEvent(t, conn)
	assert.Equal(t, events.TypeUpdateScore, ev.Type)
	assert.Equal(t, []events.Type{events.TypeNameUpdate, events.TypeScoreUpdate}, h.handler.types())
	assert.Equal(t, []string{name}, h.handler.receivedNames())
	assert.Equal(t, 1, h.svc.GetStats().TotalConnections)
}

func TestClientMessages_OversizedFrameClosesSession(t *testing.T) {
	config := DefaultConfig()
	config.ConnectionConfig.MaxMessageSize = 512
	h := newHarnessWithConfig(t, config)

	conn := h.dial(t)
	readEvent(t, conn)
	waitForConnections(t, h, 1)

	sendEvent(t, conn, events.TypeNameUpdate, events.NamePayload{PlayerID: "1", Name: strings.Repeat("x", 1024)})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		assert.Equal(t, websocket.CloseMessageTooBig, closeErr.Code)
	}

	waitForConnections(t, h, 0)
	assert.Empty(t, h.handler.types())
}

func TestNewConnectionManager_DefaultsMessageSize(t *testing.T) {
	cm := NewConnectionManager(ConnectionConfig{})
	assert.EqualValues(t, DefaultMaxMessageSize, cm.config.MaxMessageSize)
	assert.EqualValues(t, DefaultMaxMessageSize, DefaultConnectionConfig().MaxMessageSize)
}
