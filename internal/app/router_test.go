package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dechrm/callrelay/internal/calllog"
	"github.com/dechrm/callrelay/internal/domain"
)

type delivery struct {
	to  domain.ConnID
	msg any
}

// fakeSender records deliveries instead of writing to sockets. Connections
// listed in gone behave like vanished transports.
type fakeSender struct {
	mu   sync.Mutex
	gone map[domain.ConnID]bool
	sent []delivery
}

func newFakeSender() *fakeSender {
	return &fakeSender{gone: make(map[domain.ConnID]bool)}
}

func (f *fakeSender) Send(cid domain.ConnID, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gone[cid] {
		return errors.New("connection gone")
	}
	f.sent = append(f.sent, delivery{to: cid, msg: v})
	return nil
}

func (f *fakeSender) deliveries(cid domain.ConnID) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, d := range f.sent {
		if d.to == cid {
			out = append(out, d.msg)
		}
	}
	return out
}

func (f *fakeSender) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func frame(t *testing.T, m map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func newTestRouter(t *testing.T) (*Router, *Registry, *fakeSender) {
	t.Helper()
	reg := NewRegistry()
	sender := newFakeSender()
	return NewRouter(reg, sender, nil, nil), reg, sender
}

func TestRouterRegisterAck(t *testing.T) {
	r, reg, sender := newTestRouter(t)

	r.Dispatch("c1", frame(t, map[string]any{"event": "register", "userId": "alice"}))

	require.ElementsMatch(t, []domain.ConnID{"c1"}, reg.Resolve("alice"))
	msgs := sender.deliveries("c1")
	require.Len(t, msgs, 1)
	require.Equal(t, registeredMsg{Event: "registered", ConnectionID: "c1"}, msgs[0])
}

func TestRouterRegisterMissingUserID(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("c1", frame(t, map[string]any{"event": "register"}))

	require.Zero(t, sender.total())
}

func TestRouterCallRequestFanOut(t *testing.T) {
	r, reg, sender := newTestRouter(t)
	reg.Register("alice", "c1")
	reg.Register("alice", "c2")
	reg.Register("bob", "c3")

	r.Dispatch("caller", frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "alice",
		"roomId":     "r1",
		"mediaKind":  "video",
		"callerName": "Bob B.",
	}))

	want := incomingCallMsg{
		Event:          "incoming-call",
		FromUserID:     "bob",
		CallerName:     "Bob B.",
		RoomID:         "r1",
		MediaKind:      "video",
		FromConnection: "caller",
	}
	require.Equal(t, []any{want}, sender.deliveries("c1"))
	require.Equal(t, []any{want}, sender.deliveries("c2"))
	require.Empty(t, sender.deliveries("c3"), "uninvolved connection must not hear the call")
	require.Empty(t, sender.deliveries("caller"))
}

func TestRouterCallRequestOffline(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("caller", frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "ghost",
		"roomId":     "r1",
		"mediaKind":  "audio",
	}))

	require.Equal(t, 1, sender.total())
	require.Equal(t, []any{userOfflineMsg{Event: "user-offline", ToUserID: "ghost"}}, sender.deliveries("caller"))
}

func TestRouterCallRequestAnonymousRejected(t *testing.T) {
	r, reg, sender := newTestRouter(t)
	reg.Register("alice", "c1")

	r.Dispatch("caller", frame(t, map[string]any{
		"event":     "call-request",
		"toUserId":  "alice",
		"roomId":    "r1",
		"mediaKind": "audio",
	}))

	require.Zero(t, sender.total())
}

func TestRouterCallRequestCallerNameFallback(t *testing.T) {
	r, reg, sender := newTestRouter(t)
	reg.Register("alice", "c1")

	r.Dispatch("caller", frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "alice",
		"roomId":     "r1",
		"mediaKind":  "nonsense",
	}))

	msgs := sender.deliveries("c1")
	require.Len(t, msgs, 1)
	got := msgs[0].(incomingCallMsg)
	require.Equal(t, "bob", got.CallerName)
	require.Equal(t, "unknown", got.MediaKind)
}

func TestRouterDirectRelayDeadLetter(t *testing.T) {
	r, _, sender := newTestRouter(t)
	sender.gone["vanished"] = true

	r.Dispatch("c1", frame(t, map[string]any{
		"event":          "offer",
		"toConnectionId": "vanished",
		"payload":        map[string]any{"sdp": "v=0"},
	}))

	require.Zero(t, sender.total())
}

func TestRouterDirectRelayRewrap(t *testing.T) {
	r, _, sender := newTestRouter(t)

	for _, event := range []string{"offer", "answer", "ice-candidate"} {
		r.Dispatch("c1", frame(t, map[string]any{
			"event":          event,
			"toConnectionId": "c2",
			"payload":        map[string]any{"sdp": "v=0"},
		}))
	}

	msgs := sender.deliveries("c2")
	require.Len(t, msgs, 3)
	for i, event := range []string{"offer", "answer", "ice-candidate"} {
		got := msgs[i].(relayMsg)
		require.Equal(t, event, got.Event)
		require.Equal(t, "c1", got.FromConnection)
		require.JSONEq(t, `{"sdp":"v=0"}`, string(got.Payload))
	}
}

func TestRouterMessageRelay(t *testing.T) {
	r, reg, sender := newTestRouter(t)
	reg.Register("alice", "c1")
	reg.Register("alice", "c2")

	r.Dispatch("c3", frame(t, map[string]any{
		"event":      "message",
		"toUserId":   "alice",
		"fromUserId": "bob",
		"body":       "lunch?",
	}))

	want := newMessageMsg{Event: "new-message", FromUserID: "bob", Body: "lunch?"}
	require.Equal(t, []any{want}, sender.deliveries("c1"))
	require.Equal(t, []any{want}, sender.deliveries("c2"))
	// Exactly one handler for message relay: no double delivery.
	require.Equal(t, 2, sender.total())
}

func TestRouterMessageOffline(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("c1", frame(t, map[string]any{
		"event":      "message",
		"toUserId":   "ghost",
		"fromUserId": "bob",
		"body":       "hello?",
	}))

	require.Equal(t, []any{deliveryFailureMsg{Event: "delivery-failure", ToUserID: "ghost"}}, sender.deliveries("c1"))
}

func TestRouterEndCallEchoWhenOffline(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("c1", frame(t, map[string]any{
		"event":    "end-call",
		"toUserId": "ghost",
		"roomId":   "r1",
	}))

	require.Equal(t, []any{callEndedMsg{Event: "call-ended", RoomID: "r1"}}, sender.deliveries("c1"))
	require.Equal(t, 1, sender.total())
}

func TestRouterMalformedFramesDropped(t *testing.T) {
	r, reg, sender := newTestRouter(t)
	reg.Register("alice", "c1")

	frames := [][]byte{
		[]byte(`not json`),
		frame(t, map[string]any{"event": "no-such-event"}),
		frame(t, map[string]any{"event": "call-accept", "roomId": "r1"}),
		frame(t, map[string]any{"event": "call-reject"}),
		frame(t, map[string]any{"event": "offer", "toConnectionId": "c1"}),
		frame(t, map[string]any{"event": "end-call", "roomId": "r1"}),
		frame(t, map[string]any{"event": "message", "toUserId": "alice", "body": ""}),
	}
	for _, f := range frames {
		r.Dispatch("c9", f)
	}

	require.Zero(t, sender.total())
	require.ElementsMatch(t, []domain.ConnID{"c1"}, reg.Resolve("alice"), "malformed events must not mutate state")
}

func TestRouterDisconnectUnregisters(t *testing.T) {
	r, reg, _ := newTestRouter(t)
	reg.Register("alice", "c1")

	r.Disconnect("c1")
	r.Disconnect("c1")

	require.Empty(t, reg.Resolve("alice"))
}

func TestRouterCallRateLimit(t *testing.T) {
	reg := NewRegistry()
	sender := newFakeSender()
	r := NewRouter(reg, sender, nil, NewCallRateLimiter(1, time.Minute))
	reg.Register("alice", "c1")

	req := frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "alice",
		"roomId":     "r1",
		"mediaKind":  "audio",
	})
	r.Dispatch("caller", req)
	r.Dispatch("caller", req)

	require.Len(t, sender.deliveries("c1"), 1, "second request inside the window must be dropped")
}

func TestRouterAuditRecords(t *testing.T) {
	reg := NewRegistry()
	sender := newFakeSender()
	rec := calllog.NewMemory()
	r := NewRouter(reg, sender, rec, nil)
	reg.Register("carol", "c2")

	r.Dispatch("c1", frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "carol",
		"roomId":     "r1",
		"mediaKind":  "video",
	}))

	require.Eventually(t, func() bool {
		return len(rec.Active()) == 1
	}, time.Second, 10*time.Millisecond)

	active := rec.Active()
	require.Equal(t, domain.RoomID("r1"), active[0].RoomID)
	require.Equal(t, domain.MediaVideo, active[0].Media)
	require.Equal(t, domain.Participant{UserID: "bob", ConnID: "c1"}, active[0].Participants[0])

	r.Dispatch("c2", frame(t, map[string]any{
		"event":    "end-call",
		"toUserId": "bob",
		"roomId":   "r1",
	}))

	require.Eventually(t, func() bool {
		return len(rec.Active()) == 0
	}, time.Second, 10*time.Millisecond)
}

// Full call flow from the signaling contract: request, accept, end.
func TestRouterCallScenario(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("c1", frame(t, map[string]any{"event": "register", "userId": "bob"}))
	r.Dispatch("c2", frame(t, map[string]any{"event": "register", "userId": "carol"}))

	r.Dispatch("c1", frame(t, map[string]any{
		"event":      "call-request",
		"fromUserId": "bob",
		"toUserId":   "carol",
		"roomId":     "r1",
		"mediaKind":  "audio",
	}))

	carol := sender.deliveries("c2")
	require.Len(t, carol, 2) // registered ack + incoming call
	incoming := carol[1].(incomingCallMsg)
	require.Equal(t, "bob", incoming.FromUserID)
	require.Equal(t, "r1", incoming.RoomID)
	require.Equal(t, "c1", incoming.FromConnection)

	r.Dispatch("c2", frame(t, map[string]any{
		"event":          "call-accept",
		"toConnectionId": incoming.FromConnection,
		"roomId":         "r1",
	}))

	bob := sender.deliveries("c1")
	require.Equal(t, callAcceptedMsg{Event: "call-accepted", FromConnection: "c2", RoomID: "r1"}, bob[len(bob)-1])

	r.Dispatch("c2", frame(t, map[string]any{
		"event":    "end-call",
		"toUserId": "bob",
		"roomId":   "r1",
	}))

	ended := callEndedMsg{Event: "call-ended", RoomID: "r1"}
	bob = sender.deliveries("c1")
	require.Equal(t, ended, bob[len(bob)-1])
	carol = sender.deliveries("c2")
	require.Equal(t, ended, carol[len(carol)-1], "sender gets the echo")
}

func TestRouterCallReject(t *testing.T) {
	r, _, sender := newTestRouter(t)

	r.Dispatch("c2", frame(t, map[string]any{
		"event":          "call-reject",
		"toConnectionId": "c1",
	}))

	require.Equal(t, []any{callRejectedMsg{Event: "call-rejected", FromConnection: "c2"}}, sender.deliveries("c1"))
}
