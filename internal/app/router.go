package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dechrm/callrelay/internal/calllog"
	"github.com/dechrm/callrelay/internal/domain"
)

const recordTimeout = 3 * time.Second

// Sender is the transport's direct-addressing port. Send is best-effort: it
// returns an error when the connection has vanished or its buffer is full,
// and the relay drops such frames by design (no durable queue).
type Sender interface {
	Send(cid domain.ConnID, v any) error
}

type handlerFunc func(from domain.ConnID, data []byte)

// Router translates one inbound signaling event into zero or more outbound
// deliveries. It holds no call state; identity routing goes through the
// Registry, direct routing through the Sender.
type Router struct {
	registry *Registry
	sender   Sender
	recorder calllog.Recorder
	limiter  *CallRateLimiter
	handlers map[string]handlerFunc
}

func NewRouter(registry *Registry, sender Sender, recorder calllog.Recorder, limiter *CallRateLimiter) *Router {
	if recorder == nil {
		recorder = calllog.Noop{}
	}
	r := &Router{
		registry: registry,
		sender:   sender,
		recorder: recorder,
		limiter:  limiter,
	}
	r.handlers = map[string]handlerFunc{
		EvtRegister:     r.handleRegister,
		EvtCallRequest:  r.handleCallRequest,
		EvtCallAccept:   r.handleCallAccept,
		EvtCallReject:   r.handleCallReject,
		EvtOffer:        r.directRelay(EvtOffer),
		EvtAnswer:       r.directRelay(EvtAnswer),
		EvtICECandidate: r.directRelay(EvtICECandidate),
		EvtEndCall:      r.handleEndCall,
		EvtMessage:      r.handleMessage,
	}
	return r
}

// Dispatch routes one raw frame from a connection. Malformed or unknown
// frames are logged and dropped; Dispatch never fails upward.
func (r *Router) Dispatch(from domain.ConnID, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("conn", string(from)).Msg("bad frame dropped")
		return
	}
	h, ok := r.handlers[env.Event]
	if !ok {
		log.Warn().Str("module", "app.router").Str("event", env.Event).Msg("unknown event dropped")
		return
	}
	h(from, data)
}

// Disconnect is the transport-originated teardown path.
func (r *Router) Disconnect(cid domain.ConnID) {
	r.registry.Unregister(cid)
}

func (r *Router) handleRegister(from domain.ConnID, data []byte) {
	var p registerEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad register payload")
		return
	}
	uid, err := domain.ParseUserID(p.UserID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("conn", string(from)).Msg("register rejected")
		return
	}
	r.registry.Register(uid, from)
	r.send(from, registeredMsg{Event: EvtRegistered, ConnectionID: string(from)})
}

func (r *Router) handleCallRequest(from domain.ConnID, data []byte) {
	var p callRequestEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad call-request payload")
		return
	}
	// Anonymous callers are rejected outright: without fromUserId the callee
	// cannot call back and the audit record is useless.
	if p.FromUserID == "" || p.ToUserID == "" || p.RoomID == "" || p.MediaKind == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(from)).Msg("call-request missing required fields")
		return
	}
	fromUser := domain.UserID(p.FromUserID)
	toUser := domain.UserID(p.ToUserID)
	media := domain.ParseMediaKind(p.MediaKind)

	// Auth is upstream; a mismatch between the claimed identity and the
	// registered one is only worth a trace here.
	if owner, ok := r.registry.Owner(from); ok && owner != fromUser {
		log.Warn().Str("module", "app.router").Str("claimed", p.FromUserID).Str("registered", string(owner)).Msg("call-request identity mismatch")
	}

	if r.limiter != nil && !r.limiter.Allow(fromUser) {
		log.Warn().Str("module", "app.router").Str("user", p.FromUserID).Msg("call-request rate limited")
		return
	}

	callerName := p.CallerName
	if callerName == "" {
		callerName = p.FromUserID
	}

	targets := r.registry.Resolve(toUser)
	if len(targets) == 0 {
		log.Info().Str("module", "app.router").Str("to", p.ToUserID).Msg("callee offline")
		r.send(from, userOfflineMsg{Event: EvtUserOffline, ToUserID: p.ToUserID})
		return
	}

	out := incomingCallMsg{
		Event:          EvtIncomingCall,
		FromUserID:     p.FromUserID,
		CallerName:     callerName,
		RoomID:         p.RoomID,
		MediaKind:      string(media),
		FromConnection: string(from),
	}
	for _, cid := range targets {
		r.send(cid, out)
	}
	log.Info().Str("module", "app.router").Str("from", p.FromUserID).Str("to", p.ToUserID).Str("room", p.RoomID).Int("fanout", len(targets)).Msg("call forwarded")

	r.record(domain.CallSession{
		RoomID: domain.RoomID(p.RoomID),
		Participants: []domain.Participant{
			{UserID: fromUser, ConnID: from},
			{UserID: toUser},
		},
		Media:     media,
		StartedAt: time.Now(),
	})
}

func (r *Router) handleCallAccept(from domain.ConnID, data []byte) {
	var p callAcceptEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad call-accept payload")
		return
	}
	if p.ToConnectionID == "" || p.RoomID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(from)).Msg("call-accept missing required fields")
		return
	}
	r.send(domain.ConnID(p.ToConnectionID), callAcceptedMsg{
		Event:          EvtCallAccepted,
		FromConnection: string(from),
		RoomID:         p.RoomID,
	})
}

func (r *Router) handleCallReject(from domain.ConnID, data []byte) {
	var p callRejectEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad call-reject payload")
		return
	}
	if p.ToConnectionID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(from)).Msg("call-reject missing required fields")
		return
	}
	r.send(domain.ConnID(p.ToConnectionID), callRejectedMsg{
		Event:          EvtCallRejected,
		FromConnection: string(from),
	})
}

// directRelay builds the handler for offer, answer and ice-candidate: same
// event name out, payload re-wrapped with the sender's connection id.
func (r *Router) directRelay(event string) handlerFunc {
	return func(from domain.ConnID, data []byte) {
		var p relayEvent
		if err := json.Unmarshal(data, &p); err != nil {
			log.Warn().Err(err).Str("module", "app.router").Str("event", event).Msg("bad relay payload")
			return
		}
		if p.ToConnectionID == "" || len(p.Payload) == 0 {
			log.Warn().Str("module", "app.router").Str("event", event).Msg("relay missing required fields")
			return
		}
		r.send(domain.ConnID(p.ToConnectionID), relayMsg{
			Event:          event,
			FromConnection: string(from),
			Payload:        p.Payload,
		})
	}
}

func (r *Router) handleEndCall(from domain.ConnID, data []byte) {
	var p endCallEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad end-call payload")
		return
	}
	if p.ToUserID == "" || p.RoomID == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(from)).Msg("end-call missing required fields")
		return
	}
	out := callEndedMsg{Event: EvtCallEnded, RoomID: p.RoomID}
	for _, cid := range r.registry.Resolve(domain.UserID(p.ToUserID)) {
		r.send(cid, out)
	}
	// The sender always gets the echo, even when the peer is gone.
	r.send(from, out)
	log.Info().Str("module", "app.router").Str("room", p.RoomID).Str("to", p.ToUserID).Msg("call ended")

	r.recordEnd(domain.RoomID(p.RoomID))
}

func (r *Router) handleMessage(from domain.ConnID, data []byte) {
	var p messageEvent
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Msg("bad message payload")
		return
	}
	if p.ToUserID == "" || p.FromUserID == "" || p.Body == "" {
		log.Warn().Str("module", "app.router").Str("conn", string(from)).Msg("message missing required fields")
		return
	}
	targets := r.registry.Resolve(domain.UserID(p.ToUserID))
	if len(targets) == 0 {
		r.send(from, deliveryFailureMsg{Event: EvtDeliveryFailure, ToUserID: p.ToUserID})
		return
	}
	out := newMessageMsg{Event: EvtNewMessage, FromUserID: p.FromUserID, Body: p.Body}
	for _, cid := range targets {
		r.send(cid, out)
	}
}

// send delivers best-effort. A vanished target or a full buffer is not an
// error at this layer, only a debug trace.
func (r *Router) send(cid domain.ConnID, v any) {
	if err := r.sender.Send(cid, v); err != nil {
		log.Debug().Err(err).Str("module", "app.router").Str("conn", string(cid)).Msg("frame dropped")
	}
}

func (r *Router) record(session domain.CallSession) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordStart(ctx, session); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("room", string(session.RoomID)).Msg("call log start failed")
		}
	}()
}

func (r *Router) recordEnd(roomID domain.RoomID) {
	endedAt := time.Now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := r.recorder.RecordEnd(ctx, roomID, endedAt); err != nil {
			log.Error().Err(err).Str("module", "app.router").Str("room", string(roomID)).Msg("call log end failed")
		}
	}()
}
