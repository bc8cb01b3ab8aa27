package app

import "encoding/json"

// Wire protocol. Event and field names are a fixed contract with deployed
// clients; renaming anything here breaks them.
const (
	EvtRegister     = "register"
	EvtCallRequest  = "call-request"
	EvtCallAccept   = "call-accept"
	EvtCallReject   = "call-reject"
	EvtOffer        = "offer"
	EvtAnswer       = "answer"
	EvtICECandidate = "ice-candidate"
	EvtEndCall      = "end-call"
	EvtMessage      = "message"

	EvtRegistered      = "registered"
	EvtIncomingCall    = "incoming-call"
	EvtUserOffline     = "user-offline"
	EvtCallAccepted    = "call-accepted"
	EvtCallRejected    = "call-rejected"
	EvtCallEnded       = "call-ended"
	EvtNewMessage      = "new-message"
	EvtDeliveryFailure = "delivery-failure"
)

// envelope picks the event name off any inbound frame.
type envelope struct {
	Event string `json:"event"`
}

type registerEvent struct {
	UserID string `json:"userId"`
}

type callRequestEvent struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	RoomID     string `json:"roomId"`
	MediaKind  string `json:"mediaKind"`
	CallerName string `json:"callerName,omitempty"`
}

type callAcceptEvent struct {
	ToConnectionID string `json:"toConnectionId"`
	RoomID         string `json:"roomId"`
}

type callRejectEvent struct {
	ToConnectionID string `json:"toConnectionId"`
}

// relayEvent covers offer, answer and ice-candidate. The payload is opaque:
// the relay never parses SDP or candidates, it only re-wraps them.
type relayEvent struct {
	ToConnectionID string          `json:"toConnectionId"`
	Payload        json.RawMessage `json:"payload"`
}

type endCallEvent struct {
	ToUserID string `json:"toUserId"`
	RoomID   string `json:"roomId"`
}

type messageEvent struct {
	ToUserID   string `json:"toUserId"`
	FromUserID string `json:"fromUserId"`
	Body       string `json:"body"`
}

type registeredMsg struct {
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId"`
}

type incomingCallMsg struct {
	Event          string `json:"event"`
	FromUserID     string `json:"fromUserId"`
	CallerName     string `json:"callerName"`
	RoomID         string `json:"roomId"`
	MediaKind      string `json:"mediaKind"`
	FromConnection string `json:"fromConnection"`
}

type userOfflineMsg struct {
	Event    string `json:"event"`
	ToUserID string `json:"toUserId"`
}

type callAcceptedMsg struct {
	Event          string `json:"event"`
	FromConnection string `json:"fromConnection"`
	RoomID         string `json:"roomId"`
}

type callRejectedMsg struct {
	Event          string `json:"event"`
	FromConnection string `json:"fromConnection"`
}

type relayMsg struct {
	Event          string          `json:"event"`
	FromConnection string          `json:"fromConnection"`
	Payload        json.RawMessage `json:"payload"`
}

type callEndedMsg struct {
	Event  string `json:"event"`
	RoomID string `json:"roomId"`
}

type newMessageMsg struct {
	Event      string `json:"event"`
	FromUserID string `json:"fromUserId"`
	Body       string `json:"body"`
}

type deliveryFailureMsg struct {
	Event    string `json:"event"`
	ToUserID string `json:"toUserId"`
}
