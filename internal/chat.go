package internal

import "encoding/json"

// Event is the json envelope exchanged over the websocket in both directions.
// Data carries the event-specific payload and may be absent (clearChat).
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client→server event names.
const (
	EventRegisterUser = "registerUser"
	EventSendMessage  = "sendMessage"
	EventClearChat    = "clearChat"
)

// Server→client event names.
const (
	EventUserConnected    = "userConnected"
	EventUserDisconnected = "userDisconnected"
	EventReceiveMessage   = "receiveMessage"
	EventError            = "error"
)

type registerPayload struct {
	Username string `json:"username"`
}

type sendPayload struct {
	Content  string  `json:"content"`
	FileURL  *string `json:"fileUrl"`
	FileType *string `json:"fileType"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// encodeEvent builds a wire frame for the given event name and payload.
func encodeEvent(name string, payload interface{}) ([]byte, error) {
	event := Event{Event: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		event.Data = data
	}
	return json.Marshal(event)
}
