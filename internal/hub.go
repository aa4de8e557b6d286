package internal

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"quickchat/internal/storage"
)

// storeTimeout bounds every store call issued from the run loop so a hung
// database cannot wedge the hub forever.
const storeTimeout = 5 * time.Second

type inbound struct {
	client *Client
	event  Event
}

// Hub owns the set of live connections and the presence table. All mutation
// happens on the single Run goroutine; connections talk to it over channels,
// so registration, sends and disconnects are totally ordered and every
// broadcast sees a consistent online list.
type Hub struct {
	store    Store
	presence *PresenceTable
	metrics  *Metrics

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound

	clients    map[*Client]bool
	byUsername map[string]*Client
}

func NewHub(store Store, presence *PresenceTable, metrics *Metrics) *Hub {
	return &Hub{
		store:      store,
		presence:   presence,
		metrics:    metrics,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound, 256),
		clients:    make(map[*Client]bool),
		byUsername: make(map[string]*Client),
	}
}

// Run processes connection and event traffic until the process exits.
func (hub *Hub) Run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = true
			hub.metrics.IncConn()
		case client := <-hub.unregister:
			hub.handleDisconnect(client)
		case in := <-hub.inbound:
			hub.handleEvent(in.client, in.event)
		}
	}
}

func (hub *Hub) handleEvent(client *Client, event Event) {
	switch event.Event {
	case EventRegisterUser:
		var payload registerPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			log.Printf("registerUser from %s: bad payload: %v", client.socketID, err)
			return
		}
		hub.handleRegister(client, payload.Username)
	case EventSendMessage:
		var payload sendPayload
		if len(event.Data) > 0 {
			if err := json.Unmarshal(event.Data, &payload); err != nil {
				log.Printf("sendMessage from %s: bad payload: %v", client.socketID, err)
				return
			}
		}
		hub.handleSend(client, payload)
	case EventClearChat:
		hub.handleClear()
	default:
		log.Printf("unknown event %q from %s", event.Event, client.socketID)
	}
}

func (hub *Hub) handleRegister(client *Client, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		hub.sendTo(client, EventError, errorPayload{Message: "username is required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	// A connection re-registering under a new name releases its old binding
	// first, otherwise the previous user record would stay online forever.
	if client.username != "" && client.username != username {
		if hub.byUsername[client.username] == client {
			delete(hub.byUsername, client.username)
			hub.presence.Remove(client.username, client.socketID)
		}
		if _, err := hub.store.DetachSocket(ctx, client.socketID); err != nil {
			log.Printf("detach socket %s: %v", client.socketID, err)
		}
	}

	if err := hub.store.UpsertUser(ctx, username, client.socketID); err != nil {
		log.Printf("register %s: %v", username, err)
		return
	}

	// Last registration wins: stealing a username leaves the old connection
	// unregistered, so its next sendMessage fails authorization.
	if old, ok := hub.byUsername[username]; ok && old != client {
		old.username = ""
	}
	client.username = username
	hub.byUsername[username] = client
	hub.presence.Set(username, client.socketID)

	log.Printf("%s registered on socket %s", username, client.socketID)
	hub.broadcast(EventUserConnected, hub.presence.Usernames())
}

func (hub *Hub) handleSend(client *Client, payload sendPayload) {
	if client.username == "" {
		hub.sendTo(client, EventError, errorPayload{Message: "Unauthorized user"})
		return
	}

	message := &storage.Message{
		Sender:   client.username,
		Content:  payload.Content,
		FileURL:  payload.FileURL,
		FileType: payload.FileType,
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := hub.store.InsertMessage(ctx, message); err != nil {
		log.Printf("save message from %s: %v", client.username, err)
		return
	}

	hub.metrics.IncMessage()
	hub.broadcast(EventReceiveMessage, message)
}

func (hub *Hub) handleClear() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := hub.store.DeleteAllMessages(ctx); err != nil {
		log.Printf("clear chat: %v", err)
		return
	}
	hub.metrics.IncClear()
	hub.broadcast(EventReceiveMessage, []storage.Message{})
}

func (hub *Hub) handleDisconnect(client *Client) {
	if _, ok := hub.clients[client]; !ok {
		return
	}
	delete(hub.clients, client)
	close(client.send)
	hub.metrics.DecConn()
	hub.releaseBindings(client)
	hub.broadcast(EventUserDisconnected, hub.presence.Usernames())
}

// releaseBindings clears the presence and store state a departing connection
// holds. A connection that never registered matches nothing and only logs.
func (hub *Hub) releaseBindings(client *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	username, err := hub.store.DetachSocket(ctx, client.socketID)
	if err != nil {
		log.Printf("detach socket %s: %v", client.socketID, err)
	}
	if client.username != "" && hub.byUsername[client.username] == client {
		delete(hub.byUsername, client.username)
		hub.presence.Remove(client.username, client.socketID)
	}
	if username == "" {
		username = client.username
	}
	if username == "" {
		log.Printf("socket %s disconnected (unregistered)", client.socketID)
	} else {
		log.Printf("%s disconnected", username)
	}
}

// broadcast fans an event out to every connected client. A client whose send
// buffer is full is dropped rather than allowed to stall everyone else.
func (hub *Hub) broadcast(name string, payload interface{}) {
	frame, err := encodeEvent(name, payload)
	if err != nil {
		log.Printf("encode %s: %v", name, err)
		return
	}
	var dropped []*Client
	for client := range hub.clients {
		select {
		case client.send <- frame:
		default:
			close(client.send)
			delete(hub.clients, client)
			dropped = append(dropped, client)
		}
	}
	for _, client := range dropped {
		hub.metrics.DecConn()
		hub.releaseBindings(client)
	}
}

// sendTo delivers an event to a single connection only.
func (hub *Hub) sendTo(client *Client, name string, payload interface{}) {
	frame, err := encodeEvent(name, payload)
	if err != nil {
		log.Printf("encode %s: %v", name, err)
		return
	}
	select {
	case client.send <- frame:
	default:
	}
}
