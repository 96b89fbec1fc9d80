package ws

import (
	"context"
	"errors"

	"github.com/Wyydra/huddle/internal/core/domain"
	"github.com/Wyydra/huddle/internal/core/port"
	"github.com/Wyydra/huddle/internal/protocol"
	"github.com/rs/zerolog/log"
)

var ErrSlowConsumer = errors.New("client send buffer full")

// Dispatcher receives every routed event. Calls are serialized on the hub
// goroutine.
type Dispatcher interface {
	HandleMessage(ctx context.Context, connID domain.ConnID, msg protocol.Message)
	Disconnect(ctx context.Context, connID domain.ConnID)
}

type eventKind int

const (
	eventRegister eventKind = iota
	eventUnregister
	eventMessage
)

type hubEvent struct {
	kind   eventKind
	client Client
	msg    protocol.Message
}

// Hub is the single-threaded dispatcher of the relay and implements
// port.RealTimeGateway. Register, message and unregister events share one
// channel so a connection's events are processed in arrival order.
type Hub struct {
	clients    map[domain.ConnID]Client
	events     chan hubEvent
	quit       chan struct{}
	done       chan struct{}
	dispatcher Dispatcher
}

var _ port.RealTimeGateway = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients: make(map[domain.ConnID]Client),
		events:  make(chan hubEvent, 256),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetDispatcher must be called before Run.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcher = d
}

// Send is only valid from inside a Dispatcher call.
func (h *Hub) Send(ctx context.Context, connID domain.ConnID, msg protocol.Message) error {
	client, ok := h.clients[connID]
	if !ok {
		return port.ErrUnknownConnection
	}
	if !client.Enqueue(msg) {
		log.Warn().Str("conn_id", connID.String()).Str("event", msg.Event).Msg("Client too slow, closing")
		client.Close()
		return ErrSlowConsumer
	}
	return nil
}

func (h *Hub) Run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			log.Info().Int("count", len(h.clients)).Msg("Stopping hub. Disconnecting all clients.")
			for id, client := range h.clients {
				if err := client.Close(); err != nil {
					log.Error().Err(err).Str("conn_id", id.String()).Msg("Error closing client connection")
				}
				delete(h.clients, id)
			}
			return

		case ev := <-h.events:
			switch ev.kind {
			case eventRegister:
				h.clients[ev.client.ID()] = ev.client
				log.Info().Str("conn_id", ev.client.ID().String()).Int("count", len(h.clients)).Msg("Client registered")

			case eventUnregister:
				id := ev.client.ID()
				ev.client.Close()
				if _, ok := h.clients[id]; ok {
					delete(h.clients, id)
					h.dispatcher.Disconnect(ctx, id)
					log.Info().Str("conn_id", id.String()).Int("count", len(h.clients)).Msg("Client unregistered")
				}

			case eventMessage:
				id := ev.client.ID()
				if _, ok := h.clients[id]; !ok {
					continue
				}
				h.dispatcher.HandleMessage(ctx, id, ev.msg)
			}
		}
	}
}

func (h *Hub) Register(c Client) {
	h.push(hubEvent{kind: eventRegister, client: c})
}

func (h *Hub) Unregister(c Client) {
	h.push(hubEvent{kind: eventUnregister, client: c})
}

// Dispatch queues a message read from c.
func (h *Hub) Dispatch(c Client, msg protocol.Message) {
	h.push(hubEvent{kind: eventMessage, client: c, msg: msg})
}

func (h *Hub) push(ev hubEvent) {
	select {
	case h.events <- ev:
	case <-h.quit:
	}
}

// Stop ends Run and waits for it to return.
func (h *Hub) Stop() {
	close(h.quit)
	<-h.done
}
