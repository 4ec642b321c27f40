package router

import (
	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/transport"
)

// transportAdapter lets a core.Socket write to a WebSocket.
type transportAdapter struct {
	ws *transport.WebSocket
}

func newTransportAdapter(ws *transport.WebSocket) *transportAdapter {
	return &transportAdapter{ws: ws}
}

func (a *transportAdapter) Send(msg core.Message) error {
	return a.ws.Send(transport.Message{
		Ref:     msg.Ref,
		Topic:   msg.Topic,
		Event:   msg.Event,
		Payload: msg.Payload,
	})
}

func (a *transportAdapter) Close() error {
	return a.ws.Close()
}
