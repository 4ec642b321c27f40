package core

import "context"

type connKey struct{}

// conn is what a component is being served on.
type conn struct {
	socket  *Socket
	session Session
	params  Params
}

// BuildContext attaches the connection values a component may need.
// socket is nil during the initial HTTP render.
func BuildContext(ctx context.Context, socket *Socket, session Session, params Params) context.Context {
	return context.WithValue(ctx, connKey{}, conn{socket: socket, session: session, params: params})
}

func connFrom(ctx context.Context) conn {
	c, _ := ctx.Value(connKey{}).(conn)
	return c
}

// SocketFromContext returns the live socket, or nil outside a connection.
func SocketFromContext(ctx context.Context) *Socket { return connFrom(ctx).socket }

func SessionFromContext(ctx context.Context) Session { return connFrom(ctx).session }

func ParamsFromContext(ctx context.Context) Params { return connFrom(ctx).params }
