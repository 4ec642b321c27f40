package router

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/seasky/seasky-web/pkg/core"
	"github.com/seasky/seasky-web/pkg/logging"
	"github.com/seasky/seasky-web/pkg/transport"
)

// serveLive upgrades the request and runs the component's event loop until
// the browser leaves.
func (r *Router) serveLive(w http.ResponseWriter, req *http.Request, comp core.Component) {
	ws, err := transport.Accept(w, req, r.wsConfig)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", logging.String("path", req.URL.Path), logging.Err(err))
		return
	}

	r.conns.Add(1)
	defer r.conns.Done()

	socket := core.NewSocket(newSocketID(), newTransportAdapter(ws))
	if sc, ok := comp.(interface{ SetSocket(*core.Socket) }); ok {
		sc.SetSocket(socket)
	}

	session := extractSession(req)
	params := extractParams(req)
	live := r.sessions.Create(socket, comp, params, session)
	defer r.sessions.Remove(live.ID)

	log := r.logger.With(
		logging.String("socket_id", socket.ID()),
		logging.String("component", comp.Name()),
	)
	ctx := core.BuildContext(req.Context(), socket, session, params)
	ctx = logging.ContextWithLogger(ctx, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ws.Run(gctx) })
	g.Go(func() error {
		defer ws.Close()
		return r.eventLoop(gctx, live, ws.Receive())
	})

	if err := g.Wait(); err != nil {
		log.Debug("live connection ended", logging.Err(err))
	}

	reason := core.TerminateNormal
	if !live.left.Load() {
		reason = core.TerminateShutdown
	}
	r.safeCall(ctx, live, "terminate", func() error {
		return comp.Terminate(context.WithoutCancel(ctx), reason)
	})
	_ = socket.Close()
}

func (r *Router) eventLoop(ctx context.Context, live *LiveSession, recv <-chan transport.Message) error {
	for {
		select {
		case msg, ok := <-recv:
			if !ok {
				return nil
			}
			live.Touch()

			switch msg.Event {
			case "heartbeat":
				r.reply(live, msg, "ok", nil)

			case "phx_join":
				r.handleJoin(ctx, live, msg)

			case "phx_leave":
				live.left.Store(true)
				r.reply(live, msg, "ok", nil)
				return nil

			default:
				if !live.Mounted() {
					r.reply(live, msg, "error", map[string]any{"reason": ErrNotJoined.Error()})
					continue
				}
				payload := msg.Payload
				if payload == nil {
					payload = map[string]any{}
				}
				err := r.safeCall(ctx, live, msg.Event, func() error {
					return live.Component.HandleEvent(ctx, msg.Event, payload)
				})
				if err != nil {
					r.reply(live, msg, "error", map[string]any{"reason": err.Error()})
					continue
				}
				r.reply(live, msg, "ok", nil)
				r.pushRender(ctx, live)
			}

		case info := <-live.Socket.Info():
			if !live.Mounted() {
				continue
			}
			err := r.safeCall(ctx, live, "info", func() error {
				return live.Component.HandleInfo(ctx, info)
			})
			if err == nil {
				r.pushRender(ctx, live)
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Router) handleJoin(ctx context.Context, live *LiveSession, msg transport.Message) {
	if !live.Mounted() {
		err := r.safeCall(ctx, live, "mount", func() error {
			return live.Component.Mount(ctx, live.Params, live.Session)
		})
		if err != nil {
			r.reply(live, msg, "error", map[string]any{"reason": err.Error()})
			return
		}
		live.setMounted()
	}

	html, err := r.render(ctx, live)
	if err != nil {
		r.reply(live, msg, "error", map[string]any{"reason": err.Error()})
		return
	}
	live.swapHash(hashHTML(html))
	r.reply(live, msg, "ok", map[string]any{"rendered": html})
}

// pushRender re-renders and pushes the page if it changed.
func (r *Router) pushRender(ctx context.Context, live *LiveSession) {
	html, err := r.render(ctx, live)
	if err != nil {
		logging.L(ctx).Error("render failed", logging.Err(err))
		return
	}
	if !live.swapHash(hashHTML(html)) {
		return
	}
	if err := live.Socket.Push("diff", map[string]any{"v": live.nextVersion(), "f": html}); err != nil {
		logging.L(ctx).Warn("push failed", logging.Err(err))
	}
}

func (r *Router) render(ctx context.Context, live *LiveSession) (string, error) {
	var buf bytes.Buffer
	err := r.safeCall(ctx, live, "render", func() error {
		return renderComponent(ctx, live.Component, &buf)
	})
	return buf.String(), err
}

// safeCall runs a component callback and converts a panic into an error so
// one faulty handler does not take the connection down.
func (r *Router) safeCall(ctx context.Context, live *LiveSession, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s panicked: %v", op, rec)
			logging.L(ctx).Error("component panic",
				logging.String("op", op),
				logging.String("component", live.Component.Name()),
				logging.Any("panic", rec),
			)
		}
	}()
	return fn()
}

func (r *Router) reply(live *LiveSession, msg transport.Message, status string, response map[string]any) {
	_ = live.Socket.Send(core.Message{
		Ref:   msg.Ref,
		Topic: msg.Topic,
		Event: "phx_reply",
		Payload: map[string]any{
			"status":   status,
			"response": response,
		},
	})
}

func hashHTML(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
