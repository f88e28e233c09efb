package outbox

import (
	"context"
	"errors"
	"fmt"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg *Message) error
}

type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// TopicRouter dispatches each message to the handler registered for its topic.
type TopicRouter struct {
	handlers map[string]Handler
}

func NewTopicRouter() *TopicRouter {
	return &TopicRouter{handlers: make(map[string]Handler)}
}

func (r *TopicRouter) Handle(topic string, h Handler) {
	r.handlers[topic] = h
}

func (r *TopicRouter) Dispatch(ctx context.Context, msg *Message) error {
	h, ok := r.handlers[msg.Topic]
	if !ok {
		return Permanent(fmt.Errorf("no handler for topic %q", msg.Topic))
	}
	return h.Handle(ctx, msg)
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the relay dead-letters the message at once.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
