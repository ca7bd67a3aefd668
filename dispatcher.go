package register

import (
	"context"

	"github.com/google/uuid"
)

// Contact identifies one side of a notification
type Contact struct {
	Name    string      `json:"name,omitempty"`
	Address string      `json:"address,omitempty"`
	Channel ChannelType `json:"channel,omitempty"`
}

// ProcessPayload is everything a dispatcher needs to deliver a token. The
// core only builds the payload; actual delivery lives outside this module.
type ProcessPayload struct {
	Token string  `json:"token"`
	Title string  `json:"title,omitempty"`
	To    Contact `json:"to"`
	From  Contact `json:"from,omitempty"`
}

// ProcessDispatcher starts the out-of-band delivery of a verification or
// approbation token and returns an opaque dispatch id. Implementations run
// best-effort relative to the state transition: failures are logged by the
// caller, never rolled back into the registration.
type ProcessDispatcher interface {
	StartVerifyProcess(ctx context.Context, payload ProcessPayload) (string, error)
	StartApproveProcess(ctx context.Context, payload ProcessPayload) (string, error)
}

type noopDispatcher struct{}

func (noopDispatcher) StartVerifyProcess(ctx context.Context, payload ProcessPayload) (string, error) {
	return uuid.NewString(), nil
}

func (noopDispatcher) StartApproveProcess(ctx context.Context, payload ProcessPayload) (string, error) {
	return uuid.NewString(), nil
}

// NoopDispatcher returns a dispatcher that accepts every payload and does
// nothing, for setups where delivery is handled elsewhere.
func NoopDispatcher() ProcessDispatcher {
	return noopDispatcher{}
}

// LoggingDispatcher writes payloads to the logger instead of delivering them.
// Useful in development and tests.
type LoggingDispatcher struct {
	Logger Logger
}

// StartVerifyProcess logs the verification payload
func (d LoggingDispatcher) StartVerifyProcess(ctx context.Context, payload ProcessPayload) (string, error) {
	id := uuid.NewString()
	d.getLogger().Info("dispatch verify process",
		"dispatch_id", id,
		"to", payload.To.Address,
		"channel", payload.To.Channel,
	)
	return id, nil
}

// StartApproveProcess logs the approbation payload
func (d LoggingDispatcher) StartApproveProcess(ctx context.Context, payload ProcessPayload) (string, error) {
	id := uuid.NewString()
	d.getLogger().Info("dispatch approve process",
		"dispatch_id", id,
		"to", payload.To.Address,
		"channel", payload.To.Channel,
	)
	return id, nil
}

func (d LoggingDispatcher) getLogger() Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return defLogger{}
}

func normalizeDispatcher(d ProcessDispatcher) ProcessDispatcher {
	if d == nil {
		return noopDispatcher{}
	}
	return d
}
