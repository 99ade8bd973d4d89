package interfaces

import (
	"context"

	"go-offline-proxy/internal/models"
)

//go:generate mockgen -package=mock -source=host.go -destination=mock/host.go

// ClientNotifier broadcasts a message to every connected client
type ClientNotifier interface {
	Broadcast(ctx context.Context, msg models.ClientMessage) int // returns the number of clients reached
}

// WorkerController lets an interceptor force the host to hand it control
type WorkerController interface {
	SkipWaiting(ctx context.Context) error
}
