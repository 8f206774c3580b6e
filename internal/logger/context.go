package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithBookingID tags everything logged for ctx with the booking being relayed.
func WithBookingID(ctx context.Context, bookingID string) context.Context {
	return context.WithValue(ctx, ContextKeyBookingID, bookingID)
}

func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// GenerateRequestID returns a random UUIDv4.
func GenerateRequestID() string {
	return uuid.NewString()
}
