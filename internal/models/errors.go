package models

import "errors"

// Domain errors shared across services. Handlers map these onto HTTP status
// codes with errors.Is; everything else is treated as a 500.
var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("requested item not found")
	ErrConflict              = errors.New("item already exists or conflict")
	ErrUnauthenticated       = errors.New("authentication required or invalid credentials")
	ErrSubscriptionNotFound  = errors.New("no subscription matches the provider payment id")
	ErrUnknownProviderStatus = errors.New("unknown provider payment status")
	ErrPersistenceConflict   = errors.New("concurrent update lost the race")
	ErrMalformedResponse     = errors.New("model response could not be decoded")
)
