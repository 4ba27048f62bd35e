package errors

import "fmt"

var (
	ErrInvalidOfferInput     = fmt.Errorf("invalid offer input")
	ErrInvalidTransition     = fmt.Errorf("invalid offer status transition")
	ErrInvalidMessage        = fmt.Errorf("invalid negotiation message")
	ErrOfferSubmissionFailed = fmt.Errorf("offer submission failed")
	ErrChannelUnavailable    = fmt.Errorf("negotiation channel unavailable")
	ErrSessionNotActive      = fmt.Errorf("negotiation session not active")
	ErrUnknownOffer          = fmt.Errorf("unknown offer")
	ErrInvalidDomainKey      = fmt.Errorf("invalid domain key")
	ErrInvalidToken          = fmt.Errorf("invalid session token")
)
