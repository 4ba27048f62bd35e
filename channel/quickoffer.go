package channel

import (
	"fmt"

	"deal-lab/domain"
	"deal-lab/errors"
)

// quickOfferBody is the canonical template shared by every producer of
// offer-kind messages. Consumers rely on the Kind tag, never on this text.
const quickOfferBody = "offer of %s for %s"

// QuickOffer translates a structured price proposal into a canonical
// offer-kind message. A quick-offer shortcut and a manually composed
// offer go through this same constructor, so both are representationally
// identical on the wire.
func QuickOffer(key domain.DomainKey, sender domain.Role, amount string) (domain.NegotiationMessage, error) {
	if _, ok := domain.ParsePrice(amount); !ok {
		return domain.NegotiationMessage{}, fmt.Errorf("%w: amount %q must be a positive decimal",
			errors.ErrInvalidMessage, amount)
	}
	return domain.NegotiationMessage{
		Key:    key,
		Sender: sender,
		Kind:   domain.KindOffer,
		Body:   fmt.Sprintf(quickOfferBody, amount, key.Name()),
		Amount: amount,
	}, nil
}
