// Package runtime drives negotiation sessions. It owns the transport
// handle, the channel instance and the session state machine, and is
// the single place coupling the offer lifecycle to the channel.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"deal-lab/channel"
	"deal-lab/contract"
	"deal-lab/domain"
	"deal-lab/errors"
	"deal-lab/lifecycle"
)

type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateConnecting SessionState = "connecting"
	StateActive     SessionState = "active"
	StateError      SessionState = "error"
	StateClosed     SessionState = "closed"
)

// Orchestrator serializes every mutating call against one session.
// Collaborator handles are passed in explicitly and torn down on Stop;
// nothing here lives in module-scoped state.
type Orchestrator struct {
	mu        sync.Mutex
	log       *slog.Logger
	clock     contract.Clock
	offers    *lifecycle.Manager
	book      *channel.Book
	transport contract.Transport
	market    contract.OrderbookProvider
	backend   contract.SubmissionBackend
	identity  contract.IdentityProvider

	state        SessionState
	reason       string
	key          domain.DomainKey
	participants domain.Participants
	channel      *channel.Channel
	subscription contract.Subscription
	snapshot     *domain.OrderbookSnapshot
}

// NewOrchestrator wires a session engine. The submission backend may be
// nil, in which case offers are tracked locally without settlement.
func NewOrchestrator(log *slog.Logger, clock contract.Clock, offers *lifecycle.Manager,
	book *channel.Book, transport contract.Transport, market contract.OrderbookProvider,
	backend contract.SubmissionBackend, identity contract.IdentityProvider) *Orchestrator {
	return &Orchestrator{
		log:       log,
		clock:     clock,
		offers:    offers,
		book:      book,
		transport: transport,
		market:    market,
		backend:   backend,
		identity:  identity,
		state:     StateIdle,
	}
}

// State reports the session state and, in the error state, its reason.
func (o *Orchestrator) State() (SessionState, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.reason
}

// Start opens the channel, loads history and subscribes to the stream.
// Either collaborator failing moves the session to the error state.
func (o *Orchestrator) Start(ctx context.Context, key domain.DomainKey, participants domain.Participants) error {
	o.mu.Lock()
	switch o.state {
	case StateIdle, StateClosed:
	default:
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: cannot start from state %s", errors.ErrChannelUnavailable, state)
	}
	o.state = StateConnecting
	o.reason = ""
	o.key = key
	o.participants = participants
	o.channel = o.book.Open(key, participants)
	o.mu.Unlock()

	o.log.Info("session connecting", "domain", key.Name())

	// Collaborator calls run unlocked: a live delivery racing the
	// history fetch is expected and collapses inside the channel.
	history, err := o.transport.FetchHistory(ctx, key)
	if err != nil {
		return o.fail(fmt.Errorf("%w: history fetch: %v", errors.ErrChannelUnavailable, err))
	}

	sub, err := o.transport.Subscribe(ctx, key, o.deliver)
	if err != nil {
		return o.fail(fmt.Errorf("%w: stream subscribe: %v", errors.ErrChannelUnavailable, err))
	}

	o.mu.Lock()
	if o.state != StateConnecting {
		// Stop raced the subscribe; release the handle and keep the
		// state the stop established.
		o.mu.Unlock()
		_ = sub.Close()
		return nil
	}
	o.subscription = sub
	o.channel.LoadHistory(history)
	o.state = StateActive
	o.mu.Unlock()

	o.log.Info("session active", "domain", key.Name(), "history", len(history))
	return nil
}

// Restart recovers from the error state by re-running Start with the
// retained key and participants.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateError {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("%w: restart only recovers the error state, session is %s",
			errors.ErrChannelUnavailable, state)
	}
	o.state = StateIdle
	key, participants := o.key, o.participants
	o.mu.Unlock()

	return o.Start(ctx, key, participants)
}

// Stop releases the stream subscription synchronously and closes the
// session. The channel stays readable for history.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	sub := o.subscription
	name := o.key.Name()
	o.subscription = nil
	o.state = StateClosed
	o.mu.Unlock()

	if sub != nil {
		if err := sub.Close(); err != nil {
			o.log.Warn("subscription close failed", "error", err)
		}
	}
	o.log.Info("session closed", "domain", name)
}

// deliver is the stream callback. Deliveries racing a Stop land after
// the session closed and are silently dropped, not errors.
func (o *Orchestrator) deliver(msg domain.NegotiationMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateActive && o.state != StateConnecting {
		return
	}
	result, err := o.channel.Ingest(msg)
	if err != nil {
		o.log.Warn("rejected inbound message", "message_id", msg.ID, "error", err)
		return
	}
	if result == channel.IngestDuplicate {
		o.log.Debug("duplicate delivery ignored", "message_id", msg.ID)
	}
}

// SubmitOffer creates a time-boxed offer, settles it through the backend
// when one is configured, and mirrors it into the channel as an
// offer-kind message. This is the only coupling point between the
// lifecycle manager and the channel.
func (o *Orchestrator) SubmitOffer(ctx context.Context, price string, ttlMinutes int) (domain.Offer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateActive {
		return domain.Offer{}, fmt.Errorf("%w: session is %s", errors.ErrSessionNotActive, o.state)
	}

	offer, err := o.offers.Create(o.key, price, o.buyerAddress(), ttlMinutes)
	if err != nil {
		return domain.Offer{}, err
	}

	if o.backend != nil {
		receipt, err := o.backend.Submit(ctx, o.key, offer.Price, offer.ExpiresAt, offer.Buyer)
		if err != nil {
			// The backend rejected the submission: the local record is
			// cancelled and nothing is mirrored into the channel.
			if _, cancelErr := o.offers.MarkCancelled(offer.ID); cancelErr != nil {
				o.log.Warn("could not cancel rejected offer", "offer_id", offer.ID, "error", cancelErr)
			}
			return domain.Offer{}, fmt.Errorf("%w: %v", errors.ErrOfferSubmissionFailed, err)
		}
		offer, err = o.offers.Rekey(offer.ID, receipt.OfferID)
		if err != nil {
			return domain.Offer{}, err
		}
	}

	mirror, err := channel.QuickOffer(o.key, o.localRole(), offer.Price)
	if err != nil {
		return domain.Offer{}, err
	}
	sent, err := o.channel.Send(mirror.Sender, mirror.Kind, mirror.Body, mirror.Amount)
	if err != nil {
		return domain.Offer{}, err
	}
	o.publish(ctx, sent)
	return offer, nil
}

// SendText posts a plain chat message.
func (o *Orchestrator) SendText(ctx context.Context, body string) (domain.NegotiationMessage, error) {
	return o.send(ctx, domain.KindText, body, "")
}

// SendQuickOffer posts the canonical offer-kind message for the amount
// without creating a tracked offer; it is a chat-level proposal.
func (o *Orchestrator) SendQuickOffer(ctx context.Context, amount string) (domain.NegotiationMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateActive {
		return domain.NegotiationMessage{}, fmt.Errorf("%w: session is %s", errors.ErrSessionNotActive, o.state)
	}
	msg, err := channel.QuickOffer(o.key, o.localRole(), amount)
	if err != nil {
		return domain.NegotiationMessage{}, err
	}
	sent, err := o.channel.Send(msg.Sender, msg.Kind, msg.Body, msg.Amount)
	if err != nil {
		return domain.NegotiationMessage{}, err
	}
	o.publish(ctx, sent)
	return sent, nil
}

func (o *Orchestrator) send(ctx context.Context, kind domain.MessageKind, body, amount string) (domain.NegotiationMessage, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateActive {
		return domain.NegotiationMessage{}, fmt.Errorf("%w: session is %s", errors.ErrSessionNotActive, o.state)
	}
	sent, err := o.channel.Send(o.localRole(), kind, body, amount)
	if err != nil {
		return domain.NegotiationMessage{}, err
	}
	o.publish(ctx, sent)
	return sent, nil
}

// AcceptOffer routes the external settlement signal into the lifecycle
// manager and mirrors it as a system message.
func (o *Orchestrator) AcceptOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	offer, err := o.offers.MarkAccepted(offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	o.systemNote(ctx, fmt.Sprintf("offer %s accepted at %s", offer.ID, offer.Price))
	return offer, nil
}

// CancelOffer withdraws a pending offer.
func (o *Orchestrator) CancelOffer(ctx context.Context, offerID string) (domain.Offer, error) {
	offer, err := o.offers.MarkCancelled(offerID)
	if err != nil {
		return domain.Offer{}, err
	}
	o.systemNote(ctx, fmt.Sprintf("offer %s cancelled", offer.ID))
	return offer, nil
}

// publish pushes a locally inserted message to the transport. A publish
// failure keeps the message in the local log; redelivery is the
// transport's concern, not the engine's.
func (o *Orchestrator) publish(ctx context.Context, msg domain.NegotiationMessage) {
	if err := o.transport.Publish(ctx, msg); err != nil {
		o.log.Warn("publish failed, message retained locally",
			"message_id", msg.ID, "error", err)
	}
}

func (o *Orchestrator) systemNote(ctx context.Context, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateActive {
		return
	}
	sent, err := o.channel.Send(o.localRole(), domain.KindSystem, body, "")
	if err != nil {
		o.log.Warn("could not mirror lifecycle event", "error", err)
		return
	}
	o.publish(ctx, sent)
}

// Messages returns the merged ordered view, readable in every state
// once a channel was opened.
func (o *Orchestrator) Messages() []domain.NegotiationMessage {
	o.mu.Lock()
	ch := o.channel
	o.mu.Unlock()
	if ch == nil {
		return nil
	}
	return ch.View()
}

// Offers lists the session's offers with live statuses.
func (o *Orchestrator) Offers() []domain.Offer {
	return o.offers.Offers()
}

// RefreshOrderbook replaces the cached snapshot wholesale.
func (o *Orchestrator) RefreshOrderbook(ctx context.Context) (domain.OrderbookSnapshot, error) {
	o.mu.Lock()
	key := o.key
	o.mu.Unlock()

	snapshot, err := o.market.FetchOrderbook(ctx, key)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}

	o.mu.Lock()
	o.snapshot = &snapshot
	o.mu.Unlock()
	return snapshot, nil
}

// Orderbook returns the last fetched snapshot, if any.
func (o *Orchestrator) Orderbook() (domain.OrderbookSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return domain.OrderbookSnapshot{}, false
	}
	return *o.snapshot, true
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	name := o.key.Name()
	if o.state == StateConnecting || o.state == StateActive {
		o.state = StateError
		o.reason = err.Error()
	}
	o.mu.Unlock()
	o.log.Error("session failed", "domain", name, "error", err)
	return err
}

func (o *Orchestrator) buyerAddress() string {
	if o.identity != nil && o.identity.Address() != "" {
		return o.identity.Address()
	}
	return o.participants.Buyer
}

// localRole maps the authenticated address onto the session's
// participants; an unknown address defaults to the buyer side.
func (o *Orchestrator) localRole() domain.Role {
	if o.identity != nil &&
		strings.EqualFold(o.identity.Address(), o.participants.Seller) {
		return domain.RoleSeller
	}
	return domain.RoleBuyer
}
