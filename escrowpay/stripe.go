package escrowpay

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeProvider holds wager funds on Stripe. Each side of the escrow is a
// manual-capture payment intent and the release is a transfer to the winner.
// Every call carries an idempotency key derived from the escrow id and
// operation, so Stripe deduplicates retries and reconciler replays.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider creates a Stripe-backed payment provider
func NewStripeProvider(apiKey string) *StripeProvider {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeProvider{api: api}
}

func idempotencyKey(escrowID, op string) *string {
	key := fmt.Sprintf("escrow-%s-%s", escrowID, op)
	return &key
}

// CreateEscrow opens a manual-capture payment intent for the creator's funds
func (p *StripeProvider) CreateEscrow(ctx context.Context, escrowID, creatorID string, creatorAmount int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: idempotencyKey(escrowID, "create"),
		},
		Amount:        stripe.Int64(creatorAmount),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata: map[string]string{
			"escrow_id": escrowID,
			"party_id":  creatorID,
			"side":      "creator",
		},
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create payment intent for escrow %s: %w", escrowID, err)
	}

	log.WithFields(log.Fields{
		"escrowID": escrowID,
		"intentID": intent.ID,
		"amount":   creatorAmount,
	}).Debug("Created creator payment intent")
	return intent.ID, nil
}

// ExtendEscrow opens a manual-capture payment intent for the opponent's funds
func (p *StripeProvider) ExtendEscrow(ctx context.Context, escrowID, opponentID string, opponentAmount int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: idempotencyKey(escrowID, "extend"),
		},
		Amount:        stripe.Int64(opponentAmount),
		Currency:      stripe.String(string(stripe.CurrencyUSD)),
		CaptureMethod: stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
		Metadata: map[string]string{
			"escrow_id": escrowID,
			"party_id":  opponentID,
			"side":      "opponent",
		},
	}

	intent, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to extend escrow %s: %w", escrowID, err)
	}
	return intent.ID, nil
}

// ReleaseEscrow transfers the full pot to the winner's connected account
func (p *StripeProvider) ReleaseEscrow(ctx context.Context, escrowID, winnerID string, amount int64) (string, error) {
	params := &stripe.TransferParams{
		Params: stripe.Params{
			Context:        ctx,
			IdempotencyKey: idempotencyKey(escrowID, "release"),
		},
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(winnerID),
		Metadata: map[string]string{
			"escrow_id": escrowID,
		},
	}

	transfer, err := p.api.Transfers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to release escrow %s: %w", escrowID, err)
	}

	log.WithFields(log.Fields{
		"escrowID":   escrowID,
		"transferID": transfer.ID,
		"winnerID":   winnerID,
		"amount":     amount,
	}).Info("Released escrow to winner")
	return transfer.ID, nil
}

// RefundEscrow cancels the held payment intents so funds return to their
// origin. Holds are manual capture, so cancelling the intents voids them
// without a charge to refund. An already cancelled intent counts as done,
// which keeps reconciler replays harmless.
func (p *StripeProvider) RefundEscrow(ctx context.Context, escrowID, reason string) (string, error) {
	search := &stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Context: ctx,
			Query:   fmt.Sprintf("metadata['escrow_id']:'%s'", escrowID),
		},
	}

	var cancelled []string
	iter := p.api.PaymentIntents.Search(search)
	for iter.Next() {
		intent := iter.PaymentIntent()
		if intent.Status == stripe.PaymentIntentStatusCanceled {
			cancelled = append(cancelled, intent.ID)
			continue
		}

		params := &stripe.PaymentIntentCancelParams{
			Params: stripe.Params{
				Context:        ctx,
				IdempotencyKey: idempotencyKey(escrowID, "cancel-"+intent.ID),
			},
			CancellationReason: stripe.String("requested_by_customer"),
		}
		if _, err := p.api.PaymentIntents.Cancel(intent.ID, params); err != nil {
			return "", fmt.Errorf("failed to cancel payment intent %s for escrow %s: %w", intent.ID, escrowID, err)
		}
		cancelled = append(cancelled, intent.ID)
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to find payment intents for escrow %s: %w", escrowID, err)
	}
	if len(cancelled) == 0 {
		return "", fmt.Errorf("no payment intents found for escrow %s", escrowID)
	}

	log.WithFields(log.Fields{
		"escrowID": escrowID,
		"intents":  cancelled,
		"reason":   reason,
	}).Info("Cancelled escrow payment intents")
	return strings.Join(cancelled, ","), nil
}
