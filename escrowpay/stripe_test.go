package escrowpay

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/form"
)

// stubBackend answers Stripe API calls from canned payment intents and
// records the requests it receives.
type stubBackend struct {
	intents []*stripe.PaymentIntent
	calls   []string
}

func (b *stubBackend) Call(method, path, key string, params stripe.ParamsContainer, v stripe.LastResponseSetter) error {
	b.calls = append(b.calls, method+" "+path)
	if intent, ok := v.(*stripe.PaymentIntent); ok {
		for _, pi := range b.intents {
			if strings.Contains(path, pi.ID) {
				*intent = *pi
				intent.Status = stripe.PaymentIntentStatusCanceled
			}
		}
	}
	return nil
}

func (b *stubBackend) CallRaw(method, path, key string, body *form.Values, params *stripe.Params, v stripe.LastResponseSetter) error {
	b.calls = append(b.calls, method+" "+path)
	if result, ok := v.(*stripe.PaymentIntentSearchResult); ok {
		result.Data = b.intents
	}
	return nil
}

func (b *stubBackend) CallStreaming(method, path, key string, params stripe.ParamsContainer, v stripe.StreamingLastResponseSetter) error {
	return nil
}

func (b *stubBackend) CallMultipart(method, path, key, boundary string, body *bytes.Buffer, params *stripe.Params, v stripe.LastResponseSetter) error {
	return nil
}

func (b *stubBackend) SetMaxNetworkRetries(maxNetworkRetries int64) {}

func newStubProvider(backend *stubBackend) *StripeProvider {
	api := &client.API{}
	api.Init("sk_test", &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &StripeProvider{api: api}
}

func TestStripeProvider_RefundEscrow(t *testing.T) {
	t.Run("cancels every held intent", func(t *testing.T) {
		backend := &stubBackend{intents: []*stripe.PaymentIntent{
			{ID: "pi_creator", Status: stripe.PaymentIntentStatusRequiresCapture},
			{ID: "pi_opponent", Status: stripe.PaymentIntentStatusRequiresCapture},
		}}
		p := newStubProvider(backend)

		ref, err := p.RefundEscrow(context.Background(), "esc-1", "wager cancelled")
		require.NoError(t, err)
		assert.Equal(t, "pi_creator,pi_opponent", ref)
		assert.Contains(t, backend.calls, "POST /v1/payment_intents/pi_creator/cancel")
		assert.Contains(t, backend.calls, "POST /v1/payment_intents/pi_opponent/cancel")
	})

	t.Run("replay skips already cancelled intents", func(t *testing.T) {
		backend := &stubBackend{intents: []*stripe.PaymentIntent{
			{ID: "pi_creator", Status: stripe.PaymentIntentStatusCanceled},
		}}
		p := newStubProvider(backend)

		ref, err := p.RefundEscrow(context.Background(), "esc-1", "retry")
		require.NoError(t, err)
		assert.Equal(t, "pi_creator", ref)
		for _, call := range backend.calls {
			assert.NotContains(t, call, "/cancel")
		}
	})

	t.Run("escrow without intents errors", func(t *testing.T) {
		p := newStubProvider(&stubBackend{})

		_, err := p.RefundEscrow(context.Background(), "esc-missing", "cancelled")
		assert.ErrorContains(t, err, "no payment intents")
	})
}
