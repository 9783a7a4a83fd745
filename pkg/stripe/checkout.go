package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

// CheckoutLine is one priced order line sent to the hosted checkout page.
type CheckoutLine struct {
	CardID          string
	Name            string
	Description     string
	UnitAmountCents int64
	Quantity        int64
}

// CheckoutRequest describes the hosted checkout session for an order.
type CheckoutRequest struct {
	OrderID       string
	OrderNumber   string
	BrokerID      string
	CustomerEmail string
	Lines         []CheckoutLine
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the subset of the created session the order flow persists.
type CheckoutSession struct {
	ID  string
	URL string
}

// CreateCheckoutSession opens a payment-mode session whose metadata carries the order id
// so webhook events can be matched back to the order.
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if len(req.Lines) == 0 {
		return nil, errors.New("checkout requires at least one line")
	}
	params := buildCheckoutParams(req, c.successURL, c.cancelURL)
	params.Context = ctx
	sess, err := c.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func buildCheckoutParams(req CheckoutRequest, defaultSuccess, defaultCancel string) *stripe.CheckoutSessionParams {
	brokerRef := req.BrokerID
	if brokerRef == "" {
		brokerRef = "direct"
	}
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = defaultSuccess
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = defaultCancel
	}

	lines := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(line.Name),
					Description: stripe.String(line.Description),
					Metadata:    map[string]string{"card_id": line.CardID},
				},
				UnitAmount: stripe.Int64(line.UnitAmountCents),
			},
			Quantity: stripe.Int64(line.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:         lines,
		CustomerEmail:     stripe.String(req.CustomerEmail),
		ClientReferenceID: stripe.String(req.OrderID),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"order_id":  req.OrderID,
				"broker_id": brokerRef,
			},
		},
	}
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("order_number", req.OrderNumber)
	params.AddMetadata("broker_id", brokerRef)
	return params
}
