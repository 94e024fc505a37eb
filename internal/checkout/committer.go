// Package checkout finalizes a purchase: it turns the current cart into
// an order and commits the order records, the stock decrements, and the
// cart clear as one indivisible batch.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/Emmannue01/trend-caps/internal/cart"
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/order"
	"github.com/Emmannue01/trend-caps/internal/pricing"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrNoAccount       = errors.New("an account is required to place an order")
	ErrMissingShipping = errors.New("shipping address is incomplete")

	// ErrCommitFailed is the generic retryable outcome for any storage
	// failure inside the batch. There is no idempotency key, so retrying
	// after a false negative can duplicate the order.
	ErrCommitFailed = errors.New("order failed, please retry")
)

// TxBeginner matches *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher notifies fulfillment after a successful commit. Publishing
// is best-effort; the order already exists either way.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, o *order.Order) error
}

type Input struct {
	AccountID  string
	Lines      []cart.Line
	CouponCode string
	Shipping   order.ShippingInfo
}

type Result struct {
	Order *order.Order
	// CouponRejected is set when the supplied code resolved to nothing;
	// the order was still placed, without a discount.
	CouponRejected bool
}

type Committer struct {
	pool    TxBeginner
	orders  order.Repository
	stock   catalog.Repository
	carts   cart.Repository
	coupons coupon.Resolver
	pub     Publisher
	log     zerolog.Logger
}

func NewCommitter(pool TxBeginner, orders order.Repository, stock catalog.Repository,
	carts cart.Repository, coupons coupon.Resolver, pub Publisher, log zerolog.Logger) *Committer {
	return &Committer{
		pool:    pool,
		orders:  orders,
		stock:   stock,
		carts:   carts,
		coupons: coupons,
		pub:     pub,
		log:     log,
	}
}

// PlaceOrder validates, prices, and commits the purchase. On success the
// order exists in both namespaces with status processing, every line's
// stock counter has taken its decrement, and the account's persisted
// cart rows are gone. On failure nothing above persisted.
//
// Stock is decremented without being read, so concurrent orders for the
// last unit all commit and the counter goes negative.
func (c *Committer) PlaceOrder(ctx context.Context, in Input) (*Result, error) {
	if len(in.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if in.AccountID == "" {
		return nil, ErrNoAccount
	}
	if !in.Shipping.Complete() {
		return nil, ErrMissingShipping
	}

	res := &Result{}

	var applied *coupon.Coupon
	if in.CouponCode != "" {
		resolved, err := c.coupons.Resolve(ctx, in.CouponCode)
		switch {
		case errors.Is(err, coupon.ErrNotFound):
			res.CouponRejected = true
		case err != nil:
			return nil, err
		default:
			applied = resolved
		}
	}

	items := make([]order.Item, 0, len(in.Lines))
	for _, l := range in.Lines {
		items = append(items, order.Item{
			ProductID: l.ProductID,
			Name:      l.Name,
			Size:      l.Size,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}

	totals := pricing.ComputeTotals(cart.Amounts(in.Lines), applied)

	o := &order.Order{
		ID:        uuid.NewString(),
		AccountID: in.AccountID,
		Items:     items,
		Subtotal:  totals.Subtotal,
		Discount:  totals.Discount,
		Total:     totals.Total,
		Status:    order.StatusProcessing,
		Shipping:  in.Shipping,
		CreatedAt: time.Now().UTC(),
	}
	if applied != nil {
		o.AppliedCoupon = &order.AppliedCoupon{
			Code:          applied.Code,
			DiscountType:  applied.DiscountType,
			DiscountValue: applied.DiscountValue,
		}
	}

	if err := c.commit(ctx, o, in.AccountID); err != nil {
		c.log.Error().Err(err).Str("accountId", in.AccountID).Msg("order commit failed")
		return nil, ErrCommitFailed
	}

	if c.pub != nil {
		if err := c.pub.PublishOrderPlaced(ctx, o); err != nil {
			c.log.Warn().Err(err).Str("orderId", o.ID).Msg("order placed event not published")
		}
	}

	c.log.Info().Str("orderId", o.ID).Str("accountId", in.AccountID).
		Float64("total", o.Total).Msg("order placed")

	res.Order = o
	return res, nil
}

func (c *Committer) commit(ctx context.Context, o *order.Order, accountID string) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := c.orders.CreateTx(ctx, tx, o); err != nil {
		return err
	}

	for _, item := range o.Items {
		if err := c.stock.DecrementStock(ctx, tx, item.ProductID, item.Size, item.Quantity); err != nil {
			return err
		}
	}

	if err := c.carts.ClearTx(ctx, tx, accountID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
