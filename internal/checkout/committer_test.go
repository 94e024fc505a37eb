package checkout

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Emmannue01/trend-caps/internal/cart"
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/order"
)

type fakeResolver struct {
	c   *coupon.Coupon
	err error
}

func (f *fakeResolver) Resolve(ctx context.Context, code string) (*coupon.Coupon, error) {
	return f.c, f.err
}

type fakePublisher struct {
	published []*order.Order
	err       error
}

func (f *fakePublisher) PublishOrderPlaced(ctx context.Context, o *order.Order) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, o)
	return nil
}

// buildCommitter wires real repositories over the mock pool. The
// repositories only touch the database through the transaction the
// committer hands them, so their own pool reference can stay nil.
func buildCommitter(pool TxBeginner, resolver coupon.Resolver, pub Publisher) *Committer {
	return NewCommitter(pool,
		order.NewPostgresRepository(nil),
		catalog.NewPostgresRepository(nil),
		cart.NewPostgresRepository(nil),
		resolver, pub, zerolog.Nop())
}

func validInput() Input {
	return Input{
		AccountID: "acct-1",
		Lines: []cart.Line{
			{ProductID: "cap-1", Name: "Classic Cap", Quantity: 2, UnitPrice: 20},
			{ProductID: "shirt-1", Name: "Logo Tee", Size: "M", Quantity: 1, UnitPrice: 30},
		},
		Shipping: order.ShippingInfo{
			Street: "Av. Reforma 1", City: "CDMX", State: "CDMX", ZipCode: "06600", Country: "MX",
		},
	}
}

// anyOrderArgs wildcards every column of the 18-argument order insert;
// pgxmock matches argument counts even when WithArgs is omitted.
func anyOrderArgs() []interface{} {
	args := make([]interface{}, 18)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func expectCommitBatch(mock pgxmock.PgxPoolIface) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders (`)).
		WithArgs(anyOrderArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO account_orders (`)).
		WithArgs(anyOrderArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE product_stock`)).
		WithArgs("cap-1", "", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE product_stock`)).
		WithArgs("shirt-1", "M", 1).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM cart_lines WHERE account_id = $1`)).
		WithArgs("acct-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("commits orders, stock, and cart in one transaction", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectCommitBatch(mock)

		pub := &fakePublisher{}
		c := buildCommitter(mock, &fakeResolver{err: coupon.ErrNotFound}, pub)

		res, err := c.PlaceOrder(ctx, validInput())
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())

		o := res.Order
		require.NotEmpty(t, o.ID)
		require.Equal(t, "acct-1", o.AccountID)
		require.Equal(t, order.StatusProcessing, o.Status)
		require.Equal(t, 70.0, o.Subtotal)
		require.Equal(t, 0.0, o.Discount)
		require.Equal(t, 70.0, o.Total)
		require.Nil(t, o.AppliedCoupon)
		require.False(t, res.CouponRejected)

		require.Len(t, pub.published, 1)
		require.Equal(t, o.ID, pub.published[0].ID)
	})

	t.Run("applies a resolved coupon", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectCommitBatch(mock)

		resolver := &fakeResolver{c: &coupon.Coupon{
			Code: "SAVE10", DiscountType: coupon.DiscountPercentage, DiscountValue: 10,
		}}
		c := buildCommitter(mock, resolver, nil)

		in := validInput()
		in.CouponCode = "SAVE10"
		res, err := c.PlaceOrder(ctx, in)
		require.NoError(t, err)

		require.Equal(t, 70.0, res.Order.Subtotal)
		require.Equal(t, 7.0, res.Order.Discount)
		require.Equal(t, 63.0, res.Order.Total)
		require.NotNil(t, res.Order.AppliedCoupon)
		require.Equal(t, "SAVE10", res.Order.AppliedCoupon.Code)
	})

	t.Run("unknown coupon places the order undiscounted", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectCommitBatch(mock)

		c := buildCommitter(mock, &fakeResolver{err: coupon.ErrNotFound}, nil)

		in := validInput()
		in.CouponCode = "EXPIRED"
		res, err := c.PlaceOrder(ctx, in)
		require.NoError(t, err)
		require.True(t, res.CouponRejected)
		require.Nil(t, res.Order.AppliedCoupon)
		require.Equal(t, 70.0, res.Order.Total)
	})

	t.Run("mid-batch failure rolls everything back", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO orders (`)).
			WithArgs(anyOrderArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO account_orders (`)).
			WithArgs(anyOrderArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE product_stock`)).
			WithArgs("cap-1", "", 2).
			WillReturnError(errors.New("connection reset"))
		mock.ExpectRollback()

		pub := &fakePublisher{}
		c := buildCommitter(mock, &fakeResolver{err: coupon.ErrNotFound}, pub)

		_, err = c.PlaceOrder(ctx, validInput())
		require.ErrorIs(t, err, ErrCommitFailed)
		require.NoError(t, mock.ExpectationsWereMet())
		require.Empty(t, pub.published)
	})

	t.Run("validation failures never reach the database", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		c := buildCommitter(mock, &fakeResolver{}, nil)

		in := validInput()
		in.Lines = nil
		_, err = c.PlaceOrder(ctx, in)
		require.ErrorIs(t, err, ErrEmptyCart)

		in = validInput()
		in.AccountID = ""
		_, err = c.PlaceOrder(ctx, in)
		require.ErrorIs(t, err, ErrNoAccount)

		in = validInput()
		in.Shipping.ZipCode = ""
		_, err = c.PlaceOrder(ctx, in)
		require.ErrorIs(t, err, ErrMissingShipping)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("publish failure does not fail the order", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		expectCommitBatch(mock)

		c := buildCommitter(mock, &fakeResolver{err: coupon.ErrNotFound}, &fakePublisher{err: errors.New("broker down")})

		res, err := c.PlaceOrder(ctx, validInput())
		require.NoError(t, err)
		require.NotNil(t, res.Order)
	})
}
