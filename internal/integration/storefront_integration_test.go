package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Emmannue01/trend-caps/internal/cart"
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/checkout"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/db"
	"github.com/Emmannue01/trend-caps/internal/order"
)

func TestStorefrontIntegration(t *testing.T) {
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION to run container-backed tests")
	}
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	pgC, dsn := startPostgres(ctx, t)
	defer terminateContainer(t, pgC)

	redisC, redisAddr := startRedis(ctx, t)
	defer terminateContainer(t, redisC)

	require.NoError(t, db.RunMigrations(dsn, zerolog.Nop()))

	pool, err := db.NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	products := catalog.NewPostgresRepository(pool)
	coupons := coupon.NewPostgresRepository(pool)
	orders := order.NewPostgresRepository(pool)
	carts := cart.NewPostgresRepository(pool)
	sessions := cart.NewSessions(carts, cart.NewRedisCache(rdb))

	hat := &catalog.Product{Name: "Classic Cap", Category: "gorras", ListPrice: 20, Stock: catalog.ScalarStock(10)}
	require.NoError(t, products.Save(ctx, hat))
	shirt := &catalog.Product{Name: "Logo Tee", Category: "playeras", ListPrice: 30,
		Stock: catalog.SizedStock(map[string]int{"S": 0, "M": 2, "L": 1, "XL": 0})}
	require.NoError(t, products.Save(ctx, shirt))

	require.NoError(t, coupons.Save(ctx, &coupon.Coupon{
		Code: "save10", DiscountType: coupon.DiscountPercentage, DiscountValue: 10, IsActive: true,
	}))

	// Anonymous browsing, then login with a merge.
	store, err := sessions.Get(ctx, "device-integration")
	require.NoError(t, err)
	require.NoError(t, store.Add(ctx, hat, ""))
	require.NoError(t, store.Add(ctx, hat, ""))
	require.NoError(t, store.Add(ctx, shirt, "M"))
	store.ApplyCoupon("save10")

	require.NoError(t, store.Bind(ctx, "acct-integration"))

	persisted, err := carts.LinesFor(ctx, "acct-integration")
	require.NoError(t, err)
	require.Len(t, persisted, 2)
	require.Equal(t, 2, persisted[hat.ID].Quantity)

	committer := checkout.NewCommitter(pool, orders, products, carts, coupons, nil, zerolog.Nop())
	res, err := committer.PlaceOrder(ctx, checkout.Input{
		AccountID:  "acct-integration",
		Lines:      store.Lines(),
		CouponCode: store.Coupon(),
		Shipping: order.ShippingInfo{
			Street: "Av. Reforma 1", City: "CDMX", State: "CDMX", ZipCode: "06600", Country: "MX",
		},
	})
	require.NoError(t, err)
	require.False(t, res.CouponRejected)
	require.Equal(t, 70.0, res.Order.Subtotal)
	require.Equal(t, 7.0, res.Order.Discount)
	require.Equal(t, 63.0, res.Order.Total)

	// The commit decremented stock and emptied the persisted cart.
	gotCap, err := products.Get(ctx, hat.ID)
	require.NoError(t, err)
	require.Equal(t, 8, gotCap.Stock.Units)

	gotShirt, err := products.Get(ctx, shirt.ID)
	require.NoError(t, err)
	require.Equal(t, 1, gotShirt.Stock.Sizes["M"])

	persisted, err = carts.LinesFor(ctx, "acct-integration")
	require.NoError(t, err)
	require.Empty(t, persisted)

	// Both namespaces hold the order.
	byID, err := orders.GetByID(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusProcessing, byID.Status)

	mine, err := orders.ListByAccount(ctx, "acct-integration")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	require.NoError(t, orders.UpdateStatus(ctx, res.Order.ID, order.StatusShipped))
	mine, err = orders.ListByAccount(ctx, "acct-integration")
	require.NoError(t, err)
	require.Equal(t, order.StatusShipped, mine[0].Status)

	earnings, err := orders.Earnings(ctx)
	require.NoError(t, err)
	require.Equal(t, 63.0, earnings.TotalEarnings)
	require.Equal(t, 1, earnings.TotalOrders)
	require.Equal(t, 3, earnings.ProductsSold)

	// Stock decrements are relative updates with no floor check. Two
	// commits racing for the last unit both succeed and the counter goes
	// negative; the oversell is accepted, not rejected.
	limited := &catalog.Product{Name: "Limited Cap", Category: "gorras", ListPrice: 25, Stock: catalog.ScalarStock(1)}
	require.NoError(t, products.Save(ctx, limited))

	shipping := order.ShippingInfo{
		Street: "Av. Reforma 1", City: "CDMX", State: "CDMX", ZipCode: "06600", Country: "MX",
	}
	var placed []string
	for _, accountID := range []string{"acct-oversell-1", "acct-oversell-2"} {
		res, err := committer.PlaceOrder(ctx, checkout.Input{
			AccountID: accountID,
			Lines: []cart.Line{{
				ProductID: limited.ID, Name: limited.Name, Quantity: 1, UnitPrice: 25,
			}},
			Shipping: shipping,
		})
		require.NoError(t, err)
		placed = append(placed, res.Order.ID)
	}

	gotLimited, err := products.Get(ctx, limited.ID)
	require.NoError(t, err)
	require.Equal(t, -1, gotLimited.Stock.Units)

	for _, id := range placed {
		got, err := orders.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 25.0, got.Total)
	}
}

func startPostgres(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "trendcaps"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/trendcaps?sslmode=disable", host, mappedPort.Port())
	return container, dsn
}

func startRedis(ctx context.Context, t *testing.T) (testcontainers.Container, string) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	mappedPort, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return container, fmt.Sprintf("%s:%s", host, mappedPort.Port())
}

func terminateContainer(t *testing.T, c testcontainers.Container) {
	t.Helper()
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Terminate(terminateCtx))
}
