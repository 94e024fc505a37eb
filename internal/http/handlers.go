package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Emmannue01/trend-caps/internal/cart"
	"github.com/Emmannue01/trend-caps/internal/catalog"
	"github.com/Emmannue01/trend-caps/internal/checkout"
	"github.com/Emmannue01/trend-caps/internal/coupon"
	"github.com/Emmannue01/trend-caps/internal/identity"
	"github.com/Emmannue01/trend-caps/internal/order"
	"github.com/Emmannue01/trend-caps/internal/pricing"
)

type Handler struct {
	products   catalog.Repository
	categories catalog.CategoryRepository
	coupons    coupon.Repository
	orders     order.Repository
	sessions   *cart.Sessions
	committer  *checkout.Committer
	timeout    time.Duration
	log        zerolog.Logger
}

func NewHandler(products catalog.Repository, categories catalog.CategoryRepository,
	coupons coupon.Repository, orders order.Repository,
	sessions *cart.Sessions, committer *checkout.Committer, timeout time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		products:   products,
		categories: categories,
		coupons:    coupons,
		orders:     orders,
		sessions:   sessions,
		committer:  committer,
		timeout:    timeout,
		log:        log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- catalog ---

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	products, err := h.products.List(ctx)
	if err != nil {
		h.internal(w, err, "failed to load products")
		return
	}
	if products == nil {
		products = []catalog.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	p, err := h.products.Get(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internal(w, err, "failed to load product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if id := chi.URLParam(r, "productId"); id != "" {
		p.ID = id
	}
	if p.Name == "" || p.ListPrice < 0 {
		writeError(w, http.StatusBadRequest, "name and a non-negative price are required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.products.Save(ctx, &p); err != nil {
		h.internal(w, err, "failed to save product")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.products.Delete(ctx, chi.URLParam(r, "productId")); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internal(w, err, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- categories ---

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	categories, err := h.categories.ListCategories(ctx)
	if err != nil {
		h.internal(w, err, "failed to load categories")
		return
	}
	if categories == nil {
		categories = []catalog.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) SaveCategory(w http.ResponseWriter, r *http.Request) {
	var c catalog.Category
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.categories.SaveCategory(ctx, &c); err != nil {
		h.internal(w, err, "failed to save category")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.categories.DeleteCategory(ctx, chi.URLParam(r, "slug")); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "category not found")
			return
		}
		h.internal(w, err, "failed to delete category")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- cart ---

type cartView struct {
	Lines  []cart.Line    `json:"items"`
	Coupon string         `json:"coupon,omitempty"`
	Totals pricing.Totals `json:"totals"`
}

// cartStore resolves the visitor's store and, on the first request that
// carries an account identity, runs the anonymous→bound merge.
func (h *Handler) cartStore(ctx context.Context) (*cart.Store, error) {
	store, err := h.sessions.Get(ctx, identity.DeviceID(ctx))
	if err != nil {
		return nil, err
	}
	if accountID := identity.AccountID(ctx); accountID != identity.Anonymous && store.Scope() == cart.ScopeAnonymous {
		if err := store.Bind(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// view prices the cart for rendering. The applied code is re-resolved on
// every render; an unknown code simply yields no discount.
func (h *Handler) view(ctx context.Context, store *cart.Store) cartView {
	lines := store.Lines()

	var applied *coupon.Coupon
	if code := store.Coupon(); code != "" {
		if c, err := h.coupons.Resolve(ctx, code); err == nil {
			applied = c
		}
	}

	return cartView{
		Lines:  lines,
		Coupon: store.Coupon(),
		Totals: pricing.ComputeTotals(cart.Amounts(lines), applied),
	}
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}
	writeJSON(w, http.StatusOK, h.view(ctx, store))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProductID string `json:"productId"`
		Size      string `json:"size"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProductID == "" {
		writeError(w, http.StatusBadRequest, "productId is required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	p, err := h.products.Get(ctx, body.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.internal(w, err, "failed to load product")
		return
	}

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}

	if err := store.Add(ctx, p, body.Size); err != nil {
		if errors.Is(err, cart.ErrSizeRequired) || errors.Is(err, cart.ErrSizeUnavailable) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		h.internal(w, err, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, h.view(ctx, store))
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}

	if err := store.SetQuantity(ctx, chi.URLParam(r, "lineId"), body.Quantity); err != nil {
		h.internal(w, err, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, h.view(ctx, store))
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}

	if err := store.Remove(ctx, chi.URLParam(r, "lineId")); err != nil {
		h.internal(w, err, "failed to update cart")
		return
	}
	writeJSON(w, http.StatusOK, h.view(ctx, store))
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}

	valid := true
	if _, err := h.coupons.Resolve(ctx, body.Code); err != nil {
		if !errors.Is(err, coupon.ErrNotFound) {
			h.internal(w, err, "failed to resolve coupon")
			return
		}
		valid = false
	}

	if valid {
		store.ApplyCoupon(body.Code)
	}

	resp := struct {
		Valid bool `json:"valid"`
		cartView
	}{valid, h.view(ctx, store)}
	writeJSON(w, http.StatusOK, resp)
}

// --- checkout ---

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Shipping order.ShippingInfo `json:"shippingInfo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	store, err := h.cartStore(ctx)
	if err != nil {
		h.internal(w, err, "failed to load cart")
		return
	}

	res, err := h.committer.PlaceOrder(ctx, checkout.Input{
		AccountID:  identity.AccountID(ctx),
		Lines:      store.Lines(),
		CouponCode: store.Coupon(),
		Shipping:   body.Shipping,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrNoAccount):
			writeError(w, http.StatusUnauthorized, err.Error())
		case errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrMissingShipping):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, checkout.ErrCommitFailed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.internal(w, err, "checkout failed")
		}
		return
	}

	store.Reset()

	writeJSON(w, http.StatusCreated, struct {
		Order          *order.Order `json:"order"`
		CouponRejected bool         `json:"couponRejected,omitempty"`
	}{res.Order, res.CouponRejected})
}

// --- orders ---

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	accountID := identity.AccountID(r.Context())
	if accountID == identity.Anonymous {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	orders, err := h.orders.ListByAccount(ctx, accountID)
	if err != nil {
		h.internal(w, err, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetMyOrder(w http.ResponseWriter, r *http.Request) {
	accountID := identity.AccountID(r.Context())
	if accountID == identity.Anonymous {
		writeError(w, http.StatusUnauthorized, "login required")
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	o, err := h.orders.GetByID(ctx, chi.URLParam(r, "orderId"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.internal(w, err, "failed to load order")
		return
	}
	if o.AccountID != accountID {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// --- fulfillment / admin ---

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	orders, err := h.orders.ListAll(ctx)
	if err != nil {
		h.internal(w, err, "failed to load orders")
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	status, err := order.ParseStatus(body.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderId"), status); err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		h.internal(w, err, "failed to update order")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orderId": chi.URLParam(r, "orderId"), "status": status})
}

func (h *Handler) GetEarnings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	e, err := h.orders.Earnings(ctx)
	if err != nil {
		h.internal(w, err, "failed to aggregate earnings")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// --- coupons (admin) ---

func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	coupons, err := h.coupons.List(ctx)
	if err != nil {
		h.internal(w, err, "failed to load coupons")
		return
	}
	if coupons == nil {
		coupons = []coupon.Coupon{}
	}
	writeJSON(w, http.StatusOK, coupons)
}

func (h *Handler) SaveCoupon(w http.ResponseWriter, r *http.Request) {
	var c coupon.Coupon
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if c.DiscountType != coupon.DiscountPercentage && c.DiscountType != coupon.DiscountFixed {
		writeError(w, http.StatusBadRequest, "discountType must be percentage or fixed")
		return
	}
	c.IsActive = true

	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.coupons.Save(ctx, &c); err != nil {
		h.internal(w, err, "failed to save coupon")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.reqCtx(r)
	defer cancel()

	if err := h.coupons.Delete(ctx, chi.URLParam(r, "code")); err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			writeError(w, http.StatusNotFound, "coupon not found")
			return
		}
		h.internal(w, err, "failed to delete coupon")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func (h *Handler) reqCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) internal(w http.ResponseWriter, err error, msg string) {
	h.log.Error().Err(err).Msg(msg)
	writeError(w, http.StatusInternalServerError, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
