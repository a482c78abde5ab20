package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type mockRepo struct {
	coupon *Coupon
	uses   int64

	lookupErr error
	usesErr   error
}

func (m *mockRepo) ActiveByCode(_ context.Context, _ string) (*Coupon, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	return m.coupon, nil
}

func (m *mockRepo) CustomerUses(_ context.Context, _, _ int64) (int64, error) {
	if m.usesErr != nil {
		return 0, m.usesErr
	}
	return m.uses, nil
}

func newValidator(repo *mockRepo, now time.Time) *Validator {
	v := NewValidator(repo)
	v.now = func() time.Time { return now }
	return v
}

func TestValidate(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	active := func() *Coupon {
		return &Coupon{
			ID:         7,
			Code:       "SAVE10",
			Type:       TypeDefault,
			Discount:   d("10"),
			StartDate:  now.AddDate(0, -1, 0),
			ExpireDate: now.AddDate(0, 1, 0),
		}
	}

	cand := Candidate{CustomerID: 1, StoreID: 2, ZoneID: 3}

	tests := []struct {
		name    string
		mutate  func(c *Coupon)
		repo    func(c *Coupon) *mockRepo
		cand    Candidate
		wantErr error
	}{
		{
			name: "valid coupon",
			cand: cand,
		},
		{
			name:    "not yet started",
			mutate:  func(c *Coupon) { c.StartDate = now.AddDate(0, 0, 1) },
			cand:    cand,
			wantErr: ErrExpired,
		},
		{
			name:    "past expiry",
			mutate:  func(c *Coupon) { c.ExpireDate = now.AddDate(0, 0, -1) },
			cand:    cand,
			wantErr: ErrExpired,
		},
		{
			name: "zero dates mean an open window",
			mutate: func(c *Coupon) {
				c.StartDate = time.Time{}
				c.ExpireDate = time.Time{}
			},
			cand: cand,
		},
		{
			name: "expiry checked before eligibility",
			mutate: func(c *Coupon) {
				c.ExpireDate = now.AddDate(0, 0, -1)
				c.StoreID = ptr(int64(99))
			},
			cand:    cand,
			wantErr: ErrExpired,
		},
		{
			name:    "first order coupon on a returning customer",
			mutate:  func(c *Coupon) { c.Type = TypeFirstOrder },
			cand:    Candidate{CustomerID: 1, CustomerOrderCount: 12},
			wantErr: ErrNotEligible,
		},
		{
			name:   "first order coupon on a first order",
			mutate: func(c *Coupon) { c.Type = TypeFirstOrder },
			cand:   Candidate{CustomerID: 1, CustomerOrderCount: 0},
		},
		{
			name:    "store scoped coupon on another store",
			mutate:  func(c *Coupon) { c.StoreID = ptr(int64(99)) },
			cand:    cand,
			wantErr: ErrNotEligible,
		},
		{
			name:   "store scoped coupon on the right store",
			mutate: func(c *Coupon) { c.StoreID = ptr(int64(2)) },
			cand:   cand,
		},
		{
			name:    "zone scoped coupon on another zone",
			mutate:  func(c *Coupon) { c.ZoneID = ptr(int64(99)) },
			cand:    cand,
			wantErr: ErrNotEligible,
		},
		{
			name:    "customer scoped coupon on another customer",
			mutate:  func(c *Coupon) { c.CustomerID = ptr(int64(99)) },
			cand:    cand,
			wantErr: ErrNotEligible,
		},
		{
			name:   "per-customer limit reached",
			mutate: func(c *Coupon) { c.Limit = 3 },
			repo: func(c *Coupon) *mockRepo {
				return &mockRepo{coupon: c, uses: 3}
			},
			cand:    cand,
			wantErr: ErrLimitExceeded,
		},
		{
			name:   "under the per-customer limit",
			mutate: func(c *Coupon) { c.Limit = 3 },
			repo: func(c *Coupon) *mockRepo {
				return &mockRepo{coupon: c, uses: 2}
			},
			cand: cand,
		},
		{
			name:   "zero limit means unlimited",
			mutate: func(c *Coupon) { c.Limit = 0 },
			repo: func(c *Coupon) *mockRepo {
				return &mockRepo{coupon: c, uses: 500}
			},
			cand: cand,
		},
		{
			name: "global limit exhausted",
			mutate: func(c *Coupon) {
				c.GlobalLimit = 1000
				c.TotalUses = 1000
			},
			cand:    cand,
			wantErr: ErrLimitExceeded,
		},
		{
			name: "global limit exhausted despite per-customer headroom",
			mutate: func(c *Coupon) {
				c.Limit = 5
				c.GlobalLimit = 1_000_000
				c.TotalUses = 1_000_000
			},
			cand:    cand,
			wantErr: ErrLimitExceeded,
		},
		{
			name: "under the global limit",
			mutate: func(c *Coupon) {
				c.GlobalLimit = 1000
				c.TotalUses = 999
			},
			cand: cand,
		},
		{
			name:   "zero global limit means unlimited",
			mutate: func(c *Coupon) { c.TotalUses = 1_000_000 },
			cand:   cand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := active()
			if tt.mutate != nil {
				tt.mutate(c)
			}
			repo := &mockRepo{coupon: c}
			if tt.repo != nil {
				repo = tt.repo(c)
			}

			got, err := newValidator(repo, now).Validate(context.Background(), c.Code, tt.cand)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.Code, got.Code)
		})
	}
}

func TestValidate_NotFound(t *testing.T) {
	v := newValidator(&mockRepo{lookupErr: ErrNotFound}, time.Now())

	_, err := v.Validate(context.Background(), "MISSING", Candidate{CustomerID: 1})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDiscountFor(t *testing.T) {
	tests := []struct {
		name   string
		coupon Coupon
		base   decimal.Decimal
		want   decimal.Decimal
	}{
		{
			name:   "percent discount",
			coupon: Coupon{Type: TypeDefault, Discount: d("20"), DiscountType: "percent"},
			base:   d("50"),
			want:   d("10"),
		},
		{
			name: "percent discount capped",
			coupon: Coupon{
				Type: TypeDefault, Discount: d("20"), DiscountType: "percent",
				MaxDiscount: d("10"),
			},
			base: d("200"),
			want: d("10"),
		},
		{
			name:   "amount discount",
			coupon: Coupon{Type: TypeDefault, Discount: d("15"), DiscountType: "amount"},
			base:   d("50"),
			want:   d("15"),
		},
		{
			name:   "amount discount never exceeds the base",
			coupon: Coupon{Type: TypeDefault, Discount: d("80"), DiscountType: "amount"},
			base:   d("50"),
			want:   d("50"),
		},
		{
			name: "below minimum purchase",
			coupon: Coupon{
				Type: TypeDefault, Discount: d("20"), DiscountType: "percent",
				MinPurchase: d("100"),
			},
			base: d("50"),
			want: d("0"),
		},
		{
			name:   "free delivery coupon has no monetary discount",
			coupon: Coupon{Type: TypeFreeDelivery, Discount: d("20"), DiscountType: "percent"},
			base:   d("200"),
			want:   d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.coupon.DiscountFor(tt.base)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func ptr[T any](v T) *T {
	return &v
}
