package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/radieske/sports-arbitrage-platform/internal/portfolio/dto"
	"github.com/radieske/sports-arbitrage-platform/internal/portfolio/repo"
	"github.com/radieske/sports-arbitrage-platform/internal/shared/auth"
)

type fakeRepo struct {
	balance int64
	refs    map[string]bool
}

func (f *fakeRepo) GetOrCreate(ctx context.Context, userID string) (repo.Portfolio, error) {
	return repo.Portfolio{ID: "p1", UserID: userID, BalanceCents: f.balance}, nil
}

func (f *fakeRepo) Deposit(ctx context.Context, userID string, amount int64, ref string) (repo.Portfolio, error) {
	if ref != "" && f.refs[ref] {
		return f.GetOrCreate(ctx, userID)
	}
	if f.refs == nil {
		f.refs = map[string]bool{}
	}
	f.refs[ref] = true
	f.balance += amount
	return f.GetOrCreate(ctx, userID)
}

func (f *fakeRepo) Withdraw(ctx context.Context, userID string, amount int64, ref string) (repo.Portfolio, error) {
	if f.balance < amount {
		return repo.Portfolio{}, repo.ErrInsufficientFunds
	}
	f.balance -= amount
	return f.GetOrCreate(ctx, userID)
}

func (f *fakeRepo) Ledger(ctx context.Context, userID string, limit int) ([]repo.LedgerEntry, error) {
	return []repo.LedgerEntry{{ID: 1, OperationType: "DEPOSIT", AmountCents: f.balance}}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithUser(req.Context(), auth.User{ID: "u1", Role: auth.RoleUser}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPortfolioFlow(t *testing.T) {
	f := &fakeRepo{}
	h := NewServer(zap.NewNop(), f).Router()

	rec := do(t, h, http.MethodPost, "/deposit", `{"amount_cents":2500,"external_ref":"d1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("deposit status = %d body=%s", rec.Code, rec.Body)
	}
	// repetido com o mesmo ref não credita de novo
	do(t, h, http.MethodPost, "/deposit", `{"amount_cents":2500,"external_ref":"d1"}`)

	rec = do(t, h, http.MethodGet, "/", "")
	var got dto.PortfolioResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.BalanceCents != 2500 || got.UserID != "u1" || len(got.Ledger) != 1 {
		t.Fatalf("portfolio = %+v", got)
	}
}

func TestPortfolioErrors(t *testing.T) {
	h := NewServer(zap.NewNop(), &fakeRepo{balance: 100}).Router()

	cases := []struct {
		name, path, body string
		want             int
	}{
		{"bad json", "/deposit", `{`, http.StatusBadRequest},
		{"zero amount", "/deposit", `{"amount_cents":0}`, http.StatusBadRequest},
		{"insufficient", "/withdraw", `{"amount_cents":500}`, http.StatusConflict},
		{"ok withdraw", "/withdraw", `{"amount_cents":50}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, tc.path, tc.body); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
