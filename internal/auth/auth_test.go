package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"etender/db/dbtest"
	"etender/internal/auth"
	"etender/internal/clock"
	"etender/internal/errs"
	"etender/models"

	"github.com/stretchr/testify/require"
)

const secret = "a-test-secret-of-32-bytes-length"

var now = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func TestIssuer_RoundTrip(t *testing.T) {
	clk := clock.NewManual(now)
	iss, err := auth.NewIssuer(secret, time.Hour, clk)
	require.NoError(t, err)

	token, exp, err := iss.Issue(models.User{ID: "u-1", Role: models.RoleEvaluator})
	require.NoError(t, err)
	require.True(t, exp.Equal(now.Add(time.Hour)))

	actor, err := iss.Parse(token)
	require.NoError(t, err)
	require.Equal(t, models.Actor{ID: "u-1", Role: models.RoleEvaluator}, actor)

	clk.Advance(2 * time.Hour)
	_, err = iss.Parse(token)
	require.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
}

func TestIssuer_RejectsForeignTokens(t *testing.T) {
	clk := clock.NewManual(now)
	iss, err := auth.NewIssuer(secret, time.Hour, clk)
	require.NoError(t, err)
	other, err := auth.NewIssuer("another-secret-entirely-32-bytes", time.Hour, clk)
	require.NoError(t, err)

	token, _, err := other.Issue(models.User{ID: "u-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	_, err = iss.Parse(token)
	require.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = iss.Parse("not.a.token")
	require.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	_, err = auth.NewIssuer("short", time.Hour, clk)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	iss, err := auth.NewIssuer(secret, time.Hour, clock.NewManual(now))
	require.NoError(t, err)
	token, _, err := iss.Issue(models.User{ID: "u-7", Role: models.RoleBidder})
	require.NoError(t, err)

	var seen models.Actor
	h := iss.Middleware(auth.RequireRole(models.RoleBidder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))
	adminOnly := iss.Middleware(auth.RequireRole(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("must not be reached")
	})))

	call := func(h http.Handler, header string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/bids/my", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusUnauthorized, call(h, ""))
	require.Equal(t, http.StatusUnauthorized, call(h, "Basic abc"))
	require.Equal(t, http.StatusUnauthorized, call(h, "Bearer garbage"))
	require.Equal(t, http.StatusForbidden, call(adminOnly, "Bearer "+token))
	require.Equal(t, http.StatusNoContent, call(h, "bearer "+token))
	require.Equal(t, "u-7", seen.ID)
}

func TestParseSeed(t *testing.T) {
	users, err := auth.ParseSeed([]byte(`
users:
  - email: a@example.gov
    role: admin
    password: pw
`))
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, models.RoleAdmin, users[0].Role)

	_, err = auth.ParseSeed([]byte("users:\n  - email: a@example.gov\n    role: mayor\n    password: pw\n"))
	require.ErrorContains(t, err, "unknown role")
	_, err = auth.ParseSeed([]byte("users:\n  - email: a@example.gov\n    role: admin\n"))
	require.ErrorContains(t, err, "password")
	_, err = auth.ParseSeed([]byte("users:\n  - role: admin\n    password: pw\n"))
	require.ErrorContains(t, err, "email")
}

func TestLoadSeedAndLogin(t *testing.T) {
	ctx := context.Background()
	store := dbtest.New(t)
	clk := clock.NewManual(now)

	path := filepath.Join(t.TempDir(), "users.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
users:
  - email: Buyer@Example.gov
    name: Buyer
    role: admin
    organization: City
    password: buyer-pw
  - email: panel@example.gov
    name: Panel
    role: evaluator
    password: panel-pw
`), 0o600))

	n, err := auth.LoadSeed(ctx, store, path, clk)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// повторный запуск ничего не меняет
	n, err = auth.LoadSeed(ctx, store, path, clk)
	require.NoError(t, err)
	require.Zero(t, n)

	iss, err := auth.NewIssuer(secret, time.Hour, clk)
	require.NoError(t, err)
	svc := auth.NewService(store, iss)

	session, err := svc.Login(ctx, " buyer@example.gov ", "buyer-pw")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, session.User.Role)
	actor, err := iss.Parse(session.Token)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, actor.ID)

	_, err = svc.Login(ctx, "buyer@example.gov", "wrong")
	require.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
	_, err = svc.Login(ctx, "nobody@example.gov", "buyer-pw")
	require.Equal(t, errs.KindUnauthorized, errs.KindOf(err))
}
