package commitment

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"etender/internal/errs"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestCommit_VerifyRoundTrip(t *testing.T) {
	amount := decimal.RequireFromString("100")
	hash, err := Commit(amount, "n0nce-A", "bidder-a", "tender-1")
	check.NoError(t, err)
	check.True(t, WellFormed(hash))
	check.True(t, Verify(amount, "n0nce-A", "bidder-a", "tender-1", hash))
}

func TestCommit_ExactPreimage(t *testing.T) {
	hash, err := Commit(decimal.RequireFromString("90.5"), "xyz", "b", "t1")
	check.NoError(t, err)

	sum := sha256.Sum256([]byte("v1|7:90.5000|3:xyz|1:b|2:t1"))
	check.Equal(t, "0x"+hex.EncodeToString(sum[:]), hash)
}

func TestCommit_ScaleInsensitive(t *testing.T) {
	h1, _ := Commit(decimal.RequireFromString("100"), "n", "b", "t")
	h2, _ := Commit(decimal.RequireFromString("100.0"), "n", "b", "t")
	h3, _ := Commit(decimal.RequireFromString("100.0000"), "n", "b", "t")
	check.Equal(t, h1, h2)
	check.Equal(t, h1, h3)
}

func TestVerify_AnyChangeFails(t *testing.T) {
	amount := decimal.RequireFromString("1234.5678")
	hash, err := Commit(amount, "secret", "bidder", "tender")
	check.NoError(t, err)

	check.False(t, Verify(decimal.RequireFromString("1234.5679"), "secret", "bidder", "tender", hash))
	check.False(t, Verify(amount, "secreu", "bidder", "tender", hash))
	check.False(t, Verify(amount, "secret", "bidder2", "tender", hash))
	check.False(t, Verify(amount, "secret", "bidder", "tender2", hash))

	// flip a single bit in every byte of the nonce
	for i := range len("secret") {
		b := []byte("secret")
		b[i] ^= 0x01
		check.False(t, Verify(amount, string(b), "bidder", "tender", hash))
	}
}

func TestVerify_FieldBoundaries(t *testing.T) {
	// moving a character between adjacent fields must change the hash
	h1, _ := Commit(decimal.NewFromInt(1), "ab", "c", "t")
	h2, _ := Commit(decimal.NewFromInt(1), "a", "bc", "t")
	check.NotEqual(t, h1, h2)
}

func TestCommit_RejectsMalformedInput(t *testing.T) {
	cases := []struct {
		name   string
		amount string
		nonce  string
		bidder string
		tender string
		field  string
	}{
		{"negative amount", "-1", "n", "b", "t", "amount"},
		{"too precise", "1.00001", "n", "b", "t", "amount"},
		{"empty nonce", "1", "", "b", "t", "nonce"},
		{"long nonce", "1", strings.Repeat("x", MaxNonceLen+1), "b", "t", "nonce"},
		{"empty bidder", "1", "n", "", "t", "bidderId"},
		{"empty tender", "1", "n", "b", "", "tenderId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hash, err := Commit(decimal.RequireFromString(tc.amount), tc.nonce, tc.bidder, tc.tender)
			check.Equal(t, "", hash)
			check.True(t, errs.Is(err, errs.KindValidation))
			var ve *errs.ValidationError
			check.True(t, errors.As(err, &ve))
			check.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	amount := decimal.NewFromInt(5)
	hash, _ := Commit(amount, "n", "b", "t")

	check.False(t, Verify(amount, "n", "b", "t", ""))
	check.False(t, Verify(amount, "n", "b", "t", hash[2:]))
	check.False(t, Verify(amount, "n", "b", "t", hash[:len(hash)-1]))
	check.False(t, Verify(amount, "n", "b", "t", "0x"+strings.Repeat("z", 64)))
	check.True(t, Verify(amount, "n", "b", "t", "0x"+strings.ToUpper(hash[2:])))
}

func TestNormalize(t *testing.T) {
	in := "  0x" + strings.Repeat("AB", 32) + " "
	out, err := Normalize("commitHash", in)
	check.NoError(t, err)
	check.Equal(t, "0x"+strings.Repeat("ab", 32), out)

	_, err = Normalize("commitHash", "deadbeef")
	check.True(t, errs.Is(err, errs.KindValidation))
}

func TestEvaluationHash_Deterministic(t *testing.T) {
	f := EvaluationFields{
		EvaluationID:   "e1",
		TenderID:       "t1",
		BidID:          "b1",
		EvaluatorID:    "ev",
		TechnicalScore: 90,
		FinancialScore: 60,
		OverallScore:   78,
		Comments:       "solid",
		EvaluatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h := EvaluationHash(f)
	check.True(t, WellFormed(h))
	check.Equal(t, h, EvaluationHash(f))

	f.OverallScore = 78.1
	check.NotEqual(t, h, EvaluationHash(f))
}
