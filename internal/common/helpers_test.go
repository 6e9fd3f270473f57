package common

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		-time.Second:                       "0:00:00",
		90 * time.Second:                   "0:01:30",
		6 * time.Hour:                      "6:00:00",
		6*time.Hour - 500*time.Millisecond: "5:59:59",
		26 * time.Hour:                     "1д 2:00:00",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatDuration(in), in.String())
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "999", FormatNumber(999))
	assert.Equal(t, "2 350", FormatNumber(2350))
	assert.Equal(t, "1 000 005", FormatNumber(1000005))
	assert.Equal(t, "-2 350", FormatNumber(-2350))
	assert.Equal(t, "-9 223 372 036 854 775 808", FormatNumber(math.MinInt64))
	assert.Equal(t, "9 223 372 036 854 775 807", FormatNumber(math.MaxInt64))
	assert.Equal(t, "🪙 1 500 Gold", FormatAmount("🪙", 1500, "Gold"))
	assert.Equal(t, "+5", FormatSigned(5))
	assert.Equal(t, "-5", FormatSigned(-5))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(ErrInvalidAmount))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrap: %w", ErrCurrencyNotFound)))
	assert.Equal(t, KindPrecondition, KindOf(&CooldownError{Remaining: time.Minute}))
	assert.Equal(t, KindPrecondition, KindOf(&BalanceError{Currency: "Gold", Have: 1, Need: 2}))
	assert.Equal(t, KindPersistence, KindOf(fmt.Errorf("%w: disk full", ErrSaveFailed)))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))

	assert.True(t, IsRejection(ErrBuffActive))
	assert.False(t, IsRejection(ErrSaveFailed))
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	err := error(&CooldownError{Action: "rob", Remaining: 90 * time.Second})
	assert.ErrorIs(t, err, ErrOnCooldown)
	assert.Contains(t, err.Error(), "0:01:30")

	err = &BalanceError{Currency: "Gold", Have: 3, Need: 10}
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "есть 3")
}

type fixedRand struct{ n int }

func (f fixedRand) IntN(n int) int   { return f.n % n }
func (f fixedRand) Float64() float64 { return 0 }

func TestRandRange(t *testing.T) {
	assert.Equal(t, int64(1), RandRange(fixedRand{0}, 1, 10))
	assert.Equal(t, int64(10), RandRange(fixedRand{9}, 1, 10))
	assert.Equal(t, int64(7), RandRange(fixedRand{3}, 7, 7))
	for i := 0; i < 100; i++ {
		v := RandRange(GlobalRand{}, 1, 50)
		assert.True(t, v >= 1 && v <= 50)
	}
}

func TestMatchNames(t *testing.T) {
	names := []string{"Gold", "Rose Gold", "gems", "Silver"}
	assert.Equal(t, []string{"Gold", "Rose Gold"}, MatchNames(names, "GOL"))
	assert.Equal(t, []string{"Gold", "Rose Gold", "Silver", "gems"}, MatchNames(names, ""))
	assert.Empty(t, MatchNames(names, "zzz"))

	var many []string
	for i := 0; i < 40; i++ {
		many = append(many, "c"+strconv.Itoa(i))
	}
	assert.Len(t, MatchNames(many, "c"), AutocompleteLimit)
}
