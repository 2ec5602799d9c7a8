package generic_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vesting-ledger/generic"
)

// =============================================================================
// AMOUNT TESTS
// =============================================================================

func TestAmount_Percent_Truncates(t *testing.T) {
	tests := []struct {
		total int64
		pct   uint64
		want  string
	}{
		{1000, 20, "200"},
		{1001, 20, "200"},
		{999, 33, "329"},
		{4, 20, "0"},
		{6, 20, "1"},
		{1000, 0, "0"},
		{1000, 100, "1000"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_at_%d", tt.total, tt.pct), func(t *testing.T) {
			got := generic.NewAmount(tt.total).Percent(tt.pct)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmount_Percent_LargeSupply(t *testing.T) {
	// GIVEN: A total far beyond int64
	total := generic.MustParseAmount("123456789012345678901234567890")

	// WHEN: Taking 20%
	got := total.Percent(20)

	// THEN: The result is exact and truncated
	assert.Equal(t, "24691357802469135780246913578", got.String())
}

func TestParseAmount(t *testing.T) {
	a, err := generic.ParseAmount(" 1000 ")
	require.NoError(t, err)
	assert.Equal(t, "1000", a.String())

	for _, bad := range []string{"", "abc", "-1", "1.5"} {
		_, err := generic.ParseAmount(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidAmount, "input %q", bad)
	}
}

func TestAmount_Arithmetic(t *testing.T) {
	a := generic.NewAmount(1000)
	b := generic.NewAmount(300)

	assert.Equal(t, "1300", a.Add(b).String())
	assert.Equal(t, "700", a.Sub(b).String())
	assert.True(t, b.Sub(a).IsNegative())
	assert.True(t, a.GreaterThan(b))
	assert.True(t, b.LessThan(a))
	assert.True(t, a.Equal(generic.MustParseAmount("1000")))
	assert.True(t, generic.Amount{}.IsZero(), "zero value is zero")
}

func TestAmount_JSON(t *testing.T) {
	b, err := generic.NewAmount(1000).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1000"`, string(b))

	var fromString, fromNumber generic.Amount
	require.NoError(t, fromString.UnmarshalJSON([]byte(`"250"`)))
	require.NoError(t, fromNumber.UnmarshalJSON([]byte(`250`)))
	assert.Equal(t, "250", fromString.String())
	assert.Equal(t, "250", fromNumber.String())

	var bad generic.Amount
	assert.ErrorIs(t, bad.UnmarshalJSON([]byte(`"-5"`)), generic.ErrInvalidAmount)
}

// =============================================================================
// ADDRESS TESTS
// =============================================================================

func TestParseAddress_Checksums(t *testing.T) {
	// GIVEN: A lower-case address
	addr, err := generic.ParseAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	require.NoError(t, err)

	// THEN: It prints checksummed, whatever the verb
	want := "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	assert.Equal(t, want, addr.Hex())
	assert.Equal(t, want, addr.String())
	assert.Equal(t, want, fmt.Sprintf("%s", addr))
	assert.Equal(t, want, fmt.Sprintf("%v", addr))
	assert.False(t, addr.IsZero())
}

func TestParseAddress_Invalid(t *testing.T) {
	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZ1f109551bd432803012645ac136ddd64dba72"} {
		_, err := generic.ParseAddress(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidAddress, "input %q", bad)
	}
}

func TestAddress_Equality(t *testing.T) {
	a := generic.MustParseAddress("0x8ba1f109551bd432803012645ac136ddd64dba72")
	b := generic.MustParseAddress("0x8ba1f109551bD432803012645Ac136ddd64DBA72")
	assert.True(t, a == b, "case does not matter")
	assert.True(t, generic.ZeroAddress.IsZero())
}

// =============================================================================
// CLAIMER TESTS
// =============================================================================

func TestClaimer_Exists(t *testing.T) {
	var c generic.Claimer
	assert.False(t, c.Exists())

	c.TotalClaimableAmount = generic.NewAmount(1000)
	c.RemainingClaimableAmount = generic.NewAmount(600)
	assert.True(t, c.Exists())
	assert.Equal(t, "400", c.ClaimedAmount().String())
}

// =============================================================================
// TIME TESTS
// =============================================================================

func TestTimestamp_Since(t *testing.T) {
	elapsed, ok := generic.Timestamp(100).Since(40)
	assert.True(t, ok)
	assert.Equal(t, 60*time.Second, elapsed)

	// Clock went backwards: not elapsed, no wraparound
	elapsed, ok = generic.Timestamp(40).Since(100)
	assert.False(t, ok)
	assert.Equal(t, time.Duration(0), elapsed)
}

func TestTimestamp_AddTruncatesToSeconds(t *testing.T) {
	ts := generic.Timestamp(1000).Add(90*time.Second + 500*time.Millisecond)
	assert.Equal(t, generic.Timestamp(1090), ts)
}

func TestTimestamp_String(t *testing.T) {
	assert.Equal(t, "never", generic.Timestamp(0).String())
	assert.Equal(t, "1970-01-02T00:00:00Z", generic.Timestamp(86400).String())
}

func TestManualClock(t *testing.T) {
	clock := generic.NewManualClock(1000)
	assert.Equal(t, generic.Timestamp(1000), clock.Now())

	assert.Equal(t, generic.Timestamp(1060), clock.Advance(time.Minute))
	assert.Equal(t, generic.Timestamp(1060), clock.Now())

	clock.Set(5)
	assert.Equal(t, generic.Timestamp(5), clock.Now())
}

// =============================================================================
// EVENT FILTER TESTS
// =============================================================================

func TestEventFilter_Matches(t *testing.T) {
	alice := generic.MustParseAddress("0x00000000000000000000000000000000000A11cE")
	bob := generic.MustParseAddress("0x0000000000000000000000000000000000000B0b")
	e := generic.Event{Kind: generic.EventClaimed, Subject: alice}

	assert.True(t, generic.EventFilter{}.Matches(e))
	assert.True(t, generic.EventFilter{Kinds: []generic.EventKind{generic.EventFunded, generic.EventClaimed}}.Matches(e))
	assert.False(t, generic.EventFilter{Kinds: []generic.EventKind{generic.EventFunded}}.Matches(e))
	assert.True(t, generic.EventFilter{Subject: &alice}.Matches(e))
	assert.False(t, generic.EventFilter{Subject: &bob}.Matches(e))
}

// =============================================================================
// ERROR TESTS
// =============================================================================

func TestErrorClassification(t *testing.T) {
	balanceErr := &generic.InsufficientBalanceError{Symbol: "VEST", Available: generic.NewAmount(1), Requested: generic.NewAmount(2)}
	assert.ErrorIs(t, balanceErr, generic.ErrInsufficientBalance)
	assert.True(t, generic.IsClientError(balanceErr))

	authErr := &generic.UnauthorizedError{Operation: "mint"}
	assert.ErrorIs(t, authErr, generic.ErrNotAuthorized)
	assert.False(t, generic.IsClientError(authErr))

	assert.True(t, generic.IsNotFound(fmt.Errorf("state: %w", generic.ErrNotFound)))
}
