package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vesting-ledger/config"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)

	var out bytes.Buffer
	cmd := newRootCommand(v)
	cmd.SetOutput(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScheduleCommand_Defaults(t *testing.T) {
	out, err := runCommand(t, "schedule")
	require.NoError(t, err)

	assert.Contains(t, out, "periodic_claim_percentage:      20")
	assert.Contains(t, out, "total_claims:                   5")
	assert.Contains(t, out, "minimum_total_claimable_amount: 6")
}

func TestScheduleCommand_Flags(t *testing.T) {
	out, err := runCommand(t, "schedule", "--first-release-percentage=10", "--number-of-periodic-claim=9", "--periodic-claim-duration=720h")
	require.NoError(t, err)

	assert.Contains(t, out, "periodic_claim_percentage:      10")
	assert.Contains(t, out, "periodic_claim_duration:        720h0m0s")
	assert.Contains(t, out, "minimum_total_claimable_amount: 11")
}

func TestScheduleCommand_Invalid(t *testing.T) {
	_, err := runCommand(t, "schedule", "--number-of-periodic-claim=0")
	assert.Error(t, err)
}

func TestServeCommand_RequiresOwner(t *testing.T) {
	_, err := runCommand(t, "serve", "--db=:memory:")
	assert.Error(t, err)
}
