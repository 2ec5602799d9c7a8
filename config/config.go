// Package config loads service configuration through viper: defaults,
// an optional YAML file, VESTING_* environment variables, and CLI flags
// bound by cmd/server.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/warp/vesting-ledger/generic"
	"github.com/warp/vesting-ledger/vesting"
)

const EnvPrefix = "VESTING"

// Keys
const (
	KeyPort                   = "port"
	KeyDB                     = "db"
	KeyLogLevel               = "log_level"
	KeyAllowedOrigins         = "cors.allowed_origins"
	KeyMonitorInterval        = "monitor.interval"
	KeyOwner                  = "owner"
	KeyVestingAccount         = "vesting_account"
	KeyAllowanceAccount       = "allowance_account"
	KeyTokenSymbol            = "token.symbol"
	KeyTokenInitialSupply     = "token.initial_supply"
	KeyFirstReleasePercentage = "schedule.first_release_percentage"
	KeyDelayAfterFirstRelease = "schedule.delay_after_first_release"
	KeyNumberOfPeriodicClaim  = "schedule.number_of_periodic_claim"
	KeyPeriodicClaimDuration  = "schedule.periodic_claim_duration"
)

type Config struct {
	Port             int
	DB               string
	LogLevel         logrus.Level
	AllowedOrigins   []string
	MonitorInterval  time.Duration // zero disables the solvency monitor
	Owner            generic.Address
	VestingAccount   generic.Address
	AllowanceAccount generic.Address
	Token            TokenConfig
	Schedule         vesting.Schedule
}

type TokenConfig struct {
	Symbol        string
	InitialSupply generic.Amount
}

// SetDefaults registers default values and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, 8080)
	v.SetDefault(KeyDB, "vesting.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyAllowedOrigins, []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault(KeyMonitorInterval, time.Hour)
	v.SetDefault(KeyVestingAccount, "0x000000000000000000000000000000000000dEaD")
	v.SetDefault(KeyAllowanceAccount, "0x000000000000000000000000000000000000bEEF")
	v.SetDefault(KeyTokenSymbol, "VEST")
	v.SetDefault(KeyTokenInitialSupply, "0")
	v.SetDefault(KeyFirstReleasePercentage, 20)
	v.SetDefault(KeyDelayAfterFirstRelease, 24*time.Hour)
	v.SetDefault(KeyNumberOfPeriodicClaim, 4)
	v.SetDefault(KeyPeriodicClaimDuration, 24*time.Hour)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// ReadFile merges a YAML config file into v. A missing path is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return nil
}

// Load validates v into a Config, building the vesting schedule.
func Load(v *viper.Viper) (*Config, error) {
	level, err := logrus.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}

	owner, err := generic.ParseAddress(v.GetString(KeyOwner))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyOwner, err)
	}
	vestingAccount, err := generic.ParseAddress(v.GetString(KeyVestingAccount))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyVestingAccount, err)
	}
	allowanceAccount, err := generic.ParseAddress(v.GetString(KeyAllowanceAccount))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyAllowanceAccount, err)
	}

	supply, err := generic.ParseAmount(v.GetString(KeyTokenInitialSupply))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyTokenInitialSupply, err)
	}

	schedule, err := LoadSchedule(v)
	if err != nil {
		return nil, err
	}
	monitorInterval, err := Duration(v, KeyMonitorInterval)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:             v.GetInt(KeyPort),
		DB:               v.GetString(KeyDB),
		LogLevel:         level,
		AllowedOrigins:   v.GetStringSlice(KeyAllowedOrigins),
		MonitorInterval:  monitorInterval,
		Owner:            owner,
		VestingAccount:   vestingAccount,
		AllowanceAccount: allowanceAccount,
		Token: TokenConfig{
			Symbol:        v.GetString(KeyTokenSymbol),
			InitialSupply: supply,
		},
		Schedule: schedule,
	}, nil
}

// LoadSchedule builds the vesting schedule from the schedule.* keys.
func LoadSchedule(v *viper.Viper) (vesting.Schedule, error) {
	delay, err := Duration(v, KeyDelayAfterFirstRelease)
	if err != nil {
		return vesting.Schedule{}, err
	}
	period, err := Duration(v, KeyPeriodicClaimDuration)
	if err != nil {
		return vesting.Schedule{}, err
	}
	return vesting.NewSchedule(
		v.GetUint64(KeyFirstReleasePercentage),
		delay,
		v.GetUint64(KeyNumberOfPeriodicClaim),
		period,
	)
}

// Duration reads key as a duration. Unitless numbers ("86400", or 86400 in
// YAML) are whole seconds; anything else uses Go duration syntax ("24h").
func Duration(v *viper.Viper, key string) (time.Duration, error) {
	switch raw := v.Get(key).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return raw, nil
	case string:
		s := strings.TrimSpace(raw)
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(secs) * time.Second, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, invalidDuration(key, raw)
		}
		return d, nil
	default:
		secs, err := cast.ToInt64E(raw)
		if err != nil {
			return 0, invalidDuration(key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}
}

func invalidDuration(key string, raw any) error {
	return &vesting.ConfigurationError{
		Field:  strings.TrimPrefix(key, "schedule."),
		Reason: fmt.Sprintf("%v is neither seconds nor a duration like 24h", raw),
	}
}
