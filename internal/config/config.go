package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// PaymentMode selects how concurrent deposits are disambiguated:
// one address per user, or one shared address with amount suffixes.
type PaymentMode string

const (
	ModeSingleAddress PaymentMode = "single_address"
	ModeAddressPool   PaymentMode = "address_pool"
)

// Plan is a purchasable membership period. Plans live in configuration,
// not in the database; an unknown plan code on a stored transfer is an
// anomaly, not a lookup miss.
type Plan struct {
	Code  string
	Days  int
	Price decimal.Decimal
}

// Config aggregates runtime configuration for the bot, the chain observer
// and the reconciliation engine.
type Config struct {
	BotToken    string
	MySQLDSN    string
	PaidChannel int64
	AdminChatID int64
	DefaultLang string

	TronBaseURL  string
	TronAPIKey   string
	USDTContract string

	PaymentMode    PaymentMode
	ReceiveAddress string
	AddressPool    []string

	SuffixEnable bool
	SuffixMin    decimal.Decimal
	SuffixMax    decimal.Decimal

	MinTxAge          time.Duration
	AmountEps         decimal.Decimal
	MatchLookback     time.Duration
	MatchPreferRecent bool
	Plans             []Plan
	InviteRewardDays  map[string]int
	ReminderLeadDays  []int

	JoinRequestEnable     bool
	JoinRequestLinkExpire time.Duration

	HealthAlertEnable      bool
	HealthDepositStale     time.Duration
	HealthAlertMinInterval time.Duration

	ReconcileInterval     time.Duration
	ExpirySweepInterval   time.Duration
	ReminderSweepInterval time.Duration
	HealthCheckInterval   time.Duration

	HTTPTimeout time.Duration

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	Debug bool
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	loadEnvFile()

	cfg := Config{
		DefaultLang:  getEnv("DEFAULT_LANGUAGE", "en"),
		TronBaseURL:  strings.TrimRight(getEnv("TRONGRID_BASE_URL", "https://api.trongrid.io"), "/"),
		TronAPIKey:   os.Getenv("TRONGRID_API_KEY"),
		USDTContract: getEnv("USDT_CONTRACT", "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"),

		PaymentMode:    PaymentMode(getEnv("PAYMENT_MODE", string(ModeSingleAddress))),
		ReceiveAddress: os.Getenv("RECEIVE_ADDRESS"),
		AddressPool:    splitList(os.Getenv("USDT_ADDRESS_POOL")),

		SuffixEnable: getBool("PAYMENT_SUFFIX_ENABLE", true),

		MinTxAge:          time.Second * time.Duration(getInt("MIN_TX_AGE_SEC", 60)),
		MatchLookback:     time.Hour * time.Duration(getInt("MATCH_ORDER_LOOKBACK_HOURS", 24)),
		MatchPreferRecent: getBool("MATCH_ORDER_PREFER_RECENT", true),

		JoinRequestEnable:     getBool("JOIN_REQUEST_ENABLE", false),
		JoinRequestLinkExpire: time.Hour * time.Duration(getInt("JOIN_REQUEST_LINK_EXPIRE_HOURS", 2)),

		HealthAlertEnable:      getBool("HEALTH_ALERT_ENABLE", true),
		HealthDepositStale:     time.Minute * time.Duration(getInt("HEALTH_ALERT_DEPOSIT_STALE_MINUTES", 180)),
		HealthAlertMinInterval: time.Minute * time.Duration(getInt("HEALTH_ALERT_MIN_INTERVAL_MINUTES", 60)),

		ReconcileInterval:     time.Second * time.Duration(getInt("RECONCILE_INTERVAL_SEC", 60)),
		ExpirySweepInterval:   time.Second * time.Duration(getInt("EXPIRY_SWEEP_INTERVAL_SEC", 3600)),
		ReminderSweepInterval: time.Second * time.Duration(getInt("REMINDER_SWEEP_INTERVAL_SEC", 3600)),
		HealthCheckInterval:   time.Second * time.Duration(getInt("HEALTH_CHECK_INTERVAL_SEC", 300)),

		HTTPTimeout: time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 10)),

		AdminListenAddr: getEnv("ADMIN_LISTEN_ADDR", ":8080"),
		AdminUsername:   getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "change-me"),

		Debug: getBool("DEBUG", false),
	}

	cfg.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.PaidChannel = getInt64("PAID_CHANNEL_ID", 0)
	cfg.AdminChatID = getInt64("ADMIN_CHAT_ID", 0)

	var err error
	if cfg.AmountEps, err = getDecimal("AMOUNT_EPS", "0.000001"); err != nil {
		return Config{}, err
	}
	if cfg.SuffixMin, err = getDecimal("PAYMENT_SUFFIX_MIN", "0.0001"); err != nil {
		return Config{}, err
	}
	if cfg.SuffixMax, err = getDecimal("PAYMENT_SUFFIX_MAX", "0.0099"); err != nil {
		return Config{}, err
	}

	if cfg.Plans, err = ParsePlans(getEnv("PLANS", "monthly:30:1.99,quarter:90:3.99")); err != nil {
		return Config{}, err
	}
	if cfg.InviteRewardDays, err = ParseInviteRewards(getEnv("INVITE_REWARD", "")); err != nil {
		return Config{}, err
	}
	if cfg.ReminderLeadDays, err = parseLeadDays(getEnv("REMINDER_LEAD_DAYS", "3,1")); err != nil {
		return Config{}, err
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if cfg.MySQLDSN == "" {
		missing = append(missing, "MYSQL_DSN")
	}
	if cfg.PaidChannel == 0 {
		missing = append(missing, "PAID_CHANNEL_ID")
	}
	switch cfg.PaymentMode {
	case ModeSingleAddress:
		if cfg.ReceiveAddress == "" {
			missing = append(missing, "RECEIVE_ADDRESS")
		}
	case ModeAddressPool:
		if len(cfg.AddressPool) == 0 {
			missing = append(missing, "USDT_ADDRESS_POOL")
		}
	default:
		return Config{}, fmt.Errorf("unsupported PAYMENT_MODE: %s", cfg.PaymentMode)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if cfg.SuffixEnable && cfg.SuffixMax.LessThan(cfg.SuffixMin) {
		return Config{}, fmt.Errorf("PAYMENT_SUFFIX_MAX %s is below PAYMENT_SUFFIX_MIN %s", cfg.SuffixMax, cfg.SuffixMin)
	}

	return cfg, nil
}

// PlanByCode returns the configured plan or nil when the code is unknown.
func (c Config) PlanByCode(code string) *Plan {
	for i := range c.Plans {
		if c.Plans[i].Code == code {
			return &c.Plans[i]
		}
	}
	return nil
}

// WatchedAddresses returns every address the chain observer polls.
func (c Config) WatchedAddresses() []string {
	if c.PaymentMode == ModeSingleAddress {
		return []string{c.ReceiveAddress}
	}
	return append([]string(nil), c.AddressPool...)
}

// ParsePlans parses the PLANS value: comma-separated code:days:price triples.
func ParsePlans(raw string) ([]Plan, error) {
	var plans []Plan
	for _, part := range splitList(raw) {
		fields := strings.Split(part, ":")
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed plan %q, want code:days:price", part)
		}
		days, err := strconv.Atoi(fields[1])
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("plan %q: bad days %q", fields[0], fields[1])
		}
		price, err := decimal.NewFromString(fields[2])
		if err != nil || price.Sign() <= 0 {
			return nil, fmt.Errorf("plan %q: bad price %q", fields[0], fields[2])
		}
		plans = append(plans, Plan{Code: fields[0], Days: days, Price: price})
	}
	if len(plans) == 0 {
		return nil, errors.New("PLANS must define at least one plan")
	}
	seen := make(map[string]bool, len(plans))
	for _, p := range plans {
		if seen[p.Code] {
			return nil, fmt.Errorf("duplicate plan code %q", p.Code)
		}
		seen[p.Code] = true
	}
	return plans, nil
}

// ParseInviteRewards parses INVITE_REWARD: comma-separated code:days pairs.
func ParseInviteRewards(raw string) (map[string]int, error) {
	rewards := make(map[string]int)
	for _, part := range splitList(raw) {
		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return nil, fmt.Errorf("malformed invite reward %q, want code:days", part)
		}
		days, err := strconv.Atoi(fields[1])
		if err != nil || days < 0 {
			return nil, fmt.Errorf("invite reward %q: bad days %q", fields[0], fields[1])
		}
		rewards[fields[0]] = days
	}
	return rewards, nil
}

func parseLeadDays(raw string) ([]int, error) {
	var days []int
	for _, part := range splitList(raw) {
		d, err := strconv.Atoi(part)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("bad reminder lead days value %q", part)
		}
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	return days, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	v := getEnv(key, fallback)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func loadEnvFile() {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates, filepath.Join("configs", ".env"), ".env")

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err == nil {
			return
		}
	}
}
