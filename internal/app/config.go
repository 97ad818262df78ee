package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	s3blob "moex-bonds/internal/blob/s3"
	"moex-bonds/internal/model"
	"moex-bonds/internal/provider/moex"
	"moex-bonds/internal/screen"
)

// Modes understood by Runner.Run.
const (
	ModeSearch   = "search"
	ModeCashFlow = "cashflow"
	ModeNews     = "news"
	ModeAllocate = "allocate"
)

// Config holds application configuration from env
type Config struct {
	Mode     string
	LogLevel string // debug | info | warn | error

	MOEXBaseURL   string
	APIDelay      time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	BoardGroups   []int

	OutputDir    string
	SaveFormat   string // xlsx | csv | json | parquet
	CriteriaFile string

	BondsFile      string
	SourceSheet    string
	CashFlowSheet  string
	AvailableMoney decimal.Decimal

	NewsFeedURL string
	NewsWorkers int
	NewsRate    float64

	S3 s3blob.Config
}

// LoadConfig reads .env (when present) and the environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Mode:          strings.ToLower(getEnv("MODE", ModeSearch)),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MOEXBaseURL:   getEnv("MOEX_BASE_URL", moex.DefaultBaseURL),
		OutputDir:     getEnv("OUTPUT_DIR", "."),
		SaveFormat:    getEnv("SAVE_FORMAT", "xlsx"),
		CriteriaFile:  os.Getenv("CRITERIA_FILE"),
		BondsFile:     getEnv("BONDS_FILE", "bonds.xlsx"),
		SourceSheet:   getEnv("SOURCE_SHEET", "Исходные данные"),
		CashFlowSheet: getEnv("CASHFLOW_SHEET", "Ден.поток"),
		NewsFeedURL:   os.Getenv("NEWS_FEED_URL"),
		S3: s3blob.Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Prefix:    os.Getenv("S3_PREFIX"),
			Region:    os.Getenv("S3_REGION"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
		},
	}

	var err error
	if cfg.APIDelay, err = getDuration("API_DELAY", moex.DefaultAPIDelay); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = getDuration("RETRY_BACKOFF", screen.DefaultBackoff); err != nil {
		return nil, err
	}
	if cfg.RetryAttempts, err = getInt("RETRY_ATTEMPTS", screen.DefaultAttempts); err != nil {
		return nil, err
	}
	if cfg.NewsWorkers, err = getInt("NEWS_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.NewsRate, err = getFloat("NEWS_RATE", 2); err != nil {
		return nil, err
	}
	if cfg.BoardGroups, err = parseBoardGroups(os.Getenv("BOARD_GROUPS")); err != nil {
		return nil, err
	}
	if cfg.S3.ForcePathStyle, err = getBool("S3_FORCE_PATH_STYLE", cfg.S3.Endpoint != ""); err != nil {
		return nil, err
	}
	money := getEnv("AVAILABLE_MONEY", "700000")
	if cfg.AvailableMoney, err = decimal.NewFromString(money); err != nil {
		return nil, fmt.Errorf("AVAILABLE_MONEY %q: %w", money, err)
	}
	return cfg, nil
}

// LoadCriteria applies CRITERIA_FILE and env overrides on top of the default criteria.
func LoadCriteria(cfg *Config) (model.SearchCriteria, error) {
	c := model.DefaultCriteria()
	if cfg.CriteriaFile != "" {
		if _, err := toml.DecodeFile(cfg.CriteriaFile, &c); err != nil {
			return c, fmt.Errorf("criteria file %s: %w", cfg.CriteriaFile, err)
		}
	}
	setters := []error{
		setFloat(&c.YieldMore, "YIELD_MORE"),
		setFloat(&c.YieldLess, "YIELD_LESS"),
		setFloat(&c.PriceMore, "PRICE_MORE"),
		setFloat(&c.PriceLess, "PRICE_LESS"),
		setFloat(&c.DurationMore, "DURATION_MORE"),
		setFloat(&c.DurationLess, "DURATION_LESS"),
		setInt64(&c.VolumeMore, "VOLUME_MORE"),
		setInt64(&c.BondVolumeMore, "BOND_VOLUME_MORE"),
	}
	for _, err := range setters {
		if err != nil {
			return c, err
		}
	}
	policy := string(c.Policy)
	if v := os.Getenv("OFFER_POLICY"); v != "" {
		policy = v
	}
	p, err := model.ParseCouponPolicy(policy)
	if err != nil {
		return c, err
	}
	c.Policy = p
	return c, c.Validate()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("1200ms", "1m") or plain seconds ("1.2").
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func setFloat(dst *float64, key string) error {
	v, err := getFloat(key, *dst)
	if err == nil {
		*dst = v
	}
	return err
}

func setInt64(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func parseBoardGroups(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return append([]int(nil), screen.DefaultBoardGroups...), nil
	}
	var groups []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("BOARD_GROUPS: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}
