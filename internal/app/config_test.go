package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moex-bonds/internal/model"
	"moex-bonds/internal/screen"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "API_DELAY", "RETRY_ATTEMPTS", "BOARD_GROUPS", "SAVE_FORMAT", "AVAILABLE_MONEY", "S3_BUCKET", "S3_ENDPOINT"} {
		t.Setenv(k, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ModeSearch, cfg.Mode)
	assert.Equal(t, 1200*time.Millisecond, cfg.APIDelay)
	assert.Equal(t, screen.DefaultAttempts, cfg.RetryAttempts)
	assert.Equal(t, screen.DefaultBoardGroups, cfg.BoardGroups)
	assert.Equal(t, "xlsx", cfg.SaveFormat)
	assert.Equal(t, "700000", cfg.AvailableMoney.String())
	assert.False(t, cfg.S3.ForcePathStyle)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("MODE", "News")
	t.Setenv("API_DELAY", "0.5")
	t.Setenv("RETRY_BACKOFF", "2s")
	t.Setenv("BOARD_GROUPS", "58, 193,")
	t.Setenv("AVAILABLE_MONEY", "1250.50")
	t.Setenv("S3_BUCKET", "reports")
	t.Setenv("S3_ENDPOINT", "http://minio:9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ModeNews, cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.APIDelay)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoff)
	assert.Equal(t, []int{58, 193}, cfg.BoardGroups)
	assert.Equal(t, "1250.5", cfg.AvailableMoney.String())
	assert.Equal(t, "reports", cfg.S3.Bucket)
	assert.True(t, cfg.S3.ForcePathStyle)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("RETRY_ATTEMPTS", "many")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "RETRY_ATTEMPTS")

	t.Setenv("RETRY_ATTEMPTS", "")
	t.Setenv("API_DELAY", "soon")
	_, err = LoadConfig()
	assert.ErrorContains(t, err, "API_DELAY")
}

func clearCriteriaEnv(t *testing.T) {
	for _, k := range []string{"YIELD_MORE", "YIELD_LESS", "PRICE_MORE", "PRICE_LESS", "DURATION_MORE",
		"DURATION_LESS", "VOLUME_MORE", "BOND_VOLUME_MORE", "OFFER_POLICY"} {
		t.Setenv(k, "")
	}
}

func TestLoadCriteriaDefaults(t *testing.T) {
	clearCriteriaEnv(t)
	c, err := LoadCriteria(&Config{})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultCriteria(), c)
}

func TestLoadCriteriaFileThenEnv(t *testing.T) {
	clearCriteriaEnv(t)
	path := filepath.Join(t.TempDir(), "criteria.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
yield_more = 18
price_less = 105
offer_policy = "нет"
`), 0o644))
	t.Setenv("PRICE_LESS", "110")
	t.Setenv("BOND_VOLUME_MORE", "90000")

	c, err := LoadCriteria(&Config{CriteriaFile: path})
	require.NoError(t, err)
	assert.Equal(t, 18.0, c.YieldMore)
	assert.Equal(t, 40.0, c.YieldLess)
	assert.Equal(t, 110.0, c.PriceLess)
	assert.Equal(t, int64(90000), c.BondVolumeMore)
	assert.Equal(t, model.PolicyLenient, c.Policy)
}

func TestLoadCriteriaInvalid(t *testing.T) {
	clearCriteriaEnv(t)
	t.Setenv("YIELD_MORE", "50")
	_, err := LoadCriteria(&Config{})
	assert.Error(t, err)

	t.Setenv("YIELD_MORE", "")
	t.Setenv("OFFER_POLICY", "maybe")
	_, err = LoadCriteria(&Config{})
	assert.Error(t, err)
}

func TestCreateReportSaver(t *testing.T) {
	s, err := CreateReportSaver(&Config{SaveFormat: "parquet"})
	require.NoError(t, err)
	assert.Equal(t, "parquet", s.Extension())

	_, err = CreateReportSaver(&Config{SaveFormat: "docx"})
	assert.ErrorContains(t, err, "docx")
}

func TestCreateArchiverDisabled(t *testing.T) {
	a, err := CreateArchiver(context.Background(), &Config{})
	require.NoError(t, err)
	assert.Nil(t, a)
}
