package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"만물다잇쏘", "다잇쏘"}, c.Pipeline.AuthorizedSenders)
	assert.Equal(t, "/", c.Pipeline.Delimiter)
	assert.Equal(t, "시간", c.Pipeline.Columns.Time)

	// 기본 문구 목록은 복사본
	c.Pipeline.BoilerplatePhrases[0] = "변경"
	assert.Equal(t, "선착순", DefaultBoilerplatePhrases[0])
}

func TestLoadFromFile_OverlaysDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "")
	t.Setenv("TELEGRAM_API_HASH", "")
	t.Setenv("LIVE_ORDER_DB_PATH", "")

	path := writeConfig(t, `
Pipeline:
  AuthorizedSenders: [관리자]
Watch:
  Cron: "0 * * * *"
`)
	c, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"관리자"}, c.Pipeline.AuthorizedSenders)
	assert.Equal(t, "0 * * * *", c.Watch.Cron)
	// 파일에 없는 값은 기본값 유지
	assert.Equal(t, "원", c.Pipeline.CurrencySuffix)
	assert.Equal(t, "data/sqlite.db", c.Storage.DBPath)
	assert.Equal(t, 3, c.Watch.RetryTimes)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "12345")
	t.Setenv("TELEGRAM_API_HASH", "abcdef")
	t.Setenv("LIVE_ORDER_DB_PATH", "/tmp/orders.db")

	path := writeConfig(t, `
TelegramApp:
  Enable: true
`)
	c, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, int32(12345), c.TelegramApp.ApiId)
	assert.Equal(t, "abcdef", c.TelegramApp.ApiHash)
	assert.Equal(t, "/tmp/orders.db", c.Storage.DBPath)
}

func TestLoadFromFile_Errors(t *testing.T) {
	t.Setenv("TELEGRAM_API_ID", "")
	t.Setenv("TELEGRAM_API_HASH", "")
	t.Setenv("LIVE_ORDER_DB_PATH", "")

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromFile(writeConfig(t, "Pipeline: [broken"))
	assert.Error(t, err)

	t.Setenv("TELEGRAM_API_ID", "not-a-number")
	_, err = LoadFromFile(writeConfig(t, "Log:\n  Level: debug\n"))
	assert.ErrorContains(t, err, "TELEGRAM_API_ID")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{"관리자 없음", func(c *Config) { c.Pipeline.AuthorizedSenders = nil }, "AuthorizedSenders"},
		{"구분자 없음", func(c *Config) { c.Pipeline.Delimiter = "" }, "Delimiter"},
		{"통화 단위 없음", func(c *Config) { c.Pipeline.CurrencySuffix = "" }, "CurrencySuffix"},
		{"최소 자릿수", func(c *Config) { c.Pipeline.PriceMinDigits = 0 }, "PriceMinDigits"},
		{"최대 자릿수", func(c *Config) { c.Pipeline.PriceMaxDigits = 2 }, "PriceMaxDigits"},
		{"메시지 컬럼", func(c *Config) { c.Pipeline.Columns.Message = "" }, "Columns"},
		{"DB 경로", func(c *Config) { c.Storage.DBPath = "" }, "DBPath"},
		{"cron", func(c *Config) { c.Watch.Cron = "" }, "Cron"},
		{"재시도 횟수", func(c *Config) { c.Watch.RetryTimes = -1 }, "RetryTimes"},
		{"텔레그램 ApiId", func(c *Config) { c.TelegramApp.Enable = true; c.TelegramApp.ApiHash = "x" }, "ApiId"},
		{"알림은 텔레그램 필요", func(c *Config) { c.Notify.Enable = true; c.Notify.ChatIds = []int64{1} }, "TelegramApp.Enable"},
		{"알림 채팅 없음", func(c *Config) {
			c.TelegramApp = TelegramApp{Enable: true, ApiId: 1, ApiHash: "x"}
			c.Notify.Enable = true
		}, "ChatIds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			assert.ErrorContains(t, c.Validate(), tt.wantErr)
		})
	}
}
