package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadYAML(t *testing.T, yaml string) (*Config, error) {
	t.Helper()

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))

	return decode(v)
}

func TestDecode_AppliesDefaults(t *testing.T) {
	cfg, err := loadYAML(t, `
cms:
  endpoints: ["https://abc.apicdn.example.io"]
session:
  secret: s3cret
`)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "production", cfg.CMS.Dataset)
	assert.Equal(t, "https://wa.me/%s?text=%s", cfg.Checkout.LinkTemplate)
	assert.Equal(t, 4*time.Hour, cfg.Session.Lifetime())
	assert.Equal(t, "storefront:", cfg.Redis.KeyPrefix)
}

func TestDecode_OverridesFromFile(t *testing.T) {
	cfg, err := loadYAML(t, `
server:
  port: 9000
cms:
  endpoints: ["https://a.example.io", "https://b.example.io"]
  dataset: staging
session:
  secret: s3cret
checkout:
  phone: "+62 812-3456-789"
  currency_symbol: "Rp"
  decimals: 0
database:
  host: db
  port: 5433
  name: shop
  user: u
  password: p
`)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.io", "https://b.example.io"}, cfg.CMS.Endpoints)
	assert.Equal(t, "staging", cfg.CMS.Dataset)
	assert.Equal(t, "Rp", cfg.Checkout.CurrencySymbol)
	assert.Equal(t, 0, cfg.Checkout.Decimals)
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=shop sslmode=disable", cfg.Database.DSN())
}

func TestDecode_RejectsMissingRequiredValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "no endpoints",
			yaml: "session:\n  secret: x\n",
			want: "cms.endpoints",
		},
		{
			name: "no session secret",
			yaml: "cms:\n  endpoints: [\"https://a.example.io\"]\n",
			want: "session.secret",
		},
		{
			name: "zero request rate",
			yaml: "cms:\n  endpoints: [\"https://a.example.io\"]\n  max_requests_per_second: 0\nsession:\n  secret: x\n",
			want: "max_requests_per_second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
