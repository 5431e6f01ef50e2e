package yamlload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAPIConfig(t *testing.T) {
	src := []byte(`
name: risk_score_api
base_url: https://risk.internal/v1
timeout_ms: 250
headers:
  Authorization: "Bearer xyz"
`)
	c, err := LoadAPIConfig("apis/risk_score_api.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "risk_score_api", c.Name)
	assert.Equal(t, int64(250), c.TimeoutMS)
	assert.Equal(t, "Bearer xyz", c.Headers["Authorization"])
}

func TestLoadListConfig(t *testing.T) {
	src := []byte(`
id: blocked_countries
format: inline
values: [KP, IR]
`)
	c, err := LoadListConfig("lists/blocked_countries.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "blocked_countries", c.ID)
	assert.Equal(t, []string{"KP", "IR"}, c.Values)
}

func TestLoadFeatureConfigParsesTTL(t *testing.T) {
	src := []byte(`
type: velocity
source: redis
ttl: "5m"
aggregation: count
`)
	c, err := LoadFeatureConfig("features/velocity.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, c.TTL)
	assert.Equal(t, "count", c.Aggregation)
}

func TestLoadDataSourceConfig(t *testing.T) {
	src := []byte(`
name: primary
driver: postgres
dsn: "postgres://localhost/corint"
pool_size: 10
`)
	c, err := LoadDataSourceConfig("datasources/primary.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "postgres", c.Driver)
	assert.Equal(t, 10, c.PoolSize)
}

func TestLoadAPIConfigRequiresName(t *testing.T) {
	_, err := LoadAPIConfig("bad.yaml", []byte(`base_url: https://x`))
	require.Error(t, err)
}
