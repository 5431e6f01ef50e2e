package collab

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/value"
	"github.com/corint-sh/corint/yamlload"
)

func TestStaticListServiceContainsAndMissingListIsEmpty(t *testing.T) {
	svc := NewStaticListService([]*yamlload.ListConfig{
		{ID: "blocklist", Values: []string{"RU", "CN"}},
	}, nil)

	ok, err := svc.Contains(context.Background(), "blocklist", value.String("RU"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Contains(context.Background(), "blocklist", value.String("US"))
	require.NoError(t, err)
	assert.False(t, ok)

	// A list id with no matching config is treated as empty, not an
	// error (spec §4.9, §7).
	ok, err = svc.Contains(context.Background(), "nonexistent", value.String("RU"))
	require.NoError(t, err)
	assert.False(t, ok)
}

// countingDataSource counts GetFeature calls so tests can assert the
// L1 cache actually avoided a second round trip.
type countingDataSource struct {
	calls int
	value value.Value
}

func (d *countingDataSource) Query(context.Context, Query) (QueryResult, error) {
	return QueryResult{}, nil
}

func (d *countingDataSource) GetFeature(context.Context, string, string) (value.Value, error) {
	d.calls++
	return d.value, nil
}

func TestCachedDataSourceServesRepeatCallsFromL1(t *testing.T) {
	inner := &countingDataSource{value: value.Number(42)}
	cached := NewCachedDataSource(inner, 16, func(string) time.Duration { return time.Minute }, nil)

	v1, err := cached.GetFeature(context.Background(), "ip_risk_score", "user_1")
	require.NoError(t, err)
	assert.Equal(t, float64(42), v1.AsNumber())

	v2, err := cached.GetFeature(context.Background(), "ip_risk_score", "user_1")
	require.NoError(t, err)
	assert.Equal(t, float64(42), v2.AsNumber())

	assert.Equal(t, 1, inner.calls, "second lookup of the same name/entity should be served from L1")
}

func TestCachedDataSourceKeysByEntitySeparately(t *testing.T) {
	inner := &countingDataSource{value: value.Number(1)}
	cached := NewCachedDataSource(inner, 16, func(string) time.Duration { return time.Minute }, nil)

	_, err := cached.GetFeature(context.Background(), "ip_risk_score", "user_1")
	require.NoError(t, err)
	_, err = cached.GetFeature(context.Background(), "ip_risk_score", "user_2")
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "distinct entity keys must not share a cache entry")
}

// countingServiceClient counts all Call invocations in one total,
// whatever their service, op or params.
type countingServiceClient struct {
	calls int
	resp  ServiceResponse
}

func (c *countingServiceClient) Call(context.Context, ServiceRequest) (ServiceResponse, error) {
	c.calls++
	return c.resp, nil
}

func TestMemoizedServiceClientOnlyCachesListedServices(t *testing.T) {
	inner := &countingServiceClient{resp: ServiceResponse{Value: value.String("ok")}}
	mem := NewMemoizedServiceClient(inner, []string{"kyc"}, time.Minute)

	req := ServiceRequest{Service: "kyc", Op: "verify", Params: map[string]value.Value{"user_id": value.String("u1")}}
	_, err := mem.Call(context.Background(), req)
	require.NoError(t, err)
	_, err = mem.Call(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls, "repeat calls with identical params should be memoized")

	// A service not in the memoizable set bypasses the cache.
	other := ServiceRequest{Service: "ledger", Op: "debit", Params: map[string]value.Value{"amount": value.Number(5)}}
	_, err = mem.Call(context.Background(), other)
	require.NoError(t, err)
	_, err = mem.Call(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestMemoizedServiceClientDistinguishesParams(t *testing.T) {
	inner := &countingServiceClient{resp: ServiceResponse{Value: value.String("ok")}}
	mem := NewMemoizedServiceClient(inner, []string{"kyc"}, time.Minute)

	_, err := mem.Call(context.Background(), ServiceRequest{Service: "kyc", Op: "verify", Params: map[string]value.Value{"user_id": value.String("u1")}})
	require.NoError(t, err)
	_, err = mem.Call(context.Background(), ServiceRequest{Service: "kyc", Op: "verify", Params: map[string]value.Value{"user_id": value.String("u2")}})
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "distinct params must not share a memoized entry")
}
