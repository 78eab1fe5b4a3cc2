package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())

	assert.Equal(t, "bedrock", cfg.GetLLM().Provider)
	assert.Equal(t, 0.80, cfg.GetDomains().SimilarityThreshold)
	assert.Equal(t, 0.85, cfg.GetCompare().AddressThreshold)
	assert.Equal(t, 0.90, cfg.GetCompare().BankThreshold)
	assert.Equal(t, 6, cfg.GetCompare().MinDigitGroup)
	assert.Equal(t, 10, cfg.GetCompare().PhoneSuffixLen)
	assert.Equal(t, "memory", cfg.GetVendorStore().Store)
	assert.Equal(t, "memory", cfg.GetAuditStore().Store)
	assert.Equal(t, "memory", cfg.GetCache().Type)
	assert.Equal(t, "X-Billing-Fraud-Status", cfg.GetServer().Headers.Status)
	assert.Contains(t, cfg.GetDomains().SuspiciousTLDs, "tk")

	timeout, err := cfg.GetDuration("classifier.timeout")
	require.NoError(t, err)
	assert.Equal(t, "8s", timeout.String())
}

func TestValidateDefaults(t *testing.T) {
	cfg := NewFromViper(NewEmptyViper())
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadProvider(t *testing.T) {
	v := NewEmptyViper()
	v.Set("llm.provider", "carrier-pigeon")

	cfg := NewFromViper(v)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidateRejectsBadThreshold(t *testing.T) {
	v := NewEmptyViper()
	v.Set("compare.address_threshold", 1.5)

	cfg := NewFromViper(v)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadDuration(t *testing.T) {
	v := NewEmptyViper()
	v.Set("cache.ttl", "twelve hours")

	cfg := NewFromViper(v)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cache.ttl")
}

func TestOverride(t *testing.T) {
	v := NewEmptyViper()
	v.Set("vendors.store", "postgres")
	v.Set("compare.address_threshold", 0.7)

	cfg := NewFromViper(v)
	assert.Equal(t, "postgres", cfg.GetVendorStore().Store)
	assert.Equal(t, 0.7, cfg.GetCompare().AddressThreshold)
	assert.NoError(t, cfg.Validate())
}
