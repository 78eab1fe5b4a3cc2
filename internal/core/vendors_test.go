package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockVendorRepo struct {
	mock.Mock
}

func (m *mockVendorRepo) FindByNameFragment(ctx context.Context, userID, fragment string) ([]*VendorRecord, error) {
	args := m.Called(ctx, userID, fragment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*VendorRecord), args.Error(1)
}

func TestCompanyFragment(t *testing.T) {
	assert.Equal(t, "google", CompanyFragment("google.com"))
	assert.Equal(t, "acme-supplies", CompanyFragment("acme-supplies.co.uk"))
	assert.Equal(t, "", CompanyFragment(""))
}

func TestMatchPicksHighestSimilarity(t *testing.T) {
	repo := &mockVendorRepo{}
	m := NewVendorMatcher(repo, zap.NewNop())

	records := []*VendorRecord{
		{ID: "v2", Name: "Google Cloud EMEA Limited", Domain: "google.com"},
		{ID: "v1", Name: "Google", Domain: "google.com"},
	}
	repo.On("FindByNameFragment", mock.Anything, "user-1", "google").Return(records, nil)

	match := m.Match(context.Background(), billMessage("google.com"), "user-1")

	require.NotNil(t, match)
	assert.Equal(t, "v1", match.CompanyID)
	assert.Equal(t, "Google", match.Name)
	assert.Equal(t, 1.0, match.NameSimilarity)
}

func TestMatchTieBreaksOnUpdatedAt(t *testing.T) {
	repo := &mockVendorRepo{}
	m := NewVendorMatcher(repo, zap.NewNop())

	older := &VendorRecord{ID: "v1", Name: "Acme", UpdatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &VendorRecord{ID: "v2", Name: "Acme", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	repo.On("FindByNameFragment", mock.Anything, "user-1", "acme").Return([]*VendorRecord{older, newer}, nil)

	match := m.Match(context.Background(), billMessage("acme.io"), "user-1")

	require.NotNil(t, match)
	assert.Equal(t, "v2", match.CompanyID)
}

func TestMatchNoCandidates(t *testing.T) {
	repo := &mockVendorRepo{}
	m := NewVendorMatcher(repo, zap.NewNop())

	repo.On("FindByNameFragment", mock.Anything, "user-1", "brandnewvendor").Return([]*VendorRecord{}, nil)

	match := m.Match(context.Background(), billMessage("brandnewvendor.io"), "user-1")
	assert.Nil(t, match)
}

func TestMatchStoreErrorMeansNoMatch(t *testing.T) {
	repo := &mockVendorRepo{}
	m := NewVendorMatcher(repo, zap.NewNop())

	repo.On("FindByNameFragment", mock.Anything, "user-1", "acme").Return(nil, errors.New("datastore unavailable"))

	match := m.Match(context.Background(), billMessage("acme.io"), "user-1")
	assert.Nil(t, match)
}

func TestMatchSkipsLookupWithoutFragment(t *testing.T) {
	repo := &mockVendorRepo{}
	m := NewVendorMatcher(repo, zap.NewNop())

	match := m.Match(context.Background(), &NormalizedMessage{ID: "msg-1"}, "user-1")

	assert.Nil(t, match)
	repo.AssertNotCalled(t, "FindByNameFragment", mock.Anything, mock.Anything, mock.Anything)
}
