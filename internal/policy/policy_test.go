package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "Fearing's Services", p.Business.Name)
	assert.Equal(t, "Temecula, CA", p.Business.Location)
	require.Len(t, p.HourlyRates, 2)
	assert.Equal(t, "$20", FormatUSD(p.HourlyRates[0].Rate))
	assert.Equal(t, "$17", FormatUSD(p.HourlyRates[1].Rate))

	require.Len(t, p.FlatRates, 4)
	assert.Equal(t, "Exterior Car Wash", p.FlatRates[0].Label)
	assert.Equal(t, "$25", FormatUSD(p.FlatRates[0].Price))
	assert.Equal(t, "$7", FormatUSD(p.FlatRates[3].Price))

	assert.Len(t, p.Tools, 4)
	assert.NotEmpty(t, p.DeclineWhen)
	assert.NotEmpty(t, p.Guidelines)
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$20", FormatUSD(decimal.RequireFromString("20")))
	assert.Equal(t, "$20", FormatUSD(decimal.RequireFromString("20.00")))
	assert.Equal(t, "$17.50", FormatUSD(decimal.RequireFromString("17.5")))
	assert.Equal(t, "$0", FormatUSD(decimal.Zero))
}

func TestParseRejectsInvalidPolicies(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "business: [unterminated"},
		{"no business name", "business:\n  owner: someone\n"},
		{"bad rate", "business:\n  name: X\nhourly_rates:\n  - name: A\n    rate: twenty\n"},
		{"negative price", "business:\n  name: X\nflat_rates:\n  - name: A\n    price: \"-5\"\n"},
		{"missing price", "business:\n  name: X\nflat_rates:\n  - name: A\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.doc))
			assert.Nil(t, p)
			assert.True(t, errors.Is(err, ErrInvalidPolicy), "got %v", err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := "business:\n  name: Test Co\nflat_rates:\n  - name: Dog Walk\n    price: \"12.5\"\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Co", p.Business.Name)
	assert.Equal(t, "Dog Walk", p.FlatRates[0].Label)
	assert.Equal(t, "$12.50", FormatUSD(p.FlatRates[0].Price))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
