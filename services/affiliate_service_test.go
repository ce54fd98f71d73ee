package services

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTrackedURL(t *testing.T) {
	tests := []struct {
		name     string
		original string
		campaign string
		wantErr  bool
	}{
		{"plain", "https://shop.example.com/product/42", "spring_sale", false},
		{"existing query preserved", "https://shop.example.com/p?ref=abc", "", false},
		{"relative rejected", "/product/42", "", true},
		{"no host rejected", "https://", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracked, err := BuildTrackedURL(tt.original, "x_ads", "social", tt.campaign)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			parsed, err := url.Parse(tracked)
			require.NoError(t, err)
			query := parsed.Query()
			require.Equal(t, "x_ads", query.Get("utm_source"))
			require.Equal(t, "social", query.Get("utm_medium"))
			if tt.campaign != "" {
				require.Equal(t, tt.campaign, query.Get("utm_campaign"))
			} else {
				require.False(t, query.Has("utm_campaign"))
			}
		})
	}
}

func TestBuildTrackedURLPreservesExistingParams(t *testing.T) {
	tracked, err := BuildTrackedURL("https://shop.example.com/p?ref=abc&sort=price", "x_ads", "social", "")
	require.NoError(t, err)

	parsed, err := url.Parse(tracked)
	require.NoError(t, err)
	require.Equal(t, "abc", parsed.Query().Get("ref"))
	require.Equal(t, "price", parsed.Query().Get("sort"))
}
