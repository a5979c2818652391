package ocpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountryCode(t *testing.T) {
	t.Run("normalizes to upper case", func(t *testing.T) {
		cc, err := ParseCountryCode("de")
		require.NoError(t, err)
		assert.Equal(t, CountryCode("DE"), cc)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParseCountryCode("DEU")
		assert.Error(t, err)
		_, err = ParseCountryCode("D")
		assert.Error(t, err)
	})

	t.Run("rejects non-alphabetic", func(t *testing.T) {
		_, err := ParseCountryCode("D1")
		assert.Error(t, err)
	})
}

func TestParsePartyID(t *testing.T) {
	t.Run("accepts alphanumeric and upper-cases", func(t *testing.T) {
		pid, err := ParsePartyID("ab1")
		require.NoError(t, err)
		assert.Equal(t, PartyID("AB1"), pid)
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParsePartyID("ABCD")
		assert.Error(t, err)
	})

	t.Run("rejects symbols", func(t *testing.T) {
		_, err := ParsePartyID("A*C")
		assert.Error(t, err)
	})
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("cpo")
	require.NoError(t, err)
	assert.Equal(t, RoleCPO, role)

	_, err = ParseRole("DRIVER")
	assert.Error(t, err)
}

func TestNewPartyRef(t *testing.T) {
	ref, err := NewPartyRef("de", "abc", "emsp")
	require.NoError(t, err)
	assert.Equal(t, "DE*ABC/EMSP", ref.String())
	assert.False(t, ref.IsZero())
	assert.True(t, PartyRef{}.IsZero())

	t.Run("same country and id with different roles are distinct", func(t *testing.T) {
		cpo, err := NewPartyRef("DE", "ABC", "CPO")
		require.NoError(t, err)
		emsp, err := NewPartyRef("DE", "ABC", "EMSP")
		require.NoError(t, err)
		assert.NotEqual(t, cpo, emsp)
	})
}

func TestAccessTokenRedaction(t *testing.T) {
	long := AccessToken("abcdefghijklmnop")
	assert.Equal(t, "abcd…", long.Redacted())
	assert.Equal(t, "abcd…", long.String())

	short := AccessToken("secret")
	assert.Equal(t, "****", short.Redacted())

	t.Run("formatting never exposes the raw value", func(t *testing.T) {
		formatted := long.String()
		assert.NotContains(t, formatted, "efgh")
	})

	t.Run("comparison is exact", func(t *testing.T) {
		assert.True(t, AccessToken("a").Equal(AccessToken("a")))
		assert.False(t, AccessToken("a").Equal(AccessToken("A")))
	})
}

func TestVersionNegotiationHelpers(t *testing.T) {
	v, err := ParseVersionID("2.2.1")
	require.NoError(t, err)
	assert.Equal(t, V221, v)

	_, err = ParseVersionID("9.9")
	assert.Error(t, err)

	assert.True(t, V230.Newer(V221))
	assert.False(t, V211.Newer(V221))
	assert.Contains(t, SupportedVersions(), V221)
}

func TestCredentialsValidate(t *testing.T) {
	valid := Credentials{
		Token:       "tok",
		URL:         "https://peer.example.com/ocpi/versions",
		CountryCode: "DE",
		PartyID:     "ABC",
	}
	assert.NoError(t, valid.Validate())

	cases := map[string]Credentials{
		"missing token":  {URL: valid.URL, CountryCode: "DE", PartyID: "ABC"},
		"missing url":    {Token: "tok", CountryCode: "DE", PartyID: "ABC"},
		"bad country":    {Token: "tok", URL: valid.URL, CountryCode: "DEU", PartyID: "ABC"},
		"bad party id":   {Token: "tok", URL: valid.URL, CountryCode: "DE", PartyID: "ABCD"},
		"empty identity": {Token: "tok", URL: valid.URL},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, creds.Validate())
		})
	}
}
