package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "$0"},
		{495, "$495"},
		{4600, "$4,600"},
		{1234567, "$1,234,567"},
		{-300, "-$300"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Currency(tc.in))
	}
}

func TestCurrencyInGermanGrouping(t *testing.T) {
	assert.Equal(t, "$12.500", CurrencyIn(language.German, 12500))
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "10,000", Number(10000))
}
