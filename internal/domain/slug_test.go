package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Acme":              "acme",
		"Acme Inc":          "acme-inc",
		"  Acme   Inc.  ":   "acme-inc",
		"Café Olé":          "cafe-ole",
		"Salon & Spa 24/7":  "salon-spa-24-7",
		"hello@world":       "hello-at-world",
		"---":               "",
		"Ünïcödé Barbers!!": "unicode-barbers",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}
