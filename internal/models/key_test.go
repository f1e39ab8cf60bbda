package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/econolens/econolens/backend/internal/models"
)

func TestEntityKeyNormalization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "Andela", want: "company:andela"},
		{name: "surrounding whitespace", raw: "  Andela\t", want: "company:andela"},
		{name: "case", raw: "ANDELA", want: "company:andela"},
		{name: "inner whitespace squeezed", raw: "Interswitch   Group", want: "company:interswitch group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, models.EntityKey(models.KindCompany, tt.raw))
		})
	}
}

func TestEntityKeyKindsDoNotCollide(t *testing.T) {
	require.NotEqual(t,
		models.EntityKey(models.KindCompany, "Niger"),
		models.EntityKey(models.KindCountry, "Niger"),
	)
}

func TestParseKey(t *testing.T) {
	kind, name := models.ParseKey("country:NG")
	require.Equal(t, models.KindCountry, kind)
	require.Equal(t, "NG", name)

	kind, name = models.ParseKey("company: Flutterwave")
	require.Equal(t, models.KindCompany, kind)
	require.Equal(t, "Flutterwave", name)

	kind, name = models.ParseKey("Paystack")
	require.Equal(t, models.KindCompany, kind)
	require.Equal(t, "Paystack", name)
}
