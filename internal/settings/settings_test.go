package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValues(t *testing.T) {
	s := FromValues(map[string]string{
		KeyHomeDeliveryStatus:     "1",
		KeyTakeawayStatus:         "true",
		KeyPartialPaymentStatus:   "0",
		KeyTaxIncluded:            "false",
		KeyDMTipsStatus:           " 1 ",
		KeyPerKmShippingCharge:    "2.5",
		KeyMinimumShippingCharge:  "5",
		KeyFreeDeliveryOver:       "200",
		KeyAdditionalChargeStatus: "1",
		KeyAdditionalCharge:       "0.40",
		"unknown_key":             "whatever",
	})

	assert.True(t, s.HomeDelivery)
	assert.True(t, s.Takeaway)
	assert.False(t, s.PartialPayment)
	assert.False(t, s.TaxIncluded)
	assert.True(t, s.DMTips)
	assert.True(t, s.AdditionalChargeEnabled)

	assert.Equal(t, "2.5", s.PerKmShippingCharge.String())
	assert.Equal(t, "5", s.MinimumShippingCharge.String())
	assert.Equal(t, "0.4", s.AdditionalCharge.String())

	require.NotNil(t, s.FreeDeliveryOver)
	assert.Equal(t, "200", s.FreeDeliveryOver.String())
}

func TestFromValues_Defaults(t *testing.T) {
	s := FromValues(map[string]string{})

	assert.False(t, s.HomeDelivery)
	assert.False(t, s.RefundActive)
	assert.Nil(t, s.FreeDeliveryOver, "missing free_delivery_over disables the override")
	assert.True(t, s.PerKmShippingCharge.IsZero())
}

func TestFromValues_MalformedValues(t *testing.T) {
	s := FromValues(map[string]string{
		KeyPerKmShippingCharge: "not-a-number",
		KeyFreeDeliveryOver:    "  ",
		KeyTaxIncluded:         "yes", // unknown spelling, not a flag
	})

	assert.True(t, s.PerKmShippingCharge.IsZero())
	assert.Nil(t, s.FreeDeliveryOver, "blank free_delivery_over disables the override")
	assert.False(t, s.TaxIncluded)
}
