package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelValid(t *testing.T) {
	assert.True(t, ChannelStripe.Valid())
	assert.True(t, ChannelZelle.Valid())
	assert.True(t, ChannelVenmo.Valid())
	assert.False(t, Channel("cash").Valid())
	assert.False(t, Channel("").Valid())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCompleted.Valid())
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("complete").Valid())
	assert.False(t, Status("").Valid())
}

func TestChannelManual(t *testing.T) {
	assert.False(t, ChannelStripe.Manual())
	assert.True(t, ChannelZelle.Manual())
	assert.True(t, ChannelVenmo.Manual())
}

func TestChannelLabel(t *testing.T) {
	assert.Equal(t, "Card", ChannelStripe.Label())
	assert.Equal(t, "Zelle", ChannelZelle.Label())
	assert.Equal(t, "Venmo", ChannelVenmo.Label())
}

func TestDonorFullName(t *testing.T) {
	d := Donor{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", d.FullName())

	d = Donor{FirstName: "Ada"}
	assert.Equal(t, "Ada", d.FullName())
}
