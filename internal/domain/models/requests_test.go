package models

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentLimitRequestFloor(t *testing.T) {
	v := validator.New()

	assert.Error(t, v.Struct(InstrumentLimitRequest{Limit: 1}),
		"a cap below two instruments leaves nothing to pair")
	assert.NoError(t, v.Struct(InstrumentLimitRequest{Limit: 2}))
	assert.NoError(t, v.Struct(InstrumentLimitRequest{Limit: 256}))
	assert.Error(t, v.Struct(InstrumentLimitRequest{Limit: 257}))
}

func TestAutoTradingRequestRequiresExplicitFlag(t *testing.T) {
	v := validator.New()

	assert.Error(t, v.Struct(AutoTradingRequest{}))
	off := false
	assert.NoError(t, v.Struct(AutoTradingRequest{Enabled: &off}))
}
