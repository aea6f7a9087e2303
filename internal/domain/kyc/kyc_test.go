package kyc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifierFormats(t *testing.T) {
	assert.True(t, ValidBVN("22212345678"))
	assert.False(t, ValidBVN("2221234567"))
	assert.False(t, ValidBVN("2221234567a"))
	assert.True(t, ValidNIN(" 12345678901 "))
	assert.True(t, ValidAccountNumber("0123456789"))
	assert.False(t, ValidAccountNumber("123456789"))
	assert.True(t, ValidPhone("+234 803 123 4567"))
	assert.False(t, ValidPhone("call me"))
	assert.True(t, ValidEmail("ada@example.ng"))
	assert.False(t, ValidEmail("ada@"))
}

func TestRequired(t *testing.T) {
	assert.Nil(t, Required("full_name", "Ada"))
	err := Required("full_name", "  ")
	if assert.NotNil(t, err) {
		assert.Equal(t, "full_name: required", err.Error())
	}
}
