package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestIsSubscribed_RequiresSignerAndValid(t *testing.T) {
	c := IsSubscribed(testContract, 80002)
	assert.True(t, c.RequiresSigner())
	assert.NoError(t, c.Validate())
	assert.Equal(t, uint64(80002), c.ChainID())
}

func TestAfterTimestamp_PublicCondition(t *testing.T) {
	c := AfterTimestamp(1, 1700000000)
	assert.False(t, c.RequiresSigner())
	assert.NoError(t, c.Validate())
}

func TestCondition_ValidateErrors(t *testing.T) {
	cases := map[string]Condition{
		"bad address":   IsSubscribed("not-an-address", 1),
		"zero chain":    IsSubscribed(testContract, 0),
		"unknown kind":  {Kind: "oracle"},
		"missing value": {Kind: KindContract},
		"mixed variant": {Kind: KindTime, Time: &TimeCondition{Chain: 1}, Contract: &ContractCondition{}},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, c.Validate())
		})
	}

	bad := IsSubscribed(testContract, 1)
	bad.Contract.ReturnValueTest.Comparator = "~="
	assert.Error(t, bad.Validate())
}

func TestCondition_BytesDeterministic(t *testing.T) {
	a, err := IsSubscribed(testContract, 5).Bytes()
	require.NoError(t, err)
	b, err := IsSubscribed(testContract, 5).Bytes()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := IsSubscribed(testContract, 6).Bytes()
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
