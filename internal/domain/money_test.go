package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoney(t *testing.T) {
	m, err := NewMoney("12.50", "INR")
	require.NoError(t, err)
	assert.Equal(t, "12.50 INR", m.String())

	_, err = NewMoney("not-a-number", "INR")
	assert.Error(t, err)

	_, err = NewMoney("1.00", "RUPEES")
	assert.Error(t, err)
}

func TestMoney_Add(t *testing.T) {
	a, _ := NewMoney("10.10", "INR")
	b, _ := NewMoney("0.90", "INR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "11.00 INR", sum.String())
}

func TestMoney_Add_CurrencyMismatch(t *testing.T) {
	a, _ := NewMoney("10.00", "INR")
	b, _ := NewMoney("10.00", "USD")

	_, err := a.Add(b)
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_Add_NoFloatDrift(t *testing.T) {
	// 0.1 + 0.2 is the classic binary float trap.
	a, _ := NewMoney("0.1", "INR")
	b, _ := NewMoney("0.2", "INR")

	sum, err := a.Add(b)
	require.NoError(t, err)

	expected, _ := NewMoney("0.3", "INR")
	assert.True(t, sum.Equal(expected), "got %s", sum)
}

func TestMoney_MulInt(t *testing.T) {
	price, _ := NewMoney("19.99", "INR")
	assert.Equal(t, "59.97 INR", price.MulInt(3).String())
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m, _ := NewMoney("499.00", "INR")

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Equal(back))
}

func TestComputeTotal(t *testing.T) {
	p1, _ := NewMoney("100.00", "INR")
	p2, _ := NewMoney("250.50", "INR")

	total, err := ComputeTotal([]OrderItem{
		{ProductID: "prod-1", Quantity: 2, UnitPrice: p1},
		{ProductID: "prod-2", Quantity: 1, UnitPrice: p2},
	})
	require.NoError(t, err)
	assert.Equal(t, "450.50 INR", total.String())
}

func TestComputeTotal_EmptyItems(t *testing.T) {
	_, err := ComputeTotal(nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestComputeTotal_MixedCurrencies(t *testing.T) {
	inr, _ := NewMoney("100.00", "INR")
	usd, _ := NewMoney("5.00", "USD")

	_, err := ComputeTotal([]OrderItem{
		{ProductID: "prod-1", Quantity: 1, UnitPrice: inr},
		{ProductID: "prod-2", Quantity: 1, UnitPrice: usd},
	})
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}
