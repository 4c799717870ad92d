package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBuyer_ExigeIdentidad(t *testing.T) {
	_, err := NewBuyer("", "María")
	assert.ErrorIs(t, err, ErrInvalidBuyer)

	b, err := NewBuyer("identity-1", "María")
	assert.NoError(t, err)
	assert.Equal(t, "identity-1", b.IdentityGUID)
	assert.NotEqual(t, uuid.Nil, b.ID)
}

func TestBuyer_VerifyOrAddPaymentMethod_NoDuplicaInstrumentos(t *testing.T) {
	b, _ := NewBuyer("identity-1", "María")
	orderID := uuid.New()

	first := b.VerifyOrAddPaymentMethod("Visa", "4012-8888", "123", "María García", "12/27", "personal", orderID)
	assert.Len(t, b.PaymentMethods, 1)

	// Mismo (tipo, número, caducidad): se reutiliza el registro existente.
	second := b.VerifyOrAddPaymentMethod("Visa", "4012-8888", "999", "M. García", "12/27", "otro alias", uuid.New())
	assert.Len(t, b.PaymentMethods, 1)
	assert.Equal(t, first.ID, second.ID)

	// Caducidad distinta: instrumento nuevo.
	third := b.VerifyOrAddPaymentMethod("Visa", "4012-8888", "123", "María García", "01/29", "personal", uuid.New())
	assert.Len(t, b.PaymentMethods, 2)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestBuyer_VerifyOrAddPaymentMethod_ApilaEventoDeVerificacion(t *testing.T) {
	b, _ := NewBuyer("identity-1", "María")
	orderID := uuid.New()

	pm := b.VerifyOrAddPaymentMethod("Visa", "4012-8888", "123", "María García", "12/27", "personal", orderID)

	events := b.DomainEvents()
	if assert.Len(t, events, 1) {
		verified, ok := events[0].(*BuyerPaymentVerifiedEvent)
		assert.True(t, ok)
		assert.Equal(t, orderID, verified.OrderID)
		assert.Equal(t, pm.ID, verified.Payment.ID)
	}
}
