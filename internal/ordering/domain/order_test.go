package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestOrder() *Order {
	o := NewOrder("user-1", "María", Address{Street: "Calle Mayor 1", City: "Madrid", Country: "ES"},
		"Visa", "4012-8888", "123", "María García", "12/27")
	o.ClearDomainEvents()
	return o
}

func TestNewOrder_ArrancaEnSubmittedConOrderStarted(t *testing.T) {
	o := NewOrder("user-1", "María", Address{City: "Madrid"},
		"Visa", "4012-8888", "123", "María García", "12/27")

	assert.Equal(t, StatusSubmitted, o.Status)
	events := o.DomainEvents()
	if assert.Len(t, events, 1) {
		started, ok := events[0].(*OrderStartedEvent)
		assert.True(t, ok)
		assert.Equal(t, "user-1", started.UserID)
		assert.Equal(t, "4012-8888", started.CardNumber)
	}
}

func TestOrder_AddItem_FusionaPorProducto(t *testing.T) {
	tests := []struct {
		name             string
		firstDiscount    float64
		secondDiscount   float64
		expectedDiscount float64
	}{
		{name: "gana el descuento nuevo si es mayor", firstDiscount: 1.0, secondDiscount: 2.5, expectedDiscount: 2.5},
		{name: "se conserva el descuento viejo si es mayor", firstDiscount: 3.0, secondDiscount: 0.5, expectedDiscount: 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder()
			assert.NoError(t, o.AddItem(10, "Taza", 12.0, tt.firstDiscount, 2, ""))
			assert.NoError(t, o.AddItem(10, "Taza", 12.0, tt.secondDiscount, 3, ""))

			assert.Len(t, o.Items, 1)
			assert.Equal(t, 5, o.Items[0].Units)
			assert.Equal(t, tt.expectedDiscount, o.Items[0].Discount)
		})
	}
}

func TestOrder_AddItem_Validaciones(t *testing.T) {
	o := newTestOrder()

	assert.ErrorIs(t, o.AddItem(10, "Taza", 12.0, 0, 0, ""), ErrInvalidUnits)
	assert.ErrorIs(t, o.AddItem(10, "Taza", 12.0, 100.0, 1, ""), ErrInvalidDiscount)

	// Fuera de submitted no se pueden añadir líneas.
	assert.NoError(t, o.AddItem(10, "Taza", 12.0, 0, 1, ""))
	assert.True(t, o.SetAwaitingValidation())
	assert.ErrorIs(t, o.AddItem(11, "Plato", 8.0, 0, 1, ""), ErrOrderClosedForItems)
}

func TestOrder_AddItem_LaFusionNoSuperaElSubtotal(t *testing.T) {
	o := newTestOrder()
	assert.NoError(t, o.AddItem(10, "Taza", 10.0, 0, 1, ""))

	// 3 unidades × 10.0 = 30 de subtotal: un descuento de 35 rompería la
	// línea fusionada, así que se rechaza sin tocarla.
	assert.ErrorIs(t, o.AddItem(10, "Taza", 10.0, 35.0, 2, ""), ErrInvalidDiscount)
	assert.Equal(t, 1, o.Items[0].Units)
	assert.Equal(t, 0.0, o.Items[0].Discount)

	// Un descuento legal sobre la línea fusionada sí entra.
	assert.NoError(t, o.AddItem(10, "Taza", 10.0, 25.0, 2, ""))
	assert.Equal(t, 3, o.Items[0].Units)
	assert.Equal(t, 25.0, o.Items[0].Discount)
}

func TestOrder_TransicionesGuardadas(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(o *Order)
		act     func(o *Order) bool
		changed bool
		status  OrderStatus
	}{
		{
			name:    "submitted → awaiting_validation",
			prepare: func(o *Order) {},
			act:     func(o *Order) bool { return o.SetAwaitingValidation() },
			changed: true,
			status:  StatusAwaitingValidation,
		},
		{
			name:    "awaiting_validation → stock_confirmed",
			prepare: func(o *Order) { o.SetAwaitingValidation() },
			act:     func(o *Order) bool { return o.SetStockConfirmed() },
			changed: true,
			status:  StatusStockConfirmed,
		},
		{
			name:    "stock_confirmed → paid",
			prepare: func(o *Order) { o.SetAwaitingValidation(); o.SetStockConfirmed() },
			act:     func(o *Order) bool { return o.SetPaid() },
			changed: true,
			status:  StatusPaid,
		},
		{
			name:    "awaiting_validation no repite awaiting_validation",
			prepare: func(o *Order) { o.SetAwaitingValidation() },
			act:     func(o *Order) bool { return o.SetAwaitingValidation() },
			changed: false,
			status:  StatusAwaitingValidation,
		},
		{
			name:    "submitted no salta a paid",
			prepare: func(o *Order) {},
			act:     func(o *Order) bool { return o.SetPaid() },
			changed: false,
			status:  StatusSubmitted,
		},
		{
			name:    "cancelado ignora el fin del periodo de gracia",
			prepare: func(o *Order) { _ = o.Cancel() },
			act:     func(o *Order) bool { return o.SetAwaitingValidation() },
			changed: false,
			status:  StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder()
			tt.prepare(o)
			assert.Equal(t, tt.changed, tt.act(o))
			assert.Equal(t, tt.status, o.Status)
		})
	}
}

func TestOrder_SetStockRejected_CancelaYDescribeProductos(t *testing.T) {
	o := newTestOrder()
	assert.NoError(t, o.AddItem(10, "Taza", 12.0, 0, 1, ""))
	assert.NoError(t, o.AddItem(11, "Plato", 8.0, 0, 1, ""))
	assert.NoError(t, o.AddItem(12, "Vaso", 3.0, 0, 2, ""))
	assert.True(t, o.SetAwaitingValidation())

	assert.True(t, o.SetStockRejected([]int{10, 12}))
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, "The product items don't have stock: (Taza, Vaso).", o.Description)
}

func TestOrder_Ship(t *testing.T) {
	o := newTestOrder()
	o.SetAwaitingValidation()
	o.SetStockConfirmed()

	// Solo desde paid.
	err := o.Ship()
	var statusErr *StatusChangeError
	if assert.ErrorAs(t, err, &statusErr) {
		assert.Equal(t, StatusStockConfirmed, statusErr.From)
		assert.Equal(t, StatusShipped, statusErr.To)
		assert.Equal(t, "not possible to change order status from stock_confirmed to shipped", err.Error())
	}

	o.SetPaid()
	assert.NoError(t, o.Ship())
	assert.Equal(t, StatusShipped, o.Status)
}

func TestOrder_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(o *Order)
		wantErr bool
	}{
		{name: "desde submitted", prepare: func(o *Order) {}, wantErr: false},
		{name: "desde awaiting_validation", prepare: func(o *Order) { o.SetAwaitingValidation() }, wantErr: false},
		{
			name:    "desde stock_confirmed",
			prepare: func(o *Order) { o.SetAwaitingValidation(); o.SetStockConfirmed() },
			wantErr: false,
		},
		{
			name:    "desde paid falla",
			prepare: func(o *Order) { o.SetAwaitingValidation(); o.SetStockConfirmed(); o.SetPaid() },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOrder()
			tt.prepare(o)

			err := o.Cancel()
			if tt.wantErr {
				var statusErr *StatusChangeError
				assert.ErrorAs(t, err, &statusErr)
				assert.NotEqual(t, StatusCancelled, o.Status)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, StatusCancelled, o.Status)
			}
		})
	}
}

func TestOrder_Total(t *testing.T) {
	o := newTestOrder()
	assert.NoError(t, o.AddItem(10, "Taza", 12.0, 2.0, 2, "")) // 24 - 2
	assert.NoError(t, o.AddItem(11, "Plato", 8.0, 0, 1, ""))   // 8

	assert.Equal(t, 30.0, o.Total())
}

func TestOrder_EventosDeDominioPorTransicion(t *testing.T) {
	o := newTestOrder()

	o.SetAwaitingValidation()
	o.SetStockConfirmed()
	o.SetPaid()
	assert.NoError(t, o.Ship())

	names := make([]string, 0)
	for _, evt := range o.DomainEvents() {
		names = append(names, evt.Name())
	}
	assert.Equal(t, []string{
		EventOrderAwaitingValidation,
		EventOrderStockConfirmed,
		EventOrderPaid,
		EventOrderShipped,
	}, names)

	o.ClearDomainEvents()
	assert.Empty(t, o.DomainEvents())
}
