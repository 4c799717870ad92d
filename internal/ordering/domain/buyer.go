package domain

import (
	sharedDomain "github.com/davicafu/ordelab/shared/domain"
	"github.com/google/uuid"
)

// PaymentMethod es un instrumento de pago ya verificado del comprador.
type PaymentMethod struct {
	ID             uuid.UUID `json:"id"`
	Alias          string    `json:"alias"`
	CardType       string    `json:"card_type"`
	CardNumber     string    `json:"card_number"`
	SecurityNumber string    `json:"security_number"`
	CardHolderName string    `json:"card_holder_name"`
	Expiration     string    `json:"expiration"` // MM/YY
}

// isEqualTo decide si dos instrumentos son el mismo: tipo, número y
// caducidad. Así no se duplican registros de verificación.
func (p PaymentMethod) isEqualTo(cardType, cardNumber, expiration string) bool {
	return p.CardType == cardType && p.CardNumber == cardNumber && p.Expiration == expiration
}

// Buyer agrupa la identidad del comprador y sus métodos de pago verificados.
type Buyer struct {
	sharedDomain.Entity

	ID             uuid.UUID       `json:"id"`
	IdentityGUID   string          `json:"identity_guid"` // id del principal autenticado
	Name           string          `json:"name"`
	PaymentMethods []PaymentMethod `json:"payment_methods"`
}

func NewBuyer(identityGUID, name string) (*Buyer, error) {
	if identityGUID == "" {
		return nil, ErrInvalidBuyer
	}
	return &Buyer{
		ID:           uuid.New(),
		IdentityGUID: identityGUID,
		Name:         name,
	}, nil
}

// VerifyOrAddPaymentMethod devuelve el método existente que coincida con
// (tipo, número, caducidad) o lo da de alta, y apila el evento de
// verificación que enlazará comprador y pedido.
func (b *Buyer) VerifyOrAddPaymentMethod(cardType, cardNumber, securityNumber, cardHolderName, expiration, alias string, orderID uuid.UUID) PaymentMethod {
	for _, pm := range b.PaymentMethods {
		if pm.isEqualTo(cardType, cardNumber, expiration) {
			b.Raise(&BuyerPaymentVerifiedEvent{Buyer: b, Payment: pm, OrderID: orderID})
			return pm
		}
	}

	pm := PaymentMethod{
		ID:             uuid.New(),
		Alias:          alias,
		CardType:       cardType,
		CardNumber:     cardNumber,
		SecurityNumber: securityNumber,
		CardHolderName: cardHolderName,
		Expiration:     expiration,
	}
	b.PaymentMethods = append(b.PaymentMethods, pm)
	b.Raise(&BuyerPaymentVerifiedEvent{Buyer: b, Payment: pm, OrderID: orderID})
	return pm
}
