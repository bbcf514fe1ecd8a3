package payment

import "github.com/shopspring/decimal"

// Gateway enumerations used by the storefront.
const (
	LocaleTR = "tr"

	CurrencyTRY = "TRY"

	ChannelWeb   = "WEB"
	GroupProduct = "PRODUCT"

	ItemPhysical = "PHYSICAL"
	ItemVirtual  = "VIRTUAL"
)

// PaymentRequest is the body of a card payment call. Payload emits the
// fields in the order below; the gateway's reference clients build them in
// the same order.
type PaymentRequest struct {
	Locale          string
	ConversationID  string
	Price           decimal.Decimal
	PaidPrice       decimal.Decimal
	Currency        string
	Installment     int
	BasketID        string
	PaymentChannel  string
	PaymentGroup    string
	CallbackURL     string
	Card            PaymentCard
	Buyer           Buyer
	ShippingAddress Address
	BillingAddress  Address
	BasketItems     []BasketItem
}

type PaymentCard struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

type Buyer struct {
	ID                  string
	Name                string
	Surname             string
	Email               string
	GSMNumber           string
	IdentityNumber      string
	RegistrationAddress string
	IP                  string
	City                string
	Country             string
	ZipCode             string
}

type Address struct {
	ContactName string
	City        string
	Country     string
	Address     string
	ZipCode     string
}

type BasketItem struct {
	ID        string
	Name      string
	Category1 string
	ItemType  string
	Price     decimal.Decimal
}

// Payload builds the ordered wire representation. Price, paidPrice and
// every basket item price are declared as Money.
func (r *PaymentRequest) Payload() *Payload {
	items := make([]*Payload, 0, len(r.BasketItems))
	for _, it := range r.BasketItems {
		items = append(items, it.payload())
	}

	p := NewPayload().
		String("locale", r.Locale).
		String("conversationId", r.ConversationID).
		Money("price", r.Price).
		Money("paidPrice", r.PaidPrice).
		String("currency", r.Currency).
		Int("installment", r.Installment).
		String("basketId", r.BasketID).
		String("paymentChannel", r.PaymentChannel).
		String("paymentGroup", r.PaymentGroup)
	if r.CallbackURL != "" {
		p.String("callbackUrl", r.CallbackURL)
	}
	return p.
		Object("paymentCard", r.Card.payload()).
		Object("buyer", r.Buyer.payload()).
		Object("shippingAddress", r.ShippingAddress.payload()).
		Object("billingAddress", r.BillingAddress.payload()).
		Array("basketItems", items...)
}

func (c PaymentCard) payload() *Payload {
	return NewPayload().
		String("cardHolderName", c.HolderName).
		String("cardNumber", c.Number).
		String("expireMonth", c.ExpireMonth).
		String("expireYear", c.ExpireYear).
		String("cvc", c.CVC).
		Int("registerCard", 0)
}

func (b Buyer) payload() *Payload {
	return NewPayload().
		String("id", b.ID).
		String("name", b.Name).
		String("surname", b.Surname).
		String("gsmNumber", b.GSMNumber).
		String("email", b.Email).
		String("identityNumber", b.IdentityNumber).
		String("registrationAddress", b.RegistrationAddress).
		String("ip", b.IP).
		String("city", b.City).
		String("country", b.Country).
		String("zipCode", b.ZipCode)
}

func (a Address) payload() *Payload {
	return NewPayload().
		String("contactName", a.ContactName).
		String("city", a.City).
		String("country", a.Country).
		String("address", a.Address).
		String("zipCode", a.ZipCode)
}

func (it BasketItem) payload() *Payload {
	return NewPayload().
		String("id", it.ID).
		String("name", it.Name).
		String("category1", it.Category1).
		String("itemType", it.ItemType).
		Money("price", it.Price)
}
