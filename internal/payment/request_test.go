package payment

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestPaymentRequest() *PaymentRequest {
	return &PaymentRequest{
		Locale:         LocaleTR,
		ConversationID: "ord-1",
		Price:          decimal.RequireFromString("129.9"),
		PaidPrice:      decimal.RequireFromString("129.9"),
		Currency:       CurrencyTRY,
		Installment:    1,
		BasketID:       "ord-1",
		PaymentChannel: ChannelWeb,
		PaymentGroup:   GroupProduct,
		Card: PaymentCard{
			HolderName:  "Ayşe Yılmaz",
			Number:      "5528790000000008",
			ExpireMonth: "12",
			ExpireYear:  "2030",
			CVC:         "123",
		},
		Buyer: Buyer{
			ID:      "u-1",
			Name:    "Ayşe",
			Surname: "Yılmaz",
			Email:   "ayse@example.com",
			IP:      "85.34.78.112",
			City:    "Istanbul",
			Country: "Turkey",
		},
		ShippingAddress: Address{ContactName: "Ayşe Yılmaz", City: "Istanbul", Country: "Turkey", Address: "Kadıköy"},
		BillingAddress:  Address{ContactName: "Ayşe Yılmaz", City: "Istanbul", Country: "Turkey", Address: "Kadıköy"},
		BasketItems: []BasketItem{
			{ID: "p-1", Name: "Seramik Kupa", Category1: "Mutfak", ItemType: ItemPhysical, Price: decimal.RequireFromString("99.9")},
			{ID: "p-2", Name: "Çay Tabağı", Category1: "Mutfak", ItemType: ItemPhysical, Price: decimal.NewFromInt(30)},
		},
	}
}

func TestPaymentRequest_FieldOrder(t *testing.T) {
	keys := newTestPaymentRequest().Payload().Keys()
	want := []string{
		"locale", "conversationId", "price", "paidPrice", "currency", "installment",
		"basketId", "paymentChannel", "paymentGroup", "paymentCard", "buyer",
		"shippingAddress", "billingAddress", "basketItems",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys:\n got %v\nwant %v", keys, want)
	}
}

func TestPaymentRequest_CallbackURLOnlyWhenSet(t *testing.T) {
	r := newTestPaymentRequest()
	if _, ok := r.Payload().Get("callbackUrl"); ok {
		t.Error("callbackUrl must be omitted when empty")
	}
	r.CallbackURL = "https://magaza.example.com/odeme/sonuc"
	if _, ok := r.Payload().Get("callbackUrl"); !ok {
		t.Error("callbackUrl missing")
	}
}

func TestPaymentRequest_MoneyFieldsNormalized(t *testing.T) {
	body, err := newTestPaymentRequest().Payload().Serialize()
	if err != nil {
		t.Fatal(err)
	}
	s := string(body)
	for _, frag := range []string{
		`"price":"129.90","paidPrice":"129.90"`,
		`{"id":"p-1","name":"Seramik Kupa","category1":"Mutfak","itemType":"PHYSICAL","price":"99.90"}`,
		`"price":"30.00"}`,
		`"installment":1`,
	} {
		if !strings.Contains(s, frag) {
			t.Errorf("body missing %s\nbody: %s", frag, s)
		}
	}
	if strings.Contains(s, " :") || strings.Contains(s, ", ") {
		t.Errorf("body must be compact: %s", s)
	}
}

func TestPaymentRequest_SignsEndToEnd(t *testing.T) {
	s, err := Sign(testAPIKey, testSecretKey, "n-1", newTestPaymentRequest().Payload())
	if err != nil {
		t.Fatal(err)
	}
	if !Verify(testAPIKey, testSecretKey, "n-1", s.Body, s.Signature) {
		t.Fatal("signature does not verify")
	}
}
