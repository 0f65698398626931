package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeFee(t *testing.T) {
	fee := ComputeFee(NewMoneyFromDecimal(decimal.NewFromInt(300)), NewMoneyFromDecimal(decimal.NewFromInt(7)))
	if fee.String() != "21.00" {
		t.Fatalf("unexpected fee: %s", fee.String())
	}

	product := &Product{
		PriceLocal:    NewMoneyFromDecimal(decimal.RequireFromString("199.99")),
		FinFeePercent: NewMoneyFromDecimal(decimal.RequireFromString("5.5")),
	}
	product.RefreshAmountFee()
	if product.AmountFee.String() != "11.00" {
		t.Fatalf("unexpected amount fee: %s", product.AmountFee.String())
	}
}

func TestRateKeepsPrecision(t *testing.T) {
	var rate Rate
	if err := json.Unmarshal([]byte(`"0.02912345678"`), &rate); err != nil {
		t.Fatalf("unmarshal rate failed: %v", err)
	}
	if rate.String() != "0.02912346" {
		t.Fatalf("unexpected rate: %s", rate.String())
	}
	raw, err := json.Marshal(NewRateFromDecimal(decimal.RequireFromString("0.029")))
	if err != nil {
		t.Fatalf("marshal rate failed: %v", err)
	}
	if string(raw) != `"0.029"` {
		t.Fatalf("unexpected rate json: %s", string(raw))
	}
}

func TestMoneyJSON(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`2.105`), &m); err != nil {
		t.Fatalf("unmarshal money failed: %v", err)
	}
	raw, _ := json.Marshal(m)
	if string(raw) != `"2.11"` {
		t.Fatalf("unexpected money json: %s", string(raw))
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil {
		t.Fatalf("unmarshal null failed: %v", err)
	}
}
