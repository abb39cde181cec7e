package bluefin

import (
	"encoding/json"
	"testing"
)

func TestScaledValue_Unmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		valid bool
	}{
		{"json number", `3012.5`, 3012.5, true},
		{"decimal string", `"3012.5"`, 3012.5, true},
		{"scaled integer string", `"3012500000000000000000"`, 3012.5, true},
		{"scaled tick size", `"1000000000000000"`, 0.001, true},
		{"exponent string", `"1e2"`, 100, true},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v ScaledValue
			if err := json.Unmarshal([]byte(tt.input), &v); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if v.Valid != tt.valid {
				t.Fatalf("Expected valid=%v, got %v", tt.valid, v.Valid)
			}
			if v.Float() != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, v.Float())
			}
		})
	}

	var bad ScaledValue
	if err := json.Unmarshal([]byte(`"abc"`), &bad); err == nil {
		t.Error("Expected error for non-numeric string")
	}
}

func TestScaledValue_AbsentField(t *testing.T) {
	var md marketData
	if err := json.Unmarshal([]byte(`{"symbol":"ETH-PERP","lastPrice":"3000.25"}`), &md); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if md.IndexPrice.Valid || md.IndexPrice.Ptr() != nil {
		t.Error("Absent field should be invalid")
	}

	u := md.toUpdate(timeZero)
	if u.LastPrice == nil || *u.LastPrice != 3000.25 {
		t.Errorf("Expected last price 3000.25, got %v", u.LastPrice)
	}
	if u.High24h != nil {
		t.Error("Absent high should stay nil")
	}
}

func TestMarketData_PricePreference(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    float64
	}{
		{"current wins", `{"currentPrice":10,"lastPrice":11,"markPrice":12,"indexPrice":13}`, 10},
		{"last next", `{"lastPrice":11,"markPrice":12,"indexPrice":13}`, 11},
		{"mark next", `{"markPrice":12,"indexPrice":13}`, 12},
		{"market price alias", `{"marketPrice":"12.5","indexPrice":13}`, 12.5},
		{"index last", `{"indexPrice":13}`, 13},
		{"zero current ignored", `{"currentPrice":0,"lastPrice":11}`, 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var md marketData
			if err := json.Unmarshal([]byte(tt.payload), &md); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			price, ok := md.toUpdate(timeZero).Price()
			if !ok || price != tt.want {
				t.Errorf("Expected %v, got %v (ok=%v)", tt.want, price, ok)
			}
		})
	}
}

func TestSubscribeMessage(t *testing.T) {
	msg, err := subscribeMessage("globalUpdates", "ETH-PERP")
	if err != nil {
		t.Fatalf("subscribeMessage failed: %v", err)
	}
	want := `["SUBSCRIBE",[{"e":"globalUpdates","p":"ETH-PERP"}]]`
	if string(msg) != want {
		t.Errorf("Expected %s, got %s", want, msg)
	}
}
