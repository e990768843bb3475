package entity

import (
	"encoding/json"
	"testing"
)

func TestRecognitionJSON(t *testing.T) {
	num := "12345678"
	inv := Recognition{Invoice: &Invoice{BasicInfo: BasicInfo{InvoiceNumber: &num}, Items: []Item{}}}
	b, err := json.Marshal(inv)
	if err != nil {
		t.Fatal(err)
	}
	var back Recognition
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Invoice == nil || back.Raw != nil || *back.Invoice.BasicInfo.InvoiceNumber != num {
		t.Fatalf("invoice decoded as %+v", back)
	}

	raw := Recognition{Raw: &OCRResult{Fragments: []Fragment{{Text: "发票", Confidence: 0.9}}, Engine: "tesseract"}}
	b, err = json.Marshal(raw)
	if err != nil {
		t.Fatal(err)
	}
	back = Recognition{}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Raw == nil || back.Invoice != nil || back.Raw.Fragments[0].Text != "发票" {
		t.Fatalf("raw decoded as %+v", back)
	}

	if err := json.Unmarshal([]byte("null"), &back); err != nil || back.Invoice != nil || back.Raw != nil {
		t.Fatalf("null decoded as %+v (%v)", back, err)
	}
}
