// Package invoicetest provides OCR fixtures shared by tests.
package invoicetest

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"math/rand"

	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
)

// SampleTexts is a VAT special invoice as an OCR engine reads it, top to bottom.
var SampleTexts = []string{
	"增值税专用发票",
	"发票代码：044001900111",
	"发票号码：12345678",
	"开票日期：2024年1月15日",
	"购买方 名称：北京某某贸易有限公司",
	"纳税人识别号：911100001234567890",
	"地址、电话：北京市朝阳区建国路88号 010-12345678",
	"开户行及账号：工商银行 6222021234567890123",
	"货物或应税劳务名称 规格型号 单位 数量 单价 金额 税率 税额",
	"办公用品 1 500.00 13% 65.00",
	"合计 ￥500.00 ￥65.00",
	"不含税金额：500.00",
	"税额：65.00",
	"价税合计（大写）伍佰陆拾伍元整（小写）￥565.00",
	"销售方 名称：深圳市某某科技有限公司",
	"纳税人识别号：91440300MA5F1234XY",
	"地址、电话：深圳市南山区科技园路1号 0755-88886666",
	"开户行及账号：招商银行 6225880123456789012",
	"校验码：12345678901",
	"机器编号：499099123456",
}

// SampleOCR wraps SampleTexts as engine output with stacked line boxes.
func SampleOCR() entity.OCRResult {
	return OCRFromTexts(SampleTexts...)
}

// OCRFromTexts builds an OCR result with one line box per text.
func OCRFromTexts(texts ...string) entity.OCRResult {
	frags := make([]entity.Fragment, len(texts))
	for i, t := range texts {
		y := float64(20 + i*30)
		frags[i] = entity.Fragment{
			Region:     entity.Region{{X: 10, Y: y}, {X: 600, Y: y}, {X: 600, Y: y + 24}, {X: 10, Y: y + 24}},
			Text:       t,
			Confidence: 0.95,
		}
	}
	return entity.OCRResult{Fragments: frags, Engine: "fixture", ProcessingTime: 0.25}
}

// NoisyPNG encodes a w×h image of random pixels. Noise keeps the encoded
// size above the minimum accepted payload for any w,h >= 24.
func NoisyPNG(w, h int) []byte {
	r := rand.New(rand.NewSource(int64(w*31 + h)))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.Intn(256))
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// PNGPayload is NoisyPNG(32, 32) as a base64 data URI.
func PNGPayload() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(NoisyPNG(32, 32))
}
