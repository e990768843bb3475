package constants

import "fmt"

// InvoiceType identifies a document class the classifier can return.
type InvoiceType string

const (
	GeneralInvoice    InvoiceType = "general_invoice"
	VATInvoice        InvoiceType = "vat_invoice"
	ElectronicInvoice InvoiceType = "electronic_invoice"
	Receipt           InvoiceType = "receipt"
	TrainTicket       InvoiceType = "train_ticket"
	TaxiTicket        InvoiceType = "taxi_ticket"
	AirTicket         InvoiceType = "air_ticket"
	HotelInvoice      InvoiceType = "hotel_invoice"
	CateringInvoice   InvoiceType = "catering_invoice"
)

// Keyword is a weighted indicator phrase.
type Keyword struct {
	Text   string
	Weight int
}

// TypeKeywords binds an invoice type to the phrases that vote for it.
type TypeKeywords struct {
	Type     InvoiceType
	Name     string
	Code     string // entry in TypeCodes, empty if the type has no tax code
	Keywords []Keyword
}

// KeywordTable is ordered; earlier entries win ties.
var KeywordTable = []TypeKeywords{
	{Type: GeneralInvoice, Name: "增值税普通发票", Code: "04", Keywords: []Keyword{
		{"增值税普通发票", 5}, {"普通发票", 4}, {"发票代码", 3}, {"发票号码", 3},
		{"开票日期", 2}, {"发票", 2}, {"代码", 1}, {"号码", 1}, {"增值税", 1},
	}},
	{Type: VATInvoice, Name: "增值税专用发票", Code: "01", Keywords: []Keyword{
		{"增值税专用发票", 5}, {"专用发票", 4}, {"纳税人识别号", 3}, {"税额", 2},
		{"价税合计", 2}, {"专用", 2}, {"纳税人", 1}, {"识别号", 1},
	}},
	{Type: ElectronicInvoice, Name: "增值税电子普通发票", Code: "10", Keywords: []Keyword{
		{"电子发票", 5}, {"电子普通发票", 4}, {"二维码", 2}, {"验证码", 2}, {"电子", 1}, {"查验", 1},
	}},
	{Type: Receipt, Name: "收据", Keywords: []Keyword{
		{"收据", 4}, {"收款收据", 3}, {"往来款项收据", 3}, {"收费收据", 3}, {"收款", 1},
	}},
	{Type: TrainTicket, Name: "火车票", Code: "83", Keywords: []Keyword{
		{"车票", 4}, {"火车票", 4}, {"高铁票", 4}, {"动车票", 4}, {"席别", 2}, {"车次", 2}, {"铁路", 1},
	}},
	{Type: TaxiTicket, Name: "出租车票", Keywords: []Keyword{
		{"出租车票", 5}, {"的士票", 4}, {"计程车", 4}, {"里程", 2}, {"等候时间", 1}, {"出租车", 2},
	}},
	{Type: AirTicket, Name: "航空运输电子客票行程单", Code: "61", Keywords: []Keyword{
		{"登机牌", 5}, {"机票", 4}, {"航班", 3}, {"座位号", 2}, {"登机口", 2}, {"航空", 1},
	}},
	{Type: HotelInvoice, Name: "住宿发票", Keywords: []Keyword{
		{"住宿发票", 5}, {"酒店发票", 4}, {"宾馆", 3}, {"房费", 2}, {"住宿费", 2}, {"住宿", 1}, {"酒店", 1},
	}},
	{Type: CateringInvoice, Name: "餐饮发票", Keywords: []Keyword{
		{"餐饮发票", 4}, {"餐费", 3}, {"服务费", 2}, {"酒水", 1}, {"用餐", 1}, {"餐饮", 1},
	}},
}

// TypeCodes is the national tax authority invoice-kind catalogue.
var TypeCodes = map[string]string{
	"01":  "增值税专用发票",
	"03":  "机动车增值税专用发票",
	"04":  "增值税普通发票",
	"10":  "增值税电子普通发票",
	"11":  "增值税普通发票（卷式）",
	"14":  "增值税普通发票（通行费）",
	"15":  "二手车发票",
	"20":  "增值税电子专用发票",
	"99":  "数电发票（增值税专用发票）",
	"09":  "数电发票（普通发票）",
	"61":  "数电发票（航空运输电子客票行程单）",
	"83":  "数电发票（铁路电子客票）",
	"100": "区块链发票",
}

const UnknownTypeName = "未知类型"

var typeIndex map[InvoiceType]TypeKeywords

func init() {
	if err := validateKeywordTable(KeywordTable); err != nil {
		panic(err)
	}
	typeIndex = make(map[InvoiceType]TypeKeywords, len(KeywordTable))
	for _, tk := range KeywordTable {
		typeIndex[tk.Type] = tk
	}
}

func validateKeywordTable(table []TypeKeywords) error {
	if len(table) == 0 {
		return fmt.Errorf("keyword table is empty")
	}
	seen := make(map[InvoiceType]struct{}, len(table))
	for _, tk := range table {
		if tk.Type == "" {
			return fmt.Errorf("keyword table: entry with empty type")
		}
		if _, dup := seen[tk.Type]; dup {
			return fmt.Errorf("keyword table: duplicate type %q", tk.Type)
		}
		seen[tk.Type] = struct{}{}
		if len(tk.Keywords) == 0 {
			return fmt.Errorf("keyword table: %q has no keywords", tk.Type)
		}
		if tk.Code != "" {
			if _, ok := TypeCodes[tk.Code]; !ok {
				return fmt.Errorf("keyword table: %q references unknown code %q", tk.Type, tk.Code)
			}
		}
		words := make(map[string]struct{}, len(tk.Keywords))
		for _, kw := range tk.Keywords {
			if kw.Text == "" || kw.Weight <= 0 {
				return fmt.Errorf("keyword table: %q has invalid keyword %q (weight %d)", tk.Type, kw.Text, kw.Weight)
			}
			if _, dup := words[kw.Text]; dup {
				return fmt.Errorf("keyword table: %q repeats keyword %q", tk.Type, kw.Text)
			}
			words[kw.Text] = struct{}{}
		}
	}
	return nil
}

// Lookup returns the table entry for t.
func Lookup(t InvoiceType) (TypeKeywords, bool) {
	tk, ok := typeIndex[t]
	return tk, ok
}

// DisplayName returns the human-readable name for t.
func (t InvoiceType) DisplayName() string {
	if tk, ok := typeIndex[t]; ok {
		return tk.Name
	}
	return UnknownTypeName
}

// Code returns the tax catalogue code for t, or "" when there is none.
func (t InvoiceType) Code() string {
	return typeIndex[t].Code
}

// TypeCodeName resolves a catalogue code.
func TypeCodeName(code string) (string, bool) {
	name, ok := TypeCodes[code]
	return name, ok
}
