package constants

// Section anchors and boundaries. A section starts at the first fragment
// containing one of its anchors and stops before the first later fragment
// that contains a boundary word (unless it repeats an own anchor).
var (
	SellerAnchors    = []string{"销售方", "开票方", "出售方"}
	SellerBoundaries = []string{"购买方", "收票方", "商品"}

	BuyerAnchors    = []string{"购买方", "收票方", "购方"}
	BuyerBoundaries = []string{"商品", "合计", "税额"}

	ItemAnchors    = []string{"商品名称", "货物", "商品", "明细"}
	ItemBoundaries = []string{"合计", "总计"}
)

// Amount buckets, checked in this order per fragment.
var (
	TotalAmountKeywords  = []string{"合计", "总计", "价税合计"}
	TaxAmountKeywords    = []string{"税额"}
	PreTaxAmountKeywords = []string{"不含税", "金额"}
)

var (
	InvoiceNumberAnchors = []string{"发票号码", "号码"}
	CompanyMarkers       = []string{"公司", "企业"}
	AddressMarkers       = []string{"市", "区", "县", "路", "街", "号", "室", "楼"}
)

// Diagnostic markers reported by the detailed output format.
const (
	MarkerInvoiceNumber = "发票号码"
	MarkerSeller        = "销售方"
	MarkerBuyer         = "购买方"
)

var AmountMarkers = []string{"合计", "金额"}
