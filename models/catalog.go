package models

// CatalogHeaders is the template header row of the product catalog workbook.
var CatalogHeaders = []string{
	"상품바코드",
	"상품바코드명",
	"상품코드",
	"상품옵션1(중문)",
	"상품옵션2(중문)",
	"상품옵션3(중문)",
	"상품단가(위안)",
	"이미지URL",
	"상품URL",
	"통관품목명(영문)",
	"통관품목명(한글)",
	"소재(바코드표시)",
	"주의사항(바코드표시)",
	"포장1개당구매수량",
	"합포장여부",
	"메모",
}

const CatalogSheet = "상품정보"

// CatalogEntry is one row of the product catalog; only the first three fields drive reconciliation.
type CatalogEntry struct {
	Barcode         string `json:"barcode"`
	DisplayName     string `json:"display_name"`
	ProductCode     string `json:"product_code"`
	Option1         string `json:"option1"`
	Option2         string `json:"option2"`
	Option3         string `json:"option3"`
	UnitPriceCNY    string `json:"unit_price_cny"`
	ImageURL        string `json:"image_url"`
	ProductURL      string `json:"product_url"`
	CustomsNameEN   string `json:"customs_name_en"`
	CustomsNameKR   string `json:"customs_name_kr"`
	Material        string `json:"material"`
	Caution         string `json:"caution"`
	PackQuantity    string `json:"pack_quantity"`
	CombinedPacking string `json:"combined_packing"`
	Memo            string `json:"memo"`
}

// Row returns the entry in CatalogHeaders order.
func (e CatalogEntry) Row() []string {
	return []string{
		e.Barcode, e.DisplayName, e.ProductCode,
		e.Option1, e.Option2, e.Option3,
		e.UnitPriceCNY, e.ImageURL, e.ProductURL,
		e.CustomsNameEN, e.CustomsNameKR, e.Material,
		e.Caution, e.PackQuantity, e.CombinedPacking, e.Memo,
	}
}

// CatalogEntryFromRow is the inverse of Row; short rows leave trailing fields blank.
func CatalogEntryFromRow(row []string) CatalogEntry {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	return CatalogEntry{
		Barcode: get(0), DisplayName: get(1), ProductCode: get(2),
		Option1: get(3), Option2: get(4), Option3: get(5),
		UnitPriceCNY: get(6), ImageURL: get(7), ProductURL: get(8),
		CustomsNameEN: get(9), CustomsNameKR: get(10), Material: get(11),
		Caution: get(12), PackQuantity: get(13), CombinedPacking: get(14), Memo: get(15),
	}
}
