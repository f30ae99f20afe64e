package knowledge

// Sheet ranges of the three reference tables. Header rows are
// excluded by starting at row 2.
const (
	productRange = "Kpop!A2:G"
	sizeRange    = "Size!A2:D"
	faqRange     = "FAQ!A2:C"
)

// Product is one row of the K-pop merchandise table. JSON keys match
// the column names the storefront staff maintain in the sheet, the
// serialized form is fed verbatim into the assistant prompt.
type Product struct {
	Code        string `json:"상품코드"`
	Name        string `json:"상품명"`
	ReleaseDate string `json:"출시일"`
	ShipDate    string `json:"배송예정일"`
	Contents    string `json:"구성품"`
	Bonus       string `json:"특전"`
	ImageURL    string `json:"이미지,omitempty"`
}

// SizeEntry is one row of the clothing size guide.
type SizeEntry struct {
	Brand    string `json:"브랜드"`
	Category string `json:"카테고리"`
	Table    string `json:"사이즈표"`
	Notes    string `json:"참고사항,omitempty"`
}

// FaqEntry is one row of the FAQ table.
type FaqEntry struct {
	Category string `json:"카테고리"`
	Question string `json:"질문"`
	Answer   string `json:"답변"`
}

func parseProducts(rows [][]string) []Product {
	result := make([]Product, 0, len(rows))

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		result = append(result, Product{
			Code:        cell(row, 0),
			Name:        cell(row, 1),
			ReleaseDate: cell(row, 2),
			ShipDate:    cell(row, 3),
			Contents:    cell(row, 4),
			Bonus:       cell(row, 5),
			ImageURL:    cell(row, 6),
		})
	}

	return result
}

func parseSizes(rows [][]string) []SizeEntry {
	result := make([]SizeEntry, 0, len(rows))

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		result = append(result, SizeEntry{
			Brand:    cell(row, 0),
			Category: cell(row, 1),
			Table:    cell(row, 2),
			Notes:    cell(row, 3),
		})
	}

	return result
}

func parseFaqs(rows [][]string) []FaqEntry {
	result := make([]FaqEntry, 0, len(rows))

	for _, row := range rows {
		if emptyRow(row) {
			continue
		}

		result = append(result, FaqEntry{
			Category: cell(row, 0),
			Question: cell(row, 1),
			Answer:   cell(row, 2),
		})
	}

	return result
}

// cell tolerates short rows, the Sheets API omits trailing empty
// cells and a missing field is not an error.
func cell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}

	return row[index]
}

func emptyRow(row []string) bool {
	for _, value := range row {
		if value != "" {
			return false
		}
	}

	return true
}
