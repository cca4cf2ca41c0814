package pricing

// Tariff holds the additive consumer-side charges applied on top of the
// raw market price. All figures are currency per kWh except VATPercent.
type Tariff struct {
	ImportMarkup float64
	ImportGrid   float64
	ImportTax    float64

	ExportMarkup float64
	ExportGrid   float64
	ExportTax    float64

	VATPercent float64
}

// Spot returns the consumer energy price for import: raw price plus
// supplier markup, with VAT on top.
func (t Tariff) Spot(c float64) float64 {
	cost := c + t.ImportMarkup
	return cost + cost*t.VATPercent/100
}

// Grid returns the consumer grid price for import. Independent of the
// market price: transfer fee plus energy tax, with VAT on top.
func (t Tariff) Grid(_ float64) float64 {
	cost := t.ImportGrid + t.ImportTax
	return cost + cost*t.VATPercent/100
}

// Total returns the full consumer price for import.
func (t Tariff) Total(c float64) float64 {
	return t.Spot(c) + t.Grid(c)
}

// Export returns the compensation price for export. No VAT is applied.
func (t Tariff) Export(c float64) float64 {
	return c + t.ExportMarkup + t.ExportGrid + t.ExportTax
}
