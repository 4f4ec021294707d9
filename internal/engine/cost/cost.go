package cost

// Approximate Google Places prices in USD. Text Search returns up to 20 results per call;
// Place Details is billed per place with the basic + contact field mask.
const (
	DefaultSearchCall = 0.032
	DefaultDetailCall = 0.017
)

// Pricing is the price list an Accountant applies.
type Pricing interface {
	SearchCall() float64
	DetailCall() float64
}

// Table is a fixed Pricing.
type Table struct {
	Search float64 `yaml:"searchCall"`
	Detail float64 `yaml:"detailCall"`
}

func (t Table) SearchCall() float64 { return t.Search }
func (t Table) DetailCall() float64 { return t.Detail }

// DefaultTable returns the built-in prices.
func DefaultTable() Table {
	return Table{Search: DefaultSearchCall, Detail: DefaultDetailCall}
}

// Accountant turns call counts into money.
type Accountant struct {
	pricing Pricing
}

func NewAccountant(p Pricing) Accountant {
	if p == nil {
		p = DefaultTable()
	}
	return Accountant{pricing: p}
}

// Estimate returns the cost of searchCalls text searches plus detailCalls detail lookups.
func (a Accountant) Estimate(searchCalls, detailCalls int) float64 {
	p := a.pricing
	if p == nil {
		p = DefaultTable()
	}
	return float64(searchCalls)*p.SearchCall() + float64(detailCalls)*p.DetailCall()
}
