// Package export writes stored leads as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/contato-rede/leads/internal/model"
)

var header = []string{
	"campaign_id", "name", "city_uf", "phone", "address", "website",
	"instagram", "facebook", "rating", "reviews", "category", "description",
}

// WriteCSV writes one row per lead after a header row.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, l := range leads {
		row := []string{
			l.CampaignID,
			l.Name,
			CityUF(l.Address),
			l.Phone,
			l.Address,
			l.Website,
			l.Instagram,
			l.Facebook,
			rating(l.Rating),
			strconv.Itoa(l.Reviews),
			l.Category,
			l.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing %q: %w", l.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func rating(r float64) string {
	if r == 0 || r != r {
		return ""
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

// CityUF derives "City / UF" from a Brazilian formatted address such as
// "Rua X, 100 - Centro, Joinville - SC, 89201-000, Brasil". It returns ""
// when the address does not follow that shape.
func CityUF(address string) string {
	parts := strings.Split(address, " - ")
	switch {
	case len(parts) >= 3:
		city := strings.TrimSpace(parts[1])
		if i := strings.LastIndex(city, ","); i >= 0 {
			city = strings.TrimSpace(city[i+1:])
		}
		uf := strings.TrimSpace(strings.Split(parts[2], ",")[0])
		if isUF(uf) && city != "" {
			return city + " / " + uf
		}
	case len(parts) == 2:
		city := strings.TrimSpace(parts[0])
		if i := strings.LastIndex(city, ","); i >= 0 {
			city = strings.TrimSpace(city[i+1:])
		}
		uf := strings.TrimSpace(strings.Split(parts[1], ",")[0])
		if len(uf) == 2 && city != "" {
			return city + " / " + strings.ToUpper(uf)
		}
	}
	return ""
}

func isUF(s string) bool {
	return len(s) == 2 && s == strings.ToUpper(s)
}
