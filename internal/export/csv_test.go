package export

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contato-rede/leads/internal/model"
)

func TestCityUF(t *testing.T) {
	cases := []struct {
		address string
		want    string
	}{
		{"R. Blumenau, 1200 - Centro, Joinville - SC, 89204-250, Brasil", "Joinville / SC"},
		{"Av. Brasil - Curitiba - PR, 80000-000, Brasil", "Curitiba / PR"},
		{"Rua das Flores, Caxias do Sul - rs, 95000-000", "Caxias do Sul / RS"},
		{"Rua das Flores 10, Porto Alegre", ""},
		{"", ""},
		{"Rua A - Centro - Cidade, Brasil", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CityUF(c.address), c.address)
	}
}

func TestWriteCSV(t *testing.T) {
	leads := []model.Lead{
		{
			CampaignID: "c1", Name: "Retífica Alfa, Ltda", Phone: "(47) 3422-0000",
			Address: "R. Blumenau, 1200 - Centro, Joinville - SC, 89204-250, Brasil",
			Rating:  4.66, Reviews: 31, Category: "car repair",
		},
		{CampaignID: "default", Name: "Sem Nota", Rating: math.NaN()},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, leads))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, "Retífica Alfa, Ltda", rows[1][1])
	assert.Equal(t, "Joinville / SC", rows[1][2])
	assert.Equal(t, "4.7", rows[1][8])
	assert.Equal(t, "31", rows[1][9])
	assert.Equal(t, "", rows[2][8])
}
