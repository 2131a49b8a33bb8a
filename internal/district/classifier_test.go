package district

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		expected string
	}{
		{
			name:     "Explicit district part",
			address:  "Москва, СВАО, район Останкинский, проспект Мира, 119с536",
			expected: "Район останкинский",
		},
		{
			name:     "Okrug keyword part",
			address:  "Московская область, городской округ Химки, ул. Загородная, дом 4",
			expected: "Городской округ химки",
		},
		{
			name:     "Municipal suffix pattern",
			address:  "Москва, Покровский р-н, д 5",
			expected: "Район покровский",
		},
		{
			name:     "Well known district without keyword",
			address:  "Москва, Хамовники, Комсомольский проспект 16",
			expected: "Хамовники",
		},
		{
			name:     "City pattern for oblast town",
			address:  "Московская область, г. Королев, проспект Космонавтов, 20А",
			expected: "г. Королев",
		},
		{
			name:     "Okrug abbreviation",
			address:  "Москва ЮЗАО ул Профсоюзная 93",
			expected: "Юго-Западный АО",
		},
		{
			name:     "Moscow city collapses to default",
			address:  "г Москва, ул Тверская, дом 7",
			expected: DefaultTag,
		},
		{
			name:     "Unmatched input degrades to default",
			address:  "Зеленоград, корпус 847",
			expected: DefaultTag,
		},
		{
			name:     "Empty address",
			address:  "",
			expected: DefaultTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.address))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	address := "Москва, район Беговой, Ленинградский проспект 23"
	first := Classify(address)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Classify(address))
	}
}

func TestClassifySpecificBeatsGeneric(t *testing.T) {
	// Both a city pattern and a district keyword are present; the district
	// keyword must win.
	address := "г. Москва, район Щукино, ул Маршала Василевского"
	assert.Equal(t, "Район щукино", Classify(address))
}
