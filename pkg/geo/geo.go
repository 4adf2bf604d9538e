package geo

import (
	"fmt"
	"math"
)

const earthRadiusMeters = 6371000

// DistanceMeters возвращает расстояние по большому кругу между двумя точками
// (формула гаверсинуса).
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// CellKey возвращает ключ ячейки сетки, в которую попадает точка.
// Размер ячейки задаётся в метрах; соседние ячейки перебираются через
// NeighborKeys при поиске по радиусу.
func CellKey(lat, lon, cellMeters float64) string {
	latStep := cellMeters / 111320.0
	lonStep := cellMeters / (111320.0 * math.Max(math.Cos(radians(lat)), 0.01))
	return fmt.Sprintf("%d:%d", int(math.Floor(lat/latStep)), int(math.Floor(lon/lonStep)))
}

// NeighborKeys возвращает ключи ячейки точки и восьми соседних ячеек
func NeighborKeys(lat, lon, cellMeters float64) []string {
	latStep := cellMeters / 111320.0
	lonStep := cellMeters / (111320.0 * math.Max(math.Cos(radians(lat)), 0.01))
	row := int(math.Floor(lat / latStep))
	col := int(math.Floor(lon / lonStep))

	keys := make([]string, 0, 9)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			keys = append(keys, fmt.Sprintf("%d:%d", row+dr, col+dc))
		}
	}
	return keys
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
