// Package glucose converts between mmol/L and mg/dL.
package glucose

import "math"

const mmolPerMg float32 = 0.0555555555555556

// MmolToMg converts mmol/L to mg/dL, rounded to the nearest integer.
func MmolToMg(mmol float32) int {
	return int(mmol/mmolPerMg + 0.5)
}

// MgToMmol converts mg/dL to mmol/L, rounded to the nearest 0.05.
func MgToMmol(mg int) float32 {
	res := float32(mg) * mmolPerMg
	return float32(math.Round(float64(res)/0.05) * 0.05)
}
