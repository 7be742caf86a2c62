package simulator

import (
	"math"

	"github.com/vladimiradmaev/tacticmap/internal/domain"
)

// RiskLevel is the band shown on the report screen
type RiskLevel string

const (
	RiskLow    RiskLevel = "BAJO"
	RiskMedium RiskLevel = "MEDIO"
	RiskHigh   RiskLevel = "ALTO"
)

// Report is the mocked MSI summary displayed to the user.
// The score is a fixed arithmetic blend of the readings, not a clinical model.
type Report struct {
	Score       float64
	Level       RiskLevel
	Findings    int
	HighTemp    bool
	Description string
}

var riskDescriptions = map[RiskLevel]string{
	RiskLow:    "Sin hallazgos relevantes. Continúe monitoreo regular cada 90 días.",
	RiskMedium: "Cambio a vigilar. Se recomienda seguimiento en 30 días y comparación con histórico.",
	RiskHigh:   "Hallazgo sospechoso. Se recomienda evaluación diagnóstica estándar con profesional.",
}

// Triage builds the report view from a reading and the current markers
func Triage(data domain.SensorReading, lesions []domain.Lesion) Report {
	active := 0
	for _, v := range []float64{data.Pulse, data.Pressure, data.Ultrasound, data.Temperature, data.Density} {
		if v > 0 {
			active++
		}
	}

	score := 0.0
	if active > 0 {
		raw := data.Temperature + data.Pressure + data.Density*10 + data.Pulse/10
		score = math.Round(raw*10) / 10
	}

	level := RiskLow
	switch {
	case score > 60:
		level = RiskHigh
	case score > 50:
		level = RiskMedium
	}

	return Report{
		Score:       score,
		Level:       level,
		Findings:    len(lesions),
		HighTemp:    data.Temperature > 38,
		Description: riskDescriptions[level],
	}
}
