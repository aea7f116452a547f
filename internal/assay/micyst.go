package assay

// MIC YST (7005) kit layout.
//
// Rows A-F run a twofold dilution series 0.004-8 mg/L. Row G (fluconazole)
// runs 0.064-128 mg/L. Row H starts with the growth-control well K at H1,
// then 0.008-8 mg/L of amphotericin B. Amphotericin B is read at the 90%
// inhibition criterion; every other agent at 50%.

func conc(vals ...float64) [Cols]*float64 {
	var out [Cols]*float64
	for i := range vals {
		if i >= Cols {
			break
		}
		v := vals[i]
		out[i] = &v
	}
	return out
}

// standardSeries is the 0.004-8 mg/L twofold series used by rows A-F.
func standardSeries() [Cols]*float64 {
	return conc(0.004, 0.008, 0.016, 0.032, 0.064, 0.125, 0.25, 0.5, 1, 2, 4, 8)
}

// MICYSTSpec returns the layout of the 7005 MIC YST antifungal panel.
func MICYSTSpec() *Spec {
	ambSeries := conc(0, 0.008, 0.016, 0.032, 0.064, 0.125, 0.25, 0.5, 1, 2, 4, 8)
	ambSeries[0] = nil // H1 is the control well K

	return &Spec{
		Name: "MIC YST (7005)",
		RowSpecs: [Rows]RowSpec{
			{Agent: Anidulafungin, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Micafungin, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Caspofungin, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Posaconazole, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Voriconazole, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Itraconazole, Concentrations: standardSeries(), InhibitionThreshold: 0.50},
			{Agent: Fluconazole, Concentrations: conc(0.064, 0.125, 0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 128), InhibitionThreshold: 0.50},
			{Agent: AmphotericinB, Concentrations: ambSeries, InhibitionThreshold: 0.90},
		},
		ControlWell: WellCoord{Row: 7, Col: 0},
	}
}
