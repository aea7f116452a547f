// Package assay provides microdilution plate layout definitions.
//
// A Spec describes one commercial kit: which antifungal agent sits in each
// row, the concentration series across the columns, the per-agent
// inhibition threshold for MIC reading, and where the growth-control well
// is. Coordinates are zero-based (row 0 = A, column 0 = well 1).
package assay

import "fmt"

// Plate geometry shared by every supported kit.
const (
	Rows = 8
	Cols = 12
)

// RowLabels maps row indices to the printed row letters.
var RowLabels = [Rows]string{"A", "B", "C", "D", "E", "F", "G", "H"}

// Agent identifies an antifungal agent by its standard abbreviation.
type Agent string

// Agents of the MIC YST kit.
const (
	Anidulafungin  Agent = "AND"
	Micafungin     Agent = "MIF"
	Caspofungin    Agent = "CAS"
	Posaconazole   Agent = "POS"
	Voriconazole   Agent = "VOR"
	Itraconazole   Agent = "ITR"
	Fluconazole    Agent = "FLU"
	AmphotericinB  Agent = "AMB"
)

var agentNames = map[Agent]string{
	Anidulafungin: "Anidulafungin",
	Micafungin:    "Micafungin",
	Caspofungin:   "Caspofungin",
	Posaconazole:  "Posaconazole",
	Voriconazole:  "Voriconazole",
	Itraconazole:  "Itraconazole",
	Fluconazole:   "Fluconazole",
	AmphotericinB: "Amphotericin B",
}

// FullName returns the agent's full name, or the abbreviation if unknown.
func (a Agent) FullName() string {
	if name, ok := agentNames[a]; ok {
		return name
	}
	return string(a)
}

// RowSpec describes one row of a plate: its agent and concentration series.
// A nil entry in Concentrations marks a well that carries no agent (the
// control well on row H of the MIC YST kit).
type RowSpec struct {
	Agent               Agent          `json:"agent"`
	Concentrations      [Cols]*float64 `json:"concentrations"` // mg/L, nil = no agent
	InhibitionThreshold float64        `json:"inhibition_threshold"`
}

// StartCol returns the first column that carries a concentration,
// i.e. where the MIC scan starts.
func (r RowSpec) StartCol() int {
	for c := 0; c < Cols; c++ {
		if r.Concentrations[c] != nil {
			return c
		}
	}
	return 0
}

// TopConcentration returns the highest concentration in the row.
func (r RowSpec) TopConcentration() float64 {
	for c := Cols - 1; c >= 0; c-- {
		if r.Concentrations[c] != nil {
			return *r.Concentrations[c]
		}
	}
	return 0
}

// WellCoord addresses a single well on the plate.
type WellCoord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Label returns the printed well label, e.g. "H1".
func (w WellCoord) Label() string {
	if w.Row < 0 || w.Row >= Rows {
		return fmt.Sprintf("?%d", w.Col+1)
	}
	return fmt.Sprintf("%s%d", RowLabels[w.Row], w.Col+1)
}

// Spec describes a complete kit layout.
type Spec struct {
	Name        string        `json:"name"`
	RowSpecs    [Rows]RowSpec `json:"rows"`
	ControlWell WellCoord     `json:"control_well"`
}

// Validate checks internal consistency of the kit layout.
func (s *Spec) Validate() error {
	if s.ControlWell.Row < 0 || s.ControlWell.Row >= Rows ||
		s.ControlWell.Col < 0 || s.ControlWell.Col >= Cols {
		return fmt.Errorf("control well %v out of range", s.ControlWell)
	}
	if s.RowSpecs[s.ControlWell.Row].Concentrations[s.ControlWell.Col] != nil {
		return fmt.Errorf("control well %s must not carry an agent concentration",
			s.ControlWell.Label())
	}
	for i, row := range s.RowSpecs {
		if row.Agent == "" {
			return fmt.Errorf("row %s has no agent", RowLabels[i])
		}
		if row.InhibitionThreshold <= 0 || row.InhibitionThreshold > 1 {
			return fmt.Errorf("row %s: inhibition threshold %.2f out of (0,1]",
				RowLabels[i], row.InhibitionThreshold)
		}
	}
	return nil
}
