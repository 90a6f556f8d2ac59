package batch

// RunSpec is one optimization run as defined in the external run sheet.
// Required fields are validated by the run source; optional fields are empty
// when the sheet cell was blank or "OFF".
type RunSpec struct {
	Strategy     string
	ConfigFile   string
	Epochs       string
	Timerange    string
	Pairs        string
	Leverage     string
	RiskPerTrade string

	// Optional overrides.
	Spaces       string
	LossFunction string
	Jobs         string
	MinTrades    string
	RandomState  string
}
