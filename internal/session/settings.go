package session

// Settings is the runtime-tunable configuration consumed by the trading
// pipeline. The loop takes a value snapshot per cycle; updates through the
// API replace fields atomically under the session lock.
type Settings struct {
	// Risk
	Quantity    int64   `json:"quantity"`
	MaxSLPoints float64 `json:"max_sl_points"`
	MinSLPoints float64 `json:"min_sl_points"`

	// Timing (HH:MM, IST)
	EntryStart        string `json:"entry_start"`
	EntryEnd          string `json:"entry_end"`
	ExitAllTime       string `json:"exit_all_time"`
	PreExitCandleTime string `json:"pre_exit_candle_time"`

	// VWAP
	VWAPExitEnabled  bool `json:"vwap_exit_enabled"`
	VWAPSignalFilter bool `json:"vwap_signal_filter"`

	// Paper trading
	PaperCapital  float64 `json:"paper_capital"`
	PaperSlippage float64 `json:"paper_slippage"`

	// Expiry selection
	MondayTuesdayNextWeek bool `json:"monday_tuesday_next_week"`

	// Data source
	DemoMode bool `json:"demo_mode"`
}

// DefaultSettings returns the strategy defaults.
func DefaultSettings() Settings {
	return Settings{
		Quantity:    130,
		MaxSLPoints: 20,
		MinSLPoints: 5,

		EntryStart:        "09:25",
		EntryEnd:          "15:00",
		ExitAllTime:       "15:10",
		PreExitCandleTime: "14:55",

		VWAPExitEnabled:  true,
		VWAPSignalFilter: true,

		PaperCapital:  500000,
		PaperSlippage: 1,

		MondayTuesdayNextWeek: true,
		DemoMode:              true,
	}
}

// SettingsPatch is the partial-update shape accepted by the settings API.
// Pointer fields distinguish "absent" from zero values; unknown fields are
// rejected at the decode boundary.
type SettingsPatch struct {
	Quantity              *int64   `json:"quantity"`
	MaxSLPoints           *float64 `json:"max_sl_points"`
	MinSLPoints           *float64 `json:"min_sl_points"`
	EntryStart            *string  `json:"entry_start"`
	EntryEnd              *string  `json:"entry_end"`
	ExitAllTime           *string  `json:"exit_all_time"`
	PreExitCandleTime     *string  `json:"pre_exit_candle_time"`
	VWAPExitEnabled       *bool    `json:"vwap_exit_enabled"`
	VWAPSignalFilter      *bool    `json:"vwap_signal_filter"`
	PaperCapital          *float64 `json:"paper_capital"`
	PaperSlippage         *float64 `json:"paper_slippage"`
	MondayTuesdayNextWeek *bool    `json:"monday_tuesday_next_week"`
	DemoMode              *bool    `json:"demo_mode"`
}

// Apply merges the patch into s, returning the updated copy.
func (p SettingsPatch) Apply(s Settings) Settings {
	if p.Quantity != nil {
		s.Quantity = *p.Quantity
	}
	if p.MaxSLPoints != nil {
		s.MaxSLPoints = *p.MaxSLPoints
	}
	if p.MinSLPoints != nil {
		s.MinSLPoints = *p.MinSLPoints
	}
	if p.EntryStart != nil {
		s.EntryStart = *p.EntryStart
	}
	if p.EntryEnd != nil {
		s.EntryEnd = *p.EntryEnd
	}
	if p.ExitAllTime != nil {
		s.ExitAllTime = *p.ExitAllTime
	}
	if p.PreExitCandleTime != nil {
		s.PreExitCandleTime = *p.PreExitCandleTime
	}
	if p.VWAPExitEnabled != nil {
		s.VWAPExitEnabled = *p.VWAPExitEnabled
	}
	if p.VWAPSignalFilter != nil {
		s.VWAPSignalFilter = *p.VWAPSignalFilter
	}
	if p.PaperCapital != nil {
		s.PaperCapital = *p.PaperCapital
	}
	if p.PaperSlippage != nil {
		s.PaperSlippage = *p.PaperSlippage
	}
	if p.MondayTuesdayNextWeek != nil {
		s.MondayTuesdayNextWeek = *p.MondayTuesdayNextWeek
	}
	if p.DemoMode != nil {
		s.DemoMode = *p.DemoMode
	}
	return s
}
