package risk

// PutReturnSummary reviews short puts against the annualized return threshold.
type PutReturnSummary struct {
	Positions           []Profile `json:"put_positions"`
	PositionsToClose    []Profile `json:"positions_to_close"`
	TotalCollateralTied float64   `json:"total_collateral_tied"`
	AvgAnnualizedReturn float64   `json:"avg_annualized_return"`
}

// SummarizePuts collects the short put profiles and flags those below the close threshold.
func SummarizePuts(profiles []Profile) PutReturnSummary {
	s := PutReturnSummary{Positions: []Profile{}, PositionsToClose: []Profile{}}
	var sum float64
	for _, p := range profiles {
		if !p.IsShortPut() {
			continue
		}
		s.Positions = append(s.Positions, p)
		s.TotalCollateralTied += p.Collateral
		sum += p.AnnualizedReturn
		if p.ShouldClose {
			s.PositionsToClose = append(s.PositionsToClose, p)
		}
	}
	if len(s.Positions) > 0 {
		s.AvgAnnualizedReturn = sum / float64(len(s.Positions))
	}
	return s
}
