package strategy

import "algotrader/internal/model"

// ladderDiscount keeps the trailed stop a few points under the band level so
// ordinary retracement noise does not knock the position out at the band.
const ladderDiscount = 3.0

// TrailingStop computes the trailed stop for an open position at the latest
// traded price. The ladder steps by risk multiples rr = (ltp − entry) / R:
//
//	rr ≥ 1 → break-even (entry)
//	rr ≥ 2 → entry + 1R − 3
//	rr ≥ 3 → entry + 2R − 3
//	rr ≥ 4 → entry + 3R − 3
//	rr ≥ 5 → entry + 4R − 3 (top band)
//
// The result ratchets against current_sl and is returned only when it
// strictly raises the stop; ok is false otherwise (including rr < 1 and
// degenerate R ≤ 0).
func TrailingStop(pos *model.Position, ltp float64) (newSL float64, ok bool) {
	r := pos.Risk()
	if r <= 0 {
		return 0, false
	}

	rr := (ltp - pos.EntryPrice) / r

	var target float64
	switch {
	case rr >= 5:
		target = pos.EntryPrice + 4*r - ladderDiscount
	case rr >= 4:
		target = pos.EntryPrice + 3*r - ladderDiscount
	case rr >= 3:
		target = pos.EntryPrice + 2*r - ladderDiscount
	case rr >= 2:
		target = pos.EntryPrice + 1*r - ladderDiscount
	case rr >= 1:
		target = pos.EntryPrice
	default:
		return 0, false
	}

	if target < pos.CurrentSL {
		target = pos.CurrentSL
	}
	newSL = model.Round2(target)
	if newSL > pos.CurrentSL {
		return newSL, true
	}
	return 0, false
}
