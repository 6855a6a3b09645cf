// Package session holds the shared mutable trading session context: run
// status, execution mode, the open position, the armed signal candle, the
// candle history and runtime settings.
//
// The trading loop is the single writer of trading fields (position, signal,
// candle buffer); the control API mutates only status, mode and settings.
// One RWMutex guards the lot; the loop runs every 5 seconds, so contention
// is irrelevant next to correctness.
package session

import (
	"sync"

	"algotrader/internal/model"
)

// Status is the tri-state run flag checked once per cycle.
type Status string

const (
	StatusStopped Status = "STOPPED"
	StatusRunning Status = "RUNNING"
	StatusPaused  Status = "PAUSED"
)

// HistoryCap bounds the candle buffer; oldest candles are evicted first.
const HistoryCap = 200

// State is the session context shared between the loop and the API.
type State struct {
	mu sync.RWMutex

	status       Status
	mode         model.Mode
	position     *model.Position
	signal       *model.Signal
	signalCandle *model.SignalCandle
	candles      []model.Candle
	manualExit   bool
	lastPrice    float64
	atmCE        string
	atmPE        string
	settings     Settings
}

// New creates a stopped PAPER-mode session with default settings.
func New() *State {
	return &State{
		status:    StatusStopped,
		mode:      model.ModePaper,
		lastPrice: 22000,
		settings:  DefaultSettings(),
	}
}

// ── Run status & mode ──

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

func (s *State) Mode() model.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *State) SetMode(m model.Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// ── Settings ──

// Settings returns a value snapshot; the pipeline reads one per cycle.
func (s *State) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

func (s *State) UpdateSettings(patch SettingsPatch) Settings {
	s.mu.Lock()
	s.settings = patch.Apply(s.settings)
	updated := s.settings
	s.mu.Unlock()
	return updated
}

// ── Trading state (loop is the single writer) ──

// Position returns a copy of the open position, or nil. Callers get their
// own struct: the loop keeps ratcheting CurrentSL on the stored one, so
// handing out the live pointer would let readers race that write.
func (s *State) Position() *model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.position == nil {
		return nil
	}
	p := *s.position
	return &p
}

func (s *State) SetPosition(p *model.Position) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

// RaiseStopLoss ratchets the open position's stop upward. Lower values are
// ignored so current_sl never decreases; returns false when nothing changed.
func (s *State) RaiseStopLoss(newSL float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil || newSL <= s.position.CurrentSL {
		return false
	}
	s.position.CurrentSL = newSL
	return true
}

func (s *State) Signal() *model.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signal
}

func (s *State) SetSignal(sig *model.Signal) {
	s.mu.Lock()
	s.signal = sig
	s.mu.Unlock()
}

func (s *State) SignalCandle() *model.SignalCandle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signalCandle
}

func (s *State) SetSignalCandle(sc *model.SignalCandle) {
	s.mu.Lock()
	s.signalCandle = sc
	s.mu.Unlock()
}

// RequestManualExit asks the loop to close the open position on its next
// cycle. Returns false when there is nothing to close. The API sets the
// flag; only the loop executes the exit, preserving the single-writer rule.
func (s *State) RequestManualExit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return false
	}
	s.manualExit = true
	return true
}

// ConsumeManualExit reads and clears the pending manual-exit request.
func (s *State) ConsumeManualExit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.manualExit
	s.manualExit = false
	return req
}

// ClearTrade drops the open position and current signal after an exit.
// The armed signal candle stays: replacement keeps applying to it until a
// later entry consumes it.
func (s *State) ClearTrade() {
	s.mu.Lock()
	s.position = nil
	s.signal = nil
	s.manualExit = false
	s.mu.Unlock()
}

// ResetTrading clears all trading state. Used when the bot is stopped.
func (s *State) ResetTrading() {
	s.mu.Lock()
	s.position = nil
	s.signal = nil
	s.signalCandle = nil
	s.manualExit = false
	s.mu.Unlock()
}

// ── Market data ──

// AppendCandle adds a decorated candle to the history, evicting the oldest
// beyond HistoryCap.
func (s *State) AppendCandle(c model.Candle) {
	s.mu.Lock()
	s.candles = append(s.candles, c)
	if len(s.candles) > HistoryCap {
		s.candles = s.candles[len(s.candles)-HistoryCap:]
	}
	s.mu.Unlock()
}

// Candles returns a copy of the most recent n candles (all when n <= 0).
func (s *State) Candles(n int) []model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.candles) {
		n = len(s.candles)
	}
	out := make([]model.Candle, n)
	copy(out, s.candles[len(s.candles)-n:])
	return out
}

func (s *State) LastCandle() *model.Candle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.candles) == 0 {
		return nil
	}
	c := s.candles[len(s.candles)-1]
	return &c
}

func (s *State) LastPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice
}

func (s *State) SetLastPrice(p float64) {
	s.mu.Lock()
	s.lastPrice = p
	s.mu.Unlock()
}

func (s *State) ATM() (ce, pe string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.atmCE, s.atmPE
}

func (s *State) SetATM(ce, pe string) {
	s.mu.Lock()
	s.atmCE = ce
	s.atmPE = pe
	s.mu.Unlock()
}

// Snapshot is the state_update payload broadcast after each cycle.
type Snapshot struct {
	BotStatus  Status              `json:"bot_status"`
	Mode       model.Mode          `json:"mode"`
	NiftyPrice float64             `json:"nifty_price"`
	Position   *model.Position     `json:"active_position"`
	Signal     *model.Signal       `json:"current_signal"`
	Armed      *model.SignalCandle `json:"signal_candle"`
	ATMCE      string              `json:"atm_ce"`
	ATMPE      string              `json:"atm_pe"`
}

// Snapshot returns a consistent point-in-time view for broadcasting.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var pos *model.Position
	if s.position != nil {
		p := *s.position
		pos = &p
	}
	return Snapshot{
		BotStatus:  s.status,
		Mode:       s.mode,
		NiftyPrice: s.lastPrice,
		Position:   pos,
		Signal:     s.signal,
		Armed:      s.signalCandle,
		ATMCE:      s.atmCE,
		ATMPE:      s.atmPE,
	}
}
