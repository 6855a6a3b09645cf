package execution

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"algotrader/internal/model"
)

// Journal persists trade entries and exits to SQLite for analysis and audit.
// It implements model.TradeStore.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite trade journal.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS trades (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol         TEXT NOT NULL DEFAULT 'NIFTY',
		mode           TEXT NOT NULL DEFAULT 'PAPER',
		time_of_entry  TEXT NOT NULL,
		entry_price    REAL NOT NULL,
		time_of_exit   TEXT,
		exit_price     REAL,
		reason_of_exit TEXT,
		pnl            REAL,
		quantity       INTEGER DEFAULT 130,
		initial_sl     REAL,
		signal_high    REAL,
		signal_low     REAL,
		created_at     TEXT DEFAULT (datetime('now'))
	);
	CREATE INDEX IF NOT EXISTS idx_trades_entry ON trades(time_of_entry);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// SaveEntry persists an opened position and returns the journal row id.
func (j *Journal) SaveEntry(pos *model.Position) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.Exec(
		`INSERT INTO trades (symbol, mode, time_of_entry, entry_price, quantity,
		                     initial_sl, signal_high, signal_low)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pos.Symbol,
		string(pos.Mode),
		pos.EntryTime.Format(time.RFC3339),
		pos.EntryPrice,
		pos.Quantity,
		pos.InitialSL,
		pos.SignalHigh,
		pos.SignalLow,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// CloseTrade records the exit against a previously saved entry.
func (j *Journal) CloseTrade(journalID int64, rec model.ExitRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`UPDATE trades SET time_of_exit=?, exit_price=?, reason_of_exit=?, pnl=? WHERE id=?`,
		rec.ExitTime.Format(time.RFC3339),
		rec.ExitPrice,
		string(rec.Reason),
		rec.PnL,
		journalID,
	)
	return err
}

// TradeRow represents a row from the trades table. Exit fields are nil until
// the trade is closed.
type TradeRow struct {
	ID           int64    `json:"id"`
	Symbol       string   `json:"symbol"`
	Mode         string   `json:"mode"`
	TimeOfEntry  string   `json:"time_of_entry"`
	EntryPrice   float64  `json:"entry_price"`
	TimeOfExit   *string  `json:"time_of_exit"`
	ExitPrice    *float64 `json:"exit_price"`
	ReasonOfExit *string  `json:"reason_of_exit"`
	PnL          *float64 `json:"pnl"`
	Quantity     int64    `json:"quantity"`
	InitialSL    *float64 `json:"initial_sl"`
	SignalHigh   *float64 `json:"signal_high"`
	SignalLow    *float64 `json:"signal_low"`
	CreatedAt    string   `json:"created_at"`
}

// TradeFilter narrows GetTrades and ExportCSV by entry date. Zero values
// leave the dimension unfiltered.
type TradeFilter struct {
	Date  string // YYYY-MM-DD
	Month int    // 1..12
	Year  int
}

func (f TradeFilter) clauses() (string, []any) {
	var sb strings.Builder
	var params []any
	if f.Date != "" {
		sb.WriteString(" AND DATE(time_of_entry) = ?")
		params = append(params, f.Date)
	}
	if f.Month > 0 {
		sb.WriteString(" AND strftime('%m', time_of_entry) = ?")
		params = append(params, fmt.Sprintf("%02d", f.Month))
	}
	if f.Year > 0 {
		sb.WriteString(" AND strftime('%Y', time_of_entry) = ?")
		params = append(params, strconv.Itoa(f.Year))
	}
	return sb.String(), params
}

// GetTrades returns trades matching the filter, newest entry first.
func (j *Journal) GetTrades(f TradeFilter) ([]TradeRow, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	where, params := f.clauses()
	rows, err := j.db.Query(
		`SELECT id, symbol, mode, time_of_entry, entry_price, time_of_exit,
		        exit_price, reason_of_exit, pnl, quantity, initial_sl,
		        signal_high, signal_low, created_at
		 FROM trades WHERE 1=1`+where+` ORDER BY time_of_entry DESC`, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []TradeRow
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(r rowScanner) (TradeRow, error) {
	var t TradeRow
	var timeOfExit, reason, createdAt sql.NullString
	var exitPrice, pnl, initialSL, sigHigh, sigLow sql.NullFloat64
	err := r.Scan(&t.ID, &t.Symbol, &t.Mode, &t.TimeOfEntry, &t.EntryPrice,
		&timeOfExit, &exitPrice, &reason, &pnl, &t.Quantity,
		&initialSL, &sigHigh, &sigLow, &createdAt)
	if err != nil {
		return t, err
	}
	if timeOfExit.Valid {
		t.TimeOfExit = &timeOfExit.String
	}
	if exitPrice.Valid {
		t.ExitPrice = &exitPrice.Float64
	}
	if reason.Valid {
		t.ReasonOfExit = &reason.String
	}
	if pnl.Valid {
		t.PnL = &pnl.Float64
	}
	if initialSL.Valid {
		t.InitialSL = &initialSL.Float64
	}
	if sigHigh.Valid {
		t.SignalHigh = &sigHigh.Float64
	}
	if sigLow.Valid {
		t.SignalLow = &sigLow.Float64
	}
	t.CreatedAt = createdAt.String
	return t, nil
}

// TradeUpdate carries editable trade fields. Nil fields are left untouched.
// PnL is recomputed when the resulting row has an exit price.
type TradeUpdate struct {
	EntryPrice   *float64 `json:"entry_price"`
	ExitPrice    *float64 `json:"exit_price"`
	TimeOfEntry  *string  `json:"time_of_entry"`
	TimeOfExit   *string  `json:"time_of_exit"`
	ReasonOfExit *string  `json:"reason_of_exit"`
	Quantity     *int64   `json:"quantity"`
}

func (u TradeUpdate) empty() bool {
	return u.EntryPrice == nil && u.ExitPrice == nil && u.TimeOfEntry == nil &&
		u.TimeOfExit == nil && u.ReasonOfExit == nil && u.Quantity == nil
}

// UpdateTrade applies the update to a trade and returns the updated row.
// Returns sql.ErrNoRows when the trade does not exist.
func (j *Journal) UpdateTrade(id int64, upd TradeUpdate) (*TradeRow, error) {
	if upd.empty() {
		return nil, fmt.Errorf("no editable fields in update")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	cur, err := j.getTrade(id)
	if err != nil {
		return nil, err
	}

	entryPrice := cur.EntryPrice
	if upd.EntryPrice != nil {
		entryPrice = *upd.EntryPrice
	}
	exitPrice := cur.ExitPrice
	if upd.ExitPrice != nil {
		exitPrice = upd.ExitPrice
	}
	quantity := cur.Quantity
	if upd.Quantity != nil {
		quantity = *upd.Quantity
	}

	var sets []string
	var params []any
	add := func(col string, v any) {
		sets = append(sets, col+"=?")
		params = append(params, v)
	}
	if upd.EntryPrice != nil {
		add("entry_price", *upd.EntryPrice)
	}
	if upd.ExitPrice != nil {
		add("exit_price", *upd.ExitPrice)
	}
	if upd.TimeOfEntry != nil {
		add("time_of_entry", *upd.TimeOfEntry)
	}
	if upd.TimeOfExit != nil {
		add("time_of_exit", *upd.TimeOfExit)
	}
	if upd.ReasonOfExit != nil {
		add("reason_of_exit", *upd.ReasonOfExit)
	}
	if upd.Quantity != nil {
		add("quantity", *upd.Quantity)
	}
	if exitPrice != nil {
		add("pnl", model.Round2((*exitPrice-entryPrice)*float64(quantity)))
	}

	params = append(params, id)
	if _, err := j.db.Exec(
		`UPDATE trades SET `+strings.Join(sets, ", ")+` WHERE id=?`, params...); err != nil {
		return nil, err
	}

	updated, err := j.getTrade(id)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (j *Journal) getTrade(id int64) (TradeRow, error) {
	row := j.db.QueryRow(
		`SELECT id, symbol, mode, time_of_entry, entry_price, time_of_exit,
		        exit_price, reason_of_exit, pnl, quantity, initial_sl,
		        signal_high, signal_low, created_at
		 FROM trades WHERE id=?`, id)
	return scanTrade(row)
}

// DeleteTrade removes a trade. Returns sql.ErrNoRows when the id is unknown.
func (j *Journal) DeleteTrade(id int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.db.Exec(`DELETE FROM trades WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DailyPNL aggregates closed-trade PnL per entry date.
type DailyPNL struct {
	TradeDate string  `json:"trade_date"`
	TotalPnL  float64 `json:"total_pnl"`
	NumTrades int     `json:"num_trades"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
}

func (j *Journal) DailyPNL(month, year int) ([]DailyPNL, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	where, params := TradeFilter{Month: month, Year: year}.clauses()
	rows, err := j.db.Query(
		`SELECT DATE(time_of_entry) AS trade_date,
		        SUM(pnl), COUNT(*),
		        SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END),
		        SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END)
		 FROM trades WHERE pnl IS NOT NULL`+where+`
		 GROUP BY DATE(time_of_entry) ORDER BY trade_date DESC`, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyPNL
	for rows.Next() {
		var d DailyPNL
		if err := rows.Scan(&d.TradeDate, &d.TotalPnL, &d.NumTrades, &d.Wins, &d.Losses); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MonthlyPNL aggregates closed-trade PnL per calendar month.
type MonthlyPNL struct {
	Month     string  `json:"month"`
	TotalPnL  float64 `json:"total_pnl"`
	NumTrades int     `json:"num_trades"`
	Wins      int     `json:"wins"`
}

func (j *Journal) MonthlyPNL(year int) ([]MonthlyPNL, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	where, params := TradeFilter{Year: year}.clauses()
	rows, err := j.db.Query(
		`SELECT strftime('%Y-%m', time_of_entry) AS month,
		        SUM(pnl), COUNT(*),
		        SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END)
		 FROM trades WHERE pnl IS NOT NULL`+where+`
		 GROUP BY strftime('%Y-%m', time_of_entry) ORDER BY month DESC`, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MonthlyPNL
	for rows.Next() {
		var m MonthlyPNL
		if err := rows.Scan(&m.Month, &m.TotalPnL, &m.NumTrades, &m.Wins); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Summary aggregates all closed trades.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	TotalPnL    float64 `json:"total_pnl"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	AvgWin      float64 `json:"avg_win"`
	AvgLoss     float64 `json:"avg_loss"`
	BestTrade   float64 `json:"best_trade"`
	WorstTrade  float64 `json:"worst_trade"`
	WinRate     float64 `json:"win_rate"`
	AvgRR       float64 `json:"avg_rr"`
}

func (j *Journal) Summary() (Summary, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var s Summary
	var totalPnL, avgWin, avgLoss, best, worst sql.NullFloat64
	err := j.db.QueryRow(
		`SELECT COUNT(*), SUM(pnl),
		        COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN pnl < 0 THEN 1 ELSE 0 END), 0),
		        AVG(CASE WHEN pnl > 0 THEN pnl END),
		        AVG(CASE WHEN pnl < 0 THEN pnl END),
		        MAX(pnl), MIN(pnl)
		 FROM trades WHERE pnl IS NOT NULL`).Scan(
		&s.TotalTrades, &totalPnL, &s.Wins, &s.Losses, &avgWin, &avgLoss, &best, &worst)
	if err != nil {
		return s, err
	}
	s.TotalPnL = totalPnL.Float64
	s.AvgWin = avgWin.Float64
	s.AvgLoss = avgLoss.Float64
	s.BestTrade = best.Float64
	s.WorstTrade = worst.Float64
	if s.TotalTrades > 0 {
		s.WinRate = model.Round2(float64(s.Wins) / float64(s.TotalTrades) * 100)
	}
	denom := s.AvgLoss
	if denom == 0 {
		denom = 1
	}
	s.AvgRR = model.Round2(abs(s.AvgWin / denom))
	return s, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ExportCSV streams trades matching the filter as CSV, newest entry first.
func (j *Journal) ExportCSV(w io.Writer, f TradeFilter) error {
	trades, err := j.GetTrades(f)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := []string{"id", "symbol", "mode", "time_of_entry", "entry_price",
		"time_of_exit", "exit_price", "reason_of_exit", "pnl", "quantity"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, t := range trades {
		rec := []string{
			strconv.FormatInt(t.ID, 10),
			t.Symbol,
			t.Mode,
			t.TimeOfEntry,
			strconv.FormatFloat(t.EntryPrice, 'f', 2, 64),
			strOrEmpty(t.TimeOfExit),
			floatOrEmpty(t.ExitPrice),
			strOrEmpty(t.ReasonOfExit),
			floatOrEmpty(t.PnL),
			strconv.FormatInt(t.Quantity, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

// DB exposes the underlying handle for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
