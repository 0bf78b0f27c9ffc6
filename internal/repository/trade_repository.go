package repository

import (
	"database/sql"
	"time"

	"cryptofolio/internal/models"
)

// TradeRepository - работа с таблицей exchange_trades.
//
// Повторная синхронизация приносит уже известные сделки, поэтому
// вставка идемпотентна: ON CONFLICT (exchange_id, trade_id) DO NOTHING.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// SaveAll сохраняет сделки, пропуская дубликаты.
// Возвращает количество реально вставленных строк.
func (r *TradeRepository) SaveAll(credentialID, exchangeID string, trades []models.ExchangeTrade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO exchange_trades (credential_id, exchange_id, trade_id, symbol, side, price, quantity, fee, fee_currency, order_id, executed_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (exchange_id, trade_id) DO NOTHING`

	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, trade := range trades {
		result, err := stmt.Exec(
			credentialID,
			exchangeID,
			trade.ID,
			trade.Symbol,
			trade.Side,
			trade.Price,
			trade.Quantity,
			trade.Fee,
			trade.FeeCurrency,
			trade.OrderID,
			trade.Timestamp,
			now,
		)
		if err != nil {
			return 0, err
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(rows)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}

// GetByCredential возвращает сделки по записи учётных данных,
// новые сверху. since обрезает выборку слева, limit <= 0 снимает лимит.
func (r *TradeRepository) GetByCredential(credentialID string, since time.Time, limit int) ([]models.ExchangeTrade, error) {
	query := `
		SELECT trade_id, symbol, side, price, quantity, fee, fee_currency, order_id, executed_at
		FROM exchange_trades
		WHERE credential_id = $1 AND executed_at >= $2
		ORDER BY executed_at DESC`

	args := []interface{}{credentialID, since}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.ExchangeTrade
	for rows.Next() {
		var trade models.ExchangeTrade
		err := rows.Scan(
			&trade.ID,
			&trade.Symbol,
			&trade.Side,
			&trade.Price,
			&trade.Quantity,
			&trade.Fee,
			&trade.FeeCurrency,
			&trade.OrderID,
			&trade.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		trades = append(trades, trade)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// LastTradeTime возвращает время последней сохранённой сделки.
// Используется оркестратором как курсор инкрементальной синхронизации.
// Если сделок ещё нет, возвращается нулевое время.
func (r *TradeRepository) LastTradeTime(credentialID string) (time.Time, error) {
	query := `
		SELECT COALESCE(MAX(executed_at), 'epoch'::timestamptz)
		FROM exchange_trades
		WHERE credential_id = $1`

	var last time.Time
	if err := r.db.QueryRow(query, credentialID).Scan(&last); err != nil {
		return time.Time{}, err
	}

	// epoch означает отсутствие сделок
	if last.Unix() <= 0 {
		return time.Time{}, nil
	}

	return last, nil
}

// DeleteByCredential удаляет сделки записи (при удалении учётных данных)
func (r *TradeRepository) DeleteByCredential(credentialID string) error {
	_, err := r.db.Exec(`DELETE FROM exchange_trades WHERE credential_id = $1`, credentialID)
	return err
}
