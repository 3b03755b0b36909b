package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strings"
	"text/template"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"szakszon.com/moneymore"
)

// DB caches feed snapshots per security, one postgres schema per
// ts-code. Replace calls delete and bulk-load the whole collection
// in one transaction, matching the snapshot lifecycle of the feeds.
type DB struct {
	DB *sql.DB
}

func (db *DB) InitSchema(
	ctx context.Context,
	tsCodes []string,
) error {
	schemas := make([]string, 0, len(tsCodes))
	schemasExists := make([]string, 0, len(tsCodes))
	schemasMissing := make([]string, 0, len(tsCodes))

	for _, c := range tsCodes {
		schemas = append(schemas, schemaName(c))
	}

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select("schema_name").
			From("information_schema.schemata").
			Where(sq.Eq{"schema_name": schemas}).
			PlaceholderFormat(sq.Dollar)

		sql, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var schema string
			err = rows.Scan(&schema)
			if err != nil {
				return err
			}
			schemasExists = append(schemasExists, schema)
		}
		return nil
	})
	if err != nil {
		return err
	}

OUTER_LOOP:
	for _, schema := range schemas {
		for _, schemaExists := range schemasExists {
			if schema == schemaExists {
				continue OUTER_LOOP
			}
		}
		schemasMissing = append(schemasMissing, schema)
	}

	if len(schemasMissing) > 0 {
		tmpl := template.Must(
			template.New("init").Parse(initSchemaTmpl))

		for _, schema := range schemasMissing {
			err := execTx(ctx, db.DB, func(runner runner) error {
				params := map[string]string{"Schema": schema}
				buf := &bytes.Buffer{}
				err := tmpl.Execute(buf, params)
				if err != nil {
					return err
				}
				_, err = runner.ExecContext(ctx, buf.String())
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func schemaName(tsCode string) string {
	s := strings.ToLower(tsCode)
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")
	return "s_" + s
}

func (db *DB) PriceBars(
	ctx context.Context,
	tsCode string,
	f *moneymore.PriceBarFilter,
) ([]*moneymore.PriceBar, error) {
	bars := make([]*moneymore.PriceBar, 0)

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select(
			"trade_date", "open", "close", "low", "high",
			"change", "pct_chg", "vol", "amount").
			From(schemaName(tsCode) + ".price").
			Where(sq.Eq{"adjust": string(f.Adjust)}).
			OrderBy("trade_date asc").
			PlaceholderFormat(sq.Dollar)

		if !f.From.IsZero() {
			q = q.Where("trade_date >= ?", f.From.Time)
		}
		if !f.To.IsZero() {
			q = q.Where("trade_date <= ?", f.To.Time)
		}

		sql, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var tradeDate time.Time
			var open, close, low, high float64
			var change, pctChg, vol, amount float64

			err = rows.Scan(&tradeDate, &open, &close,
				&low, &high, &change, &pctChg, &vol, &amount)
			if err != nil {
				return err
			}
			bars = append(bars, &moneymore.PriceBar{
				TradeDate: moneymore.DayOf(tradeDate),
				Open:      open,
				Close:     close,
				Low:       low,
				High:      high,
				Change:    change,
				PctChg:    pctChg,
				Vol:       vol,
				Amount:    amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func (db *DB) ReplacePriceBars(
	ctx context.Context,
	tsCode string,
	adjust moneymore.Adjust,
	bars []*moneymore.PriceBar,
) error {
	schema := schemaName(tsCode)

	return execTx(ctx, db.DB, func(runner runner) error {
		_, err := runner.ExecContext(ctx,
			"delete from "+schema+".price where adjust = $1",
			string(adjust))
		if err != nil {
			return err
		}

		stmt, err := runner.PrepareContext(ctx, pq.CopyInSchema(
			schema, "price", "trade_date", "adjust",
			"open", "close", "low", "high",
			"change", "pct_chg", "vol", "amount"))
		if err != nil {
			return err
		}

		for _, b := range bars {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				// noop
			}

			_, err = stmt.ExecContext(ctx,
				b.TradeDate.Time, string(adjust),
				b.Open, b.Close, b.Low, b.High,
				b.Change, b.PctChg, b.Vol, b.Amount)
			if err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
}

func (db *DB) Dividends(
	ctx context.Context,
	tsCode string,
) ([]*moneymore.DividendRecord, error) {
	records := make([]*moneymore.DividendRecord, 0)

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select("end_date", "cash_div_tax", "div_proc").
			From(schemaName(tsCode) + ".dividend").
			OrderBy("end_date desc").
			PlaceholderFormat(sq.Dollar)

		sql, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var endDate time.Time
			var cashDivTax float64
			var divProc string

			err = rows.Scan(&endDate, &cashDivTax, &divProc)
			if err != nil {
				return err
			}
			records = append(records, &moneymore.DividendRecord{
				EndDate:    moneymore.DayOf(endDate),
				CashDivTax: cashDivTax,
				DivProc:    divProc,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (db *DB) ReplaceDividends(
	ctx context.Context,
	tsCode string,
	records []*moneymore.DividendRecord,
) error {
	schema := schemaName(tsCode)

	return execTx(ctx, db.DB, func(runner runner) error {
		_, err := runner.ExecContext(ctx,
			"delete from "+schema+".dividend")
		if err != nil {
			return err
		}

		stmt, err := runner.PrepareContext(ctx, pq.CopyInSchema(
			schema, "dividend",
			"end_date", "cash_div_tax", "div_proc"))
		if err != nil {
			return err
		}

		for _, d := range records {
			_, err = stmt.ExecContext(ctx,
				d.EndDate.Time, d.CashDivTax, d.DivProc)
			if err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
}

func (db *DB) EarningsReports(
	ctx context.Context,
	tsCode string,
) ([]*moneymore.EarningsReport, error) {
	reports := make([]*moneymore.EarningsReport, 0)

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select(
			"ann_date", "display_date", "end_date",
			"basic_eps", "total_revenue").
			From(schemaName(tsCode) + ".earnings").
			OrderBy("end_date desc").
			PlaceholderFormat(sq.Dollar)

		sqlStr, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var annDate, endDate time.Time
			var displayDate pq.NullTime
			var basicEPS, totalRevenue sql.NullFloat64

			err = rows.Scan(&annDate, &displayDate, &endDate,
				&basicEPS, &totalRevenue)
			if err != nil {
				return err
			}

			r := &moneymore.EarningsReport{
				AnnDate:      moneymore.DayOf(annDate),
				EndDate:      moneymore.DayOf(endDate),
				BasicEPS:     basicEPS.Float64,
				TotalRevenue: totalRevenue.Float64,
			}
			if displayDate.Valid {
				r.DisplayDate = moneymore.DayOf(displayDate.Time)
			}
			reports = append(reports, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (db *DB) ReplaceEarningsReports(
	ctx context.Context,
	tsCode string,
	reports []*moneymore.EarningsReport,
) error {
	schema := schemaName(tsCode)

	return execTx(ctx, db.DB, func(runner runner) error {
		_, err := runner.ExecContext(ctx,
			"delete from "+schema+".earnings")
		if err != nil {
			return err
		}

		stmt, err := runner.PrepareContext(ctx, pq.CopyInSchema(
			schema, "earnings", "ann_date", "display_date",
			"end_date", "basic_eps", "total_revenue"))
		if err != nil {
			return err
		}

		for _, r := range reports {
			var displayDate interface{}
			if !r.DisplayDate.IsZero() {
				displayDate = r.DisplayDate.Time
			}

			_, err = stmt.ExecContext(ctx,
				r.AnnDate.Time, displayDate, r.EndDate.Time,
				r.BasicEPS, r.TotalRevenue)
			if err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
}

func (db *DB) Indicators(
	ctx context.Context,
	tsCode string,
) ([]*moneymore.FinancialIndicator, error) {
	indicators := make([]*moneymore.FinancialIndicator, 0)

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select("end_date", "dt_netprofit_yoy").
			From(schemaName(tsCode) + ".fina_indicator").
			OrderBy("end_date desc").
			PlaceholderFormat(sq.Dollar)

		sqlStr, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var endDate time.Time
			var yoy sql.NullFloat64

			err = rows.Scan(&endDate, &yoy)
			if err != nil {
				return err
			}

			ind := &moneymore.FinancialIndicator{
				EndDate: moneymore.DayOf(endDate),
			}
			if yoy.Valid {
				v := yoy.Float64
				ind.DtNetprofitYoy = &v
			}
			indicators = append(indicators, ind)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return indicators, nil
}

func (db *DB) ReplaceIndicators(
	ctx context.Context,
	tsCode string,
	indicators []*moneymore.FinancialIndicator,
) error {
	schema := schemaName(tsCode)

	return execTx(ctx, db.DB, func(runner runner) error {
		_, err := runner.ExecContext(ctx,
			"delete from "+schema+".fina_indicator")
		if err != nil {
			return err
		}

		stmt, err := runner.PrepareContext(ctx, pq.CopyInSchema(
			schema, "fina_indicator",
			"end_date", "dt_netprofit_yoy"))
		if err != nil {
			return err
		}

		for _, ind := range indicators {
			var yoy interface{}
			if ind.DtNetprofitYoy != nil {
				yoy = *ind.DtNetprofitYoy
			}

			_, err = stmt.ExecContext(ctx, ind.EndDate.Time, yoy)
			if err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
}

func (db *DB) DisclosureDates(
	ctx context.Context,
	tsCode string,
) ([]*moneymore.DisclosureDate, error) {
	dates := make([]*moneymore.DisclosureDate, 0)

	err := execNonTx(ctx, db.DB, func(runner runner) error {
		q := sq.Select("end_date", "actual_date").
			From(schemaName(tsCode) + ".disclosure_date").
			OrderBy("end_date desc").
			PlaceholderFormat(sq.Dollar)

		sql, args, err := q.ToSql()
		if err != nil {
			return err
		}

		rows, err := runner.QueryContext(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var endDate time.Time
			var actualDate pq.NullTime

			err = rows.Scan(&endDate, &actualDate)
			if err != nil {
				return err
			}

			d := &moneymore.DisclosureDate{
				EndDate: moneymore.DayOf(endDate),
			}
			if actualDate.Valid {
				d.ActualDate = moneymore.DayOf(actualDate.Time)
			}
			dates = append(dates, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

func (db *DB) ReplaceDisclosureDates(
	ctx context.Context,
	tsCode string,
	dates []*moneymore.DisclosureDate,
) error {
	schema := schemaName(tsCode)

	return execTx(ctx, db.DB, func(runner runner) error {
		_, err := runner.ExecContext(ctx,
			"delete from "+schema+".disclosure_date")
		if err != nil {
			return err
		}

		stmt, err := runner.PrepareContext(ctx, pq.CopyInSchema(
			schema, "disclosure_date",
			"end_date", "actual_date"))
		if err != nil {
			return err
		}

		for _, d := range dates {
			var actualDate interface{}
			if !d.ActualDate.IsZero() {
				actualDate = d.ActualDate.Time
			}

			_, err = stmt.ExecContext(ctx, d.EndDate.Time, actualDate)
			if err != nil {
				return err
			}
		}

		_, err = stmt.ExecContext(ctx)
		if err != nil {
			return err
		}
		return stmt.Close()
	})
}

type runner interface {
	ExecContext(
		ctx context.Context,
		query string,
		args ...interface{},
	) (sql.Result, error)
	PrepareContext(
		ctx context.Context,
		query string,
	) (*sql.Stmt, error)
	QueryContext(
		ctx context.Context,
		query string,
		args ...interface{},
	) (*sql.Rows, error)
	QueryRowContext(
		ctx context.Context,
		query string,
		args ...interface{},
	) *sql.Row
}

func execTx(
	ctx context.Context,
	db *sql.DB,
	fn func(runner runner) error,
) error {
	tx, err := db.BeginTx(ctx,
		&sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

func execNonTx(
	ctx context.Context,
	db *sql.DB,
	fn func(runner runner) error,
) error {
	return fn(db)
}

const initSchemaTmpl = `
create schema {{.Schema}};

create table {{.Schema}}.price (
    trade_date date not null,
    adjust     varchar(3) not null default '',
    open       numeric not null,
    close      numeric not null,
    low        numeric not null,
    high       numeric not null,
    change     numeric not null default 0,
    pct_chg    numeric not null default 0,
    vol        numeric not null default 0,
    amount     numeric not null default 0,
    PRIMARY KEY(trade_date, adjust)
);

create table {{.Schema}}.dividend (
    end_date     date not null,
    cash_div_tax numeric not null,
    div_proc     text not null
);

create table {{.Schema}}.earnings (
    ann_date      date not null,
    display_date  date,
    end_date      date not null,
    basic_eps     numeric,
    total_revenue numeric,
    PRIMARY KEY(end_date, ann_date)
);

create table {{.Schema}}.fina_indicator (
    end_date         date not null,
    dt_netprofit_yoy numeric,
    PRIMARY KEY(end_date)
);

create table {{.Schema}}.disclosure_date (
    end_date    date not null,
    actual_date date,
    PRIMARY KEY(end_date)
);
`
