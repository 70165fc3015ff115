// FILE: lixenwraith/logpipe/writer/jdbc.go
package writer

import (
	"context"
	"database/sql"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	_ "modernc.org/sqlite"

	"github.com/lixenwraith/logpipe/entry"
	"github.com/lixenwraith/logpipe/pattern"
	"github.com/lixenwraith/logpipe/props"
)

const (
	defaultJDBCDriver = "sqlite"
	defaultBatchSize  = 100
	connectTimeout    = 10 * time.Second
)

var identifierRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type jdbcField struct {
	column  string
	pattern *pattern.Pattern
	date    bool // single {date} token, bound as time.Time
}

// jdbcWriter inserts one row per entry through database/sql
type jdbcWriter struct {
	base
	link

	driver string
	dsn    string
	insert string
	fields []jdbcField
	batch  int

	db      *sql.DB
	stmt    *sql.Stmt
	pending [][]any
}

func newJDBC(p props.Map, opts Options) (Writer, error) {
	dsn, err := p.Required("url")
	if err != nil {
		return nil, err
	}
	table, err := p.Required("table")
	if err != nil {
		return nil, err
	}
	w := &jdbcWriter{dsn: dsn, driver: p.String("driver", defaultJDBCDriver)}
	if !slices.Contains(sql.Drivers(), w.driver) {
		return nil, props.Errorf("driver", "unknown database driver '%s' (registered: %s)", w.driver, strings.Join(sql.Drivers(), ", "))
	}
	if w.base, err = newBase(p, opts, "{message}"); err != nil {
		return nil, err
	}
	if w.batch, err = parseBatch(p.String("batch", "")); err != nil {
		return nil, props.Errorf("batch", "%v", err)
	}
	reconnect, err := p.Bool("reconnect", true)
	if err != nil {
		return nil, err
	}

	var compileOpts []pattern.Option
	if opts.Location != nil {
		compileOpts = append(compileOpts, pattern.WithLocation(opts.Location))
	}
	specs := p.Sub("field.")
	if len(specs) == 0 {
		return nil, props.Errorf("field.*", "at least one column mapping is required")
	}
	for _, kv := range specs {
		if !identifierRegexp.MatchString(kv.Key) {
			return nil, props.Errorf("field."+kv.Key, "illegal column name")
		}
		fp, err := pattern.Compile(kv.Value, compileOpts...)
		if err != nil {
			return nil, props.Errorf("field."+kv.Key, "%v", err)
		}
		tokens := fp.Tokens()
		w.fields = append(w.fields, jdbcField{
			column:  kv.Key,
			pattern: fp,
			date:    len(tokens) == 1 && tokens[0].Kind == pattern.KindDate,
		})
	}
	if !identifierRegexp.MatchString(table) {
		return nil, props.Errorf("table", "illegal table name '%s'", table)
	}
	w.insert = buildInsert(w.driver, table, w.fields)

	w.link = newLink(opts, reconnect, w.connect, w.disconnect)
	return w, nil
}

// parseBatch accepts a boolean or a positive statement count
func parseBatch(v string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "false", "0":
		return 0, nil
	case "true":
		return defaultBatchSize, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, props.Errorf("batch", "invalid batch '%s' (use true, false or a statement count)", v)
	}
	if n == 1 {
		return 0, nil
	}
	return n, nil
}

func quoteIdentifier(driver, ident string) string {
	q := `"`
	if strings.Contains(driver, "mysql") {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, part := range parts {
		parts[i] = q + part + q
	}
	return strings.Join(parts, ".")
}

func placeholder(driver string, n int) string {
	switch driver {
	case "postgres", "pgx", "pgx/v5":
		return "$" + strconv.Itoa(n)
	default:
		return "?"
	}
}

func buildInsert(driver, table string, fields []jdbcField) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteIdentifier(driver, table))
	sb.WriteString(" (")
	for i, f := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdentifier(driver, f.column))
	}
	sb.WriteString(") VALUES (")
	for i := range fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder(driver, i+1))
	}
	sb.WriteString(")")
	return sb.String()
}

func (w *jdbcWriter) connect() error {
	db, err := sql.Open(w.driver, w.dsn)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return multierr.Append(err, db.Close())
	}
	stmt, err := db.PrepareContext(ctx, w.insert)
	if err != nil {
		return multierr.Append(err, db.Close())
	}
	w.db, w.stmt = db, stmt
	return nil
}

func (w *jdbcWriter) disconnect() error {
	var err error
	if w.stmt != nil {
		err = w.stmt.Close()
	}
	if w.db != nil {
		err = multierr.Append(err, w.db.Close())
	}
	w.db, w.stmt = nil, nil
	return err
}

func (w *jdbcWriter) RequiredValues() entry.Values {
	v := w.base.RequiredValues()
	for _, f := range w.fields {
		v |= f.pattern.RequiredValues()
	}
	return v
}

func (w *jdbcWriter) args(e *entry.Entry) []any {
	if w.strip && e.Exception != nil {
		stripped := *e
		stripped.Exception = nil
		e = &stripped
	}
	args := make([]any, len(w.fields))
	for i, f := range w.fields {
		if f.date {
			args[i] = e.Timestamp
			continue
		}
		args[i] = w.sanitize.Sanitize(f.pattern.RenderString(e))
	}
	return args
}

func (w *jdbcWriter) Write(e *entry.Entry) error {
	if !w.accepts(e) {
		return nil
	}
	args := w.args(e)

	w.lock()
	defer w.unlock()
	ok, err := w.ready()
	if err != nil {
		return err
	}
	if !ok {
		w.drop(1)
		return nil
	}

	if w.batch > 0 {
		w.pending = append(w.pending, args)
		if len(w.pending) >= w.batch {
			return w.flushBatch()
		}
		return nil
	}

	start := w.opts.Now()
	if _, err := w.stmt.Exec(args...); err != nil {
		return w.failed(err, 1, w.opts.Now().Sub(start))
	}
	return nil
}

func (w *jdbcWriter) flushBatch() error {
	if len(w.pending) == 0 {
		return nil
	}
	rows := w.pending
	w.pending = nil
	if w.state != linkConnected {
		w.drop(len(rows))
		return nil
	}

	start := w.opts.Now()
	tx, err := w.db.Begin()
	if err != nil {
		return w.failed(err, len(rows), w.opts.Now().Sub(start))
	}
	stmt := tx.Stmt(w.stmt)
	for _, args := range rows {
		if _, err = stmt.Exec(args...); err != nil {
			break
		}
	}
	if err == nil {
		err = tx.Commit()
	} else {
		err = multierr.Append(err, tx.Rollback())
	}
	if err != nil {
		return w.failed(err, len(rows), w.opts.Now().Sub(start))
	}
	return nil
}

// Flush commits pending batched rows
func (w *jdbcWriter) Flush() error {
	w.lock()
	defer w.unlock()
	return w.flushBatch()
}

func (w *jdbcWriter) Close() error {
	w.lock()
	defer w.unlock()
	err := w.flushBatch()
	return multierr.Append(err, w.close())
}
