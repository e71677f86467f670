package catalog

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xuri/excelize/v2"
)

// Source 目录数据源：返回表头与数据行（均为字符串）。
type Source interface {
	Name() string
	Rows(ctx context.Context) (columns []string, rows [][]string, err error)
}

// SourceConfig 数据源配置。
type SourceConfig struct {
	// Kind: csv / xlsx / sqlite / postgres；为空时按 Path 后缀推断
	Kind string `koanf:"kind" validate:"omitempty,oneof=csv xlsx sqlite postgres"`

	// Path 文件路径（csv / xlsx / sqlite）
	Path string `koanf:"path"`

	// Sheet xlsx 工作表名，默认第一个
	Sheet string `koanf:"sheet"`

	// DSN 数据库连接串（postgres）
	DSN string `koanf:"dsn"`

	// Table / Query 二选一，Query 优先
	Table string `koanf:"table"`
	Query string `koanf:"query"`
}

// OpenSource 根据配置创建数据源。
func OpenSource(cfg SourceConfig) (Source, error) {
	kind := cfg.Kind
	if kind == "" {
		switch strings.ToLower(filepath.Ext(cfg.Path)) {
		case ".xlsx", ".xlsm":
			kind = "xlsx"
		case ".db", ".sqlite", ".sqlite3":
			kind = "sqlite"
		default:
			kind = "csv"
		}
	}
	switch kind {
	case "csv":
		return &CSVSource{Path: cfg.Path}, nil
	case "xlsx":
		return &XLSXSource{Path: cfg.Path, Sheet: cfg.Sheet}, nil
	case "sqlite", "postgres":
		driver, dsn := "sqlite3", cfg.Path
		if kind == "postgres" {
			driver, dsn = "pgx", cfg.DSN
		}
		query, err := buildQuery(cfg.Table, cfg.Query)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("catalog: open %s: %w", kind, err)
		}
		return &SQLSource{DB: db, Query: query, Label: kind, closeDB: true}, nil
	default:
		return nil, fmt.Errorf("catalog: unknown source kind %q", kind)
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func buildQuery(table, query string) (string, error) {
	if query != "" {
		return query, nil
	}
	if table == "" {
		table = "recipes"
	}
	if !identPattern.MatchString(table) {
		return "", fmt.Errorf("catalog: invalid table name %q", table)
	}
	return "SELECT * FROM " + table, nil
}

// CSVSource 读取带表头的 CSV 文件。
type CSVSource struct {
	Path   string
	Reader io.Reader
}

func (s *CSVSource) Name() string {
	if s.Path == "" {
		return "csv"
	}
	return s.Path
}

func (s *CSVSource) Rows(ctx context.Context) ([]string, [][]string, error) {
	r := s.Reader
	if r == nil {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		r = f
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	cols, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty csv")
		}
		return nil, nil, err
	}
	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows = append(rows, rec)
	}
	return cols, rows, nil
}

// XLSXSource 读取 Excel 工作表，首行为表头。
type XLSXSource struct {
	Path  string
	Sheet string
}

func (s *XLSXSource) Name() string { return s.Path }

func (s *XLSXSource) Rows(ctx context.Context) ([]string, [][]string, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("sheet %q is empty", sheet)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return all[0], all[1:], nil
}

// SQLSource 执行查询并把每列按字符串读取；NULL 视为空串。
type SQLSource struct {
	DB    *sql.DB
	Query string
	Label string

	closeDB bool
}

func (s *SQLSource) Name() string {
	if s.Label == "" {
		return "sql"
	}
	return s.Label
}

func (s *SQLSource) Rows(ctx context.Context) ([]string, [][]string, error) {
	if s.closeDB {
		defer s.DB.Close()
	}
	rows, err := s.DB.QueryContext(ctx, s.Query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range vals {
		dest[i] = &vals[i]
	}

	var out [][]string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		rec := make([]string, len(cols))
		for i, v := range vals {
			if v.Valid {
				rec[i] = v.String
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}
