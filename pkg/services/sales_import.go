package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"market-pulse-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

const maxImportErrorSamples = 10

var (
	dateHeaders     = []string{"date", "日付"}
	productHeaders  = []string{"product_id", "製品ID", "sku", "product_code", "製品コード", "商品ID"}
	quantityHeaders = []string{"quantity", "qty", "sales", "販売数", "数量"}
)

// ImportRowError 取り込めなかった行
type ImportRowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// SalesImport 売上ファイルの取り込み結果
type SalesImport struct {
	Products    map[string][]models.SalesObservation `json:"-"`
	Rows        int                                  `json:"rows"`
	Imported    int                                  `json:"imported"`
	ErrorCount  int                                  `json:"error_count"`
	ErrorSample []ImportRowError                     `json:"error_samples"`
}

// ProductIDs returns the imported product ids in sorted order.
func (si *SalesImport) ProductIDs() []string {
	ids := make([]string, 0, len(si.Products))
	for id := range si.Products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// findIndex returns the column of the first candidate header, matched case-insensitively.
func findIndex(header []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range header {
			if strings.EqualFold(strings.TrimSpace(item), candidate) {
				return i
			}
		}
	}
	return -1
}

// ParseSalesFile ファイル名の拡張子に応じて .xlsx (先頭シート) または .csv を読み込みます
func ParseSalesFile(r io.Reader, fileName string) (*SalesImport, error) {
	var rows [][]string
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("Excelファイルの読み込みに失敗しました: %w", err)
		}
		defer f.Close()
		rows, err = f.GetRows(f.GetSheetName(0))
		if err != nil {
			return nil, fmt.Errorf("Excelシートの行取得に失敗しました: %w", err)
		}
	case ".csv":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		var err error
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("CSVファイルの解析に失敗しました: %w", err)
		}
	default:
		return nil, &models.SchemaError{Field: "file", Reason: "サポートされていないファイル形式です (.xlsx または .csv)"}
	}
	return parseSalesRows(rows)
}

func parseSalesRows(rows [][]string) (*SalesImport, error) {
	if len(rows) < 2 {
		return nil, &models.SchemaError{Field: "file", Reason: "ヘッダー行と少なくとも1行のデータが必要です"}
	}
	header := rows[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	dateIdx := findIndex(header, dateHeaders...)
	productIdx := findIndex(header, productHeaders...)
	qtyIdx := findIndex(header, quantityHeaders...)

	var missing []string
	if dateIdx == -1 {
		missing = append(missing, "date")
	}
	if productIdx == -1 {
		missing = append(missing, "product_id")
	}
	if qtyIdx == -1 {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return nil, &models.SchemaError{Field: strings.Join(missing, ","), Reason: fmt.Sprintf("必要な列が見つかりません。ヘッダー: %v", header)}
	}

	result := &SalesImport{Products: make(map[string][]models.SalesObservation)}
	fail := func(row int, reason string) {
		result.ErrorCount++
		if len(result.ErrorSample) < maxImportErrorSamples {
			result.ErrorSample = append(result.ErrorSample, ImportRowError{Row: row, Reason: reason})
		}
	}

	width := max(dateIdx, productIdx, qtyIdx) + 1
	for i, row := range rows[1:] {
		rowNum := i + 2
		if isBlankRow(row) {
			continue
		}
		result.Rows++
		if len(row) < width {
			fail(rowNum, "列が不足しています")
			continue
		}
		id, err := SanitizeProductID(row[productIdx])
		if err != nil {
			fail(rowNum, fmt.Sprintf("製品IDが不正です: %q", row[productIdx]))
			continue
		}
		d, err := ParseDate(row[dateIdx])
		if err != nil {
			fail(rowNum, err.Error())
			continue
		}
		q, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[qtyIdx]), ",", ""), 64)
		if err != nil || q < 0 {
			fail(rowNum, fmt.Sprintf("販売数が不正です: %q", row[qtyIdx]))
			continue
		}
		result.Products[id] = append(result.Products[id], models.SalesObservation{Date: d, Quantity: q})
		result.Imported++
	}
	return result, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
