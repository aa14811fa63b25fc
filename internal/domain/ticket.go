// Package domain holds the core data model of the triage service.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrValidation reports a row that cannot become a TicketRecord. Ingestion
// drops such rows and continues.
var ErrValidation = errors.New("record validation failed")

// TicketRecord is one historical ticket from an Excel export. Immutable once
// created; construct through NewTicketRecord so invalid records never exist.
type TicketRecord struct {
	SourceCode  string `db:"source_code"  json:"code,omitempty"`
	CloseTime   string `db:"close_time"   json:"close_time,omitempty"`
	Title       string `db:"title"        json:"title"`
	Description string `db:"description"  json:"description"`
	Expert      string `db:"expert"       json:"expert"`
	Group       string `db:"grp"          json:"group"`
	Label       string `db:"label"        json:"label"`
	URL         string `db:"url"          json:"url,omitempty"`
	FullText    string `db:"full_text"    json:"full_text"`
	SourceFile  string `db:"source_file"  json:"source_file"`
}

// RawRow is a single spreadsheet row keyed by column header, before
// validation. Produced by the tabular source reader.
type RawRow map[string]string

// Column headers expected in the Excel exports. The first three are
// required; files missing any of them are skipped.
const (
	ColumnTitle     = "Заголовок"
	ColumnExpert    = "Назначенный эксперт Имя"
	ColumnGroup     = "Группа экспертов Имя"
	ColumnCode      = "Код"
	ColumnCloseTime = "Время закрытия"
	ColumnDesc      = "Описание"
	ColumnLabel     = "Предложение Отображаемая метка"
	ColumnURL       = "URL"
)

// RequiredColumns lists the headers a source file must carry.
func RequiredColumns() []string {
	return []string{ColumnTitle, ColumnExpert, ColumnGroup}
}

// NewTicketRecord builds a validated record from a raw row. Title, expert
// and group are required; the expert must look like a real full name.
func NewTicketRecord(row RawRow, sourceFile string) (TicketRecord, error) {
	title := strings.TrimSpace(row[ColumnTitle])
	if title == "" {
		return TicketRecord{}, fmt.Errorf("%w: empty title", ErrValidation)
	}

	expert := strings.TrimSpace(row[ColumnExpert])
	if expert == "" {
		return TicketRecord{}, fmt.Errorf("%w: empty expert", ErrValidation)
	}
	if !IsValidExpertName(expert) {
		return TicketRecord{}, fmt.Errorf("%w: expert %q is not a full name", ErrValidation, expert)
	}

	group := strings.TrimSpace(row[ColumnGroup])
	if group == "" {
		return TicketRecord{}, fmt.Errorf("%w: empty group", ErrValidation)
	}

	description := strings.TrimSpace(row[ColumnDesc])

	return TicketRecord{
		SourceCode:  strings.TrimSpace(row[ColumnCode]),
		CloseTime:   strings.TrimSpace(row[ColumnCloseTime]),
		Title:       title,
		Description: description,
		Expert:      expert,
		Group:       group,
		Label:       strings.TrimSpace(row[ColumnLabel]),
		URL:         strings.TrimSpace(row[ColumnURL]),
		FullText:    JoinText(title, description),
		SourceFile:  sourceFile,
	}, nil
}

// JoinText combines a title and optional description into the text the model
// trains and predicts on.
func JoinText(title, description string) string {
	if description == "" {
		return title
	}
	return title + ". " + description
}

// IsValidExpertName reports whether a value looks like a person's full name:
// at least one Cyrillic letter and at least two whitespace-separated tokens.
func IsValidExpertName(name string) bool {
	hasCyrillic := false
	for _, r := range name {
		if unicode.Is(unicode.Cyrillic, r) {
			hasCyrillic = true
			break
		}
	}
	if !hasCyrillic {
		return false
	}
	return len(strings.Fields(name)) >= 2
}
