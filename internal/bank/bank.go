// Package bank loads the read-only question tables and answers the filter
// and exam-view queries over them.
package bank

import (
	"sort"
	"strconv"
	"strings"

	"github.com/joshuadr04/lms-sistema/internal/model"
	"github.com/joshuadr04/lms-sistema/internal/workbook"
)

// Sheet names of the question tables.
const (
	QuestionsSheet = "Questions"
	ListsSheet     = "Lists"
)

// QuestionsHeader is the expected column layout of the question bank.
// Columns are located by header name, so optional ones (subject, year,
// difficulty) may be absent — the matching filter is then unavailable.
var QuestionsHeader = []string{"id", "subject", "year", "difficulty", "sequence", "statement", "option_a", "option_b", "option_c", "option_d", "answer_key", "comment"}

// ListsHeader prepends the list code to the question columns.
var ListsHeader = append([]string{"list_code"}, QuestionsHeader...)

// Bank is an in-memory snapshot of the question table, in store order.
type Bank struct {
	Questions []model.Question

	// Which optional attribute columns the sheet actually carries.
	HasSubject    bool
	HasYear       bool
	HasDifficulty bool
}

// Load reads the question sheet into a bank. The store's freshness window
// applies; a missing sheet yields an empty bank and the error for display.
func Load(store *workbook.Store) (*Bank, error) {
	t, err := store.ReadTable(QuestionsSheet)
	if err != nil {
		return &Bank{}, err
	}

	b := &Bank{
		HasSubject:    t.Column("subject") >= 0,
		HasYear:       t.Column("year") >= 0,
		HasDifficulty: t.Column("difficulty") >= 0,
	}
	for i := range t.Rows {
		b.Questions = append(b.Questions, questionFromRow(t, i))
	}
	return b, nil
}

// LoadList reads the topic list sheet and returns the questions bound to
// one list code, in sheet order. An unknown code yields an empty slice.
func LoadList(store *workbook.Store, code string) ([]model.Question, error) {
	t, err := store.ReadTable(ListsSheet)
	if err != nil {
		return nil, err
	}
	codeCol := t.Column("list_code")
	if codeCol < 0 {
		return nil, nil
	}
	var qs []model.Question
	for i := range t.Rows {
		if strings.TrimSpace(t.Cell(i, codeCol)) == code {
			qs = append(qs, questionFromRow(t, i))
		}
	}
	return qs, nil
}

// Find locates a question by id in the question bank, falling back to the
// topic lists sheet for questions answered from an embedded list view.
func Find(store *workbook.Store, id string) (model.Question, bool) {
	if b, err := Load(store); err == nil {
		for _, q := range b.Questions {
			if q.ID == id {
				return q, true
			}
		}
	}
	t, err := store.ReadTable(ListsSheet)
	if err != nil {
		return model.Question{}, false
	}
	idCol := t.Column("id")
	if idCol < 0 {
		return model.Question{}, false
	}
	for i := range t.Rows {
		if strings.TrimSpace(t.Cell(i, idCol)) == id {
			return questionFromRow(t, i), true
		}
	}
	return model.Question{}, false
}

// Options returns the distinct values of an attribute, sorted, for building
// the filter controls. Attributes whose column is absent yield nil.
func (b *Bank) Options(attr Attribute) []string {
	get := b.attrGetter(attr)
	if get == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, q := range b.Questions {
		v := get(q)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ExamView selects questions of exactly one year/edition and orders them by
// their sequence number ascending. An empty year selects nothing: the UI
// prompts for a choice instead.
func (b *Bank) ExamView(year string) []model.Question {
	if year == "" {
		return nil
	}
	var qs []model.Question
	for _, q := range b.Questions {
		if q.Year == year {
			qs = append(qs, q)
		}
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Sequence < qs[j].Sequence })
	return qs
}

// attrGetter maps a filterable attribute to its accessor, or nil when the
// backing column is absent from the sheet.
func (b *Bank) attrGetter(attr Attribute) func(model.Question) string {
	switch attr {
	case AttrSubject:
		if !b.HasSubject {
			return nil
		}
		return func(q model.Question) string { return q.Subject }
	case AttrYear:
		if !b.HasYear {
			return nil
		}
		return func(q model.Question) string { return q.Year }
	case AttrDifficulty:
		if !b.HasDifficulty {
			return nil
		}
		return func(q model.Question) string { return q.Difficulty }
	}
	return nil
}

// questionFromRow maps one sheet row to a question. Columns are located by
// header name, so the same mapping serves both question sheets.
func questionFromRow(t workbook.Table, row int) model.Question {
	col := func(name string) string {
		c := t.Column(name)
		if c < 0 {
			return ""
		}
		return strings.TrimSpace(t.Cell(row, c))
	}
	seq, _ := strconv.Atoi(col("sequence"))
	return model.Question{
		ID:         col("id"),
		Subject:    col("subject"),
		Year:       col("year"),
		Difficulty: col("difficulty"),
		Sequence:   seq,
		Statement:  col("statement"),
		OptionA:    col("option_a"),
		OptionB:    col("option_b"),
		OptionC:    col("option_c"),
		OptionD:    col("option_d"),
		AnswerKey:  strings.ToLower(col("answer_key")),
		Comment:    col("comment"),
	}
}
