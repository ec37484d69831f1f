package http

import (
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/ui"
)

// Template data. Templates only see these flattened shapes, never the
// view-model types, so html/template never has to index typed maps.

type fieldView struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Error       string
	Placeholder string
	Step        string
	Min         string
	List        string
}

type formView struct {
	Fields         []fieldView
	Categories     []string
	Disabled       bool
	Success        bool
	SuccessMessage string
	SubmitError    string
}

type sortOption struct {
	Value    string
	Label    string
	Selected bool
}

type categoryOption struct {
	Value    string
	Selected bool
}

type listView struct {
	Loading     bool
	Failed      bool
	Empty       bool
	Populated   bool
	Message     string
	Rows        []ui.Row
	Total       string
	Categories  []categoryOption
	SortOptions []sortOption
}

type pageView struct {
	Title    string
	Subtitle string
	Form     formView
	List     listView
}

func newFormView(s ui.FormState, categories []string, currencySymbol string) formView {
	v := formView{
		Categories:     categories,
		Disabled:       s.Submitting,
		Success:        s.Success,
		SuccessMessage: ui.MsgSubmitSucceeded,
		SubmitError:    s.SubmitError,
	}
	for _, f := range ui.Fields {
		fv := fieldView{
			Name:  string(f),
			Value: s.Draft.Get(f),
			Error: s.Errors[f],
			Type:  "text",
		}
		switch f {
		case ui.FieldAmount:
			fv.Label = "Amount (" + currencySymbol + ")"
			fv.Type = "number"
			fv.Step = "0.01"
			fv.Min = "0.01"
			fv.Placeholder = "0.00"
		case ui.FieldCategory:
			fv.Label = "Category"
			fv.Placeholder = "e.g., Food, Transport, Entertainment"
			fv.List = "category-suggestions"
		case ui.FieldDescription:
			fv.Label = "Description"
			fv.Placeholder = "Brief description of the expense"
		case ui.FieldDate:
			fv.Label = "Date"
			fv.Type = "date"
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

// fieldErrorView is the data of a single field's error slot.
func fieldErrorView(s ui.FormState, f ui.Field) fieldView {
	return fieldView{Name: string(f), Error: s.Errors[f]}
}

func newListView(l ui.ListView) listView {
	v := listView{
		Loading:   l.State == ui.ListLoading,
		Failed:    l.State == ui.ListError,
		Empty:     l.State == ui.ListEmpty,
		Populated: l.State == ui.ListPopulated,
		Message:   l.Message,
		Rows:      l.Rows,
		Total:     l.Total,
		SortOptions: []sortOption{
			{Value: core.SortDateDesc.String(), Label: "Newest First"},
			{Value: core.SortDateAsc.String(), Label: "Oldest First"},
		},
	}
	for i := range v.SortOptions {
		v.SortOptions[i].Selected = v.SortOptions[i].Value == l.Selection.Sort.String()
	}

	// Keep an active filter selectable even when the server no longer reports it.
	seen := false
	for _, c := range l.Categories {
		v.Categories = append(v.Categories, categoryOption{Value: c, Selected: c == l.Selection.Category})
		seen = seen || c == l.Selection.Category
	}
	if l.Selection.Category != "" && !seen {
		v.Categories = append(v.Categories, categoryOption{Value: l.Selection.Category, Selected: true})
	}
	return v
}

func newPageView(v ui.View, currencySymbol string) pageView {
	return pageView{
		Title:    "Personal Expense Tracker",
		Subtitle: "Track and manage your expenses",
		Form:     newFormView(v.Form, v.Categories, currencySymbol),
		List:     newListView(v.List),
	}
}
