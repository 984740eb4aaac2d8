// Package catalog stores the book specifications that purchase orders refer to.
package catalog

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a book id does not exist.
var ErrNotFound = errors.New("book not found")

// Presence values accepted for Endpaper and Wing.
const (
	PresenceNone    = "none"
	PresencePresent = "present"
)

// Book is a stored book specification.
type Book struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Format      string `json:"format"`
	CoverPaper  string `json:"cover_paper"`
	CoverColor  string `json:"cover_color"`
	InnerSpec   string `json:"inner_spec"`
	TotalPages  int64  `json:"total_pages"`
	Endpaper    string `json:"endpaper"`
	Wing        string `json:"wing"`
	Binding     string `json:"binding"`
	Postprocess string `json:"postprocess"`
}

// BookInput carries the fields of a new book.
type BookInput struct {
	Title       string `json:"title" validate:"required"`
	Format      string `json:"format"`
	CoverPaper  string `json:"cover_paper"`
	CoverColor  string `json:"cover_color"`
	InnerSpec   string `json:"inner_spec"`
	TotalPages  int64  `json:"total_pages" validate:"gte=0"`
	Endpaper    string `json:"endpaper" validate:"oneof=none present"`
	Wing        string `json:"wing" validate:"oneof=none present"`
	Binding     string `json:"binding"`
	Postprocess string `json:"postprocess"`
}

// Normalize trims every text field and defaults the presence flags to none.
func (in BookInput) Normalize() BookInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Format = strings.TrimSpace(in.Format)
	in.CoverPaper = strings.TrimSpace(in.CoverPaper)
	in.CoverColor = strings.TrimSpace(in.CoverColor)
	in.InnerSpec = strings.TrimSpace(in.InnerSpec)
	in.Endpaper = presence(in.Endpaper)
	in.Wing = presence(in.Wing)
	in.Binding = strings.TrimSpace(in.Binding)
	in.Postprocess = strings.TrimSpace(in.Postprocess)
	return in
}

// BookPatch is a partial update. Nil fields are left unchanged.
type BookPatch struct {
	Title       *string `json:"title" validate:"omitnil,min=1"`
	Format      *string `json:"format"`
	CoverPaper  *string `json:"cover_paper"`
	CoverColor  *string `json:"cover_color"`
	InnerSpec   *string `json:"inner_spec"`
	TotalPages  *int64  `json:"total_pages" validate:"omitnil,gte=0"`
	Endpaper    *string `json:"endpaper" validate:"omitnil,oneof=none present"`
	Wing        *string `json:"wing" validate:"omitnil,oneof=none present"`
	Binding     *string `json:"binding"`
	Postprocess *string `json:"postprocess"`
}

// Normalize trims the provided text fields.
func (p BookPatch) Normalize() BookPatch {
	for _, f := range []**string{&p.Title, &p.Format, &p.CoverPaper, &p.CoverColor, &p.InnerSpec, &p.Binding, &p.Postprocess} {
		if *f != nil {
			v := strings.TrimSpace(**f)
			*f = &v
		}
	}
	for _, f := range []**string{&p.Endpaper, &p.Wing} {
		if *f != nil {
			v := strings.ToLower(strings.TrimSpace(**f))
			*f = &v
		}
	}
	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p BookPatch) IsEmpty() bool {
	return len(p.assignments()) == 0
}

type assignment struct {
	column string
	value  any
}

func (p BookPatch) assignments() []assignment {
	var out []assignment
	add := func(column string, v *string) {
		if v != nil {
			out = append(out, assignment{column: column, value: *v})
		}
	}
	add("title", p.Title)
	add("format", p.Format)
	add("cover_paper", p.CoverPaper)
	add("cover_color", p.CoverColor)
	add("inner_spec", p.InnerSpec)
	if p.TotalPages != nil {
		out = append(out, assignment{column: "total_pages", value: *p.TotalPages})
	}
	add("endpaper", p.Endpaper)
	add("wing", p.Wing)
	add("binding", p.Binding)
	add("postprocess", p.Postprocess)
	return out
}

// FilterByTitle keeps books whose title contains query. Matching is
// case-sensitive and an empty query keeps everything.
func FilterByTitle(books []Book, query string) []Book {
	if query == "" {
		return books
	}
	out := make([]Book, 0, len(books))
	for _, b := range books {
		if strings.Contains(b.Title, query) {
			out = append(out, b)
		}
	}
	return out
}

func presence(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return PresenceNone
	}
	return v
}
