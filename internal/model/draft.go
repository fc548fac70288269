package model

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Draft is the unsaved form data for creating or editing a record.
// It doubles as the request body of create and update calls.
type Draft struct {
	Name     string   `json:"nama_ibadah"`
	Category Category `json:"jenis_ibadah"`
	Date     Date     `json:"tanggal_ibadah"`
}

// NewDraft returns the empty form: no name, mandatory, dated today.
func NewDraft(today Date) Draft {
	return Draft{Category: CategoryMandatory, Date: today}
}

// DraftOf copies the editable fields of r.
func DraftOf(r Ibadah) Draft {
	return Draft{Name: r.Name, Category: r.Category, Date: r.Date}
}

// Trimmed returns d with surrounding whitespace removed from the name.
func (d Draft) Trimmed() Draft {
	d.Name = strings.TrimSpace(d.Name)
	return d
}

type draftRules struct {
	Name     string `validate:"required"`
	Category string `validate:"required,oneof=wajib sunah"`
	Date     string `validate:"required,datetime=2006-01-02"`
}

var draftFields = map[string]struct {
	key     string
	message string
}{
	"Name":     {"nama_ibadah", "Nama ibadah tidak boleh kosong"},
	"Category": {"jenis_ibadah", "Jenis ibadah harus wajib atau sunah"},
	"Date":     {"tanggal_ibadah", "Tanggal ibadah tidak valid"},
}

// ValidationError is a local form error. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks d before it is sent. Only the first failing field is reported.
func (d Draft) Validate() error {
	err := validate.Struct(draftRules{
		Name:     strings.TrimSpace(d.Name),
		Category: string(d.Category),
		Date:     d.Date.String(),
	})
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	f := draftFields[errs[0].Field()]
	return &ValidationError{Field: f.key, Message: f.message}
}
