package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/hrpipe/internal/hr"
)

// errBadRequest marks request-level validation failures. Its text contains
// "invalid" so core.MapError files it under VAL005.
var errBadRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("query"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("delimiter", func(fl validator.FieldLevel) bool {
		_, ok := parseDelimiter(fl.Field().String())
		return ok
	})
	return v
}

// staffQuery narrows a staff population.
type staffQuery struct {
	LocationID int64  `query:"location_id" validate:"gte=0"`
	DivisionID int64  `query:"division_id" validate:"gte=0"`
	StaffID    int64  `query:"staff_id" validate:"gte=0"`
	Status     string `query:"status" validate:"omitempty,oneof=active inactive on_leave terminated"`
}

func (q staffQuery) filter() hr.StaffFilter {
	return hr.StaffFilter{
		LocationID: q.LocationID,
		DivisionID: q.DivisionID,
		StaffID:    q.StaffID,
		Status:     hr.EmploymentStatus(q.Status),
	}
}

// Dates and months are checked by the hr parsers so they report
// hr.ErrInvalidPeriod.
type exportQuery struct {
	staffQuery
	Start  string `query:"start"`
	End    string `query:"end"`
	Period string `query:"period"`
}

type attendanceReportQuery struct {
	staffQuery
	Month string `query:"month" validate:"required"`
}

type leaveReportQuery struct {
	Year       int   `query:"year" validate:"required"`
	Month      int   `query:"month" validate:"gte=0,lte=12"`
	CategoryID int64 `query:"category_id" validate:"gte=0"`
	StaffID    int64 `query:"staff_id" validate:"gte=0"`
}

type balanceQuery struct {
	Year int `query:"year"`
}

type jobsQuery struct {
	Kind  string `query:"kind"`
	Limit int    `query:"limit" validate:"gte=0"`
}

type templateQuery struct {
	Format string `query:"format" validate:"omitempty,oneof=json csv"`
}

type importForm struct {
	Delimiter string `query:"delimiter" validate:"omitempty,delimiter"`
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("query")
	return d
}

// bindQuery fills dst from the URL query and validates it. Blank values
// count as absent.
func bindQuery(r *http.Request, dst any) error {
	values := make(url.Values)
	for name, vals := range r.URL.Query() {
		if len(vals) > 0 {
			if v := strings.TrimSpace(vals[0]); v != "" {
				values.Set(name, v)
			}
		}
	}

	if err := queryDecoder.Decode(dst, values); err != nil {
		var de form.DecodeErrors
		if !errors.As(err, &de) {
			return err
		}
		names := make([]string, 0, len(de))
		for name := range de {
			names = append(names, name)
		}
		slices.Sort(names)
		return fmt.Errorf("%w: %s must be a whole number", errBadRequest, strings.Join(names, ", "))
	}
	return validateRequest(dst)
}

func validateRequest(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", errBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "delimiter":
		return fe.Field() + ` must be a single character or "tab"`
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// parseDelimiter accepts one non-newline, non-quote character or "tab".
func parseDelimiter(s string) (rune, bool) {
	switch s {
	case "":
		return 0, true
	case "tab", `\t`:
		return '\t', true
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '\n' || r == '\r' || r == '"' {
		return 0, false
	}
	return r, true
}
