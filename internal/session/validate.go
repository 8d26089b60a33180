package session

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/thunder/internal/common"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so errors match what the
// user sees in the import file.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkImport runs the validate tags of an import record and folds every
// failing field into one ErrMalformedImportFile.
func checkImport(rec any) error {
	err := validate.Struct(rec)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		_, field, _ := strings.Cut(fe.Namespace(), ".")
		fields = append(fields, fmt.Sprintf("%s (%s)", field, fe.Tag()))
	}
	return fmt.Errorf("%w: invalid %s", common.ErrMalformedImportFile, strings.Join(fields, ", "))
}
