package validators

import (
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
)

var validate = validator.New()

// JourneyID checks that a path parameter is a well-formed journey UUID.
func JourneyID(value string) error {
	if err := validate.Var(value, "required,uuid4"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "journey id must be a UUID")
	}
	return nil
}

// PhotoID checks a photo path parameter. Logical photo IDs are UUIDs minted
// at upload time.
func PhotoID(value string) error {
	if err := validate.Var(value, "required,uuid4"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "photo id must be a UUID")
	}
	return nil
}

// ObjectPath validates a multi-segment object path below a journey prefix,
// such as photos/{photoId}.jpg or photos/thumbs/{photoId}.jpg.
func ObjectPath(value string) error {
	if err := validate.Var(value, "required,excludesall=\\"); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid object path")
	}
	for _, segment := range strings.Split(value, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid object path")
		}
	}
	return nil
}
