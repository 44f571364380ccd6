package api

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/Domenick1991/parking/internal/domain"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const invalidJSONMessage = "Invalid JSON format"

var registerValidators sync.Once

// bindJSON decodes and validates the body into req. Failures come back as
// validation errors whose message is safe to show to the client. A failed
// rule reports the field's msg tag.
func bindJSON(c *gin.Context, req any) error {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterTagNameFunc(jsonFieldName)
			_ = v.RegisterValidation("vehicletype", func(fl validator.FieldLevel) bool {
				return domain.VehicleType(fl.Field().String()).Valid()
			})
		}
	})

	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return domain.Errorf(domain.ErrValidation, "%s", fieldMessage(req, verrs[0]))
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field == "vehicleType" {
		return invalidVehicleType("vehicleType")
	}
	return domain.Errorf(domain.ErrValidation, "%s", invalidJSONMessage)
}

func fieldMessage(req any, fe validator.FieldError) string {
	if fe.Tag() == "vehicletype" {
		return invalidVehicleType(fe.Field()).Error()
	}
	t := reflect.TypeOf(req)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if f, ok := t.FieldByName(fe.StructField()); ok {
		if msg := f.Tag.Get("msg"); msg != "" {
			return msg
		}
	}
	return "Invalid value for '" + fe.Field() + "'"
}

func invalidVehicleType(field string) error {
	return domain.Errorf(domain.ErrValidation, "Invalid value for '%s'. Allowed values: %s", field, domain.AllowedVehicleTypes())
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
