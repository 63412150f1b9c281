package handlers

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/DartinBot/Khyrie-sub002/internal/models"
)

// validate is safe for concurrent use and caches struct metadata, so one instance
// serves every request.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names ("max_members") instead of Go names ("MaxMembers").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("equipment_type", func(fl validator.FieldLevel) bool {
		return models.EquipmentType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("json_object", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		if !ok {
			return false
		}
		if isNullJSON(raw) {
			return true
		}
		var obj map[string]json.RawMessage
		return json.Unmarshal(raw, &obj) == nil && obj != nil
	})
	return v
}

// bind parses the JSON body into req and validates it. When ok is false the 400 has
// already been written and the caller just returns err.
func bind(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, errorJSON(c, fiber.StatusBadRequest, "Invalid JSON body")
	}
	if err := validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return false, err
		}
		return false, errorJSON(c, fiber.StatusBadRequest, "Missing or invalid fields: "+fieldList(fieldErrs))
	}
	return true, nil
}

// fieldList joins the JSON paths of the failing fields, e.g. "title, workout_data.distance_km".
func fieldList(errs validator.ValidationErrors) string {
	seen := make(map[string]bool, len(errs))
	names := make([]string, 0, len(errs))
	for _, fe := range errs {
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:] // drop the request struct name
		}
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

// objectOrEmpty returns raw, or {} when raw is absent or null.
func objectOrEmpty(raw json.RawMessage) []byte {
	if isNullJSON(raw) {
		return []byte("{}")
	}
	return raw
}
