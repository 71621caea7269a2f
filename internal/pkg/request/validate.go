package request

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/staydrive/inventory-engine/internal/calendar"
	"github.com/staydrive/inventory-engine/internal/capacity"
)

var registerOnce sync.Once

// RegisterValidators adds the engine's binding tags to gin's validator:
//
//	resource_kind  a capacity-tracked kind (homestay or car)
//	calendar_day   a YYYY-MM-DD string
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("resource_kind", validResourceKind); err != nil {
			return
		}
		err = v.RegisterValidation("calendar_day", validCalendarDay)
	})
	return err
}

func validResourceKind(fl validator.FieldLevel) bool {
	_, err := capacity.ParseKind(fl.Field().String())
	return err == nil
}

func validCalendarDay(fl validator.FieldLevel) bool {
	_, err := calendar.Parse(fl.Field().String())
	return err == nil
}
