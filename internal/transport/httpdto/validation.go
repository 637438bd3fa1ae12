package httpdto

import (
	"sync"

	"workchat/internal/domain/message"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding rules on gin's validator.
//   - msgkind: a message kind a client may send (text or file)
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("msgkind", validateMessageKind)
	})
}

func validateMessageKind(fl validator.FieldLevel) bool {
	return message.Kind(fl.Field().String()).Sendable()
}
