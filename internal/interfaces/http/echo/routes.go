package echo

import (
	"github.com/go-playground/validator/v10"
	e "github.com/labstack/echo/v4"
)

// RequestValidator adapts go-playground/validator to echo's Validator.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

func RegisterRoutes(server *e.Echo, importHandler *ImportHandler) {
	if server.Validator == nil {
		server.Validator = NewRequestValidator()
	}

	sites := server.Group("/api/v1/sites/:site")
	sites.GET("/imports", importHandler.ListSiteImports)
	sites.POST("/imports", importHandler.CreateSiteImport)
	sites.DELETE("/imports/:importId", importHandler.DeleteSiteImport)
}
