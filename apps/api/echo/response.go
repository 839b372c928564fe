package echoapi

import "github.com/labstack/echo/v4"

// envelope is the uniform response shape used by every endpoint, success or not.
type envelope struct {
	Message interface{} `json:"message"`
	Data    interface{} `json:"data"`
	Success bool        `json:"success"`
}

func respond(ctx echo.Context, code int, message string, data interface{}) error {
	return ctx.JSON(code, envelope{Message: message, Data: data, Success: true})
}
