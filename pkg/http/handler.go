package http

import "github.com/labstack/echo/v4"

// Handler registers a group of routes on the server's echo instance. The
// server mounts every handler it is given before Start; /metrics and the
// middleware chain are wired by the server itself.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
