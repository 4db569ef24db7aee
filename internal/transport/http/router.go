package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/mirrorstack/mirror_server/internal/handlers"
	"github.com/mirrorstack/mirror_server/internal/middleware"
)

type Deps struct {
	Auth              *middleware.Auth
	UserHandler       *handlers.UserHandler
	MirrorHandler     *handlers.MirrorHandler
	PermissionHandler *handlers.PermissionHandler
	WidgetHandler     *handlers.WidgetHandler
	SystemHandler     *handlers.SystemHandler
	SearchHandler     *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	api := e.Group("/api")

	users := api.Group("/users")
	users.POST("/register", d.UserHandler.Register)
	users.POST("/login", d.UserHandler.Login)
	users.POST("/logout", d.UserHandler.Logout, d.Auth.RequireUser)
	users.GET("/me", d.UserHandler.Me, d.Auth.RequireUser)

	mirrors := api.Group("/mirrors", d.Auth.RequireUser)
	mirrors.GET("", d.MirrorHandler.List)
	mirrors.POST("", d.MirrorHandler.Create)
	mirrors.GET("/:id", d.MirrorHandler.Get)
	mirrors.PUT("/:id", d.MirrorHandler.Update)
	mirrors.PATCH("/:id/status", d.MirrorHandler.UpdateStatus)
	mirrors.DELETE("/:id", d.MirrorHandler.Delete)

	mirrors.GET("/:id/users", d.PermissionHandler.GetMirrorUsers)
	mirrors.POST("/:id/users", d.PermissionHandler.AddUser)
	mirrors.DELETE("/:id/users/:userId", d.PermissionHandler.RemoveUser)
	mirrors.PATCH("/:id/users/:userId/role", d.PermissionHandler.UpdateRole)

	mirrors.GET("/:id/widgets", d.WidgetHandler.GetWidgets)
	mirrors.PATCH("/:id/widgets/:name/toggle", d.WidgetHandler.Toggle)

	mirrors.GET("/:id/system/status", d.SystemHandler.Status)
	mirrors.GET("/:id/system/info", d.SystemHandler.Info)

	admin := api.Group("/admin", d.Auth.RequireAdmin)
	admin.GET("/mirrors/search", d.SearchHandler.Search)
	admin.POST("/apptoken", d.SystemHandler.MintAppToken)

	system := api.Group("/system", d.Auth.RequireApp)
	system.GET("/ping", d.SystemHandler.Ping)
}
