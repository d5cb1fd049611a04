package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"bboard/internal/handler"
)

// Register wires routes and middleware.
func Register(e *echo.Echo, postHandler *handler.PostHandler) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.Validator = NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	posts := e.Group("/posts")
	posts.GET("", postHandler.ListPosts)
	posts.GET("/create", postHandler.NewPostForm)
	posts.POST("/create", postHandler.CreatePost)
	posts.GET("/:id", postHandler.GetPost)
	posts.GET("/:id/update", postHandler.UpdatePostForm)
	posts.POST("/:id/update", postHandler.UpdatePost)
	posts.POST("/:id/delete", postHandler.DeletePost)
	posts.GET("/:id/download", postHandler.DownloadAttachment)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator builds the request validator installed on the echo instance.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
