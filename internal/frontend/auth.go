package frontend

import (
	"errors"

	"github.com/jo-hoe/cmsadmin/internal/backend/database"
	"github.com/jo-hoe/cmsadmin/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const userContextKey = "user"

// basicAuth checks credentials against the users table and stores the
// authenticated user in the request context.
func (service *FrontendService) basicAuth() echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: "cmsadmin",
		Validator: func(username, password string, ctx echo.Context) (bool, error) {
			user, err := service.coreService.Authenticate(ctx.Request().Context(), username, password)
			if errors.Is(err, core.ErrInvalidCredentials) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			ctx.Set(userContextKey, user)
			return true, nil
		},
	})
}

func currentUser(ctx echo.Context) *database.User {
	user, _ := ctx.Get(userContextKey).(*database.User)
	return user
}
