package middleware

import (
	"os"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/pathwise-labs/progress_api/services"
	"github.com/pathwise-labs/progress_api/shared"
)

type AuthMiddleware struct {
	context.DefaultService

	jwtSvc *services.JWTService

	serviceKeyHash string
}

const AUTH_MIDDLEWARE_SVC = "auth"

func (svc AuthMiddleware) Id() string {
	return AUTH_MIDDLEWARE_SVC
}

func (svc *AuthMiddleware) Configure(ctx *context.Context) error {
	svc.jwtSvc = ctx.Service(services.JWT_SVC).(*services.JWTService)
	svc.serviceKeyHash = os.Getenv("SERVICE_KEY_HASH")
	return svc.DefaultService.Configure(ctx)
}

func (svc *AuthMiddleware) Start() error {
	return nil
}

// RequiredAuth resolves the bearer token into learner identity locals.
func (svc *AuthMiddleware) RequiredAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		token, err := svc.jwtSvc.ExtractTokenFromHeader(authHeader)
		if err != nil {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
		}

		claims, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid JWT token")
		}

		if claims.LearnerID == "" {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid learner ID in token")
		}

		role := claims.Role
		if role == "" {
			role = shared.RoleLearner
		}

		c.Locals(shared.LearnerID, claims.LearnerID)
		c.Locals(shared.LearnerRole, role)
		return c.Next()
	}
}

// RequireRole gates a route on the token role. Admin tokens pass every
// gate.
func (svc *AuthMiddleware) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		got, _ := c.Locals(shared.LearnerRole).(string)
		if got != role && got != shared.RoleAdmin {
			return shared.ResponseForbidden(c)
		}
		return c.Next()
	}
}

// RequireService admits trusted backend callers: either the shared service
// key or an admin bearer token.
func (svc *AuthMiddleware) RequireService() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if key := c.Get(shared.HeaderServiceKey); key != "" {
			if svc.serviceKeyHash == "" {
				return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Service key auth is not configured")
			}
			if err := bcrypt.CompareHashAndPassword([]byte(svc.serviceKeyHash), []byte(key)); err != nil {
				return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid service key")
			}
			c.Locals(shared.LearnerRole, shared.RoleService)
			return c.Next()
		}

		token, err := svc.jwtSvc.ExtractTokenFromHeader(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
		}
		claims, err := svc.jwtSvc.VerifyJWTToken(token)
		if err != nil {
			return shared.ResponseJSON(c, fiber.StatusUnauthorized, "Unauthorized", "Invalid JWT token")
		}
		if claims.Role != shared.RoleAdmin {
			return shared.ResponseForbidden(c)
		}

		c.Locals(shared.LearnerID, claims.LearnerID)
		c.Locals(shared.LearnerRole, claims.Role)
		return c.Next()
	}
}
