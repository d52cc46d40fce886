package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const actorContextKey = "actor_email"

// Actor middleware атрибуции действий для журнала аудита.
// Bearer-токен дашборда разбирается БЕЗ проверки подписи: валидация сессии
// живёт у внешнего identity-провайдера, ядру нужен только e-mail для аудита.
// Нет токена или e-mail — действия пишутся от сентинела system.
func Actor() gin.HandlerFunc {
	parser := jwt.NewParser()

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			raw := strings.TrimPrefix(authHeader, "Bearer ")

			claims := jwt.MapClaims{}
			if _, _, err := parser.ParseUnverified(raw, claims); err == nil {
				if email, ok := claims["email"].(string); ok && email != "" {
					c.Set(actorContextKey, email)
				}
			}
		}

		// Запасной вариант для дашборда без JWT
		if _, exists := c.Get(actorContextKey); !exists {
			if email := c.GetHeader("X-Actor-Email"); email != "" {
				c.Set(actorContextKey, email)
			}
		}

		c.Next()
	}
}

// ActorFromContext возвращает e-mail актора или сентинел system
func ActorFromContext(c *gin.Context) string {
	if v, exists := c.Get(actorContextKey); exists {
		if email, ok := v.(string); ok && email != "" {
			return email
		}
	}
	return "system"
}
