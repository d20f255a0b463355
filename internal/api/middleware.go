package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// operatorMiddleware проверяет JWT оператора в заголовке Authorization
func (s *Server) operatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Отсутствует токен авторизации",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Неверный формат токена",
			})
			return
		}

		claims, err := s.auth.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Success: false,
				Message: "Недействительный токен",
			})
			return
		}

		c.Set("operator", claims.Operator)
		c.Next()
	}
}

// operatorName имя оператора из токена для журнала
func operatorName(c *gin.Context) string {
	if name := c.GetString("operator"); name != "" {
		return name
	}
	return "anonymous"
}
