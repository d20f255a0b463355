package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/annel0/mmo-region/internal/world"
)

// ClientInfo краткие сведения о клиенте
type ClientInfo struct {
	ID       string  `json:"id"`
	Account  string  `json:"account"`
	Name     string  `json:"name"`
	Map      string  `json:"map"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Regions  int     `json:"regions"`
	Shadowed bool    `json:"shadowed"`
}

// KickRequest тело запроса на отключение
type KickRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	data := gin.H{"world": s.world.Stats()}
	if s.process != nil {
		if snap, err := s.process.Sample(); err == nil {
			data["process"] = snap
		} else {
			s.log.Debug("Метрики процесса недоступны: %v", err)
		}
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    data,
	})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	var settings world.Settings
	if err := s.call(c.Request.Context(), func(w *world.World) {
		settings = w.Settings()
	}); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Настройки", Data: settings})
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var settings world.Settings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "Неверный формат запроса: " + err.Error(),
		})
		return
	}
	if settings.TeleportLimit < 0 {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Success: false,
			Message: "teleport_limit не может быть отрицательным",
		})
		return
	}

	if err := s.call(c.Request.Context(), func(w *world.World) {
		w.SetSettings(settings)
	}); err != nil {
		s.fail(c, err)
		return
	}

	s.log.Info("Настройки античита изменены (%s): %+v", operatorName(c), settings)
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Настройки обновлены", Data: settings})
}

func (s *Server) handleClients(c *gin.Context) {
	var clients []ClientInfo
	if err := s.call(c.Request.Context(), func(w *world.World) {
		clients = make([]ClientInfo, 0, len(w.Clients()))
		for _, cl := range w.Clients() {
			info := ClientInfo{
				ID:       cl.ID,
				Account:  cl.AccountID,
				Name:     cl.Name,
				Regions:  len(cl.Regions),
				Shadowed: cl.Shadowed,
			}
			if cl.Map != nil {
				info.Map = cl.Map.Name
			}
			if cl.Pony != nil {
				info.X, info.Y = cl.Pony.X, cl.Pony.Y
			}
			clients = append(clients, info)
		}
	}); err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список клиентов",
		Data:    gin.H{"clients": clients, "total": len(clients)},
	})
}

func (s *Server) handleKick(c *gin.Context) {
	id := c.Param("id")
	var req KickRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, GenericResponse{
				Success: false,
				Message: "Неверный формат запроса: " + err.Error(),
			})
			return
		}
	}

	found := false
	if err := s.call(c.Request.Context(), func(w *world.World) {
		for _, cl := range w.Clients() {
			if cl.ID == id {
				w.Kick(cl, req.Reason)
				found = true
				return
			}
		}
	}); err != nil {
		s.fail(c, err)
		return
	}

	if !found {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Клиент не найден"})
		return
	}
	s.log.Info("Клиент %s отключён через API (%s)", id, operatorName(c))
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Клиент отключён"})
}
