package http

import (
	"context"
	"crypto/rand"
	"net/http"

	"github.com/dkeye/Lobby/internal/adapters/signal"
	"github.com/dkeye/Lobby/internal/app"
	"github.com/dkeye/Lobby/internal/config"
	"github.com/dkeye/Lobby/internal/core"
	"github.com/dkeye/Lobby/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const clientTokenKey = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every request with a stable per-browser token
// kept in the cookie session. It only labels logs; it is not authentication.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(clientTokenKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(clientTokenKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func sessionSecret(secret string) []byte {
	if secret != "" {
		return []byte(secret)
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	log.Warn().Str("module", "adapters.http").Msg("no session secret configured, using a random one")
	return key
}

// RoomDirectory is the read side of the room index.
type RoomDirectory interface {
	Rooms() []core.RoomInfo
	MembersOf(slug domain.RoomSlug) []app.Connection
	Len() int
}

func SetupRouter(ctx context.Context, cfg *config.Config, rooms RoomDirectory, presence signal.Presence) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore(sessionSecret(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("LobbySessions", store))
	r.Use(ClientTokenMiddleware())

	ctrl := signal.NewSignalWSController(presence, signal.Options{
		ReadLimit:      cfg.ReadLimit,
		SendBuffer:     cfg.SendBuffer,
		WriteTimeout:   cfg.WriteTimeout,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": rooms.Len(),
			"rooms":       len(rooms.Rooms()),
		})
	})

	api := r.Group("/api")

	// GET /api/rooms lists rooms with at least one member.
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.Rooms()})
	})

	// GET /api/rooms/:slug shows the same players a new joiner would get.
	api.GET("/rooms/:slug", func(c *gin.Context) {
		slug := domain.RoomSlug(c.Param("slug"))
		members := rooms.MembersOf(slug)
		if len(members) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		players := make([]core.PlayerDTO, 0, len(members))
		for _, m := range members {
			players = append(players, m.DTO())
		}
		c.JSON(http.StatusOK, gin.H{"slug": slug, "players": players})
	})

	api.GET("/ws", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
