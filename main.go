package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"partyquiz/config"
	"partyquiz/game"
	"partyquiz/identity"
	"partyquiz/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pgRepo, err := storage.NewPostgresRepo(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}

	identityManager := identity.NewManager(cfg.IdentityKey, cfg.IdentityMaxAge)
	identityHandler := identity.NewHandler(identityManager)

	r := CreateServer(cfg.AllowedOrigins)

	r.POST("/identity", identityHandler.HelloHandler)

	r.GET("/packs", func(ctx *gin.Context) {
		packs, err := pgRepo.ListPacks(ctx.Request.Context())
		if err != nil {
			slog.Error("failed to list packs", "error", err.Error())
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
			return
		}
		ctx.JSON(http.StatusOK, packs)
	})

	lobby := game.NewLobby(game.NewCodeGen())
	lobbyStarted := make(chan struct{})
	go lobby.LobbyActor(lobbyStarted)
	<-lobbyStarted

	roomConfigs := game.RoomConfigs{
		RoundDuration:        cfg.RoundDuration,
		BetweenRoundDuration: cfg.BetweenRoundDuration,
		ExtendIncrement:      cfg.ExtendIncrement,
		HostGracePeriod:      cfg.HostGracePeriod,
		Scoring: game.ScoringConfig{
			BasePoints:   cfg.BasePoints,
			MaxTimeBonus: cfg.MaxTimeBonus,
		},
	}

	gameHandler := game.NewGameHandler(lobby, pgRepo, game.NewTimerService(), pgRepo, roomConfigs, cfg.AllowedOrigins)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(identityHandler.RequireIdentityMiddleware())

		gameGroup.GET("/create", gameHandler.CreateRoomHandler)
		gameGroup.GET("/join/:code", gameHandler.JoinRoomHandler)
	}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		log.Fatal(err)
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, req *http.Request, err error) {
		slog.Warn("upstream proxy error", "path", req.URL.Path, "error", err.Error())
		w.WriteHeader(http.StatusBadGateway)
	}
	r.NoRoute(func(ctx *gin.Context) {
		proxy.ServeHTTP(ctx.Writer, ctx.Request)
	})

	slog.Info("api listening", "port", cfg.Port, "started_at", time.Now().Format(time.RFC3339))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
