package main

import (
	"context"
	"log"
	"strconv"
	"time"

	"tareahub/config"
	"tareahub/controllers"
	"tareahub/db"
	"tareahub/internal/completion"
	"tareahub/middlewares"
	"tareahub/routes"
	"tareahub/services"
	"tareahub/utils"
	"tareahub/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	cfg, err := config.LoadConfig("./config/config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	database, err := db.Connect(ctx, cfg.Database.URI)
	cancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	log.Println("Connected to MongoDB")
	defer database.Close(context.Background())

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := database.EnsureIndexes(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to create indexes: %v", err)
	}
	cancel()

	users := db.NewUserStore(database)
	tasks := db.NewTaskStore(database)
	streaks := db.NewStreakStore(database)
	achievements := db.NewAchievementStore(database)

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := utils.SeedAchievements(ctx, achievements); err != nil {
		cancel()
		log.Fatalf("Failed to seed achievements: %v", err)
	}
	cancel()

	loc, err := time.LoadLocation(cfg.Streaks.Timezone)
	if err != nil {
		log.Fatalf("Invalid streak timezone %q: %v", cfg.Streaks.Timezone, err)
	}

	hub := websocket.NewHub()
	gamification := services.NewGamificationService(streaks, achievements, achievements, tasks, services.NewDayClock(loc), hub)

	handle := func(ctx context.Context, ev completion.Event) error {
		userID, err := primitive.ObjectIDFromHex(ev.UserID)
		if err != nil {
			log.Printf("Dropping completion event with bad user id %q: %v", ev.UserID, err)
			return nil
		}
		_, err = gamification.OnTaskCompleted(ctx, userID, time.Unix(ev.CompletedAt, 0))
		return err
	}

	var publisher completion.Publisher
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Connected to Redis; completion events go through the stream")

		publisher = completion.NewRedisPublisher(rdb)
		consumer := completion.NewConsumer(rdb, handle)
		go func() {
			if err := consumer.Start(context.Background()); err != nil {
				log.Printf("Completion consumer stopped: %v", err)
			}
		}()
	} else {
		publisher = completion.NewDirectPublisher(handle)
	}

	authController := controllers.NewAuthController(users, cfg)
	taskController := controllers.NewTaskController(tasks, publisher)
	gamificationController := controllers.NewGamificationController(gamification)
	profileController := controllers.NewProfileController(users, gamification)

	router := setupRouter(cfg, authController, taskController, gamificationController, profileController, hub)
	port := strconv.Itoa(cfg.Server.Port)
	log.Printf("Server starting on port %s", port)

	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupRouter(cfg *config.Config, auth *controllers.AuthController, tasks *controllers.TaskController, gamification *controllers.GamificationController, profile *controllers.ProfileController, hub *websocket.Hub) *gin.Engine {
	router := gin.Default()

	router.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:8081", "http://localhost:19006"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	routes.SetupAuthRoutes(router, auth)

	protected := router.Group("/")
	protected.Use(middlewares.AuthMiddleware(cfg.JWT.Secret))
	{
		routes.SetupTaskRoutes(protected, tasks, gamification)
		routes.SetupGamificationRoutes(protected, gamification, profile, hub)
	}

	return router
}
