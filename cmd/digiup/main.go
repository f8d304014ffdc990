package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/digiup/backend/app/controllers"
	"github.com/digiup/backend/app/repository"
	"github.com/digiup/backend/internal/pkg/cache"
	"github.com/digiup/backend/internal/pkg/creatorup"
	"github.com/digiup/backend/internal/pkg/creatorupsync"
	"github.com/digiup/backend/internal/pkg/database"
	"github.com/digiup/backend/internal/pkg/env"
	"github.com/digiup/backend/internal/pkg/jobqueue"
	"github.com/digiup/backend/internal/pkg/router"
)

func main() {
	app, queue, manager := NewApplication()

	// Shut the HTTP surface down first so no new jobs arrive while the
	// workers drain.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Shutting down...")
		if err := app.Shutdown(); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Printf("Server stopped: %v", err)
	}

	manager.Stop()
	queue.Stop()
}

func NewApplication() (*fiber.App, *jobqueue.Queue, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	db := database.GetDB()
	repository.InitializeFactory(db)
	repos := repository.GetGlobalRepositories()

	client := creatorup.NewClient()

	workers := 5
	if v, err := strconv.Atoi(env.GetEnv("SYNC_WORKER_CONCURRENCY", "5")); err == nil && v > 0 {
		workers = v
	}
	processor := jobqueue.NewSyncProcessor(repos.User, repos.SyncEvent, repos.Usage, client)
	queue := jobqueue.NewQueue(cache.GetClient(), processor, workers)

	svc := creatorupsync.NewService(queue, queue, repos, client, db)
	ingestor := creatorupsync.NewWebhookIngestor(client.WebhookSecret(), repos)
	controllers.SetServices(svc, ingestor, client)

	manager := jobqueue.NewManager(queue, svc)
	queue.Start()
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "digiup-backend",
	})

	app.Use(recover.New(), logger.New())

	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "admin"),
		},
	}), monitor.New())

	router.InstallRouter(app)

	return app, queue, manager
}
