package main

import (
	"MediaVault/config"
	"MediaVault/internal/repo"
	"MediaVault/internal/service"
	"MediaVault/internal/storage"
	"MediaVault/router"
)

// main initializes services and starts the HTTP server.
func main() {
	config.InitConfig()
	repo.InitMysql()
	repo.InitRedis()
	storage.InitStorage()
	service.InitChunkSessions()

	router := router.InitRouter()

	router.Run(":8000")
}
