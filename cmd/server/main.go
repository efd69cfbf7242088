package main

import (
	"github.com/eleven-am/zentoria-gateway/internal/bootstrap"
)

// @title Zentoria Gateway API
// @version 1.0.0
// @description Authentication, API key management and rate limiting for the Zentoria gateway

// @host api.zentoria.example.com
// @BasePath /v1

// @securityDefinitions.apikey APIKeyAuth
// @in header
// @name X-API-Key

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	bootstrap.Run()
}
