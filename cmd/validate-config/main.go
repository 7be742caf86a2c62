package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/vladimiradmaev/tacticmap/internal/config"
)

func main() {
	fmt.Println("🔍 Validando configuración...")

	if err := godotenv.Load(); err != nil {
		fmt.Printf("⚠️  archivo .env no encontrado: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Configuración inválida:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("✅ Configuración válida")
	fmt.Printf("📋 Detalles:\n")
	fmt.Printf("  - Telegram Token: %s\n", maskToken(cfg.TelegramToken))
	fmt.Printf("  - Auth Mode: %s\n", cfg.AuthMode)
	fmt.Printf("  - Demo Lesion: %t\n", cfg.DemoLesion)
	fmt.Printf("  - Storage Backend: %s\n", cfg.Storage.Backend)
	fmt.Printf("  - Storage Namespace: %s\n", cfg.Storage.Namespace)

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		fmt.Printf("  - DB Host: %s\n", cfg.DB.Host)
		fmt.Printf("  - DB Port: %s\n", cfg.DB.Port)
		fmt.Printf("  - DB User: %s\n", cfg.DB.User)
		fmt.Printf("  - DB Password: %s\n", maskToken(cfg.DB.Password))
		fmt.Printf("  - DB Name: %s\n", cfg.DB.DBName)
	case config.BackendRedis:
		fmt.Printf("  - Redis Addr: %s:%s\n", cfg.Redis.Host, cfg.Redis.Port)
		fmt.Printf("  - Redis Password: %s\n", maskToken(cfg.Redis.Password))
		fmt.Printf("  - Redis TTL: %v\n", cfg.Redis.TTL)
	}

	fmt.Printf("  - Login Delay: %v\n", cfg.Delays.Login)
	fmt.Printf("  - BLE Scan Delay: %v\n", cfg.Delays.BLEScan)
	fmt.Printf("  - BLE Connect Delay: %v\n", cfg.Delays.BLEConnect)
	fmt.Printf("  - Stream Tick: %v\n", cfg.Delays.StreamTick)
	fmt.Printf("  - Log Level: %v\n", cfg.Logger.Level)
	fmt.Printf("  - Log Output: %s\n", cfg.Logger.OutputPath)
	fmt.Printf("  - Log Format: %s\n", cfg.Logger.Format)

	if err := cfg.RequireBotToken(); err != nil {
		fmt.Printf("⚠️  %v (necesario para iniciar el bot)\n", err)
	}
}

func maskToken(token string) string {
	if token == "" {
		return "<no definido>"
	}
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
