package config

import (
	"os"
	"strconv"
	"time"
)

// Server holds the ingress service settings.
type Server struct {
	ListenAddr string
	RedisAddr  string // empty disables the Redis mirror
}

// Agent holds the acquisition agent settings.
type Agent struct {
	EstimatorURL  string
	RobotURL      string
	ControlAddr   string
	CameraDevice  int
	FrameInterval time.Duration
	MMPerPixel    float64 // 0 means no client-side scale configured
}

// LoadServer reads server settings from the environment.
func LoadServer() *Server {
	return &Server{
		ListenAddr: getEnv("LISTEN_ADDR", ":4000"),
		RedisAddr:  os.Getenv("REDIS_ADDR"),
	}
}

// LoadAgent reads agent settings from the environment.
func LoadAgent() *Agent {
	return &Agent{
		EstimatorURL:  getEnv("ESTIMATOR_URL", "http://localhost:8000"),
		RobotURL:      getEnv("ROBOT_URL", "http://localhost:4000"),
		ControlAddr:   getEnv("CONTROL_ADDR", ":7070"),
		CameraDevice:  getEnvInt("CAMERA_DEVICE", 0),
		FrameInterval: time.Duration(getEnvInt("FRAME_INTERVAL_MS", 250)) * time.Millisecond,
		MMPerPixel:    getEnvFloat("MM_PER_PX", 0),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
