package config

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/gofrs/uuid"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const defaultLogDir = ".l_g"

var InstanceId string

// LoadEnv reads ./.env when present. Deployed services get their variables from the
// environment, so a missing file is only logged.
func LoadEnv(service string) {
	log.WithField("service", service).Info("loading configuration and env variables")
	if err := godotenv.Load("./.env"); err != nil {
		log.Warnf("no .env file loaded: %v", err)
		return
	}

	log.Info(".env file loaded")
}

// CreateUniqueInstance tags this process so several workers of one service can
// share a log folder and a queue group.
func CreateUniqueInstance(service string) string {
	id, err := uuid.NewV4()
	if err != nil {
		log.Fatalf("error generating instance id: %s", err)
	}
	InstanceId = id.String()
	log.WithField("instance", InstanceId).Infof("%s service instance ready", service)
	return InstanceId
}

func GetInstanceId() string {
	return InstanceId
}

// CORS allows the dApp origins. An empty list falls back to the local dev server.
func CORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// Logging sends logrus output to <LOG_DIR>/<service>.log (default .l_g).
// LOG_LEVEL overrides the info default and LOG_FORMAT=json switches formatter.
func Logging(service string) {
	log.SetFormatter(Formatter(os.Getenv("LOG_FORMAT")))
	log.SetLevel(ParseLevel(os.Getenv("LOG_LEVEL")))

	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = defaultLogDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warnf("unable to create log folder, logging to stderr: %s", err)
		return
	}

	file, err := os.OpenFile(filepath.Join(dir, service+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Fatal("failed to open log file: ", err)
	}
	log.SetOutput(file)

	log.Infof("log to file started for service: %s", service)
}

func Formatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{}
	}
	return &log.TextFormatter{}
}

func ParseLevel(s string) log.Level {
	if s == "" {
		return log.InfoLevel
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		log.Warnf("invalid LOG_LEVEL %q, using info", s)
		return log.InfoLevel
	}
	return lvl
}

// CustomLoggerMiddleware writes one access log entry per request.
func CustomLoggerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				entry := log.WithFields(log.Fields{
					"method":   r.Method,
					"uri":      r.RequestURI,
					"remote":   r.RemoteAddr,
					"status":   ww.Status(),
					"bytes":    ww.BytesWritten(),
					"duration": time.Since(start).String(),
				})
				if reqID := middleware.GetReqID(r.Context()); reqID != "" {
					entry = entry.WithField("request_id", reqID)
				}
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn(http.StatusText(ww.Status()))
					return
				}
				entry.Info(http.StatusText(ww.Status()))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
