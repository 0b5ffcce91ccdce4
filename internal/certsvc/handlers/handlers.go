package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/avvvet/certify-services/internal/certid"
	"github.com/avvvet/certify-services/internal/certsvc/service"
	"github.com/avvvet/certify-services/internal/certsvc/store"
	"github.com/avvvet/certify-services/internal/certsvc/ws"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/comm"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/avvvet/certify-services/internal/pinning"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Services groups what the routes call into.
type Services struct {
	Sessions      *service.SessionService
	Organizations *service.OrganizationService
	Certificates  *service.CertificateService
	Verify        *service.VerifyService
	Students      *service.StudentService
	Analytics     *service.AnalyticsService
	Batches       *service.BatchService
	Activity      *service.ActivityService
}

type Handler struct {
	svc       Services
	tokenAuth *jwtauth.JWTAuth
	jwtTTL    time.Duration
	upgrader  websocket.Upgrader
	ws        *ws.Ws
	workers   func() int
	now       func() time.Time
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func NewHandler(svc Services, tokenAuth *jwtauth.JWTAuth, jwtTTL time.Duration, s *ws.Ws, workers func() int) *Handler {
	return &Handler{
		svc:       svc,
		tokenAuth: tokenAuth,
		jwtTTL:    jwtTTL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ws:      s,
		workers: workers,
		now:     time.Now,
	}
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handler) ok(w http.ResponseWriter, message string, data interface{}) {
	h.CreateResponse(w, Response{Message: message, Code: http.StatusOK, Data: data})
}

// fail maps err to a status and writes the error envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		log.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Errorf("request failed: %v", err)
	}
	h.CreateResponse(w, Response{Message: http.StatusText(code), Code: code, Error: chain.Reason(err)})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.CreateResponse(w, Response{Message: http.StatusText(http.StatusBadRequest), Code: http.StatusBadRequest, Error: msg})
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, certid.ErrInvalidID),
		errors.Is(err, csvbatch.ErrNoDataRows),
		errors.Is(err, service.ErrNoValidRows):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNonceExpired):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, chain.ErrNoSigner):
		return http.StatusForbidden
	case errors.Is(err, service.ErrCertificateNotFound),
		errors.Is(err, store.ErrBatchNotFound),
		errors.Is(err, pinning.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrBatchState):
		return http.StatusConflict
	case errors.Is(err, chain.ErrReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pinning.ErrMissingCredentials):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	data := map[string]int{}
	if h.workers != nil {
		data["batchWorkers"] = h.workers()
	}
	if h.ws != nil {
		data["sockets"] = h.ws.Count()
	}
	h.ok(w, "cert service is running", data)
}

// HandleWebSocket streams batch progress to clients that sent a watch message.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade to WebSocket: %v", err)
		return
	}

	socketId := uuid.New().String()
	h.ws.StoreConnection(socketId, conn)

	log.Infof("New WebSocket connection established: %s", socketId)

	go h.handleConnection(conn, socketId)
}

func (h *Handler) handleConnection(conn *websocket.Conn, socketId string) {
	defer func() {
		log.Infof("Closing WebSocket connection: %s", socketId)
		conn.Close()
		h.ws.HandleDisconnect(socketId)
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("WebSocket unexpected close error for socket %s: %v", socketId, err)
			} else {
				log.Infof("WebSocket connection closed normally for socket: %s", socketId)
			}
			break
		}

		message := &comm.WSMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			log.Errorf("Failed to unmarshal message from socket %s: %v", socketId, err)
			h.sendErrorToClient(socketId, "Invalid message format")
			continue
		}

		log.Debugf("Received message from socket %s: type=%s", socketId, message.Type)
		h.ws.SocketMessage(socketId, message)
	}
}

func (h *Handler) sendErrorToClient(socketId, errorMsg string) {
	msg, err := comm.NewMessage(comm.TypeError, map[string]string{"error": errorMsg})
	if err != nil {
		return
	}
	if err := h.ws.Send(socketId, msg); err != nil {
		log.Errorf("Failed to send error message to client: %v", err)
	}
}
