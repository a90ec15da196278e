package tracking

import (
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

var botPatterns = []string{
	"bot", "crawler", "spider", "slurp", "googlebot", "bingbot",
	"yahoo", "baidu", "yandex", "preview", "proxy", "scanner",
}

// Handler serves the tracking endpoints the rewritten URLs point at.
// It records nothing itself; events go onto the queue and the consumer
// persists them, so a slow database never delays a pixel or redirect.
type Handler struct {
	pub *Publisher
}

func NewHandler(pub *Publisher) *Handler {
	return &Handler{pub: pub}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/track/open/{sendID}", h.HandleOpen)
	r.Get("/track/click/{sendID}", h.HandleClick)
	r.Get("/health", h.HandleHealth)
	return r
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	sendID := chi.URLParam(r, "sendID")
	if _, err := uuid.Parse(sendID); err != nil {
		h.servePixel(w)
		return
	}

	if !isBot(r.UserAgent()) {
		h.pub.Publish(r.Context(), Event{
			EventType: EventOpen,
			SendID:    sendID,
			IPAddress: realIP(r),
			UserAgent: r.UserAgent(),
			Timestamp: time.Now().UTC(),
		})
		log.Printf("OPEN send=%s", sendID)
	}

	h.servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	sendID := chi.URLParam(r, "sendID")
	rawDest := r.URL.Query().Get("url")
	if rawDest == "" {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	// Only http(s) destinations are redirected; anything else is a
	// malformed or hostile link.
	dest, err := url.Parse(rawDest)
	if err != nil || (dest.Scheme != "http" && dest.Scheme != "https") {
		http.Error(w, "bad link", http.StatusBadRequest)
		return
	}

	if _, err := uuid.Parse(sendID); err == nil && !isBot(r.UserAgent()) {
		h.pub.Publish(r.Context(), Event{
			EventType: EventClick,
			SendID:    sendID,
			LinkURL:   rawDest,
			IPAddress: realIP(r),
			UserAgent: r.UserAgent(),
			Timestamp: time.Now().UTC(),
		})
		log.Printf("CLICK send=%s url=%s", sendID, rawDest)
	}

	http.Redirect(w, r, rawDest, http.StatusFound)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Write(pixelGIF)
}

func isBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}

func realIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
