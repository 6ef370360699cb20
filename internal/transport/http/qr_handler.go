package http

import (
	"bytes"
	"net/http"

	"anthem-kiosk/internal/app"
	"go.uber.org/zap"
)

// QRHandler streams the current job's QR code to the panel so the
// download carries the kiosk filename instead of the backend's.
type QRHandler struct {
	engine *app.Engine
	log    *zap.Logger
}

func NewQRHandler(engine *app.Engine, log *zap.Logger) *QRHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &QRHandler{engine: engine, log: log}
}

func (h *QRHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.engine.DownloadQRCode(r.Context(), &buf); err != nil {
		h.log.Warn("qr download failed", zap.Error(err))
		http.Error(w, "qr code unavailable", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="`+h.engine.QRFilename()+`"`)
	_, _ = w.Write(buf.Bytes())
}
