package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Status is the admin view of a running instrument.
type Status struct {
	Instrument string    `json:"instrument"`
	State      string    `json:"state"`
	Controller string    `json:"controller,omitempty"`
	LocalAddr  string    `json:"local_addr"`
	Received   uint64    `json:"received"`
	Dropped    uint64    `json:"dropped"`
	Notes      uint64    `json:"notes"`
	Started    time.Time `json:"started"`
}

type StatusSource interface {
	Status() Status
}

func NewAdminRouter(src StatusSource) *gin.Engine {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	st := src.Status()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(ComponentLogger("admin", st.Instrument)))
	r.Use(RequestMetricsMiddleware(st.Instrument))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"instrument": st.Instrument,
			"uptime":     time.Since(st.Started).Round(time.Millisecond).String(),
		})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status())
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// AdminServer serves an admin handler until its context ends.
type AdminServer struct {
	srv *http.Server
	ln  net.Listener
}

func ListenAdmin(addr string, h http.Handler) (*AdminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("observability: admin listen %s: %w", addr, err)
	}
	return &AdminServer{
		srv: &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

func (a *AdminServer) Addr() net.Addr {
	return a.ln.Addr()
}

// Serve blocks until ctx is done, then shuts the server down.
func (a *AdminServer) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Serve(a.ln)
	}()
	log.Info().Str("addr", a.ln.Addr().String()).Msg("observability.AdminServer listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
