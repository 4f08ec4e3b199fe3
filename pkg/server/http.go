package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"serialfic-monetization/pkg/config"

	"github.com/fsnotify/fsnotify"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ProvideHTTPServer = fx.Module("http.server",
	fx.Provide(NewHttpServer),
	fx.Invoke(Run),
)

type Server struct {
	server   *http.Server
	cert     atomic.Pointer[tls.Certificate]
	certPath string
	keyPath  string
	stop     chan struct{}
}

type Params struct {
	fx.In
	Config *config.Config
	Engine *gin.Engine
}

func NewHttpServer(p Params) (*Server, error) {
	cfg := p.Config
	srv := &Server{
		server: &http.Server{
			Addr:         ":" + cfg.Server.Addr,
			Handler:      p.Engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		},
		certPath: cfg.TLS.CertPath,
		keyPath:  cfg.TLS.KeyPath,
		stop:     make(chan struct{}),
	}

	if !cfg.TLS.Enable {
		return srv, nil
	}

	if err := srv.loadCert(); err != nil {
		return nil, fmt.Errorf("load TLS key pair: %w", err)
	}
	srv.server.TLSConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		GetCertificate: func(*tls.ClientHelloInfo) (*tls.Certificate, error) {
			return srv.cert.Load(), nil
		},
	}
	return srv, nil
}

func (s *Server) loadCert() error {
	cert, err := tls.LoadX509KeyPair(s.certPath, s.keyPath)
	if err != nil {
		return err
	}
	s.cert.Store(&cert)
	return nil
}

// watchCert swaps the certificate whenever the key pair is rewritten on
// disk. A failed reload keeps serving the previous certificate.
func (s *Server) watchCert() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		zap.L().Error("[HTTP] TLS hot reload disabled", zap.Error(err))
		return
	}
	defer watcher.Close()

	for _, path := range []string{s.certPath, s.keyPath} {
		if err := watcher.Add(path); err != nil {
			zap.L().Warn("[HTTP] cannot watch TLS file", zap.String("path", path), zap.Error(err))
		}
	}

	for {
		select {
		case <-s.stop:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.loadCert(); err != nil {
				zap.L().Error("[HTTP] TLS reload failed", zap.String("file", event.Name), zap.Error(err))
				continue
			}
			zap.L().Info("[HTTP] TLS certificate reloaded", zap.String("file", event.Name))
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			zap.L().Warn("[HTTP] TLS watcher error", zap.Error(err))
		}
	}
}

func Run(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			tlsOn := srv.server.TLSConfig != nil
			if tlsOn {
				go srv.watchCert()
			}

			go func() {
				zap.L().Info("[HTTP] listening", zap.String("addr", srv.server.Addr), zap.Bool("tls", tlsOn))

				var err error
				if tlsOn {
					err = srv.server.ListenAndServeTLS("", "")
				} else {
					err = srv.server.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					zap.L().Error("[HTTP] server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(srv.stop)
			zap.L().Info("[HTTP] draining connections")
			return srv.server.Shutdown(ctx)
		},
	})
}
