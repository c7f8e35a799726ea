package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/matheuscscp/jwks-fixture/internal/config"
)

func TestServer(t *testing.T) {
	t.Run("health endpoints", func(t *testing.T) {
		apiCalled := false
		api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalled = true
			w.WriteHeader(http.StatusOK)
		})

		conf := &config.Config{Server: config.ServerConfig{Addr: ":8080"}}
		registry := prometheus.NewRegistry()
		server := newServer(conf, api, registry, registry)

		for _, path := range []string{"/readyz", "/healthz"} {
			t.Run(path, func(t *testing.T) {
				g := NewWithT(t)
				apiCalled = false
				req := httptest.NewRequest(http.MethodGet, path, nil)
				rec := httptest.NewRecorder()

				server.Handler.ServeHTTP(rec, req)

				g.Expect(rec.Code).To(Equal(http.StatusOK))
				g.Expect(apiCalled).To(BeFalse())
			})
		}
	})

	t.Run("API routing", func(t *testing.T) {
		g := NewWithT(t)

		apiCalled := false
		api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalled = true
			w.WriteHeader(http.StatusTeapot)
		})

		conf := &config.Config{Server: config.ServerConfig{Addr: ":8080"}}
		registry := prometheus.NewRegistry()
		server := newServer(conf, api, registry, registry)

		req := httptest.NewRequest(http.MethodPost, pathAuth, nil)
		rec := httptest.NewRecorder()

		server.Handler.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusTeapot))
		g.Expect(apiCalled).To(BeTrue())
	})

	t.Run("CORS enabled", func(t *testing.T) {
		api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		conf := &config.Config{Server: config.ServerConfig{Addr: ":8080", CORS: true}}
		registry := prometheus.NewRegistry()
		server := newServer(conf, api, registry, registry)

		tests := []struct {
			name            string
			method          string
			origin          string
			requestHeaders  string
			expectedStatus  int
			expectedOrigin  string
			expectedHeaders string
		}{
			{
				name:            "OPTIONS preflight with origin",
				method:          http.MethodOptions,
				origin:          "https://example.com",
				requestHeaders:  "Content-Type,Authorization",
				expectedStatus:  http.StatusNoContent,
				expectedOrigin:  "https://example.com",
				expectedHeaders: "Content-Type,Authorization",
			},
			{
				name:           "POST request with origin",
				method:         http.MethodPost,
				origin:         "https://app.example.com",
				expectedStatus: http.StatusOK,
				expectedOrigin: "https://app.example.com",
			},
			{
				name:           "request without origin",
				method:         http.MethodGet,
				expectedStatus: http.StatusOK,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g := NewWithT(t)

				req := httptest.NewRequest(tt.method, pathAuth, nil)
				if tt.origin != "" {
					req.Header.Set("Origin", tt.origin)
				}
				if tt.requestHeaders != "" {
					req.Header.Set("Access-Control-Request-Headers", tt.requestHeaders)
				}
				rec := httptest.NewRecorder()

				server.Handler.ServeHTTP(rec, req)

				g.Expect(rec.Code).To(Equal(tt.expectedStatus))
				g.Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
				g.Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(Equal("GET,POST,OPTIONS"))
				g.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal(tt.expectedOrigin))
				g.Expect(rec.Header().Get("Access-Control-Allow-Headers")).To(Equal(tt.expectedHeaders))
				if tt.expectedOrigin != "" {
					g.Expect(rec.Header().Get("Vary")).To(Equal("Origin"))
				} else {
					g.Expect(rec.Header().Get("Vary")).To(BeEmpty())
				}
			})
		}
	})

	t.Run("CORS disabled", func(t *testing.T) {
		g := NewWithT(t)

		api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		conf := &config.Config{Server: config.ServerConfig{Addr: ":8080"}}
		registry := prometheus.NewRegistry()
		server := newServer(conf, api, registry, registry)

		req := httptest.NewRequest(http.MethodGet, pathJWKS, nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()

		server.Handler.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusOK))
		g.Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
		g.Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())
		g.Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(BeEmpty())
	})

	t.Run("metrics collection", func(t *testing.T) {
		g := NewWithT(t)

		api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		conf := &config.Config{Server: config.ServerConfig{Addr: ":8080"}}
		registry := prometheus.NewRegistry()
		server := newServer(conf, api, registry, registry)

		req := httptest.NewRequest(http.MethodPost, pathAuth, nil)
		req.Host = "example.com"
		rec := httptest.NewRecorder()

		server.Handler.ServeHTTP(rec, req)
		g.Expect(rec.Code).To(Equal(http.StatusInternalServerError))

		metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		metricsRec := httptest.NewRecorder()

		server.Handler.ServeHTTP(metricsRec, metricsReq)
		g.Expect(metricsRec.Code).To(Equal(http.StatusOK))

		metricsBody := metricsRec.Body.String()
		g.Expect(metricsBody).To(ContainSubstring("http_request_duration_seconds"))
		g.Expect(metricsBody).To(ContainSubstring("host=\"example.com\""))
		g.Expect(metricsBody).To(ContainSubstring("method=\"POST\""))
		g.Expect(metricsBody).To(ContainSubstring("path=\"/auth\""))
		g.Expect(metricsBody).To(ContainSubstring("status=\"500\""))
	})

	t.Run("key store metrics", func(t *testing.T) {
		g := NewWithT(t)

		conf := &config.Config{Keys: config.KeysConfig{Prime: true}}
		g.Expect(conf.ValidateAndInitialize()).To(Succeed())

		registry := prometheus.NewRegistry()
		server, err := newWithRegistry(conf, registry, registry)
		g.Expect(err).ToNot(HaveOccurred())

		postAuth(g, server.Handler, pathAuth+"?expired")

		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()
		server.Handler.ServeHTTP(rec, req)

		g.Expect(rec.Code).To(Equal(http.StatusOK))
		body := rec.Body.String()
		g.Expect(body).To(ContainSubstring(`jwks_fixture_keys{validity="valid"} 1`))
		g.Expect(body).To(ContainSubstring(`jwks_fixture_keys{validity="expired"} 1`))
		g.Expect(body).To(ContainSubstring(`jwks_fixture_keys_generated_total{validity="valid"} 1`))
		g.Expect(body).To(ContainSubstring(`jwks_fixture_tokens_issued_total{expired="true"} 1`))
	})
}
