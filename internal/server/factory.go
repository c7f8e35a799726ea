package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matheuscscp/jwks-fixture/internal/config"
	"github.com/matheuscscp/jwks-fixture/internal/issuer"
	"github.com/matheuscscp/jwks-fixture/internal/keystore"
)

func New(conf *config.Config) (*http.Server, error) {
	return newWithRegistry(conf, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

func newWithRegistry(conf *config.Config,
	promRegisterer prometheus.Registerer, promGatherer prometheus.Gatherer) (*http.Server, error) {

	ks := keystore.New(conf.Keys)
	if conf.Keys.Prime {
		if _, err := ks.SelectSigningKey(false); err != nil {
			return nil, fmt.Errorf("failed to generate initial signing key: %w", err)
		}
	}
	if err := promRegisterer.Register(ks); err != nil {
		return nil, fmt.Errorf("failed to register key store metrics: %w", err)
	}

	ti := issuer.New(ks, conf.Tokens)
	api := newAPI(ti, promRegisterer)
	return newServer(conf, api, promRegisterer, promGatherer), nil
}
