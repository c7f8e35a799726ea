package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matheuscscp/jwks-fixture/internal/constants"
	"github.com/matheuscscp/jwks-fixture/internal/issuer"
	"github.com/matheuscscp/jwks-fixture/internal/jwks"
	"github.com/matheuscscp/jwks-fixture/internal/logging"
)

const (
	// Discovery document with the currently valid public keys.
	pathJWKS = "/.well-known/jwks.json"

	// Token endpoint. Any request body and unknown query parameters are ignored.
	pathAuth = "/auth"
)

type tokenResponse struct {
	Token string `json:"token"`
}

func newAPI(ti issuer.Issuer, promRegisterer prometheus.Registerer) http.Handler {
	tokensIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "jwks_fixture_tokens_issued_total",
		Help: "Number of tokens issued",
	}, []string{"expired"})
	promRegisterer.MustRegister(tokensIssued)

	mux := http.NewServeMux()

	mux.HandleFunc("GET "+pathJWKS, func(w http.ResponseWriter, r *http.Request) {
		keys, err := ti.ListPublishableKeys()
		if err != nil {
			logging.FromRequest(r).WithError(err).Error("failed to list publishable keys")
			http.Error(w, "Failed to list keys", http.StatusInternalServerError)
			return
		}
		respondJSON(w, r, http.StatusOK, jwks.NewSet(keys))
	})

	mux.HandleFunc("POST "+pathAuth, func(w http.ResponseWriter, r *http.Request) {
		l := logging.FromRequest(r)

		wantExpired := expiredRequested(r)
		token, err := ti.IssueToken(wantExpired)
		if err != nil {
			l.WithError(err).Error("failed to issue token")
			http.Error(w, "Failed to issue token", http.StatusInternalServerError)
			return
		}
		tokensIssued.WithLabelValues(strconv.FormatBool(wantExpired)).Inc()

		respondJSON(w, r, http.StatusOK, &tokenResponse{Token: token})
	})

	return mux
}

func expiredRequested(r *http.Request) bool {
	return r.URL.Query().Has(constants.QueryParamExpired)
}
