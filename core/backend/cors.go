// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net/http"

	"github.com/gorilla/handlers"

	"github.com/relabs-tech/restmodel/core/logger"
)

func (b *Backend) handleCORS() {

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"POST", "GET", "OPTIONS", "PUT", "DELETE", "PATCH", "HEAD"}),
		handlers.AllowedHeaders([]string{"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "X-Request-Id"}),
		handlers.ExposedHeaders([]string{"Pagination-Limit", "Pagination-Total-Count", "Pagination-Page-Count", "Pagination-Current-Page", "X-Request-Id"}),
		handlers.MaxAge(86400), // 24 hours
	)

	corsMiddleware := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, " (handled by CORS middleware)")
			}
			cors(h).ServeHTTP(w, r)
		})
	}
	b.router.Use(corsMiddleware)
	// mux only runs middlewares for matched routes, preflight requests need their own
	b.router.Methods(http.MethodOptions).Handler(cors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
}
