package httpserver

import "net/http"

// Routes groups HTTP handlers.
type Routes struct {
	ManualSettle   http.Handler
	History        http.HandlerFunc
	Estimate       http.HandlerFunc
	ConfirmSettle  http.Handler
	Health         http.HandlerFunc
	AuthMiddleware func(http.Handler) http.Handler
}

// NewRouter registers service endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()

	authed := func(h http.Handler) http.Handler {
		if routes.AuthMiddleware != nil {
			return routes.AuthMiddleware(h)
		}
		return h
	}

	if routes.ManualSettle != nil {
		mux.Handle("/settlements/settle", method(http.MethodPost, authed(routes.ManualSettle).ServeHTTP))
	}
	if routes.History != nil {
		mux.Handle("/settlements", method(http.MethodGet, authed(routes.History).ServeHTTP))
	}
	if routes.Estimate != nil {
		mux.Handle("/settlements/estimate", method(http.MethodGet, authed(routes.Estimate).ServeHTTP))
	}
	if routes.ConfirmSettle != nil {
		mux.Handle("/internal/settlements/confirm", method(http.MethodPost, routes.ConfirmSettle.ServeHTTP))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
