package bill

import (
	"crypto/subtle"
	"net/http"
)

// Server handles HTTP requests for bills
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="BillBuster"`)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/bills/{id}/image", s.requireAuth(s.handleGetBillImage))
	s.mux.HandleFunc("GET /api/bills/{id}/script", s.requireAuth(s.handleGetScript))
	s.mux.HandleFunc("POST /api/bills/{id}/script", s.requireAuth(s.handleGenerateScript))
	s.mux.HandleFunc("GET /api/bills/{id}", s.requireAuth(s.handleGetBill))
	s.mux.HandleFunc("DELETE /api/bills/{id}", s.requireAuth(s.handleDeleteBill))
	s.mux.HandleFunc("GET /api/bills", s.requireAuth(s.handleListBills))
	s.mux.HandleFunc("POST /api/bills", s.requireAuth(s.handleAnalyzeBill))

	s.mux.HandleFunc("GET /api/savings", s.requireAuth(s.handleSavings))
	s.mux.HandleFunc("GET /api/settings", s.requireAuth(s.handleGetSettings))
	s.mux.HandleFunc("PUT /api/settings", s.requireAuth(s.handleUpdateSettings))

	s.mux.HandleFunc("POST /api/keys/{provider}/validate", s.requireAuth(s.handleValidateKey))
	s.mux.HandleFunc("PUT /api/keys/{provider}", s.requireAuth(s.handleSetKey))
	s.mux.HandleFunc("DELETE /api/keys/{provider}", s.requireAuth(s.handleDeleteKey))
	s.mux.HandleFunc("GET /api/keys", s.requireAuth(s.handleKeyStatus))

	s.mux.HandleFunc("DELETE /api/data", s.requireAuth(s.handleDeleteAllData))
}

// ServeHTTP adds CORS headers, answers preflight requests and dispatches to the mux
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}
