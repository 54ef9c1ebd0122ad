package server

import (
	"net/http"

	"github.com/jrsteele09/go-magic-auth/auth"
)

const (
	RouteLogin        = "/api/login"
	RouteLoginApprove = auth.ApprovePath
	RouteLoginConfirm = "/api/login/confirm"
	RouteTokenRefresh = "/api/token/refresh"
	RouteLogout       = "/api/logout"
	RouteMe           = "/api/me"
)

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteFunc("GET "+RouteLoginApprove, ChainMiddleware(s.ApproveHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteLoginConfirm, ChainMiddleware(s.ConfirmHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteTokenRefresh, ChainMiddleware(s.RefreshHandler(), api...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), api...))
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), api...))

	// Method-qualified patterns never match OPTIONS, so preflights need
	// their own route into the CORS middleware.
	s.RegisterRouteFunc("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, api...))
}
