package router

import (
	"net/http"

	"tecnoroute/internal/handlers"
	"tecnoroute/internal/middleware"
	"tecnoroute/internal/models"
	"tecnoroute/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	RateLimit float64
	RateBurst int
}

const idPattern = "{id:[0-9]+}"

func SetupRouter(svc *services.Container, opts Options, logger zerolog.Logger) *mux.Router {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Auth, logger)
	userHandler := handlers.NewUserHandler(svc.Users, logger)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog, logger)
	cartHandler := handlers.NewCartHandler(svc.Carts, logger)
	orderHandler := handlers.NewOrderHandler(svc.Orders, logger)
	logisticsHandler := handlers.NewLogisticsHandler(svc.Logistics, logger)

	r := mux.NewRouter()

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.PerformanceMonitoring(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	if opts.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
		r.Use(rateLimiter.Middleware())
	}
	r.Use(middleware.RequestValidation())

	api := r.PathPrefix("/api").Subrouter()
	authenticate := middleware.Authentication(svc.Auth, logger)
	adminOnly := middleware.RequireRole(string(models.RoleAdmin))

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/register/", authHandler.Register).Methods("POST")
	auth.HandleFunc("/login/", authHandler.Login).Methods("POST")

	protectedAuth := auth.PathPrefix("").Subrouter()
	protectedAuth.Use(authenticate)
	protectedAuth.HandleFunc("/refresh/", authHandler.Refresh).Methods("POST")
	protectedAuth.HandleFunc("/user/", userHandler.GetMe).Methods("GET")

	api.HandleFunc("/productos/", catalogHandler.ListProducts).Methods("GET")
	api.HandleFunc("/productos/"+idPattern+"/", catalogHandler.GetProduct).Methods("GET")
	api.HandleFunc("/categorias/", catalogHandler.ListCategories).Methods("GET")

	cart := api.PathPrefix("/carrito").Subrouter()
	cart.Use(authenticate)
	cart.HandleFunc("/", cartHandler.GetCart).Methods("GET")
	cart.HandleFunc("/", cartHandler.AddItem).Methods("POST")
	cart.HandleFunc("/limpiar/", cartHandler.Clear).Methods("DELETE", "POST")
	cart.HandleFunc("/"+idPattern+"/", cartHandler.UpdateItem).Methods("PATCH", "PUT")
	cart.HandleFunc("/"+idPattern+"/", cartHandler.RemoveItem).Methods("DELETE")

	orders := api.PathPrefix("/pedidos").Subrouter()
	orders.Use(authenticate)
	orders.HandleFunc("/", orderHandler.List).Methods("GET")
	orders.HandleFunc("/", orderHandler.Create).Methods("POST")
	orders.HandleFunc("/estadisticas/", orderHandler.Stats).Methods("GET")
	orders.HandleFunc("/recientes/", orderHandler.Recent).Methods("GET")
	orders.HandleFunc("/"+idPattern+"/", orderHandler.Get).Methods("GET")
	orders.HandleFunc("/"+idPattern+"/", orderHandler.Update).Methods("PATCH", "PUT")
	orders.HandleFunc("/"+idPattern+"/", orderHandler.Delete).Methods("DELETE")
	orders.HandleFunc("/"+idPattern+"/cambiar_estado/", orderHandler.ChangeStatus).Methods("PATCH", "POST")

	drivers := api.PathPrefix("/conductores").Subrouter()
	drivers.Use(authenticate)
	drivers.Handle("/perfil/", middleware.RequireRole(string(models.RoleDriver))(http.HandlerFunc(logisticsHandler.DriverProfile))).Methods("GET")
	drivers.Handle("/disponibles/", adminOnly(http.HandlerFunc(logisticsHandler.AvailableDrivers))).Methods("GET")
	mountResource(drivers, handlers.NewResourceHandler(svc.Logistics.Drivers, logger), adminOnly)

	vehicles := api.PathPrefix("/vehiculos").Subrouter()
	vehicles.Use(authenticate, adminOnly)
	vehicles.HandleFunc("/disponibles/", logisticsHandler.AvailableVehicles).Methods("GET")
	mountResource(vehicles, handlers.NewResourceHandler(svc.Logistics.Vehicles, logger), nil)

	routes := api.PathPrefix("/rutas").Subrouter()
	routes.Use(authenticate, adminOnly)
	routes.HandleFunc("/activas/", logisticsHandler.ActiveRoutes).Methods("GET")
	mountResource(routes, handlers.NewResourceHandler(svc.Logistics.Routes, logger), nil)

	clients := api.PathPrefix("/clientes").Subrouter()
	clients.Use(authenticate, adminOnly)
	mountResource(clients, handlers.NewResourceHandler(svc.Logistics.Clients, logger), nil)

	shipments := api.PathPrefix("/envios").Subrouter()
	shipments.Use(authenticate)
	shipments.HandleFunc("/buscar_por_guia/", logisticsHandler.FindShipment).Methods("GET")
	shipments.Handle("/"+idPattern+"/cambiar_estado/", adminOnly(http.HandlerFunc(logisticsHandler.ChangeShipmentStatus))).Methods("PATCH", "POST")
	mountResource(shipments, handlers.NewResourceHandler(svc.Logistics.Shipments, logger), adminOnly)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

// mountResource registers list/detail CRUD on sub, optionally gated by guard.
func mountResource[T any](sub *mux.Router, h *handlers.ResourceHandler[T], guard func(http.Handler) http.Handler) {
	wrap := func(f http.HandlerFunc) http.Handler {
		if guard == nil {
			return f
		}
		return guard(f)
	}
	sub.Handle("/", wrap(h.List)).Methods("GET")
	sub.Handle("/", wrap(h.Create)).Methods("POST")
	sub.Handle("/"+idPattern+"/", wrap(h.Get)).Methods("GET")
	sub.Handle("/"+idPattern+"/", wrap(h.Update)).Methods("PATCH", "PUT")
	sub.Handle("/"+idPattern+"/", wrap(h.Delete)).Methods("DELETE")
}
