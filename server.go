package wsiview

import (
	"net/http"
	"os"

	"github.com/golang/groupcache"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wsiview/wsiview/cache"
)

// MakeRouter constructs the basic router (no middlewares).
func MakeRouter() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", IndexHandler).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.HandleFunc("/image/{path:.*}/info", InfoHandler).Methods("GET")
	router.HandleFunc("/image/{path:.*}/annotation/mask{extension:(?:\\.[a-zA-Z]+)?}",
		MaskHandler).Methods("POST")
	router.HandleFunc("/image/{path:.*}/annotation/crop{extension:(?:\\.[a-zA-Z]+)?}",
		CropHandler).Methods("POST")
	router.HandleFunc("/image/{path:.*}/annotation/drawing{extension:(?:\\.[a-zA-Z]+)?}",
		DrawingHandler).Methods("POST")

	router.Use(PrometheusMiddleware)

	return router
}

// NewServer assembles the middleware stack around the router: the
// plane cache, the configuration and access logging. When peers are
// configured the plane cache joins a groupcache pool over HTTP.
func NewServer(config *Config) http.Handler {
	if len(config.Cache.Peers) > 0 {
		pool := groupcache.NewHTTPPool(config.Cache.Peers[0])
		pool.Set(config.Cache.Peers...)
	}

	planes := cache.New("planes", config.Cache.PlanesSize, config.Images)

	handler := MakeRouter()
	handler = WithFileCache(handler, planes)
	handler = WithConfig(handler, config)
	return handlers.CombinedLoggingHandler(os.Stdout, handler)
}
