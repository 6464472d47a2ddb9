package providers

import (
	"deckpack/internal/structures"
	"net/http"
	"sort"
	"strings"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	GetRoutes() []structures.Route
	Handler() http.Handler
}

type RouterProvider struct {
	routes []structures.Route
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{Method: http.MethodGet, Url: url, Handler: handler})
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.routes = append(rp.routes, structures.Route{Method: http.MethodPost, Url: url, Handler: handler})
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	return rp.routes
}

// Handler mounts every registered route on a fresh mux. A path registered for
// several methods dispatches on the request method.
func (rp *RouterProvider) Handler() http.Handler {
	mux := http.NewServeMux()
	byURL := make(map[string]map[string]http.Handler)
	var order []string
	for _, route := range rp.routes {
		if _, seen := byURL[route.Url]; !seen {
			byURL[route.Url] = make(map[string]http.Handler)
			order = append(order, route.Url)
		}
		byURL[route.Url][route.Method] = route.Handler
	}
	for _, url := range order {
		mux.Handle(url, methodHandler(byURL[url]))
	}
	return mux
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{}
}

func methodHandler(handlers map[string]http.Handler) http.Handler {
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	allow := strings.Join(allowed, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := handlers[r.Method]
		if !ok {
			w.Header().Set("Allow", allow)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
