package server

import (
	"sort"
	"strings"
)

// Route describes one registered route.
type Route struct {
	Method  string
	Path    string
	Handler string
	// System marks probe routes such as /healthz.
	System bool
}

// Routes lists the registered routes: API routes first by path, then system
// routes.
func (s *Server) Routes() []Route {
	info := s.engine.Routes()
	out := make([]Route, 0, len(info))
	for _, r := range info {
		out = append(out, Route{
			Method:  r.Method,
			Path:    r.Path,
			Handler: handlerName(r.Handler),
			System:  isSystemPath(r.Path),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].System != out[j].System {
			return !out[i].System
		}
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return methodOrder(out[i].Method) < methodOrder(out[j].Method)
	})
	return out
}

func isSystemPath(path string) bool {
	return path == "/healthz"
}

// handlerName shortens Gin's handler path:
//
//	github.com/kbukum/sttkit/server.(*Handler).transcribe-fm -> Handler.transcribe
func handlerName(full string) string {
	name := strings.TrimSuffix(full, "-fm")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.NewReplacer("(*", "", ")", "").Replace(name)

	// Drop the package prefix.
	if pkg, rest, ok := strings.Cut(name, "."); ok && rest != "" && strings.ToLower(pkg) == pkg {
		name = rest
	}
	return name
}

func methodOrder(method string) int {
	switch method {
	case "GET":
		return 0
	case "POST":
		return 1
	case "PUT":
		return 2
	case "PATCH":
		return 3
	case "DELETE":
		return 4
	default:
		return 5
	}
}
