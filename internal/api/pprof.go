package api

import (
	"net/http/pprof"

	"github.com/gin-gonic/gin"
)

// mountPprof exposes the runtime profiles under g. Callers put it behind
// the API key; profiles leak memory contents.
func mountPprof(g *gin.RouterGroup) {
	d := g.Group("/debug/pprof")
	d.GET("/", gin.WrapF(pprof.Index))
	d.GET("/cmdline", gin.WrapF(pprof.Cmdline))
	d.GET("/profile", gin.WrapF(pprof.Profile))
	d.GET("/symbol", gin.WrapF(pprof.Symbol))
	d.POST("/symbol", gin.WrapF(pprof.Symbol))
	d.GET("/trace", gin.WrapF(pprof.Trace))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		d.GET("/"+name, gin.WrapH(pprof.Handler(name)))
	}
}
