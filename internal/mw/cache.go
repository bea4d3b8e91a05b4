package mw

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// storedReply is a replayable snapshot of a successful GET response.
type storedReply struct {
	status int
	header http.Header
	body   []byte
}

// teeWriter mirrors everything written to the client into a buffer so the
// response can be stored after the handler runs.
type teeWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w teeWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w teeWriter) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated GET requests from memory for the given TTL. Entries
// are keyed per requester: dashboard aggregates differ between users, so a
// shared URI key would leak one user's numbers to another. Requests without
// an identity are passed through uncached.
func Cache(store *cache.Cache, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		requester := RequesterID(c)
		if c.Request.Method != http.MethodGet || requester == "" {
			c.Next()
			return
		}

		key := requester + "|" + c.Request.RequestURI
		if hit, ok := store.Get(key); ok {
			reply := hit.(storedReply)
			for k, v := range reply.header {
				c.Writer.Header()[k] = v
			}
			c.Writer.WriteHeader(reply.status)
			c.Writer.Write(reply.body)
			c.Abort()
			return
		}

		tee := &teeWriter{ResponseWriter: c.Writer, buf: bytes.NewBuffer(nil)}
		c.Writer = tee
		c.Next()

		if tee.Status() >= 200 && tee.Status() < 300 {
			store.Set(key, storedReply{
				status: tee.Status(),
				header: tee.Header().Clone(),
				body:   tee.buf.Bytes(),
			}, ttl)
		}
	}
}
