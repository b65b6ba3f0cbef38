package api

import (
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const msgUnsupportedEncoding = "Unsupported content encoding"

// DecompressRequestMiddleware inflates gzip or deflate encoded request bodies
// so handlers can work with plain JSON payloads. Invalid compressed payloads
// are rejected with a 400 response and unknown encodings with a 415.
func DecompressRequestMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			encoding := strings.ToLower(strings.TrimSpace(req.Header.Get(echo.HeaderContentEncoding)))
			if encoding == "" || encoding == "identity" {
				return next(c)
			}

			body := req.Body
			var (
				r   io.ReadCloser
				err error
			)
			switch encoding {
			case "gzip", "x-gzip":
				r, err = gzip.NewReader(body)
			case "deflate":
				r, err = zlib.NewReader(body)
			default:
				_ = body.Close()
				return c.JSON(http.StatusUnsupportedMediaType, errorResponse{Error: msgUnsupportedEncoding})
			}
			if err != nil {
				_ = body.Close()
				return c.JSON(http.StatusBadRequest, errorResponse{Error: msgInvalidTask})
			}

			req.Body = &inflatingReadCloser{ReadCloser: r, body: body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)

			return next(c)
		}
	}
}

type inflatingReadCloser struct {
	io.ReadCloser
	body io.Closer
}

func (r *inflatingReadCloser) Close() error {
	var err error
	if r.ReadCloser != nil {
		err = r.ReadCloser.Close()
	}
	if r.body != nil {
		if cerr := r.body.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
