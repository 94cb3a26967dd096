package server

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/relaymesh/geminigate/internal/gatewayerr"
	"github.com/relaymesh/geminigate/internal/validate"
)

// readBody reads and size-caps the request body (spec §4.1 "strict shape
// and value-range checks... before any translation").
func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, validate.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}

	return body, nil
}

// writeGatewayErr renders err in the caller's dialect and writes it.
func writeGatewayErr[T any](c *gin.Context, err error, render func(*gatewayerr.Error) (int, T)) {
	gwErr, ok := gatewayerr.As(err)
	if !ok {
		gwErr = gatewayerr.Wrap(gatewayerr.Internal, err)
	}

	status, body := render(gwErr)
	c.JSON(status, body)
}

// writeError is writeGatewayErr for an error constructed directly from a
// gatewayerr.Error rather than discovered via errors.As.
func writeError[T any](c *gin.Context, err *gatewayerr.Error, render func(*gatewayerr.Error) (int, T)) {
	status, body := render(err)
	c.JSON(status, body)
}
