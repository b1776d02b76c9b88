package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// routeAttributes are path parameters copied onto the APM transaction.
var routeAttributes = map[string]string{
	"id":    "resource.id",
	"owner": "wallet.owner",
}

// NewRelicAttributes annotates the transaction started by nrgin with the
// ride, driver or wallet the request targets and reports handler errors.
// It must be registered after nrgin.Middleware.
func NewRelicAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		for param, attr := range routeAttributes {
			if v := c.Param(param); v != "" {
				txn.AddAttribute(attr, v)
			}
		}

		c.Next()

		txn.AddAttribute("http.route", c.FullPath())
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
