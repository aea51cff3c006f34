package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/ihuzaapp/shopperd/pkg/errors"
	"github.com/ihuzaapp/shopperd/pkg/response"
)

// CtxShopperIDKey is the gin context key carrying the resolved shopper id.
const CtxShopperIDKey = "shopper_id"

// ShopperHeader is checked before the query parameter.
const ShopperHeader = "X-Shopper-ID"

// RequireShopper resolves the shopper identity from the request and aborts
// with 400 when none is present. Identity arrives from the gateway that
// fronts this service; the service itself does not authenticate.
func RequireShopper() gin.HandlerFunc {
	return func(c *gin.Context) {
		shopperID := strings.TrimSpace(c.GetHeader(ShopperHeader))
		if shopperID == "" {
			shopperID = strings.TrimSpace(c.Query("shopperId"))
		}
		if shopperID == "" {
			response.Error(c, apperrors.NewBadRequest("shopper identity missing"))
			c.Abort()
			return
		}

		c.Set(CtxShopperIDKey, shopperID)
		c.Next()
	}
}
