// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"

	"github.com/amirphl/Susanoo/app/dto"
	"github.com/gofiber/fiber/v3"
)

// TrustedUserHeader carries the authenticated customer id resolved by the
// edge gateway. The service trusts this header; it is never reachable
// without the gateway in front of it.
const TrustedUserHeader = "X-User-ID"

// TrustedUser lifts the gateway-resolved customer id into request locals
// for the handlers downstream
func TrustedUser() fiber.Handler {
	return func(c fiber.Ctx) error {
		raw := c.Get(TrustedUserHeader)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "User identification header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_USER_HEADER",
				},
			})
		}

		customerID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || customerID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "User identification header is invalid",
				Error: dto.ErrorDetail{
					Code: "INVALID_USER_HEADER",
				},
			})
		}

		c.Locals("customer_id", uint(customerID))
		return c.Next()
	}
}
